package secrets

import (
	"fmt"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// gitleaksRulePrefix marks findings reported by the gitleaks ruleset.
const gitleaksRulePrefix = "gitleaks:"

// leakDetector runs the gitleaks default ruleset over a string.
// The detector is built once; calls are serialized.
type leakDetector struct {
	mu       sync.Mutex
	detector *detect.Detector
}

func newLeakDetector() (*leakDetector, error) {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load gitleaks rules: %w", err)
	}
	return &leakDetector{detector: d}, nil
}

// leak is one secret reported by gitleaks, located in the scanned content.
type leak struct {
	ruleID      string
	description string
	start, end  int
}

// find returns every occurrence of every reported secret. gitleaks reports
// lines and columns; the byte offsets are recovered by searching the content.
func (l *leakDetector) find(content string) []leak {
	l.mu.Lock()
	findings := l.detector.DetectString(content)
	l.mu.Unlock()

	var out []leak
	seen := make(map[string]bool)
	for _, f := range findings {
		if f.Secret == "" || seen[f.Secret] {
			continue
		}
		seen[f.Secret] = true
		for from := 0; ; {
			i := strings.Index(content[from:], f.Secret)
			if i < 0 {
				break
			}
			start := from + i
			out = append(out, leak{
				ruleID:      gitleaksRulePrefix + f.RuleID,
				description: f.Description,
				start:       start,
				end:         start + len(f.Secret),
			})
			from = start + len(f.Secret)
		}
	}
	return out
}
