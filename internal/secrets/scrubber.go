package secrets

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// Scrubber detects and redacts secrets.
type Scrubber interface {
	Scrub(content string) *Result
	IsEnabled() bool
}

type scrubber struct {
	redaction string
	rules     []*compiledRule
	allow     []*regexp.Regexp
	leaks     *leakDetector
}

type span struct {
	start, end int
}

// New compiles cfg into a Scrubber. A nil cfg uses DefaultConfig.
// A disabled cfg yields a scrubber that returns content unchanged.
func New(cfg *Config) (Scrubber, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if !cfg.Enabled {
		return NoopScrubber{}, nil
	}
	rules, allow, err := cfg.compile()
	if err != nil {
		return nil, err
	}
	redaction := cfg.RedactionString
	if redaction == "" {
		redaction = "[REDACTED]"
	}
	s := &scrubber{redaction: redaction, rules: rules, allow: allow}
	if cfg.Gitleaks {
		if s.leaks, err = newLeakDetector(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Scrub replaces every rule match in content. Overlapping matches are merged
// into a single redaction.
func (s *scrubber) Scrub(content string) *Result {
	start := time.Now()
	result := &Result{Scrubbed: content, ByRule: make(map[string]int)}

	var spans []span
	for _, rule := range s.rules {
		if !rule.applies(content) {
			continue
		}
		for _, m := range rule.pattern.FindAllStringIndex(content, -1) {
			if s.allowed(content[m[0]:m[1]]) {
				continue
			}
			result.Findings = append(result.Findings, Finding{
				RuleID:      rule.ID,
				Description: rule.Description,
				Severity:    rule.Severity,
				StartIndex:  m[0],
				EndIndex:    m[1],
				Line:        strings.Count(content[:m[0]], "\n") + 1,
			})
			result.ByRule[rule.ID]++
			spans = append(spans, span{m[0], m[1]})
		}
	}
	if s.leaks != nil {
		for _, l := range s.leaks.find(content) {
			if s.allowed(content[l.start:l.end]) {
				continue
			}
			result.Findings = append(result.Findings, Finding{
				RuleID:      l.ruleID,
				Description: l.description,
				Severity:    "high",
				StartIndex:  l.start,
				EndIndex:    l.end,
				Line:        strings.Count(content[:l.start], "\n") + 1,
			})
			result.ByRule[l.ruleID]++
			spans = append(spans, span{l.start, l.end})
		}
	}
	result.TotalFindings = len(result.Findings)

	if len(spans) > 0 {
		var b strings.Builder
		b.Grow(len(content))
		last := 0
		for _, sp := range merge(spans) {
			b.WriteString(content[last:sp.start])
			b.WriteString(s.redaction)
			last = sp.end
		}
		b.WriteString(content[last:])
		result.Scrubbed = b.String()
	}

	result.Duration = time.Since(start)
	return result
}

func (s *scrubber) IsEnabled() bool {
	return true
}

func (s *scrubber) allowed(match string) bool {
	for _, re := range s.allow {
		if re.MatchString(match) {
			return true
		}
	}
	return false
}

func (r *compiledRule) applies(content string) bool {
	if len(r.keywords) == 0 {
		return true
	}
	for _, kw := range r.keywords {
		if kw.MatchString(content) {
			return true
		}
	}
	return false
}

// merge sorts spans and joins overlapping or adjacent ones.
func merge(spans []span) []span {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	out := []span{spans[0]}
	for _, cur := range spans[1:] {
		last := &out[len(out)-1]
		if cur.start <= last.end {
			if cur.end > last.end {
				last.end = cur.end
			}
			continue
		}
		out = append(out, cur)
	}
	return out
}

// NoopScrubber returns content unchanged.
type NoopScrubber struct{}

func (NoopScrubber) Scrub(content string) *Result {
	return &Result{Scrubbed: content, ByRule: map[string]int{}}
}

func (NoopScrubber) IsEnabled() bool {
	return false
}

var (
	_ Scrubber = (*scrubber)(nil)
	_ Scrubber = NoopScrubber{}
)
