package secrets

import "time"

// Result is the outcome of one Scrub call.
type Result struct {
	Scrubbed      string
	Findings      []Finding
	ByRule        map[string]int
	TotalFindings int
	Duration      time.Duration
}

// Finding locates one detected secret. The matched text is never kept.
type Finding struct {
	RuleID      string
	Description string
	Severity    string
	StartIndex  int
	EndIndex    int
	Line        int
}

// HasFindings reports whether anything was redacted.
func (r *Result) HasFindings() bool {
	return r.TotalFindings > 0
}

// Summary returns a short human readable description.
func (r *Result) Summary() string {
	if !r.HasFindings() {
		return "no secrets detected"
	}
	for _, f := range r.Findings {
		if f.Severity == "high" {
			return "secrets redacted (high severity)"
		}
	}
	return "secrets redacted"
}
