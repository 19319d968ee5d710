package redact

import (
	"errors"
	"fmt"
	"regexp"
)

// RuleSpec is an uncompiled redaction rule as supplied by configuration.
type RuleSpec struct {
	Name            string `yaml:"name" mapstructure:"name"`
	Pattern         string `yaml:"pattern" mapstructure:"pattern"`
	Replacement     string `yaml:"replacement" mapstructure:"replacement"`
	Priority        int    `yaml:"priority" mapstructure:"priority"`
	CaseInsensitive bool   `yaml:"case_insensitive" mapstructure:"case_insensitive"`
	Multiline       bool   `yaml:"multiline" mapstructure:"multiline"`
	DotAll          bool   `yaml:"dot_all" mapstructure:"dot_all"`
}

// Rule is a compiled redaction rule. Rules are immutable once compiled;
// matching flags (case folding, line anchoring) are baked into Pattern.
type Rule struct {
	Name        string
	Pattern     *regexp.Regexp
	Replacement string
	Priority    int

	// seq is the registration sequence number, used to break priority ties.
	seq int
}

// Finding summarizes the matches of one rule during a redaction pass.
type Finding struct {
	Rule  string `json:"rule"`
	Count int    `json:"count"`
}

// ResidualFinding is a matched span from the original text that survived
// into the redacted output verbatim. Its presence means the artifact must
// not be released.
type ResidualFinding struct {
	Rule string `json:"rule"`
	Span string `json:"span"`
}

// Report contains the per-rule match counts of a redaction pass and, after
// auditing, any residual findings. It is created fresh per call and never
// persisted by this package.
type Report struct {
	MatchesPerRule   map[string]int    `json:"matches_per_rule"`
	ResidualFindings []ResidualFinding `json:"residual_findings,omitempty"`
}

// Clean reports whether the audit found no residual PHI.
func (r *Report) Clean() bool {
	return len(r.ResidualFindings) == 0
}

// ErrNotFound is returned when a rule name is not present in a registry.
var ErrNotFound = errors.New("rule not found")

// CompileError is returned by Register when a rule's pattern is not a valid
// regular expression. It is raised at registration time so a bad rule can
// never silently no-op during a redaction pass.
type CompileError struct {
	Name string
	Expr string
	Err  error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("rule %q: invalid pattern %q: %v", e.Name, e.Expr, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }
