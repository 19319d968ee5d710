package redact

import (
	"strings"

	"go.uber.org/zap"
)

// Auditor independently verifies redaction completeness. It re-runs each
// rule against the original text and checks that none of the matched spans
// survive verbatim in the redacted output. This deliberately does not reuse
// the Redactor's own match counts: the point is to catch the case where the
// Redactor's bookkeeping claims success but the substitution failed, e.g. a
// replacement template that echoes a captured group back into the output.
type Auditor struct {
	logger *zap.Logger
}

// NewAuditor creates an auditor logging to the given logger.
func NewAuditor(logger *zap.Logger) *Auditor {
	return &Auditor{logger: logger}
}

// Verify enumerates every span each rule matches in original and returns the
// ones still present verbatim in redacted. An empty result means the pass is
// clean; a non-empty result must be treated as a failed verification by the
// caller, and the artifact must not be released.
func (a *Auditor) Verify(original, redacted string, rules []Rule) []ResidualFinding {
	var findings []ResidualFinding

	for _, rule := range rules {
		spans := rule.Pattern.FindAllString(original, -1)
		if len(spans) == 0 {
			continue
		}

		seen := make(map[string]struct{}, len(spans))
		for _, span := range spans {
			if span == "" {
				continue
			}
			if _, dup := seen[span]; dup {
				continue
			}
			seen[span] = struct{}{}

			if strings.Contains(redacted, span) {
				findings = append(findings, ResidualFinding{Rule: rule.Name, Span: span})
			}
		}
	}

	if len(findings) > 0 {
		// Log rule names only; the spans themselves are PHI.
		names := make([]string, 0, len(findings))
		for _, f := range findings {
			names = append(names, f.Rule)
		}
		a.logger.Warn("redaction audit found residual PHI",
			zap.Strings("rules", names),
			zap.Int("findings", len(findings)),
		)
	}

	return findings
}
