package redact

import (
	"go.uber.org/zap"
)

// Redactor applies an ordered rule snapshot to text. It holds no mutable
// state; one Redactor may serve any number of concurrent passes.
type Redactor struct {
	logger *zap.Logger
}

// NewRedactor creates a redactor that logs rule activity (names and counts
// only, never matched text) to the given logger.
func NewRedactor(logger *zap.Logger) *Redactor {
	return &Redactor{logger: logger}
}

// Redact applies every rule in rules, in order, to text and returns the
// redacted text plus a report with one match count per rule. Each rule runs
// against the output of the previous rule's substitution, not the original
// text: an earlier rule may remove characters that would otherwise confuse a
// later rule's boundaries, which is why snapshot order is load-bearing.
// The input string is never mutated. Empty text yields empty text and
// all-zero counts.
func (d *Redactor) Redact(text string, rules []Rule) (string, *Report) {
	report := &Report{
		MatchesPerRule: make(map[string]int, len(rules)),
	}

	redacted := text
	for _, rule := range rules {
		count := len(rule.Pattern.FindAllStringIndex(redacted, -1))
		report.MatchesPerRule[rule.Name] = count
		if count == 0 {
			continue
		}

		redacted = rule.Pattern.ReplaceAllString(redacted, rule.Replacement)

		d.logger.Debug("PHI redacted",
			zap.String("rule", rule.Name),
			zap.Int("count", count),
		)
	}

	return redacted, report
}
