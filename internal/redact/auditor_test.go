package redact

import (
	"testing"

	"go.uber.org/zap"
)

func TestAuditor(t *testing.T) {
	redactor := NewRedactor(zap.NewNop())
	auditor := NewAuditor(zap.NewNop())

	t.Run("CleanPass", func(t *testing.T) {
		r := NewRegistry()
		mustRegister(t, r, RuleSpec{Name: "ssn", Pattern: `\d{3}-\d{2}-\d{4}`, Replacement: "[SSN REDACTED]"})

		text := "SSN: 123-45-6789"
		redacted, _ := redactor.Redact(text, r.AllOrdered())

		if findings := auditor.Verify(text, redacted, r.AllOrdered()); len(findings) != 0 {
			t.Errorf("clean pass reported findings: %+v", findings)
		}
	})

	t.Run("EchoingReplacementCaught", func(t *testing.T) {
		// A replacement template that echoes the captured group reproduces
		// the matched span verbatim. The redactor's own bookkeeping counts
		// this as a successful substitution; only the independent audit
		// catches it.
		r := NewRegistry()
		mustRegister(t, r, RuleSpec{Name: "ssn", Pattern: `(\d{3}-\d{2}-\d{4})`, Replacement: "$1"})

		text := "SSN: 123-45-6789"
		redacted, report := redactor.Redact(text, r.AllOrdered())

		if report.MatchesPerRule["ssn"] != 1 {
			t.Fatalf("redactor did not claim a match: %v", report.MatchesPerRule)
		}

		findings := auditor.Verify(text, redacted, r.AllOrdered())
		if len(findings) == 0 {
			t.Fatal("auditor missed the echoed span")
		}
		if findings[0].Rule != "ssn" {
			t.Errorf("finding names rule %q, want %q", findings[0].Rule, "ssn")
		}
		if findings[0].Span != "123-45-6789" {
			t.Errorf("finding span = %q, want the matched SSN", findings[0].Span)
		}
	})

	t.Run("RepeatedSpanReportedOnce", func(t *testing.T) {
		r := NewRegistry()
		mustRegister(t, r, RuleSpec{Name: "ssn", Pattern: `(\d{3}-\d{2}-\d{4})`, Replacement: "$1"})

		text := "123-45-6789 again 123-45-6789"
		redacted, _ := redactor.Redact(text, r.AllOrdered())

		findings := auditor.Verify(text, redacted, r.AllOrdered())
		if len(findings) != 1 {
			t.Errorf("expected one deduplicated finding, got %d", len(findings))
		}
	})

	t.Run("NoMatchesNoFindings", func(t *testing.T) {
		r := NewRegistry()
		mustRegister(t, r, RuleSpec{Name: "ssn", Pattern: `\d{3}-\d{2}-\d{4}`, Replacement: "[SSN]"})

		if findings := auditor.Verify("nothing sensitive here", "nothing sensitive here", r.AllOrdered()); findings != nil {
			t.Errorf("expected nil findings, got %+v", findings)
		}
	})
}
