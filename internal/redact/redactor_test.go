package redact

import (
	"reflect"
	"testing"

	"go.uber.org/zap"
)

func TestRedactor(t *testing.T) {
	redactor := NewRedactor(zap.NewNop())

	t.Run("NameAndSSN", func(t *testing.T) {
		r := NewRegistry()
		mustRegister(t, r, RuleSpec{
			Name:        "name",
			Pattern:     `Patient Name[:\s]+[A-Za-z ]+`,
			Replacement: "Patient Name: [ANONYMIZED]",
			Priority:    1,
		})
		mustRegister(t, r, RuleSpec{
			Name:        "ssn",
			Pattern:     `\d{3}-\d{2}-\d{4}`,
			Replacement: "[SSN REDACTED]",
			Priority:    2,
		})

		text := "Patient Name: John Smith, SSN: 123-45-6789"
		redacted, report := redactor.Redact(text, r.AllOrdered())

		if want := "Patient Name: [ANONYMIZED], SSN: [SSN REDACTED]"; redacted != want {
			t.Errorf("redacted = %q, want %q", redacted, want)
		}
		wantCounts := map[string]int{"name": 1, "ssn": 1}
		if !reflect.DeepEqual(report.MatchesPerRule, wantCounts) {
			t.Errorf("counts = %v, want %v", report.MatchesPerRule, wantCounts)
		}
	})

	t.Run("EmptyText", func(t *testing.T) {
		r := NewRegistry()
		mustRegister(t, r, RuleSpec{Name: "ssn", Pattern: `\d{3}-\d{2}-\d{4}`, Replacement: "[SSN]"})

		redacted, report := redactor.Redact("", r.AllOrdered())
		if redacted != "" {
			t.Errorf("redacted = %q, want empty", redacted)
		}
		if got := report.MatchesPerRule["ssn"]; got != 0 {
			t.Errorf("count = %d, want 0", got)
		}
	})

	t.Run("EachRuleSeesPriorOutput", func(t *testing.T) {
		// The first rule rewrites the caption the second rule anchors on;
		// the second rule must match against the rewritten text.
		r := NewRegistry()
		mustRegister(t, r, RuleSpec{Name: "caption", Pattern: `Pt Name`, Replacement: "Patient Name", Priority: 1})
		mustRegister(t, r, RuleSpec{Name: "name", Pattern: `Patient Name: [A-Za-z ]+`, Replacement: "Patient Name: [ANONYMIZED]", Priority: 2})

		redacted, report := redactor.Redact("Pt Name: Jane Doe", r.AllOrdered())
		if want := "Patient Name: [ANONYMIZED]"; redacted != want {
			t.Errorf("redacted = %q, want %q", redacted, want)
		}
		if report.MatchesPerRule["name"] != 1 {
			t.Errorf("second rule did not see first rule's output: %v", report.MatchesPerRule)
		}
	})

	t.Run("MultipleMatchesCounted", func(t *testing.T) {
		r := NewRegistry()
		mustRegister(t, r, RuleSpec{Name: "ssn", Pattern: `\d{3}-\d{2}-\d{4}`, Replacement: "[SSN]"})

		_, report := redactor.Redact("123-45-6789 and 987-65-4321", r.AllOrdered())
		if got := report.MatchesPerRule["ssn"]; got != 2 {
			t.Errorf("count = %d, want 2", got)
		}
	})

	t.Run("CaptureGroupReplacement", func(t *testing.T) {
		r := NewRegistry()
		mustRegister(t, r, RuleSpec{
			Name:        "mrn",
			Pattern:     `(MRN)[:\s]+\w+`,
			Replacement: "$1: [ANONYMIZED]",
		})

		redacted, _ := redactor.Redact("MRN: A12345", r.AllOrdered())
		if want := "MRN: [ANONYMIZED]"; redacted != want {
			t.Errorf("redacted = %q, want %q", redacted, want)
		}
	})

	t.Run("InputNotMutated", func(t *testing.T) {
		r := NewRegistry()
		mustRegister(t, r, RuleSpec{Name: "ssn", Pattern: `\d{3}-\d{2}-\d{4}`, Replacement: "[SSN]"})

		text := "SSN: 123-45-6789"
		redacted, _ := redactor.Redact(text, r.AllOrdered())
		if text != "SSN: 123-45-6789" {
			t.Error("input text changed")
		}
		if redacted == text {
			t.Error("redaction had no effect")
		}
	})
}

func TestDefaultRulesRedaction(t *testing.T) {
	registry, err := NewRegistryFromSpecs(DefaultRules())
	if err != nil {
		t.Fatalf("failed to build default registry: %v", err)
	}
	redactor := NewRedactor(zap.NewNop())

	text := "Patient Name: Jane Doe\n" +
		"Patient ID: patient_10785\n" +
		"Hospital Name: St Mary\n" +
		"Clinician: Dr Smith\n" +
		"DOB: 1990-04-02\n" +
		"Contact: jane.doe@example.com, (555) 123-4567\n"

	redacted, report := redactor.Redact(text, registry.AllOrdered())

	for _, rule := range []string{"patient_name", "patient_id", "hospital_name", "clinician", "date_of_birth", "email", "phone"} {
		if report.MatchesPerRule[rule] == 0 {
			t.Errorf("rule %q matched nothing", rule)
		}
	}

	auditor := NewAuditor(zap.NewNop())
	if findings := auditor.Verify(text, redacted, registry.AllOrdered()); len(findings) != 0 {
		t.Errorf("default rules leaked PHI: %+v", findings)
	}
}
