package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/medscrub/medscrub/internal/extract"
	"github.com/medscrub/medscrub/internal/logger"
	"github.com/medscrub/medscrub/internal/output"
	"github.com/medscrub/medscrub/internal/redact"
	"github.com/medscrub/medscrub/internal/vault"
	"go.uber.org/zap"
)

const cleanReport = `Patient Name: Jane Doe
Patient ID: patient_10785
Age: 33
BMI: 28.4
GA: 43 weeks 1 day

Examination Findings
Fetal heartbeat normal
Conclusion
Routine follow-up advised.
`

func nopLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func testRegistry(t *testing.T) *redact.Registry {
	t.Helper()
	registry, err := redact.NewRegistryFromSpecs(redact.DefaultRules())
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	return registry
}

func newTestPipeline(t *testing.T, registry *redact.Registry, outputDir, metadataFile string) *Pipeline {
	t.Helper()
	log := nopLogger()

	store := vault.NewFileStore(filepath.Join(t.TempDir(), "id_map.json"))
	v, err := vault.New(context.Background(), store, vault.Options{MaxRetries: 1, RetryDelay: time.Millisecond}, log.Logger)
	if err != nil {
		t.Fatalf("failed to construct vault: %v", err)
	}
	t.Cleanup(func() { v.Close() })

	reports, err := output.NewReportWriter(outputDir, log.Logger)
	if err != nil {
		t.Fatal(err)
	}
	metadata, err := output.NewMetadataWriter("json", log.Logger)
	if err != nil {
		t.Fatal(err)
	}

	return New(registry, v, extract.New(extract.DefaultFields(), log.Logger), reports, metadata, Config{
		Workers:      2,
		MetadataFile: metadataFile,
	}, log)
}

func writeDoc(t *testing.T, dir, sourceID, text string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, sourceID+".txt"), []byte(text), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestPipelineRun(t *testing.T) {
	ctx := context.Background()

	t.Run("CleanBatch", func(t *testing.T) {
		inputDir := t.TempDir()
		outputDir := t.TempDir()
		metadataFile := filepath.Join(t.TempDir(), "metadata.json")

		writeDoc(t, inputDir, "patient_10785", cleanReport)
		writeDoc(t, inputDir, "patient_10786", cleanReport)

		p := newTestPipeline(t, testRegistry(t), outputDir, metadataFile)
		result, err := p.Run(ctx, NewDirSource(inputDir))
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		if result.Total != 2 || result.Succeeded != 2 || len(result.Failures) != 0 {
			t.Fatalf("unexpected result: %+v", result)
		}

		// One artifact per document, named by pseudonym, with no PHI left.
		entries, err := os.ReadDir(outputDir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 2 {
			t.Fatalf("wrote %d artifacts, want 2", len(entries))
		}
		for _, entry := range entries {
			data, err := os.ReadFile(filepath.Join(outputDir, entry.Name()))
			if err != nil {
				t.Fatal(err)
			}
			if text := string(data); containsAny(text, "Jane Doe", "patient_10785", "patient_10786") {
				t.Errorf("artifact %s still contains PHI", entry.Name())
			}
		}

		// Metadata holds one record per document, keyed by pseudonym.
		data, err := os.ReadFile(metadataFile)
		if err != nil {
			t.Fatal(err)
		}
		var records []output.MetadataRecord
		if err := json.Unmarshal(data, &records); err != nil {
			t.Fatal(err)
		}
		if len(records) != 2 {
			t.Fatalf("metadata has %d records, want 2", len(records))
		}
		for _, rec := range records {
			if rec.PatientID == "patient_10785" || rec.PatientID == "patient_10786" {
				t.Errorf("metadata leaked source identifier: %q", rec.PatientID)
			}
			if rec.Age == nil || *rec.Age != 33 {
				t.Errorf("record missing extracted age: %+v", rec)
			}
		}
	})

	t.Run("LeakingRuleQuarantinesDocument", func(t *testing.T) {
		inputDir := t.TempDir()
		outputDir := t.TempDir()
		metadataFile := filepath.Join(t.TempDir(), "metadata.json")

		writeDoc(t, inputDir, "patient_1", "SSN: 123-45-6789")

		// A replacement that echoes the match back defeats the redactor but
		// not the auditor.
		registry := redact.NewRegistry()
		if err := registry.Register(redact.RuleSpec{
			Name:        "ssn",
			Pattern:     `(\d{3}-\d{2}-\d{4})`,
			Replacement: "$1",
		}); err != nil {
			t.Fatal(err)
		}

		p := newTestPipeline(t, registry, outputDir, metadataFile)
		result, err := p.Run(ctx, NewDirSource(inputDir))
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		if result.Succeeded != 0 || result.VerificationFailures != 1 {
			t.Fatalf("unexpected result: %+v", result)
		}
		if len(result.Failures) != 1 {
			t.Fatalf("failures = %+v", result.Failures)
		}
		failure := result.Failures[0]
		if failure.SourceID != "patient_1" {
			t.Errorf("failure names %q", failure.SourceID)
		}
		if len(failure.LeakedRules) != 1 || failure.LeakedRules[0] != "ssn" {
			t.Errorf("leaked rules = %v, want [ssn]", failure.LeakedRules)
		}

		// The quarantined document produced no artifact and no metadata.
		entries, err := os.ReadDir(outputDir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 0 {
			t.Errorf("quarantined document produced %d artifacts", len(entries))
		}
		if _, err := os.Stat(metadataFile); !os.IsNotExist(err) {
			t.Error("metadata file written for an all-quarantined batch")
		}
	})

	t.Run("StablePseudonymAcrossRuns", func(t *testing.T) {
		inputDir := t.TempDir()
		outputDir := t.TempDir()
		metadataFile := filepath.Join(t.TempDir(), "metadata.json")

		writeDoc(t, inputDir, "patient_10785", cleanReport)

		p := newTestPipeline(t, testRegistry(t), outputDir, metadataFile)
		first, err := p.Run(ctx, NewDirSource(inputDir))
		if err != nil {
			t.Fatal(err)
		}
		second, err := p.Run(ctx, NewDirSource(inputDir))
		if err != nil {
			t.Fatal(err)
		}

		if first.Records[0].PatientID != second.Records[0].PatientID {
			t.Errorf("pseudonym changed between runs: %q vs %q",
				first.Records[0].PatientID, second.Records[0].PatientID)
		}
	})

	t.Run("CancelledContext", func(t *testing.T) {
		inputDir := t.TempDir()
		writeDoc(t, inputDir, "patient_1", cleanReport)

		p := newTestPipeline(t, testRegistry(t), t.TempDir(), filepath.Join(t.TempDir(), "m.json"))

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := p.Run(cancelled, NewDirSource(inputDir)); err == nil {
			t.Error("expected error from cancelled context")
		}
	})
}

func TestProcessText(t *testing.T) {
	p := newTestPipeline(t, testRegistry(t), t.TempDir(), filepath.Join(t.TempDir(), "m.json"))

	t.Run("Clean", func(t *testing.T) {
		redacted, report, err := p.ProcessText("Patient Name: Jane Doe")
		if err != nil {
			t.Fatalf("ProcessText failed: %v", err)
		}
		if redacted != "Patient Name: [ANONYMIZED]" {
			t.Errorf("redacted = %q", redacted)
		}
		if report.MatchesPerRule["patient_name"] != 1 {
			t.Errorf("counts = %v", report.MatchesPerRule)
		}
	})

	t.Run("VerificationErrorPropagates", func(t *testing.T) {
		registry := redact.NewRegistry()
		if err := registry.Register(redact.RuleSpec{Name: "echo", Pattern: `(secret)`, Replacement: "$1"}); err != nil {
			t.Fatal(err)
		}
		p := newTestPipeline(t, registry, t.TempDir(), filepath.Join(t.TempDir(), "m.json"))

		_, report, err := p.ProcessText("the secret survives")
		if err == nil {
			t.Fatal("expected verification error")
		}
		verr, ok := err.(*VerificationError)
		if !ok {
			t.Fatalf("expected *VerificationError, got %T", err)
		}
		if len(verr.Rules()) != 1 || verr.Rules()[0] != "echo" {
			t.Errorf("Rules = %v", verr.Rules())
		}
		if report.Clean() {
			t.Error("report claims clean despite residual findings")
		}
	})
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
