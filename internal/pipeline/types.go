package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/medscrub/medscrub/internal/output"
	"github.com/medscrub/medscrub/internal/redact"
)

// Document is one source report handed to the pipeline: an opaque source
// identifier (typically the input filename stem) and the extracted text.
// Nothing else crosses the boundary from the text source.
type Document struct {
	SourceID string
	Text     string
}

// Failure records one document that did not make it into the de-identified
// output set. LeakedRules is non-empty for verification failures and names
// the rules whose matches survived redaction, which is what a rule author
// needs to fix the pattern.
type Failure struct {
	SourceID    string   `json:"source_id"`
	LeakedRules []string `json:"leaked_rules,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// BatchResult summarizes one batch run.
type BatchResult struct {
	Total                int           `json:"total"`
	Succeeded            int           `json:"succeeded"`
	VerificationFailures int           `json:"verification_failures"`
	Failures             []Failure     `json:"failures,omitempty"`
	Duration             time.Duration `json:"duration"`

	// Records holds the metadata of every successfully verified document.
	Records []output.MetadataRecord `json:"-"`
}

// VerificationError reports that the redaction audit found residual PHI in a
// document. The pipeline treats it as fatal for that document: the artifact
// is never written.
type VerificationError struct {
	Findings []redact.ResidualFinding
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("redaction verification failed: residual matches for rules [%s]",
		strings.Join(e.Rules(), ", "))
}

// Rules returns the distinct rule names with residual findings.
func (e *VerificationError) Rules() []string {
	seen := make(map[string]struct{}, len(e.Findings))
	var rules []string
	for _, f := range e.Findings {
		if _, dup := seen[f.Rule]; dup {
			continue
		}
		seen[f.Rule] = struct{}{}
		rules = append(rules, f.Rule)
	}
	return rules
}

// Config contains batch execution settings.
type Config struct {
	Workers      int
	RateLimit    float64 // documents per second, 0 = unlimited
	MetadataFile string
}
