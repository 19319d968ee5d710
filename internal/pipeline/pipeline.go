// Package pipeline sequences the de-identification stages for batches of
// scanned report text: redaction, completeness audit, identifier
// pseudonymization, metadata extraction, and artifact output. Documents are
// processed concurrently against a single registry snapshot taken at the
// start of the run.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/medscrub/medscrub/internal/extract"
	"github.com/medscrub/medscrub/internal/logger"
	"github.com/medscrub/medscrub/internal/output"
	"github.com/medscrub/medscrub/internal/redact"
	"github.com/medscrub/medscrub/internal/vault"
)

// Pipeline wires the de-identification stages together.
type Pipeline struct {
	registry  *redact.Registry
	redactor  *redact.Redactor
	auditor   *redact.Auditor
	vault     *vault.Vault
	extractor *extract.Extractor
	reports   *output.ReportWriter
	metadata  *output.MetadataWriter
	config    Config
	logger    *logger.Logger
	limiter   *rate.Limiter
}

// New creates a pipeline. The registry is shared by reference; each Run
// takes its own ordered snapshot, so registering new rules between runs is
// safe while a run is in flight.
func New(
	registry *redact.Registry,
	v *vault.Vault,
	extractor *extract.Extractor,
	reports *output.ReportWriter,
	metadata *output.MetadataWriter,
	config Config,
	log *logger.Logger,
) *Pipeline {
	if config.Workers <= 0 {
		config.Workers = 1
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	return &Pipeline{
		registry:  registry,
		redactor:  redact.NewRedactor(log.Logger),
		auditor:   redact.NewAuditor(log.Logger),
		vault:     v,
		extractor: extractor,
		reports:   reports,
		metadata:  metadata,
		config:    config,
		logger:    log,
		limiter:   limiter,
	}
}

// documentOutcome carries one worker's result back to the collector.
type documentOutcome struct {
	sourceID string
	record   output.MetadataRecord
	leaked   []string
	err      error
}

// Run processes every document the source lists and writes the batch
// metadata set for the documents that passed verification. A document whose
// redaction fails verification is quarantined into the failure list with the
// leaking rule names and produces no artifact. Per-document errors are
// isolated; Run itself fails only when the source cannot be listed, the
// context is cancelled, or the metadata set cannot be written.
func (p *Pipeline) Run(ctx context.Context, source TextSource) (*BatchResult, error) {
	start := time.Now()

	ids, err := source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	// One snapshot for the whole batch: every worker redacts against the
	// same ordered rule set regardless of concurrent Register calls.
	rules := p.registry.AllOrdered()

	p.logger.Info("starting batch",
		zap.Int("documents", len(ids)),
		zap.Int("rules", len(rules)),
		zap.Int("workers", p.config.Workers),
	)

	jobs := make(chan string)
	outcomes := make(chan documentOutcome)

	var wg sync.WaitGroup
	for i := 0; i < p.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sourceID := range jobs {
				outcomes <- p.processOne(ctx, source, sourceID, rules)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, id := range ids {
			select {
			case jobs <- id:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	result := &BatchResult{Total: len(ids)}
	for outcome := range outcomes {
		switch {
		case len(outcome.leaked) > 0:
			result.VerificationFailures++
			result.Failures = append(result.Failures, Failure{
				SourceID:    outcome.sourceID,
				LeakedRules: outcome.leaked,
			})
		case outcome.err != nil:
			result.Failures = append(result.Failures, Failure{
				SourceID: outcome.sourceID,
				Error:    outcome.err.Error(),
			})
		default:
			result.Succeeded++
			result.Records = append(result.Records, outcome.record)
		}
	}
	result.Duration = time.Since(start)

	if err := ctx.Err(); err != nil {
		return result, err
	}

	if len(result.Records) > 0 {
		if err := p.metadata.Write(result.Records, p.config.MetadataFile); err != nil {
			return result, err
		}
	}

	p.logger.Info("batch completed",
		zap.Int("total", result.Total),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("verification_failures", result.VerificationFailures),
		zap.Int("failures", len(result.Failures)),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// processOne runs one document through every stage.
func (p *Pipeline) processOne(ctx context.Context, source TextSource, sourceID string, rules []redact.Rule) documentOutcome {
	outcome := documentOutcome{sourceID: sourceID}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			outcome.err = err
			return outcome
		}
	}

	text, err := source.Read(ctx, sourceID)
	if err != nil {
		outcome.err = err
		return outcome
	}

	redacted, report := p.redactor.Redact(text, rules)

	report.ResidualFindings = p.auditor.Verify(text, redacted, rules)
	if !report.Clean() {
		verr := &VerificationError{Findings: report.ResidualFindings}
		outcome.leaked = verr.Rules()
		return outcome
	}

	pseud, err := p.vault.Pseudonymize(ctx, sourceID)
	if err != nil {
		outcome.err = err
		return outcome
	}

	fields := p.extractor.ExtractAll(redacted)
	outcome.record = output.NewMetadataRecord(pseud, fields)

	if _, err := p.reports.Write(pseud, redacted); err != nil {
		outcome.err = err
		return outcome
	}

	p.logger.LogDocumentResult(pseud, report.MatchesPerRule, true)
	return outcome
}

// ProcessText runs the redaction and verification stages on a single text
// blob without
// touching the vault or writers. It is used for spot checks and tests of
// rule sets against sample text.
func (p *Pipeline) ProcessText(text string) (string, *redact.Report, error) {
	rules := p.registry.AllOrdered()

	redacted, report := p.redactor.Redact(text, rules)
	report.ResidualFindings = p.auditor.Verify(text, redacted, rules)
	if !report.Clean() {
		return "", report, &VerificationError{Findings: report.ResidualFindings}
	}
	return redacted, report, nil
}
