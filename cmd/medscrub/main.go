package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/medscrub/medscrub/internal/config"
	"github.com/medscrub/medscrub/internal/extract"
	"github.com/medscrub/medscrub/internal/logger"
	"github.com/medscrub/medscrub/internal/output"
	"github.com/medscrub/medscrub/internal/pipeline"
	"github.com/medscrub/medscrub/internal/redact"
	"github.com/medscrub/medscrub/internal/vault"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	// Parse command line flags
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		inputDir    = flag.String("input", "", "Input directory (overrides config)")
		outputDir   = flag.String("output", "", "Output directory (overrides config)")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("medscrub %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *inputDir != "" {
		cfg.Pipeline.InputDir = *inputDir
	}
	if *outputDir != "" {
		cfg.Pipeline.OutputDir = *outputDir
	}

	// Initialize logger
	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled:  cfg.Logging.File.Enabled,
			Path:     cfg.Logging.File.Path,
			MaxSize:  cfg.Logging.File.MaxSize,
			MaxAge:   cfg.Logging.File.MaxAge,
			Compress: cfg.Logging.File.Compress,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting medscrub",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.String("input_dir", cfg.Pipeline.InputDir),
		zap.String("output_dir", cfg.Pipeline.OutputDir),
	)

	// Cancel the batch on SIGINT/SIGTERM. Documents whose pseudonym persist
	// already completed stay valid; re-running the batch resumes identically.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Batch run failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	registry, err := buildRegistry(cfg.Redaction)
	if err != nil {
		return fmt.Errorf("failed to build rule registry: %w", err)
	}
	log.Info("Rule registry ready", zap.Int("rules", registry.Len()))

	store, err := openStore(cfg.Vault, log)
	if err != nil {
		return fmt.Errorf("failed to open vault store: %w", err)
	}

	v, err := vault.New(ctx, store, vault.Options{
		MaxRetries: cfg.Vault.MaxRetries,
		RetryDelay: cfg.Vault.RetryDelay,
	}, log.Logger)
	if err != nil {
		return fmt.Errorf("failed to open identifier vault: %w", err)
	}
	defer v.Close()

	reports, err := output.NewReportWriter(cfg.Pipeline.OutputDir, log.Logger)
	if err != nil {
		return err
	}
	metadata, err := output.NewMetadataWriter(cfg.Pipeline.MetadataFormat, log.Logger)
	if err != nil {
		return err
	}

	extractor := extract.New(extract.DefaultFields(), log.Logger)

	p := pipeline.New(registry, v, extractor, reports, metadata, pipeline.Config{
		Workers:      cfg.Pipeline.Workers,
		RateLimit:    cfg.Pipeline.RateLimit,
		MetadataFile: cfg.Pipeline.MetadataFile,
	}, log)

	result, err := p.Run(ctx, pipeline.NewDirSource(cfg.Pipeline.InputDir))
	if err != nil {
		return err
	}

	printSummary(result)
	if len(result.Failures) > 0 {
		return fmt.Errorf("%d of %d documents failed", len(result.Failures), result.Total)
	}
	return nil
}

// buildRegistry seeds a registry from the built-in rules and the configured
// overrides, in that order, so config entries win by name.
func buildRegistry(cfg config.RedactionConfig) (*redact.Registry, error) {
	registry := redact.NewRegistry()

	if cfg.UseDefaults {
		for _, spec := range redact.DefaultRules() {
			if err := registry.Register(spec); err != nil {
				return nil, err
			}
		}
	}
	for _, spec := range cfg.Rules {
		if err := registry.Register(spec); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func openStore(cfg config.VaultConfig, log *logger.Logger) (vault.Store, error) {
	switch cfg.Backend {
	case "redis":
		return vault.NewRedisStore(cfg.Redis, log.Logger)
	case "postgres":
		return vault.NewPostgresStore(cfg.Postgres, log.Logger)
	default:
		return vault.NewFileStore(cfg.MappingFile), nil
	}
}

func printSummary(result *pipeline.BatchResult) {
	fmt.Printf("Processed %d documents in %s: %d de-identified, %d failed verification, %d errored\n",
		result.Total, result.Duration.Round(time.Millisecond), result.Succeeded,
		result.VerificationFailures, len(result.Failures)-result.VerificationFailures)

	for _, failure := range result.Failures {
		if len(failure.LeakedRules) > 0 {
			fmt.Printf("  QUARANTINED %s: residual matches for rules %v\n", failure.SourceID, failure.LeakedRules)
		} else {
			fmt.Printf("  FAILED %s: %s\n", failure.SourceID, failure.Error)
		}
	}
}
