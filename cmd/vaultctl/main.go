// Command vaultctl performs privileged re-identification lookups against the
// identifier vault. It is deliberately a separate binary: the pipeline never
// needs the reverse mapping, and keeping Resolve behind its own entry point
// means ordinary batch operation cannot re-identify a document by accident.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/medscrub/medscrub/internal/config"
	"github.com/medscrub/medscrub/internal/logger"
	"github.com/medscrub/medscrub/internal/vault"
)

func main() {
	var configPath = flag.String("config", "", "Path to configuration file")
	flag.Parse()

	if flag.NArg() != 2 || flag.Arg(0) != "resolve" {
		fmt.Fprintln(os.Stderr, "Usage: vaultctl [-config file] resolve <pseudonym-id>")
		os.Exit(2)
	}
	pseudonymID := flag.Arg(1)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Lookups are interactive; keep log noise out of the way.
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	store, err := openStore(cfg.Vault, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open vault store: %v\n", err)
		os.Exit(1)
	}

	v, err := vault.New(ctx, store, vault.DefaultOptions(), log.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open identifier vault: %v\n", err)
		os.Exit(1)
	}
	defer v.Close()

	sourceID, err := v.Resolve(pseudonymID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Resolve failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(sourceID)
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
