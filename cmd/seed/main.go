// Seed loads the demo alert dataset into a caseq Postgres database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/log"
	v "github.com/linnemanlabs/go-core/version"

	"github.com/linnemanlabs/caseq/internal/alerts/pgstore"
	"github.com/linnemanlabs/caseq/internal/postgres"
	"github.com/linnemanlabs/caseq/internal/seed"
)

const appName = "caseq"
const component = "seed"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal error:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v.AppName = appName
	v.Component = component

	var logCfg log.Config
	logCfg.RegisterFlags(flag.CommandLine)
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (required)")
	flag.Parse()

	cfg.FillFromEnv(flag.CommandLine, "CASEQ_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if databaseURL == "" {
		return fmt.Errorf("database-url is required")
	}

	lg, err := log.New(logCfg.ToOptions(v.AppName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = lg.Sync() }()
	L := lg.With("component", component)
	ctx = log.WithContext(ctx, L)

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("postgres pool: %w", err)
	}
	defer pool.Close()

	store, err := pgstore.New(ctx, pool)
	if err != nil {
		return fmt.Errorf("pgstore init: %w", err)
	}

	if err := seed.Load(ctx, store); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	L.Info(ctx, "demo dataset loaded",
		"customers", len(seed.Customers()),
		"alerts", len(seed.Alerts()),
	)
	return nil
}
