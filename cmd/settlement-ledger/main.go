// Command settlement-ledger records settlement events published by
// paygate-server into PostgreSQL.
//
// Usage:
//
//	settlement-ledger                  apply migrations, then consume events
//	settlement-ledger migrate <cmd>    run a goose command (up, down, status, redo)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/x402-foundation/x402-paygate/config"
	"github.com/x402-foundation/x402-paygate/settlement"
	"github.com/x402-foundation/x402-paygate/settlement/ledger"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "Usage: settlement-ledger [migrate up|down|status|redo]")
	}
	flag.Parse()

	if err := run(flag.Args()); err != nil {
		slog.Error("settlement-ledger failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)

	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(args) > 0 {
		if args[0] != "migrate" || len(args) != 2 {
			flag.Usage()
			return fmt.Errorf("unknown command %q", args)
		}
		logger.Info("running migration", "command", args[1])
		return ledger.RunMigrations(ctx, cfg.DatabaseURL, args[1])
	}

	if cfg.NatsURL == "" {
		return errors.New("NATS_URL is required")
	}

	if err := ledger.RunMigrations(ctx, cfg.DatabaseURL, "up"); err != nil {
		return err
	}

	pool, err := ledger.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	nc, err := settlement.Connect(cfg.NatsURL, "settlement-ledger")
	if err != nil {
		return err
	}
	defer nc.Close()

	return ledger.NewWorker(ledger.New(pool), nc, logger).Run(ctx)
}
