package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hazyhaar/taxomigrate/pkg/migration"
	"github.com/hazyhaar/taxomigrate/pkg/store/sqlitestore"
)

func cmdMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	commit := fs.Bool("commit", false, "write changes (default is a dry run)")
	workers := fs.Int("workers", 0, "records processed concurrently (0 = config or default)")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	fs.Parse(args)

	cfg, logger := setup(*cfgPath)

	res, err := loadResolver(cfg)
	if err != nil {
		logger.Error("failed to load taxonomy", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open record store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer st.close()

	mode := migration.ModeDryRun
	if *commit {
		mode = migration.ModeCommit
	}
	rc := migration.Config{
		Mode:            mode,
		Workers:         cfg.Runner.Workers,
		Retries:         cfg.Runner.Retries,
		Backoff:         cfg.Runner.Backoff,
		WritesPerSecond: cfg.Runner.WritesPerSecond,
		SampleSize:      cfg.Runner.SampleSize,
	}
	if *workers > 0 {
		rc.Workers = *workers
	}

	report, err := migration.NewRunner(st, res, rc, logger).Run(ctx)
	if err != nil {
		logger.Error("migration aborted", "error", err)
		os.Exit(1)
	}

	if cfg.HistoryDB != "" {
		recordHistory(cfg.HistoryDB, st.target, report, logger)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(report)
	} else {
		err = report.Render(os.Stdout)
	}
	if err != nil {
		logger.Error("write report", "error", err)
		os.Exit(1)
	}
}

func recordHistory(path, target string, report *migration.Report, logger *slog.Logger) {
	runs, err := sqlitestore.OpenRunLog(path)
	if err != nil {
		logger.Warn("run history unavailable", "error", err)
		return
	}
	defer runs.Close()
	id, err := runs.Record(context.Background(), target, report)
	if err != nil {
		logger.Warn("run not recorded", "error", err)
		return
	}
	logger.Info("run recorded", "run_id", id)
}
