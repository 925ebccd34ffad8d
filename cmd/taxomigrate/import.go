package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hazyhaar/taxomigrate/pkg/importer"
	"github.com/hazyhaar/taxomigrate/pkg/store/sqlitestore"
)

func cmdImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	csvPath := fs.String("csv", "", "CSV file or http(s) URL to import")
	encoding := fs.String("encoding", "", "source encoding (e.g. windows-1252), default UTF-8")
	delimiter := fs.String("delimiter", ",", "field delimiter")
	idColumn := fs.String("id-column", "id", "column holding the record id")
	labelColumn := fs.String("label-column", "categories", "column holding the legacy labels")
	fs.Parse(args)

	if *csvPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: taxomigrate import -csv <file|url> [-encoding enc] [-delimiter ;] [-id-column id] [-label-column categories]")
		os.Exit(1)
	}

	cfg, logger := setup(*cfgPath)

	db, err := sqlitestore.Open(cfg.Store.SQLitePath, cfg.Fields, logger)
	if err != nil {
		logger.Error("failed to open record store", "path", cfg.Store.SQLitePath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := importer.ImportFile(ctx, *csvPath, db, importer.Options{
		Encoding:    *encoding,
		Delimiter:   *delimiter,
		IDColumn:    *idColumn,
		LabelColumn: *labelColumn,
		LabelField:  cfg.Fields.Labels,
	}, logger)
	if err != nil {
		logger.Error("import failed", "rows", res.Rows, "imported", res.Imported, "error", err)
		os.Exit(1)
	}
	fmt.Printf("imported %d of %d rows into %s (%d skipped)\n", res.Imported, res.Rows, cfg.Store.SQLitePath, res.Skipped)
}
