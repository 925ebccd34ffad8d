package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hazyhaar/taxomigrate/pkg/store/sqlitestore"
)

func cmdHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	cfgPath := fs.String("config", "config.yaml", "path to config file")
	limit := fs.Int("limit", 20, "number of runs to show (0 = all)")
	fs.Parse(args)

	cfg, logger := setup(*cfgPath)

	runs, err := sqlitestore.OpenRunLog(cfg.HistoryDB)
	if err != nil {
		logger.Error("failed to open run history", "path", cfg.HistoryDB, "error", err)
		os.Exit(1)
	}
	defer runs.Close()

	list, err := runs.List(context.Background(), *limit)
	if err != nil {
		logger.Error("failed to list runs", "error", err)
		os.Exit(1)
	}
	if len(list) == 0 {
		fmt.Println("no migration runs recorded")
		return
	}
	for _, r := range list {
		note := ""
		if r.Interrupted {
			note = "  interrupted"
		}
		fmt.Printf("%s  %s  %-7s %-30s inspected=%d changed=%d unmapped=%d failed=%d%s\n",
			r.ID, time.Unix(r.StartedAt, 0).UTC().Format(time.RFC3339), r.Mode, r.Target,
			r.Inspected, r.Changed, r.Unmapped, r.Failed, note)
	}
}
