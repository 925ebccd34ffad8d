package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazyhaar/taxomigrate/pkg/migration"
)

func TestRunLog_RecordAndList(t *testing.T) {
	log, err := OpenRunLog(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("OpenRunLog: %v", err)
	}
	defer log.Close()
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	first := migration.NewReport(migration.ModeDryRun, 0)
	first.StartedAt, first.FinishedAt = base, base.Add(time.Second)
	first.Inspected, first.Changed = 10, 4

	second := migration.NewReport(migration.ModeCommit, 0)
	second.StartedAt, second.FinishedAt = base.Add(time.Hour), base.Add(time.Hour+time.Second)
	second.Inspected, second.Changed, second.Failed = 10, 3, 1
	second.Interrupted = true

	id1, err := log.Record(ctx, "sqlite:records.db", first)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	id2, err := log.Record(ctx, "sqlite:records.db", second)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if id1 == id2 || id1 == "" {
		t.Fatalf("run ids not unique: %q %q", id1, id2)
	}

	runs, err := log.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != id2 || runs[0].Mode != "commit" || !runs[0].Interrupted || runs[0].Failed != 1 {
		t.Errorf("latest run = %+v", runs[0])
	}
	if runs[1].ID != id1 || runs[1].Changed != 4 || runs[1].Interrupted {
		t.Errorf("oldest run = %+v", runs[1])
	}

	limited, err := log.List(ctx, 1)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != id2 {
		t.Errorf("limited = %+v", limited)
	}
}
