package migration

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/hazyhaar/taxomigrate/pkg/taxonomy"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Mode selects whether a run persists its changes.
type Mode string

const (
	ModeDryRun Mode = "dry-run"
	ModeCommit Mode = "commit"
)

// Config tunes a Runner. Zero values fall back to the defaults below.
type Config struct {
	Mode            Mode
	Workers         int           // concurrent records in flight (default 8 in commit, GOMAXPROCS in dry-run)
	Retries         int           // write attempts per record (default 3)
	Backoff         time.Duration // first retry delay, doubled each attempt (default 500ms)
	WritesPerSecond float64       // 0 = unlimited
	SampleSize      int           // report example cap (default 20)
}

const (
	DefaultCommitWorkers = 8
	DefaultRetries       = 3
	DefaultBackoff       = 500 * time.Millisecond
)

// Runner drives one migration pass over a Store.
type Runner struct {
	store    Store
	resolver *taxonomy.Resolver
	logger   *slog.Logger
	cfg      Config
	limiter  *rate.Limiter
	now      func() time.Time
}

// NewRunner creates a Runner. The resolver must already hold a valid catalog.
func NewRunner(store Store, resolver *taxonomy.Resolver, cfg Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeDryRun
	}
	if cfg.Workers <= 0 {
		if cfg.Mode == ModeCommit {
			cfg.Workers = DefaultCommitWorkers
		} else {
			cfg.Workers = runtime.GOMAXPROCS(0)
		}
	}
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = DefaultSampleSize
	}

	r := &Runner{
		store:    store,
		resolver: resolver,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
	if cfg.Mode == ModeCommit && cfg.WritesPerSecond > 0 {
		burst := int(cfg.WritesPerSecond)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.WritesPerSecond), burst)
	}
	return r
}

// outcome is the per-record result, folded into the Report in record order.
type outcome struct {
	done        bool
	skipped     bool
	changed     bool
	failed      bool
	id          string
	resolutions []taxonomy.Resolution
}

// Run lists every record, resolves its legacy labels and, in commit mode, writes
// the changed ones. Only a listing failure is returned as an error; per-record
// failures are logged and counted. Cancelling ctx stops new records from being
// started while in-flight writes complete.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := NewReport(r.cfg.Mode, r.cfg.SampleSize)
	report.StartedAt = r.now()

	records, err := r.store.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	r.logger.Info("migration started", "mode", r.cfg.Mode, "records", len(records), "workers", r.cfg.Workers)

	outcomes := make([]outcome, len(records))
	writeCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)
	for i := range records {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}
		g.Go(func() error {
			outcomes[i] = r.process(writeCtx, records[i])
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		if !o.done {
			continue
		}
		r.fold(report, o)
	}
	report.FinishedAt = r.now()

	r.logger.Info("migration finished",
		"mode", r.cfg.Mode,
		"inspected", report.Inspected,
		"changed", report.Changed,
		"unmapped", report.Unmapped,
		"failed", report.Failed,
		"interrupted", report.Interrupted,
	)
	return report, nil
}

// Plan is the computed effect of migrating one record.
type Plan struct {
	Update      Update
	Changed     bool
	Resolutions []taxonomy.Resolution
}

// Plan resolves a record without touching the store. ok is false when the record
// has no legacy field and must be skipped.
func (r *Runner) Plan(rec Record) (Plan, bool) {
	if !rec.Legacy.Present() {
		return Plan{}, false
	}
	legacy := rec.Legacy.Labels()
	canonical, resolutions := r.resolver.ResolveAll(legacy)
	return Plan{
		Update: Update{
			Labels: canonical,
			Backup: union(rec.Backup, legacy),
		},
		Changed:     !sameSet(legacy, canonical),
		Resolutions: resolutions,
	}, true
}

func (r *Runner) process(ctx context.Context, rec Record) outcome {
	o := outcome{done: true, id: rec.ID}

	plan, ok := r.Plan(rec)
	if !ok {
		o.skipped = true
		return o
	}
	o.changed = plan.Changed
	o.resolutions = plan.Resolutions

	if !plan.Changed {
		return o
	}
	if r.cfg.Mode != ModeCommit {
		r.logger.Debug("would update record", "record", rec.ID, "labels", plan.Update.Labels)
		return o
	}

	u := plan.Update
	u.UpdatedAt = r.now().UTC()
	err := withRetry(ctx, r.cfg.Retries, r.cfg.Backoff, func() error {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		err := r.store.UpdateRecord(ctx, rec.ID, u)
		if err != nil && retryable(err) {
			r.logger.Warn("record update failed, retrying", "record", rec.ID, "error", err)
		}
		return err
	})
	if err != nil {
		r.logger.Error("record update failed", "record", rec.ID, "error", err)
		o.failed = true
		o.changed = false
	}
	return o
}

func (r *Runner) fold(report *Report, o outcome) {
	if o.skipped {
		return
	}
	report.AddInspected(o.changed)
	if o.failed {
		report.AddFailed()
	}
	for _, res := range o.resolutions {
		if res.Unmapped() {
			report.AddUnmapped(res.Input)
		} else if res.Label != res.Input {
			report.AddMapping(Mapping{
				RecordID: o.id,
				Old:      res.Input,
				New:      res.Label,
				Score:    res.Score,
				Method:   string(res.Method),
			})
		}
	}
}
