package migration

import (
	"fmt"
	"io"
	"sort"
	"time"
)

// DefaultSampleSize caps both example lists of a Report.
const DefaultSampleSize = 20

// Mapping is one legacy label that resolved to a different canonical label.
type Mapping struct {
	RecordID string  `json:"record_id"`
	Old      string  `json:"old"`
	New      string  `json:"new"`
	Score    float64 `json:"score"`
	Method   string  `json:"method"`
}

// Report aggregates the outcome of one run. It is not safe for concurrent use;
// the Runner feeds it from a single goroutine in record order.
type Report struct {
	Mode        Mode      `json:"mode"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Inspected   int       `json:"inspected"`
	Changed     int       `json:"changed"`
	Unmapped    int       `json:"unmapped"`
	Failed      int       `json:"failed"`
	Interrupted bool      `json:"interrupted"`

	UnmappedSamples []string  `json:"unmapped_samples"`
	Mappings        []Mapping `json:"mappings"`

	sampleSize   int
	unmappedSeen map[string]struct{}
}

// NewReport returns an empty report keeping at most sampleSize examples per list.
func NewReport(mode Mode, sampleSize int) *Report {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &Report{
		Mode:            mode,
		UnmappedSamples: []string{},
		Mappings:        []Mapping{},
		sampleSize:      sampleSize,
		unmappedSeen:    make(map[string]struct{}),
	}
}

// AddInspected counts one record whose legacy field was present.
func (r *Report) AddInspected(changed bool) {
	r.Inspected++
	if changed {
		r.Changed++
	}
}

// AddFailed counts one record whose read or write failed.
func (r *Report) AddFailed() {
	r.Failed++
}

// AddUnmapped counts a label that fell through to the fallback and keeps the
// first distinct values as samples.
func (r *Report) AddUnmapped(original string) {
	r.Unmapped++
	if _, ok := r.unmappedSeen[original]; ok {
		return
	}
	if len(r.UnmappedSamples) >= r.sampleSize {
		return
	}
	r.unmappedSeen[original] = struct{}{}
	r.UnmappedSamples = append(r.UnmappedSamples, original)
}

// AddMapping records a transition, keeping the best-scored sampleSize entries
// sorted by descending score. Equal scores keep insertion order.
func (r *Report) AddMapping(m Mapping) {
	r.Mappings = append(r.Mappings, m)
	sort.SliceStable(r.Mappings, func(i, j int) bool {
		return r.Mappings[i].Score > r.Mappings[j].Score
	})
	if len(r.Mappings) > r.sampleSize {
		r.Mappings = r.Mappings[:r.sampleSize]
	}
}

// Render writes the human-readable summary.
func (r *Report) Render(w io.Writer) error {
	ew := &errWriter{w: w}
	ew.printf("Migration report (%s)\n", r.Mode)
	ew.printf("  inspected: %d\n", r.Inspected)
	ew.printf("  changed:   %d\n", r.Changed)
	ew.printf("  unmapped:  %d\n", r.Unmapped)
	ew.printf("  failed:    %d\n", r.Failed)
	if r.Interrupted {
		ew.printf("  interrupted before all records were processed\n")
	}
	if !r.FinishedAt.IsZero() && !r.StartedAt.IsZero() {
		ew.printf("  duration:  %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}

	if len(r.UnmappedSamples) > 0 {
		ew.printf("\nUnmapped values (first %d):\n", len(r.UnmappedSamples))
		for _, v := range r.UnmappedSamples {
			ew.printf("  - %q\n", v)
		}
	}
	if len(r.Mappings) > 0 {
		ew.printf("\nBest mappings (top %d):\n", len(r.Mappings))
		for _, m := range r.Mappings {
			ew.printf("  %6.3f  %-8s %q -> %q\n", m.Score, m.Method, m.Old, m.New)
		}
	}
	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
