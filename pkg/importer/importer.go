// Package importer loads legacy CSV exports into the local record store.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/hazyhaar/taxomigrate/pkg/store"
)

// Sink receives one document per imported row.
type Sink interface {
	Put(ctx context.Context, id string, doc map[string]any) error
}

// Options describe the layout of a CSV export.
type Options struct {
	Encoding    string // any WHATWG label, e.g. "windows-1252"; empty means UTF-8
	Delimiter   string // first rune is used; default ","
	IDColumn    string // default "id"
	LabelColumn string // default "categories"
	LabelField  string // document key for the label cell; default store.DefaultFields.Labels
}

func (o Options) withDefaults() Options {
	if o.IDColumn == "" {
		o.IDColumn = "id"
	}
	if o.LabelColumn == "" {
		o.LabelColumn = "categories"
	}
	if o.LabelField == "" {
		o.LabelField = store.DefaultFields.Labels
	}
	return o
}

// Result counts what an import did.
type Result struct {
	Rows     int
	Imported int
	Skipped  int
}

// ImportFile opens path (or downloads it when it is an http(s) URL) and imports it.
func ImportFile(ctx context.Context, path string, sink Sink, opts Options, logger *slog.Logger) (Result, error) {
	if isURL(path) {
		tmp, err := os.CreateTemp("", "taxomigrate-*.csv")
		if err != nil {
			return Result{}, fmt.Errorf("create temp file: %w", err)
		}
		tmp.Close()
		defer os.Remove(tmp.Name())

		if err := downloadFile(ctx, path, tmp.Name()); err != nil {
			return Result{}, fmt.Errorf("download: %w", err)
		}
		path = tmp.Name()
	}

	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ImportCSV(ctx, f, sink, opts, logger)
}

// ImportCSV reads a header row then one record per line. The label cell is
// stored verbatim as a delimited string; every other column is kept as a
// string field of the document. Rows without an id are skipped.
func ImportCSV(ctx context.Context, src io.Reader, sink Sink, opts Options, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()

	reader := src
	if enc := opts.Encoding; enc != "" && !isUTF8(enc) {
		e, err := htmlindex.Get(enc)
		if err != nil {
			return Result{}, fmt.Errorf("unsupported encoding %q: %w", enc, err)
		}
		reader = transform.NewReader(src, e.NewDecoder())
	}

	r := csv.NewReader(reader)
	if delim := opts.Delimiter; delim != "" {
		r.Comma = []rune(delim)[0]
	}
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return Result{}, fmt.Errorf("read header: %w", err)
	}
	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		header[i] = strings.TrimSpace(h)
		colIdx[strings.ToLower(header[i])] = i
	}
	idCol, ok := colIdx[strings.ToLower(opts.IDColumn)]
	if !ok {
		return Result{}, fmt.Errorf("column %q not found in header %v", opts.IDColumn, header)
	}
	labelCol, ok := colIdx[strings.ToLower(opts.LabelColumn)]
	if !ok {
		return Result{}, fmt.Errorf("column %q not found in header %v", opts.LabelColumn, header)
	}

	var res Result
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("read row %d: %w", res.Rows+1, err)
		}
		res.Rows++

		id := cell(row, idCol)
		if id == "" {
			logger.Warn("row without id skipped", "row", res.Rows)
			res.Skipped++
			continue
		}

		doc := make(map[string]any, len(header))
		for i, name := range header {
			if i == idCol || i == labelCol || name == "" {
				continue
			}
			doc[name] = cell(row, i)
		}
		if labelCol < len(row) {
			doc[opts.LabelField] = row[labelCol]
		}

		if err := sink.Put(ctx, id, doc); err != nil {
			return res, fmt.Errorf("store row %d (%s): %w", res.Rows, id, err)
		}
		res.Imported++
	}
	return res, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isUTF8(enc string) bool {
	e := strings.ToLower(strings.ReplaceAll(enc, "-", ""))
	return e == "utf8" || e == ""
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
