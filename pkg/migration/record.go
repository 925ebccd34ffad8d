// Package migration remaps legacy free-text labels stored on records onto the
// canonical taxonomy, in dry-run or commit mode.
package migration

import (
	"sort"
	"strings"
	"time"
)

// LegacyKind tags the shape of a legacy label field.
type LegacyKind int

const (
	LegacyNone LegacyKind = iota
	LegacySingle
	LegacyMany
)

// LegacyLabels is the legacy label field as found on a record: absent (or of an
// unusable type), a single delimited string, or a list of strings.
type LegacyLabels struct {
	Kind   LegacyKind
	Single string
	Many   []string
}

// DecodeLegacy classifies a raw field value. Lists of mixed types keep their
// string elements; anything that is neither a string nor a list is LegacyNone.
func DecodeLegacy(v any) LegacyLabels {
	switch t := v.(type) {
	case string:
		return LegacyLabels{Kind: LegacySingle, Single: t}
	case []string:
		return LegacyLabels{Kind: LegacyMany, Many: append([]string(nil), t...)}
	case []any:
		many := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				many = append(many, s)
			}
		}
		return LegacyLabels{Kind: LegacyMany, Many: many}
	default:
		return LegacyLabels{Kind: LegacyNone}
	}
}

// Present reports whether the record carries a legacy label field at all.
func (l LegacyLabels) Present() bool {
	return l.Kind != LegacyNone
}

// Labels returns the individual legacy labels: list elements that are non-empty
// after trimming, or the comma-split pieces of a single string.
func (l LegacyLabels) Labels() []string {
	var raw []string
	switch l.Kind {
	case LegacySingle:
		raw = strings.Split(l.Single, ",")
	case LegacyMany:
		raw = l.Many
	default:
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// DecodeBackup reads a stored backup field. A list keeps its string elements and
// a single string is one value, so no previously backed-up value is dropped.
func DecodeBackup(v any) []string {
	b := DecodeLegacy(v)
	switch b.Kind {
	case LegacyMany:
		return b.Many
	case LegacySingle:
		if b.Single == "" {
			return nil
		}
		return []string{b.Single}
	default:
		return nil
	}
}

// MergeBackup returns the set union of stored and add, stored values first.
func MergeBackup(stored, add []string) []string {
	return union(stored, add)
}

// Record is one document read from the store.
type Record struct {
	ID     string
	Legacy LegacyLabels
	Backup []string
}

// Update is the set of fields written back for a changed record.
type Update struct {
	Labels    []string
	Backup    []string
	UpdatedAt time.Time
}

// sameSet compares two label lists ignoring order and duplicates.
func sameSet(a, b []string) bool {
	sa, sb := dedupe(a), dedupe(b)
	if len(sa) != len(sb) {
		return false
	}
	sort.Strings(sa)
	sort.Strings(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

// union appends the values of add missing from base, keeping base order.
func union(base, add []string) []string {
	out := dedupe(base)
	seen := make(map[string]struct{}, len(out)+len(add))
	for _, v := range out {
		seen[v] = struct{}{}
	}
	for _, v := range add {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
