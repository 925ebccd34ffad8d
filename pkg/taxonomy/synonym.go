package taxonomy

import (
	"fmt"
	"log/slog"
)

// SynonymDecl declares one or more legacy aliases for a canonical pair.
type SynonymDecl struct {
	Aliases     Aliases `yaml:"aliases" json:"aliases"`
	Category    string  `yaml:"category" json:"category"`
	Subcategory string  `yaml:"subcategory" json:"subcategory"`
}

// Synonyms is an exact-key alias table. Keys are normalized at insertion time.
type Synonyms struct {
	entries map[string]Pair
}

// NewSynonyms builds the alias table. Declarations are applied in order, so on a
// normalized key collision the later declaration wins. Every target must name a
// catalog label when catalog is non-nil.
func NewSynonyms(decls []SynonymDecl, catalog *Catalog) (*Synonyms, error) {
	s := &Synonyms{entries: make(map[string]Pair)}
	var collisions int
	for _, d := range decls {
		target := Pair{Category: d.Category, Subcategory: d.Subcategory}
		if catalog != nil && !catalog.Contains(target) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, target.Label())
		}
		for _, alias := range d.Aliases {
			key := Normalize(alias)
			if key == "" {
				continue
			}
			if prev, exists := s.entries[key]; exists && prev != target {
				collisions++
			}
			s.entries[key] = target
		}
	}
	if collisions > 0 {
		slog.Warn("synonym aliases overridden by later declarations", "collisions", collisions)
	}
	return s, nil
}

// Resolve looks up an already-normalized legacy label.
func (s *Synonyms) Resolve(normalized string) (Pair, bool) {
	if s == nil {
		return Pair{}, false
	}
	p, ok := s.entries[normalized]
	return p, ok
}

// Len returns the number of distinct alias keys.
func (s *Synonyms) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}
