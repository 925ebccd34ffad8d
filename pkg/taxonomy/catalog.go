package taxonomy

import (
	"errors"
	"fmt"
	"strings"
)

// LabelSeparator joins a category and a subcategory into a canonical label.
const LabelSeparator = " > "

var (
	ErrEmptyCatalog      = errors.New("taxonomy has no categories")
	ErrDuplicateCategory = errors.New("duplicate category")
	ErrEmptyName         = errors.New("empty category or subcategory name")
	ErrUnknownTarget     = errors.New("synonym target not in catalog")
	ErrInvalidFallback   = errors.New("fallback category and subcategory are required")
)

// Category is a taxonomy category with its ordered subcategories.
type Category struct {
	Name          string   `yaml:"name" json:"name"`
	Subcategories []string `yaml:"subcategories" json:"subcategories"`
}

// Pair is a resolved (category, subcategory) couple. Subcategory is empty when a
// bare category is used as its own label.
type Pair struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory,omitempty"`
}

// Label renders the pair as a canonical label.
func (p Pair) Label() string {
	if p.Subcategory == "" {
		return p.Category
	}
	return p.Category + LabelSeparator + p.Subcategory
}

// Label is one flattened catalog entry.
type Label struct {
	Text string
	Key  string
	Pair Pair
}

// Catalog is the immutable, ordered canonical taxonomy.
type Catalog struct {
	ID       string
	Version  string
	fallback Pair

	categories []Category
	labels     []Label
	byKey      map[string]int
}

// NewCatalog validates the categories and builds the flattened label list.
// The fallback category and its sink subcategory are appended when absent.
func NewCatalog(categories []Category, fallback Pair) (*Catalog, error) {
	if len(categories) == 0 {
		return nil, ErrEmptyCatalog
	}
	fallback = Pair{Category: strings.TrimSpace(fallback.Category), Subcategory: strings.TrimSpace(fallback.Subcategory)}
	if fallback.Category == "" || fallback.Subcategory == "" {
		return nil, ErrInvalidFallback
	}

	seen := make(map[string]int, len(categories))
	cats := make([]Category, 0, len(categories)+1)
	for _, c := range categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, ErrEmptyName
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateCategory, name)
		}
		subs := make([]string, 0, len(c.Subcategories))
		for _, s := range c.Subcategories {
			s = strings.TrimSpace(s)
			if s == "" {
				return nil, fmt.Errorf("category %q: %w", name, ErrEmptyName)
			}
			subs = append(subs, s)
		}
		seen[name] = len(cats)
		cats = append(cats, Category{Name: name, Subcategories: subs})
	}

	if i, ok := seen[fallback.Category]; ok {
		if !containsString(cats[i].Subcategories, fallback.Subcategory) {
			cats[i].Subcategories = append(cats[i].Subcategories, fallback.Subcategory)
		}
	} else {
		cats = append(cats, Category{Name: fallback.Category, Subcategories: []string{fallback.Subcategory}})
	}

	c := &Catalog{
		fallback:   fallback,
		categories: cats,
		byKey:      make(map[string]int),
	}
	c.flatten()
	return c, nil
}

// flatten lists every "Category > Subcategory" in declaration order, then the
// bare category names. Duplicates (by text) are dropped; the first normalized key
// wins in the lookup map.
func (c *Catalog) flatten() {
	seen := make(map[string]struct{})
	add := func(p Pair) {
		text := p.Label()
		if _, ok := seen[text]; ok {
			return
		}
		seen[text] = struct{}{}
		key := Normalize(text)
		if _, ok := c.byKey[key]; !ok {
			c.byKey[key] = len(c.labels)
		}
		c.labels = append(c.labels, Label{Text: text, Key: key, Pair: p})
	}
	for _, cat := range c.categories {
		for _, sub := range cat.Subcategories {
			add(Pair{Category: cat.Name, Subcategory: sub})
		}
	}
	for _, cat := range c.categories {
		add(Pair{Category: cat.Name})
	}
}

// Categories returns a copy of the category tree.
func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	for i, cat := range c.categories {
		out[i] = Category{Name: cat.Name, Subcategories: append([]string(nil), cat.Subcategories...)}
	}
	return out
}

// Labels returns the flattened labels in catalog iteration order.
func (c *Catalog) Labels() []Label {
	return append([]Label(nil), c.labels...)
}

// FlattenedLabels returns the set of canonical label texts.
func (c *Catalog) FlattenedLabels() map[string]struct{} {
	out := make(map[string]struct{}, len(c.labels))
	for _, l := range c.labels {
		out[l.Text] = struct{}{}
	}
	return out
}

// NormalizedLookup maps each normalized key to its original-case label.
func (c *Catalog) NormalizedLookup() map[string]string {
	out := make(map[string]string, len(c.byKey))
	for key, i := range c.byKey {
		out[key] = c.labels[i].Text
	}
	return out
}

// Exact returns the catalog label whose normalized key equals key.
func (c *Catalog) Exact(key string) (Label, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return Label{}, false
	}
	return c.labels[i], true
}

// Contains reports whether the pair names a catalog label.
func (c *Catalog) Contains(p Pair) bool {
	i, ok := seenIndex(c.categories, p.Category)
	if !ok {
		return false
	}
	return p.Subcategory == "" || containsString(c.categories[i].Subcategories, p.Subcategory)
}

// Fallback returns the sink pair used when nothing matches.
func (c *Catalog) Fallback() Pair {
	return c.fallback
}

// Len returns the number of flattened labels.
func (c *Catalog) Len() int {
	return len(c.labels)
}

func seenIndex(cats []Category, name string) (int, bool) {
	for i, c := range cats {
		if c.Name == name {
			return i, true
		}
	}
	return 0, false
}

func containsString(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
