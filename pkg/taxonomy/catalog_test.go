package taxonomy

import (
	"errors"
	"testing"
)

func testCategories() []Category {
	return []Category{
		{Name: "Britagem e Peneiramento", Subcategories: []string{"Britadores - Mandíbulas", "Peneiras Vibratórias"}},
		{Name: "Segurança e Sinalização", Subcategories: []string{"EPI - Capacetes", "EPI - Luvas"}},
		{Name: "Perfuração e Detonação", Subcategories: []string{"Drop ball"}},
	}
}

var testFallback = Pair{Category: "Outros", Subcategory: "Diversos"}

func TestNewCatalog_Flatten(t *testing.T) {
	c, err := NewCatalog(testCategories(), testFallback)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	want := []string{
		"Britagem e Peneiramento > Britadores - Mandíbulas",
		"Britagem e Peneiramento > Peneiras Vibratórias",
		"Segurança e Sinalização > EPI - Capacetes",
		"Segurança e Sinalização > EPI - Luvas",
		"Perfuração e Detonação > Drop ball",
		"Outros > Diversos",
		"Britagem e Peneiramento",
		"Segurança e Sinalização",
		"Perfuração e Detonação",
		"Outros",
	}
	labels := c.Labels()
	if len(labels) != len(want) {
		t.Fatalf("labels = %d, want %d", len(labels), len(want))
	}
	for i, l := range labels {
		if l.Text != want[i] {
			t.Errorf("labels[%d] = %q, want %q", i, l.Text, want[i])
		}
		if l.Key != Normalize(l.Text) {
			t.Errorf("labels[%d].Key = %q, want normalized text", i, l.Key)
		}
	}

	flat := c.FlattenedLabels()
	if len(flat) != len(want) {
		t.Errorf("flattened set = %d, want %d", len(flat), len(want))
	}
}

func TestNewCatalog_FallbackAlwaysPresent(t *testing.T) {
	c, err := NewCatalog(testCategories(), testFallback)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	if _, ok := c.FlattenedLabels()["Outros > Diversos"]; !ok {
		t.Error("fallback label missing from flattened set")
	}
	if !c.Contains(Pair{Category: "Outros", Subcategory: "Diversos"}) {
		t.Error("Contains(fallback) = false")
	}

	// Declared fallback category without the sink gets the sink appended.
	cats := append(testCategories(), Category{Name: "Outros", Subcategories: []string{"Sucata"}})
	c, err = NewCatalog(cats, testFallback)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	for _, cat := range c.Categories() {
		if cat.Name != "Outros" {
			continue
		}
		if len(cat.Subcategories) != 2 || cat.Subcategories[1] != "Diversos" {
			t.Errorf("Outros subcategories = %v, want [Sucata Diversos]", cat.Subcategories)
		}
	}
}

func TestNewCatalog_Errors(t *testing.T) {
	tests := []struct {
		name     string
		cats     []Category
		fallback Pair
		want     error
	}{
		{"empty", nil, testFallback, ErrEmptyCatalog},
		{"duplicate", []Category{{Name: "A"}, {Name: " A "}}, testFallback, ErrDuplicateCategory},
		{"empty name", []Category{{Name: "  "}}, testFallback, ErrEmptyName},
		{"empty subcategory", []Category{{Name: "A", Subcategories: []string{""}}}, testFallback, ErrEmptyName},
		{"no fallback sink", []Category{{Name: "A"}}, Pair{Category: "Outros"}, ErrInvalidFallback},
	}
	for _, tt := range tests {
		_, err := NewCatalog(tt.cats, tt.fallback)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestNormalizedLookup(t *testing.T) {
	c, err := NewCatalog(testCategories(), testFallback)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	lookup := c.NormalizedLookup()
	got, ok := lookup["perfuracao e detonacao > drop ball"]
	if !ok || got != "Perfuração e Detonação > Drop ball" {
		t.Errorf("lookup = %q, %v; want original-case label", got, ok)
	}
	if got := lookup["outros"]; got != "Outros" {
		t.Errorf("lookup[outros] = %q, want Outros", got)
	}
	if len(lookup) != c.Len() {
		t.Errorf("lookup size = %d, want %d", len(lookup), c.Len())
	}
}

func TestContains(t *testing.T) {
	c, err := NewCatalog(testCategories(), testFallback)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	tests := []struct {
		pair Pair
		want bool
	}{
		{Pair{"Segurança e Sinalização", "EPI - Capacetes"}, true},
		{Pair{"Segurança e Sinalização", ""}, true},
		{Pair{"Segurança e Sinalização", "Drop ball"}, false},
		{Pair{"Inexistente", ""}, false},
	}
	for _, tt := range tests {
		if got := c.Contains(tt.pair); got != tt.want {
			t.Errorf("Contains(%+v) = %v, want %v", tt.pair, got, tt.want)
		}
	}
}
