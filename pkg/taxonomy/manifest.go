package taxonomy

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var defaultFS embed.FS

// Manifest describes a versioned taxonomy.
type Manifest struct {
	ID         string     `yaml:"id" json:"id"`
	Version    string     `yaml:"version" json:"version"`
	Fallback   Pair       `yaml:"fallback" json:"fallback"`
	Categories []Category `yaml:"categories" json:"categories"`
}

// SynonymManifest is the on-disk alias table.
type SynonymManifest struct {
	Synonyms []SynonymDecl `yaml:"synonyms" json:"synonyms"`
}

// Aliases accepts either a single string or a list of strings in YAML.
type Aliases []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *Aliases) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*a = Aliases{s}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*a = Aliases(list)
		return nil
	default:
		return fmt.Errorf("line %d: aliases must be a string or a list of strings", node.Line)
	}
}

// LoadManifest reads a taxonomy manifest. An empty path loads the embedded default.
func LoadManifest(path string) (*Manifest, error) {
	data, err := readManifest(path, "data/taxonomy.yaml")
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse taxonomy %s: %w", displayPath(path), err)
	}
	if m.Fallback.Category == "" {
		m.Fallback = Pair{Category: "Outros", Subcategory: "Diversos"}
	}
	return &m, nil
}

// LoadSynonyms reads a synonym manifest. An empty path loads the embedded default.
func LoadSynonyms(path string) (*SynonymManifest, error) {
	data, err := readManifest(path, "data/synonyms.yaml")
	if err != nil {
		return nil, err
	}
	var m SynonymManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse synonyms %s: %w", displayPath(path), err)
	}
	return &m, nil
}

// Catalog builds the catalog described by the manifest.
func (m *Manifest) Catalog() (*Catalog, error) {
	c, err := NewCatalog(m.Categories, m.Fallback)
	if err != nil {
		return nil, fmt.Errorf("taxonomy %s: %w", m.ID, err)
	}
	c.ID = m.ID
	c.Version = m.Version
	return c, nil
}

// Load builds a Resolver from the taxonomy and synonym manifests at the given
// paths (empty = embedded defaults).
func Load(taxonomyPath, synonymsPath string, opts ...ResolverOption) (*Resolver, error) {
	m, err := LoadManifest(taxonomyPath)
	if err != nil {
		return nil, err
	}
	catalog, err := m.Catalog()
	if err != nil {
		return nil, err
	}
	sm, err := LoadSynonyms(synonymsPath)
	if err != nil {
		return nil, err
	}
	synonyms, err := NewSynonyms(sm.Synonyms, catalog)
	if err != nil {
		return nil, fmt.Errorf("synonyms %s: %w", displayPath(synonymsPath), err)
	}
	return NewResolver(catalog, synonyms, opts...), nil
}

func readManifest(path, embedded string) ([]byte, error) {
	if path == "" {
		data, err := defaultFS.ReadFile(embedded)
		if err != nil {
			return nil, fmt.Errorf("read embedded %s: %w", embedded, err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	return data, nil
}

func displayPath(path string) string {
	if path == "" {
		return "(embedded)"
	}
	return path
}
