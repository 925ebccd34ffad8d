// Package store holds what the record store implementations share.
package store

// Fields names the document keys a store reads and writes.
type Fields struct {
	Labels    string `yaml:"labels"`
	Backup    string `yaml:"backup"`
	UpdatedAt string `yaml:"updated_at"`
}

// DefaultFields matches the marketplace user documents.
var DefaultFields = Fields{
	Labels:    "categories",
	Backup:    "legacyCategories",
	UpdatedAt: "updatedAt",
}

// WithDefaults fills empty names from DefaultFields.
func (f Fields) WithDefaults() Fields {
	if f.Labels == "" {
		f.Labels = DefaultFields.Labels
	}
	if f.Backup == "" {
		f.Backup = DefaultFields.Backup
	}
	if f.UpdatedAt == "" {
		f.UpdatedAt = DefaultFields.UpdatedAt
	}
	return f
}
