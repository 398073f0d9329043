package document

import (
	"fmt"
	"regexp"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Well-known field names used by the search and sharding strategies.
// Documents may carry any other fields; the gateway forwards them opaquely.
const (
	FieldName         = "name"
	FieldCity         = "city"
	FieldState        = "state"
	FieldTags         = "tags"
	FieldJurisdiction = "jurisdiction"
)

// Document is an opaque record owned by the backing store (immutable value object).
// Fields hold primitive, array, or map values, preserved as the store returned them.
type Document struct {
	id     string
	fields map[string]any
}

// New validates and creates a Document.
// ID: ^[a-zA-Z0-9_-]+$, 1-256 chars.
func New(id string, fields map[string]any) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("document ID is required")
	}
	if len(id) > 256 {
		return Document{}, fmt.Errorf("document ID too long (max 256)")
	}
	if !idRegex.MatchString(id) {
		return Document{}, fmt.Errorf("document ID must be alphanumeric with underscores and hyphens")
	}
	return Document{id: id, fields: cloneFields(fields)}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(id string, fields map[string]any) Document {
	return Document{id: id, fields: fields}
}

// ID returns the document identifier.
func (d Document) ID() string { return d.id }

// Fields returns all named fields.
func (d *Document) Fields() map[string]any { return d.fields }

// Field returns a single field value.
func (d *Document) Field(name string) (any, bool) {
	v, ok := d.fields[name]
	return v, ok
}

// String returns a field as a string, or "" if absent or not a string.
func (d *Document) String(name string) string {
	if s, ok := d.fields[name].(string); ok {
		return s
	}
	return ""
}

// Strings returns a field as a string slice. Store drivers decode JSON arrays
// as []any, so both representations are accepted.
func (d *Document) Strings(name string) []string {
	switch v := d.fields[name].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func cloneFields(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
