package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/meridian-cloud/docgate/internal/db"
	domdoc "github.com/meridian-cloud/docgate/internal/domain/document"
)

// indexer creates FT query indexes.
type indexer interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
}

// buildIndex defines the query index for one physical collection: the
// searchable text fields plus the tags TAG field, over JSON documents
// under the collection's key prefix.
func buildIndex(keys Keys, collection string) *db.IndexDefinition {
	return &db.IndexDefinition{
		Name:     keys.Index(collection),
		Prefixes: []string{fmt.Sprintf("%s%s:", keys.Prefix, collection)},
		Fields: []db.IndexField{
			{Name: "$." + domdoc.FieldName, Alias: domdoc.FieldName, Type: db.IndexFieldText, Sortable: true},
			{Name: "$." + domdoc.FieldCity, Alias: domdoc.FieldCity, Type: db.IndexFieldText, Sortable: true},
			{Name: "$." + domdoc.FieldState, Alias: domdoc.FieldState, Type: db.IndexFieldText, Sortable: true},
			{Name: "$." + domdoc.FieldJurisdiction, Alias: domdoc.FieldJurisdiction, Type: db.IndexFieldTag},
			{Name: "$." + domdoc.FieldTags + "[*]", Alias: domdoc.FieldTags, Type: db.IndexFieldTag},
		},
	}
}

// EnsureIndex creates the query index for a physical collection if it
// does not exist yet.
func EnsureIndex(ctx context.Context, s indexer, keys Keys, collection string) error {
	def := buildIndex(keys, collection)
	if err := s.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", def.Name, err)
	}
	return nil
}
