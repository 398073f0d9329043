package document

import (
	"context"
	"errors"
	"testing"

	"github.com/meridian-cloud/docgate/internal/db"
	"github.com/meridian-cloud/docgate/internal/domain"
	domdoc "github.com/meridian-cloud/docgate/internal/domain/document"
)

type fakeStore struct {
	jsonSet      func(ctx context.Context, key, path string, data []byte) error
	jsonGet      func(ctx context.Context, key string, paths ...string) ([]byte, error)
	jsonSetMulti func(ctx context.Context, items []db.JSONSetItem) error
	del          func(ctx context.Context, key string) error
	exists       func(ctx context.Context, key string) (bool, error)
	searchList   func(ctx context.Context, index, query, sortBy string, offset, limit int, fields []string) (*db.SearchResult, error)
	searchCount  func(ctx context.Context, index, query string) (int, error)
}

func (f *fakeStore) JSONSet(ctx context.Context, key, path string, data []byte) error {
	return f.jsonSet(ctx, key, path, data)
}

func (f *fakeStore) JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error) {
	return f.jsonGet(ctx, key, paths...)
}

func (f *fakeStore) JSONSetMulti(ctx context.Context, items []db.JSONSetItem) error {
	return f.jsonSetMulti(ctx, items)
}

func (f *fakeStore) Del(ctx context.Context, key string) error { return f.del(ctx, key) }

func (f *fakeStore) Exists(ctx context.Context, key string) (bool, error) {
	return f.exists(ctx, key)
}

func (f *fakeStore) SearchList(ctx context.Context, index, query, sortBy string, offset, limit int, fields []string) (*db.SearchResult, error) {
	return f.searchList(ctx, index, query, sortBy, offset, limit, fields)
}

func (f *fakeStore) SearchCount(ctx context.Context, index, query string) (int, error) {
	return f.searchCount(ctx, index, query)
}

func TestKeysScheme(t *testing.T) {
	k := Keys{Prefix: "docgate:"}

	if got := k.Doc("providers#northeast", "p1"); got != "docgate:providers#northeast:p1" {
		t.Errorf("doc key = %q", got)
	}
	if got := k.Index("providers"); got != "docgate:providers:idx" {
		t.Errorf("index name = %q", got)
	}
	if got := k.DocID("docgate:providers:p1", "providers"); got != "p1" {
		t.Errorf("doc id = %q", got)
	}
}

func TestUpsertReportsCreated(t *testing.T) {
	var setKey string
	store := &fakeStore{
		exists: func(_ context.Context, _ string) (bool, error) { return false, nil },
		jsonSet: func(_ context.Context, key, path string, _ []byte) error {
			setKey = key
			if path != "$" {
				t.Errorf("path = %q, want $", path)
			}
			return nil
		},
	}
	repo := New(store, "docgate:")

	doc, err := domdoc.New("p1", map[string]any{"name": "local clinic"})
	if err != nil {
		t.Fatal(err)
	}

	created, err := repo.Upsert(context.Background(), "providers", doc)
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Error("expected created=true for new document")
	}
	if setKey != "docgate:providers:p1" {
		t.Errorf("wrote key %q", setKey)
	}
}

func TestUpsertReportsUpdated(t *testing.T) {
	store := &fakeStore{
		exists:  func(_ context.Context, _ string) (bool, error) { return true, nil },
		jsonSet: func(_ context.Context, _, _ string, _ []byte) error { return nil },
	}
	repo := New(store, "docgate:")

	doc, _ := domdoc.New("p1", nil)
	created, err := repo.Upsert(context.Background(), "providers", doc)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("expected created=false for existing document")
	}
}

func TestGetMapsMissingKey(t *testing.T) {
	store := &fakeStore{
		jsonGet: func(_ context.Context, _ string, _ ...string) ([]byte, error) {
			return nil, db.ErrKeyNotFound
		},
	}
	repo := New(store, "docgate:")

	_, err := repo.Get(context.Background(), "providers", "ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("got %v, want domain.ErrNotFound", err)
	}
}

func TestGetHydratesDocument(t *testing.T) {
	store := &fakeStore{
		jsonGet: func(_ context.Context, _ string, _ ...string) ([]byte, error) {
			return []byte(`[{"name":"local clinic","city":"albany"}]`), nil
		},
	}
	repo := New(store, "docgate:")

	doc, err := repo.Get(context.Background(), "providers", "p1")
	if err != nil {
		t.Fatal(err)
	}
	if doc.ID() != "p1" {
		t.Errorf("id = %q", doc.ID())
	}
	if doc.String("city") != "albany" {
		t.Errorf("city = %q", doc.String("city"))
	}
}

func TestListPaginates(t *testing.T) {
	store := &fakeStore{
		searchList: func(_ context.Context, index, query, _ string, offset, limit int, _ []string) (*db.SearchResult, error) {
			if index != "docgate:providers:idx" || query != "*" {
				t.Errorf("index=%q query=%q", index, query)
			}
			if offset != 10 || limit != 3 {
				t.Errorf("offset=%d limit=%d, want 10/3", offset, limit)
			}
			// One more entry than the page: a next cursor exists.
			return &db.SearchResult{
				Total: 20,
				Entries: []db.SearchEntry{
					{Key: "docgate:providers:a", Fields: map[string]string{"$": `{"name":"a"}`}},
					{Key: "docgate:providers:b", Fields: map[string]string{"$": `{"name":"b"}`}},
					{Key: "docgate:providers:c", Fields: map[string]string{"$": `{"name":"c"}`}},
				},
			}, nil
		},
	}
	repo := New(store, "docgate:")

	docs, next, err := repo.List(context.Background(), "providers", domdoc.ListFilter{}, "10", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("page size = %d, want 2", len(docs))
	}
	if docs[0].ID() != "a" || docs[1].ID() != "b" {
		t.Errorf("ids = %q, %q", docs[0].ID(), docs[1].ID())
	}
	if next != "12" {
		t.Errorf("next cursor = %q, want 12", next)
	}
}

func TestListRendersFilterClauses(t *testing.T) {
	var gotQuery string
	store := &fakeStore{
		searchList: func(_ context.Context, _, query, _ string, _, _ int, _ []string) (*db.SearchResult, error) {
			gotQuery = query
			return &db.SearchResult{}, nil
		},
	}
	repo := New(store, "docgate:")

	_, _, err := repo.List(context.Background(), "providers", domdoc.ListFilter{Tag: "urgent-care", State: "NY"}, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	want := `@tags:{urgent\-care} @state:(NY)`
	if gotQuery != want {
		t.Errorf("query = %q, want %q", gotQuery, want)
	}

	_, _, err = repo.List(context.Background(), "providers", domdoc.ListFilter{}, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if gotQuery != "*" {
		t.Errorf("zero filter query = %q, want *", gotQuery)
	}
}

func TestListRejectsBadCursor(t *testing.T) {
	repo := New(&fakeStore{}, "docgate:")

	_, _, err := repo.List(context.Background(), "providers", domdoc.ListFilter{}, "not-a-number", 10)
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("got %v, want invalid query", err)
	}
}

func TestDeleteMissingDocument(t *testing.T) {
	store := &fakeStore{
		exists: func(_ context.Context, _ string) (bool, error) { return false, nil },
	}
	repo := New(store, "docgate:")

	err := repo.Delete(context.Background(), "providers", "ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("got %v, want not found", err)
	}
}

func TestUpsertMultiBatches(t *testing.T) {
	var got []db.JSONSetItem
	store := &fakeStore{
		jsonSetMulti: func(_ context.Context, items []db.JSONSetItem) error {
			got = items
			return nil
		},
	}
	repo := New(store, "docgate:")

	a, _ := domdoc.New("a", map[string]any{"name": "x"})
	b, _ := domdoc.New("b", map[string]any{"name": "y"})
	if err := repo.UpsertMulti(context.Background(), "providers#west", []domdoc.Document{a, b}); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("batched %d items, want 2", len(got))
	}
	if got[0].Key != "docgate:providers#west:a" {
		t.Errorf("first key = %q", got[0].Key)
	}
}

type fakeIndexer struct {
	defs []*db.IndexDefinition
	err  error
}

func (f *fakeIndexer) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	f.defs = append(f.defs, def)
	return f.err
}

func TestEnsureIndex_DefinitionShape(t *testing.T) {
	idx := &fakeIndexer{}
	keys := Keys{Prefix: "docgate:"}

	if err := EnsureIndex(context.Background(), idx, keys, "providers#northeast"); err != nil {
		t.Fatal(err)
	}
	if len(idx.defs) != 1 {
		t.Fatalf("index creations = %d", len(idx.defs))
	}
	def := idx.defs[0]
	if def.Name != "docgate:providers#northeast:idx" {
		t.Errorf("index name = %q", def.Name)
	}
	if len(def.Prefixes) != 1 || def.Prefixes[0] != "docgate:providers#northeast:" {
		t.Errorf("prefixes = %v", def.Prefixes)
	}
	byAlias := map[string]db.IndexField{}
	for _, f := range def.Fields {
		byAlias[f.Alias] = f
	}
	if f := byAlias["name"]; f.Type != db.IndexFieldText || !f.Sortable {
		t.Errorf("name field = %+v", f)
	}
	if f := byAlias["tags"]; f.Type != db.IndexFieldTag || f.Name != "$.tags[*]" {
		t.Errorf("tags field = %+v", f)
	}
}

func TestEnsureIndex_ToleratesExisting(t *testing.T) {
	idx := &fakeIndexer{err: db.ErrIndexExists}
	if err := EnsureIndex(context.Background(), idx, Keys{Prefix: "docgate:"}, "providers"); err != nil {
		t.Fatalf("existing index should not be an error: %v", err)
	}
}
