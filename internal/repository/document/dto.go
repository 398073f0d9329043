package document

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/meridian-cloud/docgate/internal/db"
	domdoc "github.com/meridian-cloud/docgate/internal/domain/document"
)

// Keys derives store keys and index names from a shared prefix.
type Keys struct {
	Prefix string
}

// Doc returns the storage key for a document.
func (k Keys) Doc(collection, id string) string {
	return fmt.Sprintf("%s%s:%s", k.Prefix, collection, id)
}

// Index returns the query index name for a collection.
func (k Keys) Index(collection string) string {
	return fmt.Sprintf("%s%s:idx", k.Prefix, collection)
}

// DocID extracts the document ID back out of a storage key.
func (k Keys) DocID(key, collection string) string {
	return strings.TrimPrefix(key, fmt.Sprintf("%s%s:", k.Prefix, collection))
}

// parseJSONGetResult hydrates a document from a JSON.GET reply, which
// wraps the value in a one-element array for a "$" path.
func parseJSONGetResult(id string, raw []byte) (domdoc.Document, error) {
	var docs []map[string]any
	if err := json.Unmarshal(raw, &docs); err != nil {
		// Some store versions return the bare object for a root path.
		var single map[string]any
		if err2 := json.Unmarshal(raw, &single); err2 == nil {
			return domdoc.Reconstruct(id, single), nil
		}
		return domdoc.Document{}, fmt.Errorf("unmarshal document %s: %w", id, err)
	}
	if len(docs) == 0 {
		return domdoc.Reconstruct(id, nil), nil
	}
	return domdoc.Reconstruct(id, docs[0]), nil
}

// EntryToDocument hydrates a document from a query hit.
func EntryToDocument(keys Keys, collection string, entry db.SearchEntry) domdoc.Document {
	id := keys.DocID(entry.Key, collection)
	jsonStr, ok := entry.Fields["$"]
	if !ok || jsonStr == "" {
		return domdoc.Reconstruct(id, nil)
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &fields); err != nil {
		return domdoc.Reconstruct(id, nil)
	}
	return domdoc.Reconstruct(id, fields)
}
