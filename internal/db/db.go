package db

import (
	"context"
	"time"
)

// Store is the backing-store facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	JSONStore
	KVStore
	BatchWriter
	IndexManager
	Searcher
	TxRunner
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// JSONStore provides single-document JSON operations.
type JSONStore interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// KVStore provides simple key-value operations with optional expiry.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// JSONSetItem holds a single key+path+data triple for pipelined JSON.SET.
type JSONSetItem struct {
	Key  string
	Path string
	Data []byte
}

// BatchWriter provides pipelined multi-document writes.
type BatchWriter interface {
	JSONSetMulti(ctx context.Context, items []JSONSetItem) error
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// SearchEntry is a single hit returned by the store's query interface.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// SearchResult holds query hits plus the store-reported total.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// Searcher runs equality/range/prefix queries over FT indexes. Query strings
// use the store's native filter syntax; SortBy may be empty for the store's
// native order.
type Searcher interface {
	SearchList(ctx context.Context, index, query, sortBy string, offset, limit int, fields []string) (*SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Tx buffers commands inside a transaction. Queued commands are applied
// atomically on commit; reads are not available inside the transaction.
type Tx interface {
	JSONSet(key, path string, data []byte)
	Del(key string)
}

// TxRunner executes fn inside a multi-document atomic transaction. The watch
// keys guard against concurrent modification: if any changes before commit,
// the transaction aborts with ErrTxAborted.
type TxRunner interface {
	Txn(ctx context.Context, watch []string, fn func(tx Tx) error) error
}
