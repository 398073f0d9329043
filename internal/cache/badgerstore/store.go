// Package badgerstore backs the durable cache tier with an embedded
// BadgerDB instance. Entries use Badger's native TTL so expired records
// vanish without application-side bookkeeping.
package badgerstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/meridian-cloud/docgate/internal/cache"
)

// Store implements cache.DurableStore on BadgerDB.
type Store struct {
	db     *badger.DB
	logger *zap.Logger
}

// Open opens (or creates) a Badger database at path. An empty path opens
// an in-memory instance, which is useful for tests and for deployments
// that only want the durable tier as spillover.
func Open(path string, logger *zap.Logger) (*Store, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(badgerLogger{logger: logger.Named("badger")})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return value, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("badger set: %w", err)
	}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("badger delete: %w", err)
	}
	return nil
}

// Trim enforces the entry and byte ceilings by deleting oldest entries
// first. Entry age comes from the createdAt field each record carries in
// its header, so trim order matches insertion order rather than Badger's
// key order.
func (s *Store) Trim(ctx context.Context, maxEntries int, maxBytes int64) (int, error) {
	type record struct {
		key       []byte
		size      int64
		createdAt int64
	}

	var (
		records    []record
		totalBytes int64
	)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			rec := record{
				key:       item.KeyCopy(nil),
				size:      int64(len(raw)),
				createdAt: entryCreatedAt(raw),
			}
			records = append(records, rec)
			totalBytes += rec.size
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("badger trim scan: %w", err)
	}

	overEntries := len(records) - maxEntries
	if overEntries < 0 {
		overEntries = 0
	}
	if overEntries == 0 && totalBytes <= maxBytes {
		return 0, nil
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].createdAt < records[j].createdAt
	})

	var doomed [][]byte
	for _, rec := range records {
		if len(doomed) >= overEntries && totalBytes <= maxBytes {
			break
		}
		doomed = append(doomed, rec.key)
		totalBytes -= rec.size
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, key := range doomed {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("badger trim delete: %w", err)
	}
	return len(doomed), nil
}

func (s *Store) Clear(_ context.Context) error {
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("badger clear: %w", err)
	}
	return nil
}

func (s *Store) Len(ctx context.Context) (int, error) {
	var count int
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("badger count: %w", err)
	}
	return count, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// entryCreatedAt extracts the creation timestamp from an encoded record.
// Malformed records sort first so trimming removes them before real data.
func entryCreatedAt(raw []byte) int64 {
	if len(raw) < 9 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(raw[1:9]))
}

// badgerLogger routes Badger's internal logging through zap at reduced
// severity; Badger is chatty at info level.
type badgerLogger struct {
	logger *zap.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
