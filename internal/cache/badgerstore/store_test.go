package badgerstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/meridian-cloud/docgate/internal/cache"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", zap.NewNop())
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// encode builds a record in the durable tier's wire layout with the
// given creation timestamp, so trim ordering can be exercised directly.
func encode(createdAt time.Time, payload []byte) []byte {
	buf := make([]byte, 17+len(payload))
	binary.BigEndian.PutUint64(buf[1:9], uint64(createdAt.UnixNano()))
	binary.BigEndian.PutUint64(buf[9:17], uint64(time.Hour))
	copy(buf[17:], payload)
	return buf
}

func TestStoreSetGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	value := encode(time.Now(), []byte("payload"))
	if err := s.Set(ctx, "k", value, time.Hour); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, value) {
		t.Error("round-tripped value differs")
	}
}

func TestStoreGetMissing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), "absent")
	if !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("got %v, want cache.ErrNotFound", err)
	}
}

func TestStoreDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k", encode(time.Now(), []byte("v")), time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, cache.ErrNotFound) {
		t.Error("deleted key still readable")
	}
}

func TestStoreTrimByEntryCount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now()
	keys := []string{"oldest", "middle", "newest"}
	for i, key := range keys {
		value := encode(base.Add(time.Duration(i)*time.Second), []byte("v"))
		if err := s.Set(ctx, key, value, time.Hour); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := s.Trim(ctx, 2, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("removed %d entries, want 1", removed)
	}

	if _, err := s.Get(ctx, "oldest"); !errors.Is(err, cache.ErrNotFound) {
		t.Error("oldest entry survived trim")
	}
	for _, key := range []string{"middle", "newest"} {
		if _, err := s.Get(ctx, key); err != nil {
			t.Errorf("newer entry %q was trimmed: %v", key, err)
		}
	}
}

func TestStoreTrimByBytes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now()
	big := bytes.Repeat([]byte("x"), 1000)
	for i, key := range []string{"a", "b", "c"} {
		value := encode(base.Add(time.Duration(i)*time.Second), big)
		if err := s.Set(ctx, key, value, time.Hour); err != nil {
			t.Fatal(err)
		}
	}

	// Three ~1 KB records against a 2.5 KB ceiling: one must go.
	removed, err := s.Trim(ctx, 100, 2500)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("removed %d entries, want 1", removed)
	}
	if _, err := s.Get(ctx, "a"); !errors.Is(err, cache.ErrNotFound) {
		t.Error("oldest entry survived byte trim")
	}
}

func TestStoreTrimUnderLimitsIsNoop(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k", encode(time.Now(), []byte("v")), time.Hour); err != nil {
		t.Fatal(err)
	}

	removed, err := s.Trim(ctx, 10, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Errorf("removed %d entries from under-limit store", removed)
	}
}

func TestStoreLenAndClear(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		if err := s.Set(ctx, key, encode(time.Now(), []byte("v")), time.Hour); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.Len(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("len = %d, want 3", n)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	n, err = s.Len(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("len after clear = %d, want 0", n)
	}
}
