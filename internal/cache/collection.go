package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"campus_courier/internal/core"
)

// Collection is the serialized form of one cached collection: records keyed
// by ID plus a single collection-level sync marker (not per-record).
type Collection[T any] struct {
	Records  map[string]T `json:"records"`
	SyncedAt time.Time    `json:"synced_at"`
}

// NewCollection returns an empty collection.
func NewCollection[T any]() *Collection[T] {
	return &Collection[T]{Records: make(map[string]T)}
}

// Values returns the records in unspecified order.
func (c *Collection[T]) Values() []T {
	out := make([]T, 0, len(c.Records))
	for _, v := range c.Records {
		out = append(out, v)
	}
	return out
}

// Replace swaps the entire record set and stamps the sync marker. Used by
// the replace-all reconciliation strategy: the backend is the sole source
// of truth for which records exist, so no per-record merging happens here.
func (c *Collection[T]) Replace(records map[string]T) {
	c.Records = records
	c.SyncedAt = time.Now().UTC()
}

// Load reads and decodes a collection from the store. The second return is
// false on a cold miss (key absent).
func Load[T any](ctx context.Context, store core.Store, key string) (*Collection[T], bool, error) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	var col Collection[T]
	if err := json.Unmarshal([]byte(raw), &col); err != nil {
		// A corrupt entry behaves like a miss; the next sync rewrites it.
		return nil, false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	if col.Records == nil {
		col.Records = make(map[string]T)
	}
	return &col, true, nil
}

// Save encodes and writes a collection under its key.
func Save[T any](ctx context.Context, store core.Store, key string, col *Collection[T]) error {
	data, err := json.Marshal(col)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := store.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}
