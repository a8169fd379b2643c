// Package reconcile keeps the local cache aligned with the Remote Order
// Service. Two strategies cover every collection: replace-all for orders,
// where the backend alone decides which records exist, and merge-append-only
// for favorites and reviews, where local enrichment must survive a backend
// that stores less than we do.
package reconcile

import (
	"context"
	"time"

	"campus_courier/internal/cache"
	"campus_courier/internal/core"
)

// ReplaceAll overwrites the whole collection under key with records. Records
// missing remotely disappear locally; there is no per-record merging.
func ReplaceAll[T any](ctx context.Context, store core.Store, key string, records map[string]T) error {
	col := cache.NewCollection[T]()
	col.Replace(records)
	return cache.Save(ctx, store, key, col)
}

// OrdersByID keys a remote order list for ReplaceAll.
func OrdersByID(orders []core.Order) map[string]core.Order {
	out := make(map[string]core.Order, len(orders))
	for _, o := range orders {
		out[o.ID] = o
	}
	return out
}

// MergeFavorites folds the backend's bare restaurant names into the local
// enriched set. Remote-only names get a synthesized placeholder record;
// records the backend confirms lose their Pending marker; records the backend
// does not know about are kept as-is (local enrichment is never deleted by
// sync, only by an explicit toggle). Names the user explicitly removed are
// tombstoned and must not be resurrected by a delayed ack or a stale listing.
func MergeFavorites(local *cache.Collection[core.FavoriteRecord], remote []string, tombstoned func(string) bool) (added int) {
	for _, name := range remote {
		if tombstoned != nil && tombstoned(name) {
			continue
		}
		if rec, ok := local.Records[name]; ok {
			if rec.Pending {
				rec.Pending = false
				local.Records[name] = rec
			}
			continue
		}
		local.Records[name] = core.FavoriteRecord{
			Name:    name,
			AddedAt: time.Now().UTC(),
		}
		added++
	}
	local.SyncedAt = time.Now().UTC()
	return added
}

// MergeReviews appends remote-only reviews (by client-generated ID) and
// confirms pending local ones. Local reviews absent remotely stay.
func MergeReviews(local *cache.Collection[core.Review], remote []core.Review) (added int) {
	for _, rv := range remote {
		if existing, ok := local.Records[rv.ID]; ok {
			if existing.Pending {
				existing.Pending = false
				local.Records[rv.ID] = existing
			}
			continue
		}
		local.Records[rv.ID] = rv
		added++
	}
	local.SyncedAt = time.Now().UTC()
	return added
}
