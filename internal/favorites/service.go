// Package favorites manages the enriched local favorites set and restaurant
// reviews. The backend stores less than we do (bare names, no images), so
// sync is merge-append-only and local enrichment is never thrown away.
// Toggles are optimistic: the local change lands first and the remote
// mutation runs in the background.
package favorites

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"campus_courier/internal/cache"
	"campus_courier/internal/core"
	"campus_courier/internal/reconcile"
	"campus_courier/pkg/concurrency"
	apperrors "campus_courier/pkg/errors"

	"github.com/google/uuid"
)

const remoteTimeout = 15 * time.Second

type Service struct {
	api    core.OrderAPI
	store  core.Store
	pool   *concurrency.WorkerPool
	actor  core.Actor
	logger core.ILogger

	// mu serializes toggle/sync so a merge never interleaves with a removal.
	mu sync.Mutex
}

func NewService(api core.OrderAPI, store core.Store, pool *concurrency.WorkerPool, actor core.Actor, logger core.ILogger) *Service {
	return &Service{
		api:    api,
		store:  store,
		pool:   pool,
		actor:  actor,
		logger: logger.WithField("component", "favorites"),
	}
}

// RegisterPasses wires this service into the periodic reconciler.
func (s *Service) RegisterPasses(r *reconcile.Reconciler) {
	r.Register("favorites", s.Sync)
}

// List returns the local favorites, newest first. A cold cache triggers one
// blocking sync; afterwards reads never wait on the network.
func (s *Service) List(ctx context.Context) ([]core.FavoriteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok, err := cache.Load[core.FavoriteRecord](ctx, s.store, cache.KeyFavorites)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := s.syncLocked(ctx); err != nil {
			return nil, err
		}
		col, _, err = cache.Load[core.FavoriteRecord](ctx, s.store, cache.KeyFavorites)
		if err != nil {
			return nil, err
		}
		if col == nil {
			col = cache.NewCollection[core.FavoriteRecord]()
		}
	}

	out := col.Values()
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.After(out[j].AddedAt) })
	return out, nil
}

// Toggle flips the favored state of one restaurant and returns the new
// state. The local cache changes immediately; the remote mutation is fired
// on the worker pool and its outcome never mutates local state — a failure
// is logged for the next sync to repair, and a late success ack has nothing
// to apply. Removals leave a tombstone so a stale listing or delayed add ack
// cannot resurrect the record.
func (s *Service) Toggle(ctx context.Context, rec core.FavoriteRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok, err := cache.Load[core.FavoriteRecord](ctx, s.store, cache.KeyFavorites)
	if err != nil {
		return false, err
	}
	if !ok {
		col = cache.NewCollection[core.FavoriteRecord]()
	}

	tombs, err := s.loadTombstones(ctx)
	if err != nil {
		return false, err
	}

	_, favored := col.Records[rec.Name]
	if favored {
		delete(col.Records, rec.Name)
		tombs.Records[rec.Name] = time.Now().UTC()
	} else {
		rec.Pending = true
		rec.AddedAt = time.Now().UTC()
		col.Records[rec.Name] = rec
		delete(tombs.Records, rec.Name)
	}

	if err := cache.Save(ctx, s.store, cache.KeyFavorites, col); err != nil {
		return false, err
	}
	if err := cache.Save(ctx, s.store, cache.KeyFavoriteTombstones, tombs); err != nil {
		return false, err
	}

	s.fireRemote(rec.Name, !favored)
	return !favored, nil
}

// Sync merges the backend's favorites into the local set.
func (s *Service) Sync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncLocked(ctx)
}

func (s *Service) syncLocked(ctx context.Context) error {
	names, err := s.api.ListFavorites(ctx, s.actor)
	if err != nil {
		return fmt.Errorf("list remote favorites: %w", err)
	}

	col, ok, err := cache.Load[core.FavoriteRecord](ctx, s.store, cache.KeyFavorites)
	if err != nil {
		return err
	}
	if !ok {
		col = cache.NewCollection[core.FavoriteRecord]()
	}
	tombs, err := s.loadTombstones(ctx)
	if err != nil {
		return err
	}

	added := reconcile.MergeFavorites(col, names, func(name string) bool {
		_, dead := tombs.Records[name]
		return dead
	})
	if added > 0 {
		s.logger.Debug("Favorites merged from backend", "added", added)
	}
	return cache.Save(ctx, s.store, cache.KeyFavorites, col)
}

func (s *Service) loadTombstones(ctx context.Context) (*cache.Collection[time.Time], error) {
	tombs, ok, err := cache.Load[time.Time](ctx, s.store, cache.KeyFavoriteTombstones)
	if err != nil {
		return nil, err
	}
	if !ok {
		tombs = cache.NewCollection[time.Time]()
	}
	return tombs, nil
}

// fireRemote pushes one favorite mutation in the background.
func (s *Service) fireRemote(name string, favored bool) {
	err := s.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
		defer cancel()

		if err := s.api.SetFavorite(ctx, s.actor, name, favored); err != nil {
			// Local state stands; the next sync reconverges.
			s.logger.Warn("Remote favorite update failed", "restaurant", name, "favored", favored, "error", err)
		}
	})
	if err != nil {
		s.logger.Warn("Remote favorite update not scheduled", "restaurant", name, "error", err)
	}
}

// AddReview stores a review locally with a client-generated ID and a Pending
// marker, then posts it in the background. Same optimistic contract as
// Toggle: the remote outcome never touches local state.
func (s *Service) AddReview(ctx context.Context, restaurantID string, rating int, text string) (*core.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating %d out of range", apperrors.ErrInvalidInput, rating)
	}

	review := core.Review{
		ID:           uuid.NewString(),
		RestaurantID: restaurantID,
		AuthorID:     s.actor.ID,
		Rating:       rating,
		Text:         text,
		Pending:      true,
		CreatedAt:    time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := cache.KeyReviews(restaurantID)
	col, ok, err := cache.Load[core.Review](ctx, s.store, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		col = cache.NewCollection[core.Review]()
	}
	col.Records[review.ID] = review
	if err := cache.Save(ctx, s.store, key, col); err != nil {
		return nil, err
	}

	rv := review
	if err := s.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
		defer cancel()

		if err := s.api.PostReview(ctx, rv); err != nil {
			s.logger.Warn("Remote review post failed", "review_id", rv.ID, "error", err)
		}
	}); err != nil {
		s.logger.Warn("Remote review post not scheduled", "review_id", review.ID, "error", err)
	}

	return &review, nil
}

// ListReviews returns one restaurant's reviews, local-first, newest first.
func (s *Service) ListReviews(ctx context.Context, restaurantID string) ([]core.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cache.KeyReviews(restaurantID)
	col, ok, err := cache.Load[core.Review](ctx, s.store, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := s.syncReviewsLocked(ctx, restaurantID); err != nil {
			return nil, err
		}
		col, _, err = cache.Load[core.Review](ctx, s.store, key)
		if err != nil {
			return nil, err
		}
		if col == nil {
			col = cache.NewCollection[core.Review]()
		}
	}

	out := col.Values()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// SyncReviews merges the backend's reviews for one restaurant.
func (s *Service) SyncReviews(ctx context.Context, restaurantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncReviewsLocked(ctx, restaurantID)
}

func (s *Service) syncReviewsLocked(ctx context.Context, restaurantID string) error {
	remote, err := s.api.ListReviews(ctx, restaurantID)
	if err != nil {
		return fmt.Errorf("list remote reviews: %w", err)
	}

	key := cache.KeyReviews(restaurantID)
	col, ok, err := cache.Load[core.Review](ctx, s.store, key)
	if err != nil {
		return err
	}
	if !ok {
		col = cache.NewCollection[core.Review]()
	}
	reconcile.MergeReviews(col, remote)
	return cache.Save(ctx, s.store, key, col)
}
