// Package engine is the Coordination Engine: every order operation the app
// performs goes through here. Reads are cache-first with a background
// authoritative refresh; mutations go straight to the Remote Order Service
// and write through to the cache on success. The remote store wins every
// disagreement — local checks exist to fail fast, not to decide.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campus_courier/internal/cache"
	"campus_courier/internal/core"
	"campus_courier/pkg/concurrency"
	apperrors "campus_courier/pkg/errors"
	"campus_courier/pkg/telemetry"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Nudger requests an out-of-band reconciliation run. Satisfied by
// reconcile.Reconciler; nil disables nudging.
type Nudger interface {
	Nudge()
}

const refreshTimeout = 15 * time.Second

type Engine struct {
	api     core.OrderAPI
	store   core.Store
	pool    *concurrency.WorkerPool
	limiter *rate.Limiter
	sf      singleflight.Group
	nudger  Nudger
	logger  core.ILogger
}

// New builds the engine. The limiter caps background refresh traffic; pass a
// generous one in tests. nudger may be nil.
func New(api core.OrderAPI, store core.Store, pool *concurrency.WorkerPool, limiter *rate.Limiter, nudger Nudger, logger core.ILogger) *Engine {
	return &Engine{
		api:     api,
		store:   store,
		pool:    pool,
		limiter: limiter,
		nudger:  nudger,
		logger:  logger.WithField("component", "engine"),
	}
}

// ListOpen returns the pending orders a deliverer can browse. Cached data is
// returned immediately when present, with an authoritative refresh scheduled
// in the background; only a cold miss blocks on the network. The caller's own
// orders are included but flagged non-claimable rather than hidden.
func (e *Engine) ListOpen(ctx context.Context, actor core.Actor) ([]core.OpenOrder, error) {
	col, hit, err := cache.Load[core.Order](ctx, e.store, cache.KeyOpenOrders)
	telemetry.GetGlobalMetrics().RecordCacheRead(ctx, cache.KeyOpenOrders, hit && err == nil)
	if err != nil {
		e.logger.Warn("Cache read failed, treating as miss", "key", cache.KeyOpenOrders, "error", err)
		hit = false
	}

	if hit {
		e.scheduleRefresh(cache.KeyOpenOrders, e.refreshOpenOrders)
		return decorateOpen(col.Values(), actor), nil
	}

	// Cold miss: the blocking fetch shares flight with any background refresh.
	if _, err, _ := e.sf.Do(cache.KeyOpenOrders, func() (interface{}, error) {
		return nil, e.refreshOpenOrders(ctx)
	}); err != nil {
		return nil, err
	}

	col, _, err = cache.Load[core.Order](ctx, e.store, cache.KeyOpenOrders)
	if err != nil {
		return nil, err
	}
	return decorateOpen(col.Values(), actor), nil
}

// ListMine returns the actor's own orders: by customer for customers, by
// assigned deliverer for deliverers. Same cache-first read path as ListOpen.
func (e *Engine) ListMine(ctx context.Context, actor core.Actor) ([]core.Order, error) {
	key := cache.KeyOrdersFor(actor.Role)

	col, hit, err := cache.Load[core.Order](ctx, e.store, key)
	telemetry.GetGlobalMetrics().RecordCacheRead(ctx, key, hit && err == nil)
	if err != nil {
		e.logger.Warn("Cache read failed, treating as miss", "key", key, "error", err)
		hit = false
	}

	if hit {
		e.scheduleRefresh(key, func(ctx context.Context) error {
			return e.refreshUserOrders(ctx, actor)
		})
		return col.Values(), nil
	}

	if _, err, _ := e.sf.Do(key, func() (interface{}, error) {
		return nil, e.refreshUserOrders(ctx, actor)
	}); err != nil {
		return nil, err
	}

	col, _, err = cache.Load[core.Order](ctx, e.store, key)
	if err != nil {
		return nil, err
	}
	return col.Values(), nil
}

// Claim attempts to take a pending order for delivery. Exclusivity lives in
// the remote store's conditional update: when two deliverers race, exactly
// one wins and the other receives ErrConflict. Local checks only short-cut
// the obvious rejections.
func (e *Engine) Claim(ctx context.Context, orderID string, actor core.Actor) (*core.Order, error) {
	if cached, ok := e.cachedOrder(ctx, cache.KeyOpenOrders, orderID); ok {
		if cached.CustomerID == actor.ID {
			return nil, fmt.Errorf("%w: cannot deliver your own order", apperrors.ErrNotAuthorized)
		}
		if cached.Claimed() {
			return nil, fmt.Errorf("%w: order %s no longer available", apperrors.ErrConflict, orderID)
		}
	}

	order, err := e.api.AcceptOrder(ctx, orderID, actor)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			telemetry.GetGlobalMetrics().RecordMutation(ctx, "claim_conflict")
			// Someone else won; the cached pending list is stale.
			e.scheduleRefresh(cache.KeyOpenOrders, e.refreshOpenOrders)
		}
		return nil, err
	}
	telemetry.GetGlobalMetrics().RecordMutation(ctx, "claim")
	e.logger.Info("Order claimed", "order_id", order.ID, "deliverer_id", actor.ID)

	e.writeThrough(ctx, cache.KeyOpenOrders, func(col *cache.Collection[core.Order]) {
		delete(col.Records, order.ID)
	})
	e.writeThrough(ctx, cache.KeyOrdersForDeliverer, func(col *cache.Collection[core.Order]) {
		col.Records[order.ID] = *order
	})
	e.scheduleReconcile()
	return order, nil
}

// Advance moves an order the actor is delivering to the next status. Only
// the unique successor is accepted; the assigned deliverer is the only actor
// allowed to move it.
func (e *Engine) Advance(ctx context.Context, orderID string, target core.OrderStatus, actor core.Actor) (*core.Order, error) {
	current, err := e.resolveOrder(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}
	// Local checks fail fast only for a cached order. An order we have never
	// seen still goes to the remote, which picks the error class.
	if current != nil {
		if current.DelivererID != actor.ID {
			return nil, fmt.Errorf("%w: order %s is not assigned to you", apperrors.ErrNotAuthorized, orderID)
		}
		next, ok := current.Status.Successor()
		if !ok || next != target {
			return nil, fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidTransition, current.Status, target)
		}
	}

	order, err := e.api.UpdateOrderStatus(ctx, orderID, target, actor)
	if err != nil {
		return nil, err
	}
	telemetry.GetGlobalMetrics().RecordMutation(ctx, "advance")
	e.logger.Info("Order advanced", "order_id", order.ID, "status", order.Status)

	e.writeThrough(ctx, cache.KeyOrdersForDeliverer, func(col *cache.Collection[core.Order]) {
		col.Records[order.ID] = *order
	})
	e.scheduleReconcile()
	return order, nil
}

// Cancel voids a pending or accepted order. Customers cancel their own
// orders; admins can cancel anyone's. The deliverer assignment, if any, is
// left on the record.
func (e *Engine) Cancel(ctx context.Context, orderID string, actor core.Actor) (*core.Order, error) {
	current, err := e.resolveOrder(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}
	if current != nil {
		if current.CustomerID != actor.ID && actor.Role != core.RoleAdmin {
			return nil, fmt.Errorf("%w: only the customer may cancel order %s", apperrors.ErrNotAuthorized, orderID)
		}
		if !current.Status.Cancellable() {
			return nil, fmt.Errorf("%w: cannot cancel from %s", apperrors.ErrInvalidTransition, current.Status)
		}
	}

	order, err := e.api.UpdateOrderStatus(ctx, orderID, core.StatusCancelled, actor)
	if err != nil {
		return nil, err
	}
	telemetry.GetGlobalMetrics().RecordMutation(ctx, "cancel")
	e.logger.Info("Order cancelled", "order_id", order.ID)

	e.writeThrough(ctx, cache.KeyOrdersFor(actor.Role), func(col *cache.Collection[core.Order]) {
		col.Records[order.ID] = *order
	})
	e.writeThrough(ctx, cache.KeyOpenOrders, func(col *cache.Collection[core.Order]) {
		delete(col.Records, order.ID)
	})
	e.scheduleReconcile()
	return order, nil
}

// PlaceOrder submits a new order. The server assigns the ID and the pending
// status; the draft is validated locally first so obviously broken input
// never reaches the network.
func (e *Engine) PlaceOrder(ctx context.Context, draft core.OrderDraft, actor core.Actor) (*core.Order, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	order, err := e.api.PlaceOrder(ctx, draft, actor)
	if err != nil {
		return nil, err
	}
	telemetry.GetGlobalMetrics().RecordMutation(ctx, "place")
	e.logger.Info("Order placed", "order_id", order.ID, "restaurant", order.RestaurantName)

	e.writeThrough(ctx, cache.KeyOrdersForCustomer, func(col *cache.Collection[core.Order]) {
		col.Records[order.ID] = *order
	})
	e.scheduleReconcile()
	return order, nil
}

// Refresh forces a blocking authoritative sync of the order collections.
func (e *Engine) Refresh(ctx context.Context, actor core.Actor) error {
	if err := e.refreshOpenOrders(ctx); err != nil {
		return err
	}
	return e.refreshUserOrders(ctx, actor)
}

func validateDraft(draft core.OrderDraft) error {
	if draft.RestaurantID == "" {
		return fmt.Errorf("%w: missing restaurant", apperrors.ErrInvalidInput)
	}
	if len(draft.Items) == 0 {
		return fmt.Errorf("%w: empty order", apperrors.ErrInvalidInput)
	}
	for _, item := range draft.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: non-positive quantity for %q", apperrors.ErrInvalidInput, item.Name)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: negative price for %q", apperrors.ErrInvalidInput, item.Name)
		}
	}
	if draft.Address == "" {
		return fmt.Errorf("%w: missing delivery address", apperrors.ErrInvalidInput)
	}
	return nil
}

// resolveOrder finds the order in any cached collection, falling back to a
// blocking refresh of the actor's orders. A nil order with a nil error means
// nothing local knows the order; the caller must let the authoritative store
// decide whether that is not-found, not-authorized, or a bad transition.
func (e *Engine) resolveOrder(ctx context.Context, orderID string, actor core.Actor) (*core.Order, error) {
	mine := cache.KeyOrdersFor(actor.Role)
	for _, key := range []string{mine, cache.KeyOpenOrders, cache.KeyOrdersForCustomer, cache.KeyOrdersForDeliverer} {
		if o, ok := e.cachedOrder(ctx, key, orderID); ok {
			return o, nil
		}
	}

	if err := e.refreshUserOrders(ctx, actor); err != nil {
		return nil, err
	}
	if o, ok := e.cachedOrder(ctx, mine, orderID); ok {
		return o, nil
	}
	return nil, nil
}

func (e *Engine) cachedOrder(ctx context.Context, key, orderID string) (*core.Order, bool) {
	col, ok, err := cache.Load[core.Order](ctx, e.store, key)
	if err != nil || !ok {
		return nil, false
	}
	o, ok := col.Records[orderID]
	if !ok {
		return nil, false
	}
	return &o, true
}

func (e *Engine) refreshOpenOrders(ctx context.Context) error {
	orders, err := e.api.ListOpenOrders(ctx)
	if err != nil {
		return err
	}
	records := make(map[string]core.Order, len(orders))
	for _, o := range orders {
		records[o.ID] = o
	}
	col := cache.NewCollection[core.Order]()
	col.Replace(records)
	return cache.Save(ctx, e.store, cache.KeyOpenOrders, col)
}

func (e *Engine) refreshUserOrders(ctx context.Context, actor core.Actor) error {
	orders, err := e.api.ListUserOrders(ctx, actor)
	if err != nil {
		return err
	}
	records := make(map[string]core.Order, len(orders))
	for _, o := range orders {
		records[o.ID] = o
	}
	col := cache.NewCollection[core.Order]()
	col.Replace(records)
	return cache.Save(ctx, e.store, cache.KeyOrdersFor(actor.Role), col)
}

// scheduleRefresh queues an authoritative fetch on the worker pool. The rate
// limiter drops excess requests and singleflight collapses concurrent ones;
// failures leave the cache untouched and are only logged.
func (e *Engine) scheduleRefresh(key string, refresh func(ctx context.Context) error) {
	if !e.limiter.Allow() {
		return
	}
	err := e.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		if _, err, _ := e.sf.Do(key, func() (interface{}, error) {
			return nil, refresh(ctx)
		}); err != nil {
			e.logger.Debug("Background refresh failed, cache left as-is", "key", key, "error", err)
		}
	})
	if err != nil {
		e.logger.Warn("Refresh not scheduled", "key", key, "error", err)
	}
}

// writeThrough applies a mutation to one cached collection. Failure is
// logged and handed to the reconciler; the remote result is never rolled
// back over a cache problem.
func (e *Engine) writeThrough(ctx context.Context, key string, mutate func(col *cache.Collection[core.Order])) {
	col, ok, err := cache.Load[core.Order](ctx, e.store, key)
	if err != nil || !ok {
		if err != nil {
			e.cacheWriteFailed(ctx, key, err)
		}
		// Nothing cached yet: the next read syncs the full collection.
		return
	}

	mutate(col)
	if err := cache.Save(ctx, e.store, key, col); err != nil {
		e.cacheWriteFailed(ctx, key, err)
	}
}

// scheduleReconcile requests a full reconciliation run. Every mutation ends
// here: the write-through keeps the cache plausible, the reconciliation makes
// it authoritative.
func (e *Engine) scheduleReconcile() {
	if e.nudger != nil {
		e.nudger.Nudge()
	}
}

func (e *Engine) cacheWriteFailed(ctx context.Context, key string, err error) {
	telemetry.GetGlobalMetrics().RecordCacheWriteFailure(ctx, key)
	e.logger.Warn("Cache write-through failed, scheduling reconciliation", "key", key, "error", err)
	if e.nudger != nil {
		e.nudger.Nudge()
	}
}

func decorateOpen(orders []core.Order, actor core.Actor) []core.OpenOrder {
	out := make([]core.OpenOrder, 0, len(orders))
	for _, o := range orders {
		out = append(out, core.OpenOrder{
			Order:     o,
			Claimable: o.Status == core.StatusPending && !o.Claimed() && o.CustomerID != actor.ID,
		})
	}
	return out
}

