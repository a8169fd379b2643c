// Package core defines the core types and interfaces for the coordination layer
package core

import (
	"context"
	"net/http"
)

// OrderAPI is the authoritative Remote Order Service. It is the only
// component allowed to assign a deliverer to an order, and it must enforce
// claim exclusivity transactionally (a conditional update that succeeds only
// while no deliverer is set). Client code never assumes local locking is
// sufficient.
//
// The HTTP implementation derives the acting user from the bearer token and
// ignores the Actor parameters; the in-memory mock uses them to enforce the
// same rules the backend does.
type OrderAPI interface {
	// ListOpenOrders returns every order still in the pending pool.
	ListOpenOrders(ctx context.Context) ([]Order, error)

	// AcceptOrder claims a pending order for the deliverer. Exactly one of
	// two racing calls succeeds; the loser gets apperrors.ErrConflict.
	AcceptOrder(ctx context.Context, orderID string, deliverer Actor) (*Order, error)

	// UpdateOrderStatus advances or cancels an order.
	UpdateOrderStatus(ctx context.Context, orderID string, status OrderStatus, actor Actor) (*Order, error)

	// ListUserOrders returns the authenticated actor's orders: by customer
	// ID for customers, by deliverer ID for deliverers.
	ListUserOrders(ctx context.Context, actor Actor) ([]Order, error)

	// PlaceOrder creates a new pending order owned by the actor.
	PlaceOrder(ctx context.Context, draft OrderDraft, customer Actor) (*Order, error)

	// ListFavorites returns the actor's favorite restaurant names (bare
	// identifiers; enrichment is a local concern).
	ListFavorites(ctx context.Context, actor Actor) ([]string, error)

	// SetFavorite adds or removes a favorite remotely.
	SetFavorite(ctx context.Context, actor Actor, restaurant string, favored bool) error

	// ListReviews returns reviews for one restaurant.
	ListReviews(ctx context.Context, restaurantID string) ([]Review, error)

	// PostReview publishes a review authored by the actor.
	PostReview(ctx context.Context, review Review) error
}

// Store is the Local Cache Store: a persisted key/value mapping from logical
// collection name to a serialized collection. Pure storage, no business
// rules; single-key operations are atomic.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
}

// TokenSource supplies bearer credentials for outgoing requests and performs
// the single silent refresh when the backend signals expiry.
type TokenSource interface {
	// AuthHeaders returns the headers to attach to a request.
	AuthHeaders(ctx context.Context) (http.Header, error)

	// HandleExpiry attempts one silent refresh. It returns true when a new
	// token is available and the original request may be replayed.
	HandleExpiry(ctx context.Context) (bool, error)
}

// ILogger defines the interface for logging operations
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}
