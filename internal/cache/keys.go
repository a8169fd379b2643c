// Package cache implements the Local Cache Store: a persisted key/value
// mapping from logical collection name to a serialized collection. It holds
// no business rules; callers read and replace whole collections.
package cache

import "campus_courier/internal/core"

// Fixed logical collection names.
const (
	KeyOpenOrders         = "open-orders"
	KeyOrdersForCustomer  = "orders-for-customer"
	KeyOrdersForDeliverer = "orders-for-deliverer"
	KeyOrdersForAdmin     = "orders-for-admin"
	KeyFavorites          = "favorites"
	KeyFavoriteTombstones = "favorites-tombstones"
)

// KeyOrdersFor returns the own-orders collection name for a role, so every
// role writes to its own collection.
func KeyOrdersFor(role core.Role) string {
	switch role {
	case core.RoleDeliverer:
		return KeyOrdersForDeliverer
	case core.RoleAdmin:
		return KeyOrdersForAdmin
	default:
		return KeyOrdersForCustomer
	}
}

// KeyReviews returns the collection name for one restaurant's reviews.
func KeyReviews(restaurantID string) string {
	return "reviews-" + restaurantID
}
