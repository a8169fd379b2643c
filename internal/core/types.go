package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusAccepted  OrderStatus = "accepted"
	StatusPickedUp  OrderStatus = "picked_up"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusPickedUp, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed out of s.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Successor returns the unique forward transition for s. Each non-terminal
// status has exactly one legal successor; skipping or moving backward is
// never allowed.
func (s OrderStatus) Successor() (OrderStatus, bool) {
	switch s {
	case StatusPending:
		return StatusAccepted, true
	case StatusAccepted:
		return StatusPickedUp, true
	case StatusPickedUp:
		return StatusDelivered, true
	}
	return "", false
}

// Cancellable reports whether an order in s may still be cancelled.
func (s OrderStatus) Cancellable() bool {
	return s == StatusPending || s == StatusAccepted
}

// Role identifies what an actor is allowed to do.
type Role string

const (
	RoleCustomer  Role = "customer"
	RoleDeliverer Role = "deliverer"
	RoleAdmin     Role = "admin"
)

// Actor is the authenticated user performing an operation. Identity is
// established by the credential gateway; the engine never inspects tokens.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// LineItem is a single ordered menu item.
type LineItem struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Order is the canonical order record. The remote service owns it; local
// copies are cache entries only.
type Order struct {
	ID             string          `json:"id"`
	CustomerID     string          `json:"customer_id"`
	RestaurantID   string          `json:"restaurant_id"`
	RestaurantName string          `json:"restaurant_name"`
	Items          []LineItem      `json:"items"`
	Total          decimal.Decimal `json:"total"`
	DeliveryFee    decimal.Decimal `json:"delivery_fee"`
	Address        string          `json:"address"`
	Notes          string          `json:"notes,omitempty"`
	PaymentMethod  string          `json:"payment_method,omitempty"`
	Status         OrderStatus     `json:"status"`
	DelivererID    string          `json:"deliverer_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Claimed reports whether a deliverer holds this order.
func (o *Order) Claimed() bool {
	return o.DelivererID != ""
}

// CheckInvariants verifies the deliverer/status coupling: accepted,
// picked_up and delivered require a deliverer, pending forbids one, and a
// customer never delivers their own order. Cancelled orders may carry a
// deliverer (cancel after claim keeps the assignment on the record).
func (o *Order) CheckInvariants() error {
	assigned := o.Status == StatusAccepted || o.Status == StatusPickedUp || o.Status == StatusDelivered
	if assigned && o.DelivererID == "" {
		return fmt.Errorf("order %s: status %s without deliverer", o.ID, o.Status)
	}
	if o.Status == StatusPending && o.DelivererID != "" {
		return fmt.Errorf("order %s: deliverer %s set while pending", o.ID, o.DelivererID)
	}
	if o.DelivererID != "" && o.DelivererID == o.CustomerID {
		return fmt.Errorf("order %s: customer and deliverer are the same user", o.ID)
	}
	return nil
}

// OpenOrder is a pending order as shown to deliverers. Self-orders stay
// visible but are flagged non-claimable so the UI can render "Your Order".
type OpenOrder struct {
	Order
	Claimable bool `json:"claimable"`
}

// OrderDraft is the customer-supplied part of a new order.
type OrderDraft struct {
	RestaurantID   string          `json:"restaurant_id"`
	RestaurantName string          `json:"restaurant_name"`
	Items          []LineItem      `json:"items"`
	DeliveryFee    decimal.Decimal `json:"delivery_fee"`
	Address        string          `json:"address"`
	Notes          string          `json:"notes,omitempty"`
	PaymentMethod  string          `json:"payment_method,omitempty"`
}

// ItemTotal sums the line items plus the delivery fee.
func (d *OrderDraft) ItemTotal() decimal.Decimal {
	total := d.DeliveryFee
	for _, it := range d.Items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// FavoriteRecord is the locally enriched view of a favorite restaurant.
// The remote side stores bare restaurant names only; display fields live
// exclusively in the local cache.
type FavoriteRecord struct {
	RestaurantID string    `json:"restaurant_id"`
	Name         string    `json:"name"`
	ImageURL     string    `json:"image_url,omitempty"`
	Pending      bool      `json:"pending,omitempty"`
	AddedAt      time.Time `json:"added_at"`
}

// Review is a restaurant review. IDs are generated client-side so the
// optimistic local copy and the remote copy share an identity.
type Review struct {
	ID           string    `json:"id"`
	RestaurantID string    `json:"restaurant_id"`
	AuthorID     string    `json:"author_id"`
	Rating       int       `json:"rating"`
	Text         string    `json:"text,omitempty"`
	Pending      bool      `json:"pending,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// OrderEvent is a backend push that some order changed. Events only nudge
// reconciliation; they are never applied to the cache directly.
type OrderEvent struct {
	OrderID string      `json:"order_id"`
	Status  OrderStatus `json:"status"`
}
