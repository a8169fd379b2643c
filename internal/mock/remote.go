package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"campus_courier/internal/core"
	apperrors "campus_courier/pkg/errors"
)

// OrderService implements core.OrderAPI in memory with the same rules the
// real backend enforces, including the transactional claim: the deliverer is
// assigned only while no deliverer is set, under one lock, so exactly one of
// two racing claims can win.
type OrderService struct {
	mu        sync.Mutex
	orders    map[string]*core.Order
	favorites map[string]map[string]bool // user ID -> restaurant names
	reviews   map[string][]core.Review   // restaurant ID -> reviews
	seq       int
	failWith  error
}

func NewOrderService() *OrderService {
	return &OrderService{
		orders:    make(map[string]*core.Order),
		favorites: make(map[string]map[string]bool),
		reviews:   make(map[string][]core.Review),
	}
}

// SetFailure makes every subsequent call fail with err until cleared.
// Simulates an unreachable or broken backend.
func (m *OrderService) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

func (m *OrderService) ClearFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = nil
}

// SeedOrder installs an order directly, bypassing PlaceOrder. Test setup only.
func (m *OrderService) SeedOrder(o core.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := o
	m.orders[o.ID] = &cp
}

// Order returns a copy of the stored order, for assertions.
func (m *OrderService) Order(id string) (core.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return core.Order{}, false
	}
	return *o, true
}

func (m *OrderService) ListOpenOrders(ctx context.Context) ([]core.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}

	var out []core.Order
	for _, o := range m.orders {
		if o.Status == core.StatusPending {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *OrderService) AcceptOrder(ctx context.Context, orderID string, deliverer core.Actor) (*core.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}

	o, ok := m.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", apperrors.ErrNotFound, orderID)
	}
	if o.CustomerID == deliverer.ID {
		return nil, fmt.Errorf("%w: cannot deliver own order", apperrors.ErrNotAuthorized)
	}
	// Conditional update: succeeds only while no deliverer is assigned
	if o.Status != core.StatusPending || o.DelivererID != "" {
		return nil, fmt.Errorf("%w: order %s", apperrors.ErrConflict, orderID)
	}

	o.Status = core.StatusAccepted
	o.DelivererID = deliverer.ID
	if err := o.CheckInvariants(); err != nil {
		panic(err) // invariant breach in the authoritative store is a test bug
	}
	cp := *o
	return &cp, nil
}

func (m *OrderService) UpdateOrderStatus(ctx context.Context, orderID string, status core.OrderStatus, actor core.Actor) (*core.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}

	o, ok := m.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", apperrors.ErrNotFound, orderID)
	}

	if status == core.StatusCancelled {
		if actor.ID != o.CustomerID && actor.Role != core.RoleAdmin {
			return nil, fmt.Errorf("%w: only the customer may cancel", apperrors.ErrNotAuthorized)
		}
		if !o.Status.Cancellable() {
			return nil, fmt.Errorf("%w: cannot cancel from %s", apperrors.ErrInvalidTransition, o.Status)
		}
		o.Status = core.StatusCancelled
	} else {
		if actor.ID != o.DelivererID {
			return nil, fmt.Errorf("%w: not the assigned deliverer", apperrors.ErrNotAuthorized)
		}
		next, ok := o.Status.Successor()
		if !ok || next != status {
			return nil, fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidTransition, o.Status, status)
		}
		o.Status = status
	}

	if err := o.CheckInvariants(); err != nil {
		panic(err)
	}
	cp := *o
	return &cp, nil
}

func (m *OrderService) ListUserOrders(ctx context.Context, actor core.Actor) ([]core.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}

	var out []core.Order
	for _, o := range m.orders {
		if actor.Role == core.RoleDeliverer && o.DelivererID == actor.ID {
			out = append(out, *o)
		}
		if actor.Role != core.RoleDeliverer && o.CustomerID == actor.ID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *OrderService) PlaceOrder(ctx context.Context, draft core.OrderDraft, customer core.Actor) (*core.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}

	m.seq++
	o := &core.Order{
		ID:             fmt.Sprintf("ord-%d", m.seq),
		CustomerID:     customer.ID,
		RestaurantID:   draft.RestaurantID,
		RestaurantName: draft.RestaurantName,
		Items:          draft.Items,
		Total:          draft.ItemTotal(),
		DeliveryFee:    draft.DeliveryFee,
		Address:        draft.Address,
		Notes:          draft.Notes,
		PaymentMethod:  draft.PaymentMethod,
		Status:         core.StatusPending,
		CreatedAt:      time.Now().UTC(),
	}
	m.orders[o.ID] = o
	cp := *o
	return &cp, nil
}

func (m *OrderService) ListFavorites(ctx context.Context, actor core.Actor) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}

	var out []string
	for name := range m.favorites[actor.ID] {
		out = append(out, name)
	}
	return out, nil
}

func (m *OrderService) SetFavorite(ctx context.Context, actor core.Actor, restaurant string, favored bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}

	set, ok := m.favorites[actor.ID]
	if !ok {
		set = make(map[string]bool)
		m.favorites[actor.ID] = set
	}
	if favored {
		set[restaurant] = true
	} else {
		delete(set, restaurant)
	}
	return nil
}

func (m *OrderService) ListReviews(ctx context.Context, restaurantID string) ([]core.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	return append([]core.Review(nil), m.reviews[restaurantID]...), nil
}

func (m *OrderService) PostReview(ctx context.Context, review core.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	review.Pending = false
	m.reviews[review.RestaurantID] = append(m.reviews[review.RestaurantID], review)
	return nil
}
