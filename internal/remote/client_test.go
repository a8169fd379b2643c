package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"campus_courier/internal/core"
	"campus_courier/internal/gateway"
	"campus_courier/internal/mock"
	apperrors "campus_courier/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	gw := gateway.New(server.URL, 5*time.Second, mock.NewTokenSource("t1"), gateway.NewAPIBreaker(), mock.NewNopLogger())
	return NewClient(gw, mock.NewNopLogger()), server
}

func TestClient_ListOpenOrders(t *testing.T) {
	orders := []core.Order{
		{ID: "o1", CustomerID: "u1", RestaurantName: "Pizza Hub", Status: core.StatusPending, Total: decimal.NewFromInt(12)},
		{ID: "o2", CustomerID: "u2", RestaurantName: "Wok Stop", Status: core.StatusPending, Total: decimal.NewFromInt(8)},
	}
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/delivery/requests", r.URL.Path)
		assert.Equal(t, "Bearer t1", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(orders)
	}))

	got, err := c.ListOpenOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "o1", got[0].ID)
	assert.True(t, got[0].Total.Equal(decimal.NewFromInt(12)))
}

func TestClient_AcceptOrder(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/delivery/accept/o1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(core.Order{
			ID: "o1", CustomerID: "u1", DelivererID: "d1", Status: core.StatusAccepted,
		})
	}))

	got, err := c.AcceptOrder(context.Background(), "o1", core.Actor{ID: "d1", Role: core.RoleDeliverer})
	require.NoError(t, err)
	assert.Equal(t, core.StatusAccepted, got.Status)
	assert.Equal(t, "d1", got.DelivererID)
}

func TestClient_AcceptOrder_Conflict(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"order no longer available"}`))
	}))

	_, err := c.AcceptOrder(context.Background(), "o1", core.Actor{ID: "d1"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Contains(t, err.Error(), "no longer available")
}

func TestClient_UpdateOrderStatus(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/orders/o1/status", r.URL.Path)
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "picked_up", payload["status"])
		_ = json.NewEncoder(w).Encode(core.Order{
			ID: "o1", CustomerID: "u1", DelivererID: "d1", Status: core.StatusPickedUp,
		})
	}))

	got, err := c.UpdateOrderStatus(context.Background(), "o1", core.StatusPickedUp, core.Actor{ID: "d1"})
	require.NoError(t, err)
	assert.Equal(t, core.StatusPickedUp, got.Status)
}

func TestClient_PlaceOrder(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		var draft core.OrderDraft
		require.NoError(t, json.NewDecoder(r.Body).Decode(&draft))
		_ = json.NewEncoder(w).Encode(core.Order{
			ID: "srv-1", RestaurantID: draft.RestaurantID, Status: core.StatusPending,
		})
	}))

	got, err := c.PlaceOrder(context.Background(), core.OrderDraft{RestaurantID: "r1"}, core.Actor{ID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", got.ID)
	assert.Equal(t, core.StatusPending, got.Status)
}

func TestClient_Favorites(t *testing.T) {
	var lastPayload map[string]interface{}
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/favorites", r.URL.Path)
		if r.Method == http.MethodPost {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&lastPayload))
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = json.NewEncoder(w).Encode([]string{"Pizza Hub", "Wok Stop"})
	}))

	names, err := c.ListFavorites(context.Background(), core.Actor{ID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Pizza Hub", "Wok Stop"}, names)

	require.NoError(t, c.SetFavorite(context.Background(), core.Actor{ID: "u1"}, "Taco Cart", true))
	assert.Equal(t, "Taco Cart", lastPayload["restaurant"])
	assert.Equal(t, true, lastPayload["favored"])
}

func TestClient_Reviews(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/restaurants/r1/reviews", r.URL.Path)
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			return
		}
		_ = json.NewEncoder(w).Encode([]core.Review{{ID: "rv1", RestaurantID: "r1", Rating: 5}})
	}))

	reviews, err := c.ListReviews(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, 5, reviews[0].Rating)

	err = c.PostReview(context.Background(), core.Review{ID: "rv2", RestaurantID: "r1", Rating: 4})
	require.NoError(t, err)
}
