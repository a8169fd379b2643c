// Package remote implements core.OrderAPI against the campus backend's REST
// interface. Identity travels in the bearer token, so the actor arguments are
// not sent over the wire; the backend resolves them server-side. The mock
// service in internal/mock is the in-memory stand-in for this client.
package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"campus_courier/internal/core"
	"campus_courier/internal/gateway"
)

type Client struct {
	gw     *gateway.Gateway
	logger core.ILogger
}

func NewClient(gw *gateway.Gateway, logger core.ILogger) *Client {
	return &Client{
		gw:     gw,
		logger: logger.WithField("component", "remote"),
	}
}

func (c *Client) ListOpenOrders(ctx context.Context) ([]core.Order, error) {
	body, err := c.gw.Get(ctx, "/delivery/requests", nil)
	if err != nil {
		return nil, err
	}
	var orders []core.Order
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, fmt.Errorf("decode open orders: %w", err)
	}
	return orders, nil
}

func (c *Client) AcceptOrder(ctx context.Context, orderID string, deliverer core.Actor) (*core.Order, error) {
	body, err := c.gw.Post(ctx, "/delivery/accept/"+orderID, nil)
	if err != nil {
		return nil, err
	}
	return decodeOrder(body)
}

func (c *Client) UpdateOrderStatus(ctx context.Context, orderID string, status core.OrderStatus, actor core.Actor) (*core.Order, error) {
	payload := map[string]string{"status": string(status)}
	body, err := c.gw.Put(ctx, "/orders/"+orderID+"/status", payload)
	if err != nil {
		return nil, err
	}
	return decodeOrder(body)
}

func (c *Client) ListUserOrders(ctx context.Context, actor core.Actor) ([]core.Order, error) {
	body, err := c.gw.Get(ctx, "/user/orders", nil)
	if err != nil {
		return nil, err
	}
	var orders []core.Order
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, fmt.Errorf("decode user orders: %w", err)
	}
	return orders, nil
}

func (c *Client) PlaceOrder(ctx context.Context, draft core.OrderDraft, customer core.Actor) (*core.Order, error) {
	body, err := c.gw.Post(ctx, "/orders", draft)
	if err != nil {
		return nil, err
	}
	return decodeOrder(body)
}

func (c *Client) ListFavorites(ctx context.Context, actor core.Actor) ([]string, error) {
	body, err := c.gw.Get(ctx, "/user/favorites", nil)
	if err != nil {
		return nil, err
	}
	// The backend stores favorites as bare restaurant names.
	var names []string
	if err := json.Unmarshal(body, &names); err != nil {
		return nil, fmt.Errorf("decode favorites: %w", err)
	}
	return names, nil
}

func (c *Client) SetFavorite(ctx context.Context, actor core.Actor, restaurant string, favored bool) error {
	payload := map[string]interface{}{
		"restaurant": restaurant,
		"favored":    favored,
	}
	_, err := c.gw.Post(ctx, "/user/favorites", payload)
	return err
}

func (c *Client) ListReviews(ctx context.Context, restaurantID string) ([]core.Review, error) {
	body, err := c.gw.Get(ctx, "/restaurants/"+restaurantID+"/reviews", nil)
	if err != nil {
		return nil, err
	}
	var reviews []core.Review
	if err := json.Unmarshal(body, &reviews); err != nil {
		return nil, fmt.Errorf("decode reviews: %w", err)
	}
	return reviews, nil
}

func (c *Client) PostReview(ctx context.Context, review core.Review) error {
	_, err := c.gw.Post(ctx, "/restaurants/"+review.RestaurantID+"/reviews", review)
	return err
}

func decodeOrder(body []byte) (*core.Order, error) {
	var o core.Order
	if err := json.Unmarshal(body, &o); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	return &o, nil
}
