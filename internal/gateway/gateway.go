package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"campus_courier/internal/core"
	apperrors "campus_courier/pkg/errors"
	httpx "campus_courier/pkg/http"
	"campus_courier/pkg/telemetry"
)

// attemptState bounds the refresh-and-replay protocol to exactly one retry.
// It is threaded down one recursion level instead of looping.
type attemptState int

const (
	firstAttempt attemptState = iota
	retriedAfterRefresh
)

// Gateway executes authenticated requests against the Remote Order Service.
// It owns no credential state beyond the injected TokenSource.
type Gateway struct {
	client  *httpx.Client
	tokens  core.TokenSource
	breaker *APIBreaker
	logger  core.ILogger
}

// tokenHeaders adapts a core.TokenSource to the transport's HeaderSource.
type tokenHeaders struct {
	tokens core.TokenSource
}

func (t *tokenHeaders) Apply(req *http.Request) error {
	headers, err := t.tokens.AuthHeaders(req.Context())
	if err != nil {
		return err
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	return nil
}

// New builds a gateway around the remote base URL. The timeout is a hard
// deadline on every request.
func New(baseURL string, timeout time.Duration, tokens core.TokenSource, breaker *APIBreaker, logger core.ILogger) *Gateway {
	return &Gateway{
		client:  httpx.NewClient(baseURL, timeout, &tokenHeaders{tokens: tokens}),
		tokens:  tokens,
		breaker: breaker,
		logger:  logger.WithField("component", "gateway"),
	}
}

// Get performs an authenticated GET.
func (g *Gateway) Get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	return g.execute(ctx, firstAttempt, func() ([]byte, error) {
		return g.client.Get(ctx, path, params)
	})
}

// Post performs an authenticated POST with a JSON body.
func (g *Gateway) Post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	return g.execute(ctx, firstAttempt, func() ([]byte, error) {
		return g.client.Post(ctx, path, body)
	})
}

// Put performs an authenticated PUT with a JSON body.
func (g *Gateway) Put(ctx context.Context, path string, body interface{}) ([]byte, error) {
	return g.execute(ctx, firstAttempt, func() ([]byte, error) {
		return g.client.Put(ctx, path, body)
	})
}

func (g *Gateway) execute(ctx context.Context, state attemptState, call func() ([]byte, error)) ([]byte, error) {
	if g.breaker.IsTripped() {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrAPIDisabled, apperrors.ErrNetwork)
	}

	body, err := call()
	if err == nil {
		return body, nil
	}

	var apiErr *httpx.APIError
	if !errors.As(err, &apiErr) {
		// Transport failure or timeout: disable the API until external reset
		g.breaker.Trip("transport failure")
		g.logger.Warn("Remote call failed, API disabled", "error", err)
		return nil, fmt.Errorf("%w: %v", apperrors.ErrNetwork, err)
	}

	switch {
	case apiErr.StatusCode == http.StatusUnauthorized:
		if state == retriedAfterRefresh {
			return nil, fmt.Errorf("%w: replay rejected", apperrors.ErrAuthExpired)
		}
		refreshed, rerr := g.tokens.HandleExpiry(ctx)
		telemetry.GetGlobalMetrics().RecordTokenRefresh(ctx, rerr == nil && refreshed)
		if rerr != nil || !refreshed {
			return nil, fmt.Errorf("%w: refresh failed", apperrors.ErrAuthExpired)
		}
		g.logger.Debug("Token refreshed, replaying request once")
		return g.execute(ctx, retriedAfterRefresh, call)

	case apiErr.StatusCode >= 500:
		g.breaker.Trip(fmt.Sprintf("server error %d", apiErr.StatusCode))
		g.logger.Warn("Server error, API disabled", "status", apiErr.StatusCode)
		return nil, fmt.Errorf("%w: %s", apperrors.ErrNetwork, remoteMessage(apiErr))

	case apiErr.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", apperrors.ErrNotFound, remoteMessage(apiErr))

	case apiErr.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", apperrors.ErrNotAuthorized, remoteMessage(apiErr))

	case apiErr.StatusCode == http.StatusConflict:
		return nil, fmt.Errorf("%w: %s", apperrors.ErrConflict, remoteMessage(apiErr))

	case apiErr.StatusCode == http.StatusBadRequest || apiErr.StatusCode == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidTransition, remoteMessage(apiErr))

	default:
		return nil, fmt.Errorf("remote call failed: %s", remoteMessage(apiErr))
	}
}

// remoteMessage extracts the backend's {"error": "..."} message, falling
// back to the raw status line.
func remoteMessage(apiErr *httpx.APIError) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(apiErr.Body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return fmt.Sprintf("status %d", apiErr.StatusCode)
}
