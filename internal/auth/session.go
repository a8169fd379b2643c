// Package auth owns the bearer session against the campus backend: it hands
// out auth headers and performs the silent token refresh the gateway asks
// for on a 401.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"campus_courier/internal/core"
)

const refreshPath = "/auth/refresh"

// Session implements core.TokenSource over a bearer/refresh token pair. The
// refresh call goes through a plain HTTP client on purpose: routing it
// through the gateway would recurse into the very 401 handling that
// triggered it.
type Session struct {
	baseURL string
	client  *http.Client
	logger  core.ILogger

	mu           sync.Mutex
	token        string
	refreshToken string
	lastRefresh  time.Time
}

// refreshReuseWindow treats a just-completed refresh as the answer to any
// expiry reported concurrently, so stacked 401s burn one refresh, not many.
const refreshReuseWindow = 5 * time.Second

func NewSession(baseURL, token, refreshToken string, timeout time.Duration, logger core.ILogger) *Session {
	return &Session{
		baseURL:      baseURL,
		client:       &http.Client{Timeout: timeout},
		logger:       logger.WithField("component", "auth"),
		token:        token,
		refreshToken: refreshToken,
	}
}

func (s *Session) AuthHeaders(ctx context.Context) (http.Header, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" {
		return nil, fmt.Errorf("no session token")
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+s.token)
	return h, nil
}

// HandleExpiry exchanges the refresh token for a fresh bearer token. Returns
// false when the backend refuses, which the gateway maps to ErrAuthExpired.
// Concurrent expiries collapse: whoever waits on the lock while another
// refresh completes reuses its result instead of burning the refresh token
// again.
func (s *Session) HandleExpiry(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Since(s.lastRefresh) < refreshReuseWindow {
		return true, nil
	}

	if s.refreshToken == "" {
		return false, nil
	}

	payload, err := json.Marshal(map[string]string{"refresh_token": s.refreshToken})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+refreshPath, bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("refresh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("Token refresh rejected", "status", resp.StatusCode)
		return false, nil
	}

	var out struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("decode refresh response: %w", err)
	}
	if out.Token == "" {
		return false, nil
	}

	s.token = out.Token
	if out.RefreshToken != "" {
		s.refreshToken = out.RefreshToken
	}
	s.lastRefresh = time.Now()
	s.logger.Info("Session token refreshed")
	return true, nil
}
