package mock

import (
	"context"
	"net/http"
	"sync"
)

// TokenSource hands out a configurable bearer token and counts refreshes.
type TokenSource struct {
	mu        sync.Mutex
	token     string
	next      string
	refreshes int
	refuse    bool
}

func NewTokenSource(token string) *TokenSource {
	return &TokenSource{token: token}
}

// ExpireInto arranges for the next refresh to install token.
func (t *TokenSource) ExpireInto(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next = token
}

// RefuseRefresh makes HandleExpiry report failure, simulating a revoked
// refresh token.
func (t *TokenSource) RefuseRefresh() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refuse = true
}

func (t *TokenSource) Refreshes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refreshes
}

func (t *TokenSource) AuthHeaders(ctx context.Context) (http.Header, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := http.Header{}
	h.Set("Authorization", "Bearer "+t.token)
	return h, nil
}

func (t *TokenSource) HandleExpiry(ctx context.Context) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refreshes++
	if t.refuse || t.next == "" {
		return false, nil
	}
	t.token = t.next
	t.next = ""
	return true, nil
}
