package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"campus_courier/internal/mock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_AuthHeaders(t *testing.T) {
	s := NewSession("http://x", "tok1", "ref1", time.Second, mock.NewNopLogger())

	h, err := s.AuthHeaders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok1", h.Get("Authorization"))

	empty := NewSession("http://x", "", "", time.Second, mock.NewNopLogger())
	_, err = empty.AuthHeaders(context.Background())
	assert.Error(t, err)
}

func TestSession_HandleExpiry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/refresh", r.URL.Path)
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "ref1", payload["refresh_token"])

		_ = json.NewEncoder(w).Encode(map[string]string{
			"token":         "tok2",
			"refresh_token": "ref2",
		})
	}))
	defer server.Close()

	s := NewSession(server.URL, "tok1", "ref1", time.Second, mock.NewNopLogger())

	ok, err := s.HandleExpiry(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	h, err := s.AuthHeaders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok2", h.Get("Authorization"))
}

func TestSession_HandleExpiry_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	s := NewSession(server.URL, "tok1", "ref1", time.Second, mock.NewNopLogger())

	ok, err := s.HandleExpiry(context.Background())
	require.NoError(t, err, "a refused refresh is a result, not a transport error")
	assert.False(t, ok)
}

func TestSession_HandleExpiry_NoRefreshToken(t *testing.T) {
	s := NewSession("http://unused", "tok1", "", time.Second, mock.NewNopLogger())

	ok, err := s.HandleExpiry(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSession_ConcurrentExpiriesCollapse(t *testing.T) {
	var refreshes atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok2"})
	}))
	defer server.Close()

	s := NewSession(server.URL, "tok1", "ref1", time.Second, mock.NewNopLogger())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.HandleExpiry(context.Background())
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), refreshes.Load(), "stacked expiries must share one refresh")
}
