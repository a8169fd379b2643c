package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"campus_courier/internal/core"
	"campus_courier/internal/mock"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingNudger struct {
	n atomic.Int32
}

func (c *countingNudger) Nudge() { c.n.Add(1) }

func TestWSURL(t *testing.T) {
	assert.Equal(t, "ws://api.campus.test/ws/orders", wsURL("http://api.campus.test"))
	assert.Equal(t, "wss://api.campus.test/ws/orders", wsURL("https://api.campus.test/"))
}

func TestSubscriber_EventNudgesReconciler(t *testing.T) {
	upgrader := gws.Upgrader{}
	var gotAuth atomic.Value

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ws/orders", r.URL.Path)
		gotAuth.Store(r.Header.Get("Authorization"))

		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.WriteJSON(core.OrderEvent{OrderID: "o1", Status: core.StatusAccepted}))
		// Malformed payload must be dropped without a nudge or a panic.
		require.NoError(t, conn.WriteMessage(gws.TextMessage, []byte("not json")))
		require.NoError(t, conn.WriteJSON(core.OrderEvent{OrderID: "o1", Status: core.StatusPickedUp}))
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	nudger := &countingNudger{}
	sub := NewSubscriber(server.URL, mock.NewTokenSource("t1"), nudger, mock.NewNopLogger())
	require.NoError(t, sub.Start(context.Background()))
	defer func() { _ = sub.Stop() }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && nudger.n.Load() < 2 {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, int32(2), nudger.n.Load(), "one nudge per well-formed event")

	auth, _ := gotAuth.Load().(string)
	assert.True(t, strings.HasPrefix(auth, "Bearer "), "dial must carry the bearer token")
}
