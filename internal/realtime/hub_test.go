package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *Hub, userID string, streams []string) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(userID, streams, w, r)
	}))
	t.Cleanup(server.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHubBroadcastReachesSubscribers(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "user-1", []string{StreamBaskets})

	// Subscription happens during Serve; give the server goroutine a beat.
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.subscriptions[StreamBaskets]) == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.BroadcastStream(StreamBaskets, Message{Event: EventBasketUpdated, Data: map[string]any{"basket_id": "b-1"}})

	msg := readMessage(t, conn)
	require.Equal(t, StreamBaskets, msg.Stream)
	require.Equal(t, EventBasketUpdated, msg.Event)
}

func TestHubIgnoresUnknownStreams(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "user-1", []string{"nonsense", StreamAlerts})

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.subscriptions[StreamAlerts]) == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.mu.RLock()
	_, subscribed := hub.subscriptions["nonsense"]
	hub.mu.RUnlock()
	require.False(t, subscribed)

	hub.BroadcastStream(StreamAlerts, Message{Event: EventAlertRaised})
	msg := readMessage(t, conn)
	require.Equal(t, StreamAlerts, msg.Stream)
}

func TestHubControlMessagesAdjustSubscriptions(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "user-1", nil)

	require.NoError(t, conn.WriteJSON(controlMessage{Action: "subscribe", Streams: []string{StreamTelemetry}}))

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.subscriptions[StreamTelemetry]) == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.BroadcastStream(StreamTelemetry, Message{Event: EventTelemetryReport})
	msg := readMessage(t, conn)
	require.Equal(t, StreamTelemetry, msg.Stream)

	require.NoError(t, conn.WriteJSON(controlMessage{Action: "unsubscribe", Streams: []string{StreamTelemetry}}))
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		_, ok := hub.subscriptions[StreamTelemetry]
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHubBroadcastToUserTargetsOnlyThatUser(t *testing.T) {
	hub := NewHub()
	alice := dialHub(t, hub, "alice", []string{StreamOrders})
	bob := dialHub(t, hub, "bob", []string{StreamOrders})

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.subscriptions[StreamOrders]) == 2
	}, 2*time.Second, 10*time.Millisecond)

	hub.BroadcastToUser(StreamOrders, "alice", Message{Event: EventOrderStatus})

	msg := readMessage(t, alice)
	require.Equal(t, EventOrderStatus, msg.Event)

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	var unexpected Message
	err := bob.ReadJSON(&unexpected)
	require.Error(t, err)
}
