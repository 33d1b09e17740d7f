package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"ar-scan-go/internal/domain/eventbus"
	platformtesting "ar-scan-go/internal/platform/testing"
)

func dial(t *testing.T, bus *eventbus.Bus) (*Hub, *websocket.Conn) {
	t.Helper()
	logger := platformtesting.SetupTestLogger(t)
	hub := NewHub(bus, logger)
	router := NewRouter(hub, logger, RouterOptions{})
	srv := httptest.NewServer(http.HandlerFunc(router.Handle))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)
	return hub, client
}

func TestHub_BroadcastsEvents(t *testing.T) {
	bus := eventbus.New()
	_, client := dial(t, bus)

	bus.Publish(eventbus.Event{ScanID: 7, Type: eventbus.EventObjectRecognized, State: "generating", Label: "cup", DisplayName: "Cup"})

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := client.ReadMessage()
	require.NoError(t, err)

	var got eventbus.Event
	require.NoError(t, sonic.ConfigStd.Unmarshal(frame, &got))
	require.Equal(t, uint64(7), got.ScanID)
	require.Equal(t, eventbus.EventObjectRecognized, got.Type)
	require.Equal(t, "Cup", got.DisplayName)
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub, client := dial(t, nil)

	require.NoError(t, client.Close())
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_CloseAll(t *testing.T) {
	bus := eventbus.New()
	hub, client := dial(t, bus)

	hub.CloseAll(nil)
	require.Equal(t, 0, hub.Count())

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := client.ReadMessage()
	require.Error(t, err)

	bus.Publish(eventbus.Event{Type: eventbus.EventStateChanged})
}

func TestConnection_EnqueueAfterClose(t *testing.T) {
	hub, _ := dial(t, nil)

	var conn *Connection
	hub.connections.Range(func(_, value any) bool {
		conn = value.(*Connection)
		return false
	})
	require.NotNil(t, conn)
	require.True(t, conn.Enqueue([]byte("{}")))

	require.NoError(t, conn.Close())
	require.True(t, conn.IsClosed())
	require.False(t, conn.Enqueue([]byte("{}")))
	require.NoError(t, conn.Close())
}
