package ws

import (
	"sync"

	"github.com/bytedance/sonic"

	"ar-scan-go/internal/domain/eventbus"
	"ar-scan-go/internal/platform/logging"
)

// Hub fans scan events out to every connected websocket client.
type Hub struct {
	logger      *logging.Logger
	connections sync.Map // map[string]*Connection
	unsubscribe func()
}

// NewHub subscribes to bus and starts broadcasting its events. bus may be nil
// for a hub that only tracks connections.
func NewHub(bus *eventbus.Bus, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	h := &Hub{logger: logger}
	if bus != nil {
		h.unsubscribe = bus.Subscribe(h.Broadcast)
	}
	return h
}

// Register adds a connection to the hub.
func (h *Hub) Register(conn *Connection) {
	if conn == nil {
		return
	}
	h.connections.Store(conn.ID(), conn)
}

// Unregister removes the connection from the hub.
func (h *Hub) Unregister(id string) {
	if id == "" {
		return
	}
	h.connections.Delete(id)
}

// Broadcast encodes e and queues it on every connection. It never blocks:
// clients whose buffer is full are disconnected.
func (h *Hub) Broadcast(e eventbus.Event) {
	frame, err := sonic.ConfigStd.Marshal(e)
	if err != nil {
		h.logger.WarnTag(logging.TagWS, "encode event failed: %v", err)
		return
	}
	h.connections.Range(func(key, value any) bool {
		conn, ok := value.(*Connection)
		if !ok {
			return true
		}
		if !conn.Enqueue(frame) {
			h.logger.WarnTag(logging.TagWS, "client %s dropped: %v", conn.ID(), ErrSlowClient)
			h.connections.Delete(key)
			go conn.Close()
		}
		return true
	})
}

// CloseAll stops broadcasting and closes every connection.
func (h *Hub) CloseAll(reason error) {
	if reason == nil {
		reason = ErrSessionShutdown
	}
	if h.unsubscribe != nil {
		h.unsubscribe()
	}

	h.connections.Range(func(key, value any) bool {
		if conn, ok := value.(*Connection); ok {
			h.logger.DebugTag(logging.TagWS, "closing client %s: %v", conn.ID(), reason)
			_ = conn.Close()
		}
		h.connections.Delete(key)
		return true
	})
}

// Count exposes the number of active websocket connections.
func (h *Hub) Count() (clients int) {
	h.connections.Range(func(key, value any) bool {
		clients++
		return true
	})
	return clients
}
