package ws

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ar-scan-go/internal/platform/logging"
)

// Router upgrades HTTP requests to event-stream connections.
type Router struct {
	hub      *Hub
	logger   *logging.Logger
	upgrader *websocket.Upgrader
}

// RouterOptions configures the websocket router.
type RouterOptions struct {
	HandshakeTimeout time.Duration
	CheckOrigin      func(r *http.Request) bool
}

// NewRouter constructs a websocket router.
func NewRouter(hub *Hub, logger *logging.Logger, opts RouterOptions) *Router {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	upgrader := &websocket.Upgrader{
		HandshakeTimeout: timeout,
		CheckOrigin:      opts.CheckOrigin,
	}
	if upgrader.CheckOrigin == nil {
		upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}

	return &Router{
		hub:      hub,
		logger:   logger,
		upgrader: upgrader,
	}
}

// Handle upgrades the HTTP connection and streams events to it until the
// client disconnects.
func (r *Router) Handle(w http.ResponseWriter, req *http.Request) {
	socket, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.ErrorTag(logging.TagWS, "handshake failed: %v", err)
		return
	}

	clientID := uuid.NewString()
	conn := NewConnection(clientID, socket)
	r.hub.Register(conn)
	r.logger.InfoTag(logging.TagWS, "client %s connected from %s", clientID, req.RemoteAddr)

	go conn.writePump()
	go func() {
		err := conn.readPump()
		r.hub.Unregister(clientID)
		_ = conn.Close()
		if err != nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			r.logger.WarnTag(logging.TagWS, "client %s closed: %v", clientID, err)
			return
		}
		r.logger.InfoTag(logging.TagWS, "client %s disconnected", clientID)
	}()
}
