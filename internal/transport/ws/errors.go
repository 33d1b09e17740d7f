package ws

import "errors"

var (
	// ErrSessionShutdown is emitted when the server closes every client.
	ErrSessionShutdown = errors.New("websocket session shutdown")
	// ErrSlowClient is used when a client's send buffer overflowed.
	ErrSlowClient = errors.New("websocket client too slow")
)
