// internal/websocket/errors.go
package websocket

import "errors"

var (
	ErrMissingAccount = errors.New("token carries no account")
	ErrHubClosed      = errors.New("websocket hub is closed")
	ErrQueueFull      = errors.New("websocket broadcast queue is full")
)
