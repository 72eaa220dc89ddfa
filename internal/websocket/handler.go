// internal/websocket/handler.go
package websocket

import (
	"context"
	"fmt"

	wstypes "nftsub-service/internal/domain/websocket"
)

// MessageHandler answers the client message types it lists.
type MessageHandler interface {
	HandleMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) error
	SupportedEvents() []wstypes.EventType
}

// HandlerRegistry routes client messages by type. It is filled before the hub
// starts serving and read-only afterwards.
type HandlerRegistry struct {
	handlers map[wstypes.EventType]MessageHandler
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[wstypes.EventType]MessageHandler),
	}
}

// Register claims every type handler supports. Claiming a type twice panics.
func (r *HandlerRegistry) Register(handler MessageHandler) {
	for _, eventType := range handler.SupportedEvents() {
		if _, taken := r.handlers[eventType]; taken {
			panic(fmt.Sprintf("websocket: duplicate handler for %q", eventType))
		}
		r.handlers[eventType] = handler
	}
}

// Dispatch runs the handler for msg.Type and reports whether one existed.
func (r *HandlerRegistry) Dispatch(ctx context.Context, client *Client, msg *wstypes.WSMessage) (bool, error) {
	handler, ok := r.handlers[msg.Type]
	if !ok {
		return false, nil
	}
	return true, handler.HandleMessage(ctx, client, msg)
}
