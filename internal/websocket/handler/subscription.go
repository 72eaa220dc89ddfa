// internal/websocket/handler/subscription.go
package handlers

import (
	"context"
	"fmt"

	"nftsub-service/internal/domain/subscription"
	wstypes "nftsub-service/internal/domain/websocket"
	"nftsub-service/internal/pkg/account"
	ws "nftsub-service/internal/websocket"
)

// StatusReader is the read side of the subscription engine.
type StatusReader interface {
	View(ctx context.Context, tokenID uint64) (*subscription.View, error)
	UserViews(ctx context.Context, owner account.Address) ([]subscription.View, error)
}

// SubscriptionHandler answers status queries over the socket.
type SubscriptionHandler struct {
	reader StatusReader
}

func NewSubscriptionHandler(reader StatusReader) *SubscriptionHandler {
	return &SubscriptionHandler{reader: reader}
}

// SupportedEvents returns events this handler supports
func (h *SubscriptionHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{
		wstypes.EventTypeSubscriptionStatus,
		wstypes.EventTypeSubscriptionList,
	}
}

func (h *SubscriptionHandler) HandleMessage(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	switch msg.Type {
	case wstypes.EventTypeSubscriptionStatus:
		return h.handleStatus(ctx, client, msg)
	case wstypes.EventTypeSubscriptionList:
		return h.handleList(ctx, client)
	default:
		return fmt.Errorf("unsupported event type: %s", msg.Type)
	}
}

// handleStatus returns the status view of one token. Token records are public.
func (h *SubscriptionHandler) handleStatus(ctx context.Context, client *ws.Client, msg *wstypes.WSMessage) error {
	var req wstypes.StatusRequest
	if err := ws.MapToStruct(msg.Data, &req); err != nil {
		return fmt.Errorf("invalid status request: %w", err)
	}
	if req.TokenID == nil {
		return fmt.Errorf("token_id is required")
	}

	view, err := h.reader.View(ctx, *req.TokenID)
	if err != nil {
		return err
	}

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeSubscriptionStatus, view))
	return nil
}

// handleList returns every subscription minted to the connected account.
func (h *SubscriptionHandler) handleList(ctx context.Context, client *ws.Client) error {
	views, err := h.reader.UserViews(ctx, client.Account())
	if err != nil {
		return err
	}

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeSubscriptionList, map[string]interface{}{
		"subscriptions": views,
		"count":         len(views),
	}))
	return nil
}
