// internal/domain/websocket/types.go
package websocket

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"nftsub-service/internal/domain/event"
)

// EventType represents different real-time event types
type EventType string

const (
	// Connection events
	EventTypePing         EventType = "ping"
	EventTypePong         EventType = "pong"
	EventTypeConnected    EventType = "connected"
	EventTypeDisconnected EventType = "disconnected"
	EventTypeError        EventType = "error"

	// Channel management
	EventTypeSubscribe   EventType = "subscribe"
	EventTypeUnsubscribe EventType = "unsubscribe"

	// Subscription queries (client -> server -> client)
	EventTypeSubscriptionStatus EventType = "subscription:status"
	EventTypeSubscriptionList   EventType = "subscription:list"

	// Ledger events pushed to clients (server -> client)
	EventTypeLedger EventType = "ledger:event"

	// System events
	EventTypeSystemAlert EventType = "system:alert"
)

// WSMessage is the universal message format
type WSMessage struct {
	Type      EventType              `json:"type"`
	Data      interface{}            `json:"data,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	ID        string                 `json:"id,omitempty"`
}

// ChannelType names a stream clients can subscribe to.
type ChannelType string

const (
	ChannelPlans         ChannelType = "plans"
	ChannelSubscriptions ChannelType = "subscriptions"
	ChannelPayments      ChannelType = "payments"
	ChannelSystem        ChannelType = "system"
)

// ChannelFor routes a ledger event to its channel by type prefix.
func ChannelFor(t event.Type) ChannelType {
	switch {
	case strings.HasPrefix(string(t), "plan."):
		return ChannelPlans
	case strings.HasPrefix(string(t), "subscription."):
		return ChannelSubscriptions
	case strings.HasPrefix(string(t), "payment."):
		return ChannelPayments
	default:
		return ChannelSystem
	}
}

// IsKnownChannel reports whether c is one of the channels above.
func IsKnownChannel(c ChannelType) bool {
	switch c {
	case ChannelPlans, ChannelSubscriptions, ChannelPayments, ChannelSystem:
		return true
	}
	return false
}

// SubscribeRequest sent by client to subscribe to specific channels
type SubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

// UnsubscribeRequest sent by client to unsubscribe from channels
type UnsubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

// StatusRequest asks for the status view of one token.
type StatusRequest struct {
	TokenID *uint64 `json:"token_id"`
}

// ErrorData for error events
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SystemAlertData for system-wide alerts
type SystemAlertData struct {
	Severity string `json:"severity"` // info, warning, critical
	Title    string `json:"title"`
	Message  string `json:"message"`
}

// Helper to create messages
func NewMessage(eventType EventType, data interface{}) *WSMessage {
	return &WSMessage{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
		ID:        ulid.Make().String(),
	}
}

// NewEventMessage wraps a ledger event, tagging it with its channel.
func NewEventMessage(e event.Event) *WSMessage {
	msg := NewMessage(EventTypeLedger, e)
	msg.Metadata = map[string]interface{}{
		"channel":    ChannelFor(e.Type),
		"event_type": e.Type,
	}
	return msg
}

func (m *WSMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ParseMessage(data []byte) (*WSMessage, error) {
	var msg WSMessage
	err := json.Unmarshal(data, &msg)
	return &msg, err
}
