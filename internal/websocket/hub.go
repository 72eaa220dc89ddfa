// internal/websocket/hub.go
package websocket

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"nftsub-service/internal/domain/event"
	wstypes "nftsub-service/internal/domain/websocket"
	"nftsub-service/internal/pkg/account"
	"nftsub-service/internal/pkg/jwt"
)

// Hub tracks live connections by account and fans ledger events out to them.
// It implements events.Publisher.
type Hub struct {
	// Registered clients by account
	clients map[account.Address]map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	done       chan struct{}

	handlerRegistry *HandlerRegistry

	jwtVerifier *jwt.Verifier
	isAdmin     account.Predicate
	logger      *zap.Logger
}

// BroadcastMessage targets Accounts (nil means every client) plus, when
// Admins is set, every admin connection.
type BroadcastMessage struct {
	Accounts []account.Address
	Admins   bool
	Channel  wstypes.ChannelType
	Message  *wstypes.WSMessage
}

func NewHub(jwtVerifier *jwt.Verifier, isAdmin account.Predicate, logger *zap.Logger) *Hub {
	return &Hub{
		clients:         make(map[account.Address]map[*Client]bool),
		register:        make(chan *Client),
		unregister:      make(chan *Client),
		broadcast:       make(chan *BroadcastMessage, 256),
		done:            make(chan struct{}),
		handlerRegistry: NewHandlerRegistry(),
		jwtVerifier:     jwtVerifier,
		isAdmin:         isAdmin,
		logger:          logger,
	}
}

// AuthenticateClient validates an access token and returns the connection identity.
func (h *Hub) AuthenticateClient(token string) (*ClientAuth, error) {
	claims, err := h.jwtVerifier.VerifyAccessToken(token)
	if err != nil {
		return nil, err
	}

	acct, err := account.Parse(claims.Account)
	if err != nil {
		return nil, ErrMissingAccount
	}

	return &ClientAuth{
		Account: acct,
		TokenID: claims.ID,
		Roles:   claims.EffectiveRoles(h.isAdmin(acct)),
	}, nil
}

// RegisterHandler registers a message handler. Call before Run.
func (h *Hub) RegisterHandler(handler MessageHandler) {
	h.handlerRegistry.Register(handler)
}

// HandleClientMessage runs the registered handler for msg, if any.
func (h *Hub) HandleClientMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) (bool, error) {
	return h.handlerRegistry.Dispatch(ctx, client, msg)
}

// Register hands a new client to the hub loop.
func (h *Hub) Register(client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

// Unregister removes a client; a no-op once the hub has stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.BroadcastMessage(msg)
		}
	}
}

// Publish delivers a committed ledger event. Plan events go to every client
// on the plans channel; account events go to the accounts involved and to
// admins. It never blocks: a full queue returns ErrQueueFull.
func (h *Hub) Publish(_ context.Context, e event.Event) error {
	msg := &BroadcastMessage{
		Channel: wstypes.ChannelFor(e.Type),
		Message: wstypes.NewEventMessage(e),
	}
	if msg.Channel != wstypes.ChannelPlans {
		msg.Accounts = recipients(e)
		msg.Admins = true
	}
	return h.enqueue(msg)
}

// BroadcastSystemAlert sends alert to every client on the system channel.
func (h *Hub) BroadcastSystemAlert(alert *wstypes.SystemAlertData) error {
	return h.enqueue(&BroadcastMessage{
		Channel: wstypes.ChannelSystem,
		Message: wstypes.NewMessage(wstypes.EventTypeSystemAlert, alert),
	})
}

func (h *Hub) enqueue(msg *BroadcastMessage) error {
	select {
	case <-h.done:
		return ErrHubClosed
	default:
	}

	select {
	case h.broadcast <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// recipients are the actor plus, for auto-renewals, the paying owner.
func recipients(e event.Event) []account.Address {
	out := []account.Address{e.Actor}
	if payer, ok := e.Data["payer"].(string); ok {
		if addr, err := account.Parse(payer); err == nil && !addr.Equal(e.Actor) {
			out = append(out, addr)
		}
	}
	return out
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	acct := client.Account()
	if h.clients[acct] == nil {
		h.clients[acct] = make(map[*Client]bool)
	}
	h.clients[acct][client] = true
	total := h.totalClients()
	h.mu.Unlock()

	h.logger.Info("websocket client connected",
		zap.String("account", acct.String()),
		zap.Int("total", total),
	)

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, map[string]interface{}{
		"account":  acct,
		"roles":    client.auth.Roles,
		"channels": []wstypes.ChannelType{wstypes.ChannelPlans, wstypes.ChannelSubscriptions, wstypes.ChannelPayments, wstypes.ChannelSystem},
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	acct := client.Account()
	clients, ok := h.clients[acct]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}

	delete(clients, client)
	client.Close()
	if len(clients) == 0 {
		delete(h.clients, acct)
	}

	h.logger.Info("websocket client disconnected",
		zap.String("account", acct.String()),
		zap.Int("total", h.totalClients()),
	)
}

func (h *Hub) BroadcastMessage(msg *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	deliver := func(client *Client) {
		if client.IsSubscribed(msg.Channel) {
			client.SendMessage(msg.Message)
		}
	}

	if msg.Accounts == nil {
		for _, clients := range h.clients {
			for client := range clients {
				deliver(client)
			}
		}
		return
	}

	sent := make(map[*Client]bool)
	for _, acct := range msg.Accounts {
		for client := range h.clients[acct] {
			sent[client] = true
			deliver(client)
		}
	}
	if !msg.Admins {
		return
	}
	for _, clients := range h.clients {
		for client := range clients {
			if !sent[client] && client.IsAdmin() {
				deliver(client)
			}
		}
	}
}

func (h *Hub) GetConnectedClients(acct account.Address) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[acct])
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

// IsUserConnected checks if an account has any active connections
func (h *Hub) IsUserConnected(acct account.Address) bool {
	return h.GetConnectedClients(acct) > 0
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	close(h.done)

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			client.Close()
		}
	}
	h.clients = make(map[account.Address]map[*Client]bool)
}
