package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nftsub-service/internal/domain/event"
	wstypes "nftsub-service/internal/domain/websocket"
	"nftsub-service/internal/pkg/account"
	"nftsub-service/internal/pkg/jwt"
	"nftsub-service/internal/pkg/money"
)

var (
	alice  = account.MustParse("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	bob    = account.MustParse("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	admin  = account.MustParse("0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb")
	keeper = account.MustParse("0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB")
)

func newTestHub() *Hub {
	return NewHub(nil, account.AnyOf(admin), zap.NewNop())
}

// attach registers a connection-less client subscribed to every channel.
func attach(h *Hub, acct account.Address, roles ...string) *Client {
	c := NewClient(h, nil, &ClientAuth{Account: acct, Roles: roles})
	for _, ch := range []wstypes.ChannelType{wstypes.ChannelPlans, wstypes.ChannelSubscriptions, wstypes.ChannelPayments, wstypes.ChannelSystem} {
		c.Subscribe(ch)
	}
	h.mu.Lock()
	if h.clients[acct] == nil {
		h.clients[acct] = make(map[*Client]bool)
	}
	h.clients[acct][c] = true
	h.mu.Unlock()
	return c
}

func drain(c *Client) []wstypes.WSMessage {
	var out []wstypes.WSMessage
	for {
		select {
		case data := <-c.send:
			var msg wstypes.WSMessage
			if err := json.Unmarshal(data, &msg); err == nil {
				out = append(out, msg)
			}
		default:
			return out
		}
	}
}

func TestPublishRoutesByChannel(t *testing.T) {
	h := newTestHub()
	a := attach(h, alice)
	b := attach(h, bob)
	adm := attach(h, admin, jwt.RoleAdmin)

	ctx := context.Background()
	now := time.Now()

	// Plan events reach everyone.
	require.NoError(t, h.Publish(ctx, event.New(event.TypePlanCreated, admin, 0, now).WithPlan(1)))
	h.BroadcastMessage(<-h.broadcast)
	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(b), 1)
	assert.Len(t, drain(adm), 1)

	// Account events reach the actor and admins only.
	require.NoError(t, h.Publish(ctx, event.New(event.TypeSubscriptionCreated, alice, money.MustParse("29.99"), now).WithToken(0)))
	h.BroadcastMessage(<-h.broadcast)
	msgs := drain(a)
	require.Len(t, msgs, 1)
	assert.Equal(t, wstypes.EventTypeLedger, msgs[0].Type)
	assert.Equal(t, string(wstypes.ChannelSubscriptions), msgs[0].Metadata["channel"])
	assert.Empty(t, drain(b))
	assert.Len(t, drain(adm), 1)
}

func TestAutoRenewalReachesPayer(t *testing.T) {
	h := newTestHub()
	a := attach(h, alice)
	k := attach(h, keeper)

	e := event.New(event.TypeAutoRenewed, keeper, money.MustParse("29.99"), time.Now()).
		WithToken(3).
		With("payer", alice.String())
	require.NoError(t, h.Publish(context.Background(), e))
	h.BroadcastMessage(<-h.broadcast)

	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(k), 1)
}

func TestUnsubscribedChannelIsSkipped(t *testing.T) {
	h := newTestHub()
	a := attach(h, alice)
	a.Unsubscribe(wstypes.ChannelPayments)

	require.NoError(t, h.Publish(context.Background(), event.New(event.TypePaymentApproved, alice, 1, time.Now())))
	h.BroadcastMessage(<-h.broadcast)
	assert.Empty(t, drain(a))
}

func TestSubscribeRejectsUnknownChannel(t *testing.T) {
	c := NewClient(newTestHub(), nil, &ClientAuth{Account: alice})
	assert.False(t, c.Subscribe("audit"))
	assert.True(t, c.Subscribe(wstypes.ChannelPlans))
	assert.True(t, c.IsSubscribed(wstypes.ChannelPlans))
}

func TestPublishAfterShutdown(t *testing.T) {
	h := newTestHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	err := h.Publish(context.Background(), event.New(event.TypePlanCreated, admin, 0, time.Now()))
	assert.ErrorIs(t, err, ErrHubClosed)
	assert.ErrorIs(t, h.Register(NewClient(h, nil, &ClientAuth{Account: alice})), ErrHubClosed)
}

func TestPublishQueueFull(t *testing.T) {
	h := newTestHub()
	e := event.New(event.TypePlanCreated, admin, 0, time.Now())
	for i := 0; i < cap(h.broadcast); i++ {
		require.NoError(t, h.Publish(context.Background(), e))
	}
	assert.ErrorIs(t, h.Publish(context.Background(), e), ErrQueueFull)
}
