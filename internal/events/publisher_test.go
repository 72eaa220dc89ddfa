package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"nftsub-service/internal/domain/event"
	"nftsub-service/internal/pkg/account"
	"nftsub-service/internal/pkg/money"
)

type sinkFunc func(ctx context.Context, e event.Event) error

func (f sinkFunc) Publish(ctx context.Context, e event.Event) error { return f(ctx, e) }

func TestMultiSwallowsSinkErrors(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	var got []event.Event

	m := NewMulti(zap.New(core),
		sinkFunc(func(context.Context, event.Event) error { return errors.New("redis down") }),
		sinkFunc(func(_ context.Context, e event.Event) error { got = append(got, e); return nil }),
	)

	e := event.New(event.TypeSubscriptionCreated, account.Address("0xabc"), money.Unit, time.Now()).WithToken(0)
	require.NoError(t, m.Publish(context.Background(), e))

	require.Len(t, got, 1)
	assert.Equal(t, e.ID, got[0].ID)
	assert.Equal(t, 1, logs.FilterMessage("failed to publish event").Len())
}

func TestLogPublisherFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := NewLogPublisher(zap.New(core))

	e := event.New(event.TypeSubscriptionCanceled, account.Address("0xabc"), 42, time.Now()).
		WithToken(7).
		WithPlan(1).
		With("refund", uint64(42))
	require.NoError(t, p.Publish(context.Background(), e))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "subscription.cancelled", fields["type"])
	assert.Equal(t, uint64(7), fields["token_id"])
	assert.Equal(t, uint64(1), fields["plan_id"])
}
