// internal/events/publisher.go
package events

import (
	"context"

	"go.uber.org/zap"

	"nftsub-service/internal/domain/event"
)

// Publisher delivers committed events. Implementations must not block the
// caller for long; the command has already succeeded.
type Publisher interface {
	Publish(ctx context.Context, e event.Event) error
}

// Multi fans an event out to every sink and logs the ones that fail.
type Multi struct {
	sinks  []Publisher
	logger *zap.Logger
}

func NewMulti(logger *zap.Logger, sinks ...Publisher) *Multi {
	return &Multi{sinks: sinks, logger: logger}
}

// Publish never returns an error: a failed sink must not fail a committed command.
func (m *Multi) Publish(ctx context.Context, e event.Event) error {
	for _, s := range m.sinks {
		if err := s.Publish(ctx, e); err != nil {
			m.logger.Warn("failed to publish event",
				zap.String("event_id", e.ID),
				zap.String("type", string(e.Type)),
				zap.Error(err),
			)
		}
	}
	return nil
}

// LogPublisher writes every event as a structured log line.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, e event.Event) error {
	fields := []zap.Field{
		zap.String("event_id", e.ID),
		zap.String("type", string(e.Type)),
		zap.String("actor", e.Actor.String()),
		zap.Uint64("amount", uint64(e.Amount)),
		zap.Time("timestamp", e.Timestamp),
	}
	if e.TokenID != nil {
		fields = append(fields, zap.Uint64("token_id", *e.TokenID))
	}
	if e.PlanID != nil {
		fields = append(fields, zap.Uint64("plan_id", *e.PlanID))
	}
	if len(e.Data) > 0 {
		fields = append(fields, zap.Any("data", e.Data))
	}

	p.logger.Info("event", fields...)
	return nil
}
