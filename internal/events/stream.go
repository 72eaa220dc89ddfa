// internal/events/stream.go
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"nftsub-service/internal/domain/event"
)

const DefaultStream = "subscription:events"

// StreamPublisher appends events to a capped Redis stream for indexers.
type StreamPublisher struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

func NewStreamPublisher(client redis.Cmdable, stream string, maxLen int64) *StreamPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *StreamPublisher) Publish(ctx context.Context, e event.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"id":      e.ID,
			"type":    string(e.Type),
			"payload": payload,
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to append to stream %s: %w", p.stream, err)
	}
	return nil
}

// Read returns up to count events after the given stream entry id, and the
// id of the last entry read. An empty or "0" id reads from the start.
func (p *StreamPublisher) Read(ctx context.Context, after string, count int64) ([]event.Event, string, error) {
	start := "-"
	if after != "" && after != "0" {
		start = "(" + after
	}

	res, err := p.client.XRangeN(ctx, p.stream, start, "+", count).Result()
	if err != nil {
		return nil, after, fmt.Errorf("failed to read stream %s: %w", p.stream, err)
	}

	out := make([]event.Event, 0, len(res))
	last := after
	for _, msg := range res {
		last = msg.ID
		raw, ok := msg.Values["payload"].(string)
		if !ok {
			continue
		}
		var e event.Event
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, after, fmt.Errorf("failed to decode stream entry %s: %w", msg.ID, err)
		}
		out = append(out, e)
	}
	return out, last, nil
}
