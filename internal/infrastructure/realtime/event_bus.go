package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"reelgate/internal/core/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const ChangesChannel = "reelgate:changes"

type envelope struct {
	InstanceID string             `json:"instance_id"`
	SentAt     time.Time          `json:"sent_at"`
	Event      domain.ChangeEvent `json:"event"`
}

// EventBus shares change events between instances over Redis pub/sub.
type EventBus struct {
	client     *redis.Client
	instanceID string
	channel    string
	logger     *zap.SugaredLogger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

func NewEventBus(client *redis.Client, instanceID string, logger *zap.SugaredLogger) *EventBus {
	return &EventBus{
		client:     client,
		instanceID: instanceID,
		channel:    ChangesChannel,
		logger:     logger,
	}
}

func (eb *EventBus) Publish(ctx context.Context, event domain.ChangeEvent) error {
	data, err := json.Marshal(envelope{
		InstanceID: eb.instanceID,
		SentAt:     time.Now().UTC(),
		Event:      event,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := eb.client.Publish(ctx, eb.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	eb.logger.Debugw("published change",
		"collection", event.Collection,
		"doc_id", event.DocID,
		"type", event.Type,
	)
	return nil
}

// Subscribe waits for Redis to confirm the subscription and then calls
// handler for every event published by other instances until ctx ends or
// Close is called.
func (eb *EventBus) Subscribe(ctx context.Context, handler func(domain.ChangeEvent)) error {
	eb.mu.Lock()
	if eb.pubsub != nil {
		eb.mu.Unlock()
		return fmt.Errorf("already subscribed")
	}
	pubsub := eb.client.Subscribe(ctx, eb.channel)
	eb.pubsub = pubsub
	eb.done = make(chan struct{})
	eb.mu.Unlock()

	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", eb.channel, err)
	}

	go eb.run(ctx, pubsub.Channel(), handler)
	return nil
}

func (eb *EventBus) run(ctx context.Context, ch <-chan *redis.Message, handler func(domain.ChangeEvent)) {
	defer close(eb.done)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				eb.logger.Warnw("failed to unmarshal change",
					"error", err,
					"payload", msg.Payload,
				)
				continue
			}

			if env.InstanceID == eb.instanceID {
				continue
			}
			if !env.Event.Collection.Valid() {
				eb.logger.Warnw("ignoring change for unknown collection", "collection", env.Event.Collection)
				continue
			}

			handler(env.Event)
		}
	}
}

func (eb *EventBus) Close() error {
	eb.mu.Lock()
	pubsub, done := eb.pubsub, eb.done
	eb.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	<-done
	return err
}
