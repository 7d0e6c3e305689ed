// Package broadcast fans live events out to connected playback surfaces.
// Delivery is best effort: nothing is buffered for absent listeners and a
// slow listener loses events instead of stalling the publisher.
package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/chatsounds/soundboard-server/internal/model"
	redisclient "github.com/chatsounds/soundboard-server/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
	subscriberBuffer  = 64
)

type Event struct {
	ID     string          `json:"id"`
	Kind   model.EventKind `json:"kind"`
	Data   json.RawMessage `json:"data"`
	Origin string          `json:"origin,omitempty"`
}

type Subscriber struct {
	ID        string
	Transport string
	Events    chan Event
	Done      chan struct{}
}

type Broker struct {
	instanceID string
	redis      *redis.Client
	onDrop     func()

	mu   sync.RWMutex
	subs map[*Subscriber]struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

type Option func(*Broker)

// WithRedisRelay shares published events with other server instances
// through Redis pub/sub.
func WithRedisRelay(client *redis.Client) Option {
	return func(b *Broker) { b.redis = client }
}

// WithDropHook is called once for every event a full subscriber misses.
func WithDropHook(fn func()) Option {
	return func(b *Broker) { b.onDrop = fn }
}

func NewBroker(opts ...Option) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Broker{
		instanceID: uuid.NewString(),
		subs:       make(map[*Subscriber]struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.redis != nil {
		ready := make(chan struct{})
		go b.relayFromRedis(ready)
		<-ready
	}
	return b
}

func (b *Broker) Subscribe(transport string) *Subscriber {
	sub := &Subscriber{
		ID:        uuid.NewString(),
		Transport: transport,
		Events:    make(chan Event, subscriberBuffer),
		Done:      make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	count := len(b.subs)
	b.mu.Unlock()

	log.Info().
		Str("subscriberId", sub.ID).
		Str("transport", transport).
		Int("subscriberCount", count).
		Msg("broadcast subscriber added")

	return sub
}

// Unsubscribe is safe to call more than once.
func (b *Broker) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.Done)

	log.Info().
		Str("subscriberId", sub.ID).
		Int("subscriberCount", len(b.subs)).
		Msg("broadcast subscriber removed")
}

// Publish delivers to local subscribers and, with a relay, to other
// instances. Marshalling is the only failure a caller can see; relay
// errors are logged.
func (b *Broker) Publish(ctx context.Context, kind model.EventKind, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	event := Event{
		ID:     uuid.NewString(),
		Kind:   kind,
		Data:   data,
		Origin: b.instanceID,
	}

	b.fanOut(event)

	if b.redis != nil {
		msg, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if err := b.redis.Publish(ctx, redisclient.PlaybackChannel, msg).Err(); err != nil {
			log.Warn().Err(err).Str("kind", string(kind)).Msg("failed to relay event to redis")
		}
	}
	return nil
}

func (b *Broker) relayFromRedis(ready chan<- struct{}) {
	pubsub := b.redis.Subscribe(b.ctx, redisclient.PlaybackChannel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(b.ctx); err != nil {
		log.Error().Err(err).Msg("redis pubsub subscription failed")
	}
	close(ready)

	log.Debug().Str("channel", redisclient.PlaybackChannel).Msg("redis pubsub subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal relayed event")
				continue
			}
			if event.Origin == b.instanceID {
				continue
			}
			b.fanOut(event)
		}
	}
}

func (b *Broker) fanOut(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub.Events <- event:
		default:
			if b.onDrop != nil {
				b.onDrop()
			}
			log.Warn().
				Str("subscriberId", sub.ID).
				Str("kind", string(event.Kind)).
				Msg("subscriber buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		close(sub.Done)
	}
	b.subs = make(map[*Subscriber]struct{})
}

func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
