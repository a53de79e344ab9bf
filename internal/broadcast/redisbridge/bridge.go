// Package redisbridge relays broadcast frames between service instances over
// Redis pub/sub, so a subscriber connected to any replica sees every event.
package redisbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"service-delivery-tracking/internal/apperr"
	"service-delivery-tracking/internal/broadcast"
	"service-delivery-tracking/internal/domain"
	"service-delivery-tracking/internal/logx"
)

// Envelope is the message published on the Redis channel.
type Envelope struct {
	Groups  []string        `json:"groups"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Sink receives frames relayed from the channel.
type Sink interface {
	PublishRaw(keys []string, typ domain.EventType, msg []byte) int
}

// Bridge publishes events to Redis and relays the channel into a local Sink.
type Bridge struct {
	client  redis.UniversalClient
	channel string
	sink    Sink
	logger  logx.Logger
}

// NewClient creates a go-redis client for addr.
func NewClient(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password})
}

// New creates a Bridge. sink may be nil for publish-only processes (the worker).
func New(client redis.UniversalClient, channel string, sink Sink, logger logx.Logger) *Bridge {
	return &Bridge{client: client, channel: channel, sink: sink, logger: logger}
}

// PublishAll implements tracking.Publisher.
func (b *Bridge) PublishAll(ctx context.Context, groups []string, ev domain.Event) error {
	msg, err := broadcast.Encode(ev)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrTransport, err)
	}
	raw, err := json.Marshal(Envelope{Groups: groups, Type: string(ev.Type), Payload: msg})
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrTransport, err)
	}
	if err := b.client.Publish(ctx, b.channel, raw).Err(); err != nil {
		return fmt.Errorf("%w: redis publish: %v", apperr.ErrTransport, err)
	}
	return nil
}

// Run relays the channel into the sink until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	if b.sink == nil {
		return errors.New("redis bridge: no sink to relay into")
	}
	sub := b.client.Subscribe(ctx, b.channel)
	defer func() {
		if err := sub.Close(); err != nil {
			b.logger.Warn("redis unsubscribe failed", logx.Err(err))
		}
	}()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %q: %w", b.channel, err)
	}
	b.logger.Info("redis bridge subscribed", logx.String("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			b.relay(m.Payload)
		}
	}
}

func (b *Bridge) relay(payload string) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.logger.Warn("redis bridge: bad envelope", logx.Err(err))
		return
	}
	if len(env.Groups) == 0 || len(env.Payload) == 0 {
		b.logger.Warn("redis bridge: empty envelope")
		return
	}
	b.sink.PublishRaw(env.Groups, domain.EventType(env.Type), env.Payload)
}

// Close closes the underlying client.
func (b *Bridge) Close() error {
	return b.client.Close()
}
