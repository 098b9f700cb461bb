package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mmuslimabdulj/goat-messenger/internal/domain"
	"github.com/mmuslimabdulj/goat-messenger/internal/logger"
)

// Deliverer fans a relayed frame out to the local subscribers of channel
type Deliverer interface {
	DeliverRemote(channel string, data []byte, excludeUserID string) int
}

// Envelope is the wire form of a relayed frame
type Envelope struct {
	Origin  string          `json:"origin"`
	Channel string          `json:"channel"`
	Exclude string          `json:"exclude,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// Config holds Redis connection settings
type Config struct {
	Address  string
	Password string
	DB       int
	Channel  string
}

// RedisRelay shares published frames between server instances over Redis Pub/Sub.
// Each instance ignores the envelopes it published itself.
type RedisRelay struct {
	client     *redis.Client
	channel    string
	instanceID string
	doneCh     chan struct{}
}

// NewRedisRelay connects to Redis and verifies the connection
func NewRedisRelay(ctx context.Context, cfg Config) (*RedisRelay, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisRelay(client, cfg.Channel), nil
}

func newRedisRelay(client *redis.Client, channel string) *RedisRelay {
	if channel == "" {
		channel = "goat-messenger:relay"
	}
	return &RedisRelay{
		client:     client,
		channel:    channel,
		instanceID: domain.NewID(),
		doneCh:     make(chan struct{}),
	}
}

// Publish sends a frame to the other instances
func (r *RedisRelay) Publish(ctx context.Context, channel string, data []byte, excludeUserID string) error {
	payload, err := encode(Envelope{Origin: r.instanceID, Channel: channel, Exclude: excludeUserID, Data: data})
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}

// Done returns a channel that is closed when Run exits
func (r *RedisRelay) Done() <-chan struct{} { return r.doneCh }

// Run delivers frames published by other instances until ctx is done.
// Reconnects on receive errors.
func (r *RedisRelay) Run(ctx context.Context, d Deliverer) {
	defer close(r.doneCh)
	l := logger.L()

	for {
		err := r.runSubscription(ctx, d)
		if ctx.Err() != nil {
			return
		}
		l.Warn().Err(err).Msg("relay subscription lost, reconnecting in 2s")
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (r *RedisRelay) runSubscription(ctx context.Context, d Deliverer) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	// Wait for subscription to be active
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("subscription channel closed")
			}
			r.handle(msg.Payload, d)
		}
	}
}

func (r *RedisRelay) handle(payload string, d Deliverer) {
	env, err := decode(payload)
	if err != nil {
		l := logger.L()
		l.Warn().Err(err).Msg("relay: invalid envelope")
		return
	}
	if env.Origin == r.instanceID {
		return
	}
	d.DeliverRemote(env.Channel, env.Data, env.Exclude)
}

// Close releases the Redis client
func (r *RedisRelay) Close() error {
	return r.client.Close()
}

func encode(env Envelope) ([]byte, error) {
	if env.Channel == "" {
		return nil, errors.New("relay: empty channel")
	}
	if !json.Valid(env.Data) {
		return nil, errors.New("relay: frame is not valid JSON")
	}
	return json.Marshal(env)
}

func decode(payload string) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return Envelope{}, err
	}
	if env.Channel == "" || env.Origin == "" {
		return Envelope{}, errors.New("relay: incomplete envelope")
	}
	return env, nil
}
