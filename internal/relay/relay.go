// Package relay shares tenant fan-out between server processes over Redis pub/sub.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MarceloDuretti/Financeiro-sub001/internal/realtime"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultChannel = "financeiro:realtime"
	publishTimeout = 2 * time.Second
)

// Envelope is what travels on the Redis channel. Frame is the already
// encoded payload, forwarded to local sockets untouched.
type Envelope struct {
	Origin   string          `json:"origin"`
	TenantID string          `json:"tenantId"`
	Frame    json.RawMessage `json:"frame"`
}

// Relay delivers to its local registry immediately and publishes the same
// payload for peer processes. Envelopes it published itself are ignored on receipt.
type Relay struct {
	client  *redis.Client
	channel string
	local   realtime.Fanout
	origin  string
	logger  *zap.Logger
}

func New(client *redis.Client, channel string, local realtime.Fanout, logger *zap.Logger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		client:  client,
		channel: channel,
		local:   local,
		origin:  uuid.NewString(),
		logger:  logger.Named("relay"),
	}
}

// Connect parses a redis:// or rediss:// URL and checks the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Broadcast implements realtime.Fanout. The count covers local sockets only.
func (r *Relay) Broadcast(tenantID string, payload []byte) int {
	sent := r.local.Broadcast(tenantID, payload)

	env, err := json.Marshal(Envelope{Origin: r.origin, TenantID: tenantID, Frame: payload})
	if err != nil {
		r.logger.Error("encode envelope", zap.Error(err))
		return sent
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, env).Err(); err != nil {
		r.logger.Warn("redis publish failed",
			zap.String("channel", r.channel),
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
	}
	return sent
}

// Run forwards peer envelopes to the local registry until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed before reporting readiness.
	if _, err := pubsub.Receive(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.logger.Info("relay subscribed", zap.String("channel", r.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *Relay) handle(raw string) int {
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		r.logger.Warn("dropping malformed envelope", zap.Error(err))
		return 0
	}
	if env.Origin == r.origin {
		return 0
	}
	if env.TenantID == "" || len(env.Frame) == 0 {
		r.logger.Warn("dropping incomplete envelope", zap.String("origin", env.Origin))
		return 0
	}
	return r.local.Broadcast(env.TenantID, env.Frame)
}

var _ realtime.Fanout = (*Relay)(nil)
