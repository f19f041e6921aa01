package notify

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"creditflow-backend/internal/domain/event"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ChannelPrefix namespaces notification channels in Redis; the group name
// follows it.
const ChannelPrefix = "creditflow:notify:"

func channelFor(group string) string { return ChannelPrefix + group }

type envelope struct {
	Group string      `json:"group"`
	Event event.Event `json:"event"`
}

// RedisTransport publishes through Redis so that every instance's Relay can
// hand the event to its locally connected subscribers.
type RedisTransport struct {
	rdb *redis.Client
}

var _ Transport = (*RedisTransport)(nil)

func NewRedisTransport(rdb *redis.Client) *RedisTransport { return &RedisTransport{rdb: rdb} }

func encodeEnvelope(group string, ev event.Event) ([]byte, error) {
	return json.Marshal(envelope{Group: group, Event: ev})
}

func (t *RedisTransport) Publish(ctx context.Context, group string, ev event.Event) error {
	payload, err := encodeEnvelope(group, ev)
	if err != nil {
		return err
	}
	return t.rdb.Publish(ctx, channelFor(group), payload).Err()
}

// Relay forwards every notification published in Redis into the local Hub.
type Relay struct {
	rdb     *redis.Client
	hub     *Hub
	log     *zap.Logger
	backoff Backoff
	sleep   func(ctx context.Context, d time.Duration) error
	ready   func()
}

func NewRelay(rdb *redis.Client, hub *Hub, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{rdb: rdb, hub: hub, log: log, backoff: DefaultBackoff, sleep: sleepCtx}
}

// Run subscribes until ctx is done. The first connect is immediate; after a
// drop, retry n waits backoff.Delay(n). The count restarts after every
// successful subscription.
func (r *Relay) Run(ctx context.Context) error {
	attempt := 0
	for {
		err := r.session(ctx, func() { attempt = 0 })
		if ctx.Err() != nil {
			return nil
		}
		wait := r.backoff.Delay(attempt)
		attempt++
		r.log.Warn("notify: relay disconnected",
			zap.Error(err), zap.Int("attempt", attempt), zap.Duration("retry_in", wait))
		if err := r.sleep(ctx, wait); err != nil {
			return nil
		}
	}
}

func (r *Relay) session(ctx context.Context, subscribed func()) error {
	ps := r.rdb.PSubscribe(ctx, ChannelPrefix+"*")
	defer ps.Close()

	// first reply confirms the subscription
	if _, err := ps.Receive(ctx); err != nil {
		return err
	}
	subscribed()
	if r.ready != nil {
		r.ready()
	}
	r.log.Info("notify: relay subscribed", zap.String("pattern", ChannelPrefix+"*"))

	for {
		msg, err := ps.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			r.log.Warn("notify: malformed envelope", zap.String("channel", msg.Channel), zap.Error(err))
			continue
		}
		if env.Group == "" {
			env.Group = strings.TrimPrefix(msg.Channel, ChannelPrefix)
		}
		r.hub.Deliver(env.Group, env.Event)
	}
}
