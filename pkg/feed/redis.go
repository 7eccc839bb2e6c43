package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"

	"anonchat/pkg/logger"
	"anonchat/pkg/models"
)

// envelope wraps a local event for the shared Redis channel. Origin lets a
// node skip its own publishes when they come back around.
type envelope struct {
	Origin string       `json:"origin"`
	Topic  string       `json:"topic"`
	Event  models.Event `json:"event"`
}

// RedisBridge mirrors broker publishes onto a Redis pub/sub channel and
// relays inbound channel traffic into the local broker, so several server
// nodes share one logical feed.
type RedisBridge struct {
	rdb     *redis.Client
	broker  *Broker
	channel string
	origin  string
	// out decouples the broker's mirror hook from the Redis round trip;
	// the hook must never block the publisher.
	out    chan []byte
	cancel context.CancelFunc
}

// outboundDepth bounds the mirror queue; publishes past it are dropped.
const outboundDepth = 256

// NewRedisBridge connects to Redis and wires the broker's mirror hook.
// channel defaults to "anonchat:feed".
func NewRedisBridge(ctx context.Context, b *Broker, addr, password string, db int, channel string) (*RedisBridge, error) {
	if channel == "" {
		channel = "anonchat:feed"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	host, _ := os.Hostname()
	br := &RedisBridge{
		rdb:     rdb,
		broker:  b,
		channel: channel,
		origin:  fmt.Sprintf("%s-%d", host, os.Getpid()),
		out:     make(chan []byte, outboundDepth),
	}
	b.SetMirror(br.publish)

	runCtx, cancel := context.WithCancel(ctx)
	br.cancel = cancel
	go br.send(runCtx)
	go br.relay(runCtx)
	logger.Info("redis_bridge_started", "addr", addr, "channel", channel)
	return br, nil
}

// publish is the broker mirror hook. It only enqueues; the Redis round trip
// happens on the send goroutine so a slow or down Redis never stalls local
// delivery. Fire-and-forget: on a full queue the envelope is dropped.
func (br *RedisBridge) publish(topic string, ev models.Event) {
	b, err := json.Marshal(envelope{Origin: br.origin, Topic: topic, Event: ev})
	if err != nil {
		return
	}
	select {
	case br.out <- b:
	default:
		logger.Warn("redis_mirror_queue_full", "topic", topic)
	}
}

func (br *RedisBridge) send(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-br.out:
			if err := br.rdb.Publish(ctx, br.channel, b).Err(); err != nil {
				logger.Warn("redis_publish_failed", "error", err)
			}
		}
	}
}

func (br *RedisBridge) relay(ctx context.Context) {
	sub := br.rdb.Subscribe(ctx, br.channel)
	defer sub.Close()
	ch := sub.Channel()
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
				logger.Warn("redis_relay_bad_payload", "error", err)
				continue
			}
			if env.Origin == br.origin {
				continue
			}
			br.broker.deliver(env.Topic, env.Event)
		}
	}
}

// Close stops the relay and releases the Redis connection.
func (br *RedisBridge) Close() error {
	if br.cancel != nil {
		br.cancel()
	}
	br.broker.SetMirror(nil)
	return br.rdb.Close()
}
