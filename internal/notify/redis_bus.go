package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/companion-client/internal/platform/logger"
)

// RedisBus publishes notifications to a pub/sub channel so a presenter in
// another process can render them.
type RedisBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
	timeout time.Duration
}

type RedisOptions struct {
	Addr    string
	Channel string
	Timeout time.Duration
}

func NewRedisBus(ctx context.Context, log *logger.Logger, opts RedisOptions) (*RedisBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	ch := strings.TrimSpace(opts.Channel)
	if ch == "" {
		ch = "companion.notifications"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisBus(log, rdb, ch, timeout), nil
}

func newRedisBus(log *logger.Logger, rdb *goredis.Client, channel string, timeout time.Duration) *RedisBus {
	return &RedisBus{
		log:     log.With("component", "RedisNotificationBus"),
		rdb:     rdb,
		channel: channel,
		timeout: timeout,
	}
}

func (b *RedisBus) Publish(ctx context.Context, n Notification) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis notification bus not initialized")
	}
	raw, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// Notify publishes best-effort; failures are logged and never surface to
// the operation that produced the notification.
func (b *RedisBus) Notify(n Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	if err := b.Publish(ctx, n); err != nil {
		b.log.Warn("publish notification failed (ignored)", "kind", n.Kind, "error", err)
	}
}

// Subscribe forwards decoded notifications to onMsg until ctx is done.
func (b *RedisBus) Subscribe(ctx context.Context, onMsg func(Notification)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis notification bus not initialized")
	}
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var n Notification
				if err := json.Unmarshal([]byte(m.Payload), &n); err != nil {
					b.log.Warn("bad notification payload", "error", err)
					continue
				}
				onMsg(n)
			}
		}
	}()
	return nil
}

func (b *RedisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
