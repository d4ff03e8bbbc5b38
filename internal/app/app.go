package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/companion-client/internal/jobclient"
	"github.com/yungbote/companion-client/internal/lifecycle"
	"github.com/yungbote/companion-client/internal/notify"
	"github.com/yungbote/companion-client/internal/observability"
	"github.com/yungbote/companion-client/internal/platform/logger"
)

// Ports are the presentation hooks the runtime hands to the orchestrator.
type Ports struct {
	Decider   lifecycle.Decider
	Navigator lifecycle.Navigator
	Indicator lifecycle.Indicator
	// Notifier receives every notification. When nil, notifications are
	// buffered in Runtime.Sink for the presenter to drain.
	Notifier notify.Notifier
}

type Runtime struct {
	Log          *logger.Logger
	Cfg          Config
	Client       *jobclient.Client
	Orchestrator *lifecycle.Orchestrator
	// Sink is set only when no Notifier port was supplied.
	Sink *notify.ChannelSink

	bus          *notify.RedisBus
	shutdownOTel func(context.Context) error
}

func NewRuntime(ctx context.Context, cfg Config, log *logger.Logger, ports Ports) (*Runtime, error) {
	otelCfg := observability.OtelConfigFromEnv("companion-client")
	otelCfg.Enabled = cfg.OTel
	shutdown := observability.InitOTel(ctx, log, otelCfg)

	client, err := jobclient.New(jobclient.Options{
		BaseURL: cfg.BaseURL,
		Token:   cfg.Token,
		Timeout: cfg.Timeout,
		Logger:  log,
	})
	if err != nil {
		return nil, fmt.Errorf("init job client: %w", err)
	}

	var sink *notify.ChannelSink
	fan := notify.Fanout{ports.Notifier}
	if ports.Notifier == nil {
		sink = notify.NewChannelSink(64, log)
		fan = notify.Fanout{sink}
	}

	var bus *notify.RedisBus
	if cfg.Redis.Addr != "" {
		bus, err = notify.NewRedisBus(ctx, log, notify.RedisOptions{Addr: cfg.Redis.Addr, Channel: cfg.Redis.Channel})
		if err != nil {
			// The bus is optional; the in-process sink still delivers.
			log.Warn("redis notification bus unavailable", "addr", cfg.Redis.Addr, "error", err)
		} else {
			fan = append(fan, bus)
		}
	}

	orch, err := lifecycle.New(lifecycle.Options{
		Backend:            client,
		OwnerID:            cfg.OwnerID,
		Notifier:           fan,
		Decider:            ports.Decider,
		Navigator:          ports.Navigator,
		Indicator:          ports.Indicator,
		Logger:             log,
		RefreshConcurrency: cfg.RefreshConcurrency,
	})
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("init orchestrator: %w", err)
	}

	return &Runtime{
		Log:          log,
		Cfg:          cfg,
		Client:       client,
		Orchestrator: orch,
		Sink:         sink,
		bus:          bus,
		shutdownOTel: shutdown,
	}, nil
}

// Watch relays notifications published by other clients on the redis bus
// until ctx is done.
func (r *Runtime) Watch(ctx context.Context, fn func(notify.Notification)) error {
	if r.bus == nil {
		return errors.New("watch requires a redis bus (COMPANION_REDIS_ADDR)")
	}
	sink := notify.NewChannelSink(64, r.Log)
	if err := r.bus.Subscribe(ctx, sink.Notify); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-sink.C():
			fn(n)
		}
	}
}

func (r *Runtime) Close(ctx context.Context) {
	if r == nil {
		return
	}
	if err := r.bus.Close(); err != nil {
		r.Log.Warn("redis bus close failed", "error", err)
	}
	if r.shutdownOTel != nil {
		if err := r.shutdownOTel(ctx); err != nil {
			r.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	r.Log.Sync()
}
