package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/parleybot/parley/internal/bus"
	"github.com/parleybot/parley/internal/channel"
	"github.com/parleybot/parley/internal/channel/adapters/discord"
	"github.com/parleybot/parley/internal/channel/adapters/telegram"
	"github.com/parleybot/parley/internal/config"
	"github.com/parleybot/parley/internal/handlers"
	"github.com/parleybot/parley/internal/history"
	"github.com/parleybot/parley/internal/llm"
	"github.com/parleybot/parley/internal/logger"
	"github.com/parleybot/parley/internal/pipeline"
	"github.com/parleybot/parley/internal/server"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideCache,
			providePruner,
			provideLLMClient,
			provideGateway,
			providePageFetcher,
			provideDescriptors,
			provideFallback,
			provideRouter,
			provideBus,
			provideChannelRegistry,
			provideChannelManager,
			handlers.NewPingHandler,
			handlers.NewHistoryHandler,
			provideServer,
		),
		fx.Invoke(
			startBus,
			startChannelManager,
			startPruner,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideCache(cfg config.Config) *history.Cache {
	return history.NewCache(cfg.Cache.Capacity)
}

func providePruner(log *slog.Logger, cfg config.Config, cache *history.Cache) *history.Pruner {
	return history.NewPruner(log, cache, cfg.Cache.MaxAge.Duration, cfg.Cache.PruneSchedule)
}

func provideLLMClient(log *slog.Logger, cfg config.Config) (llm.Completer, error) {
	return llm.NewOpenAIClient(log, cfg.LLM)
}

func provideGateway(log *slog.Logger, cfg config.Config, client llm.Completer) *llm.Gateway {
	return llm.NewGateway(log, client, cfg.LLM.MaxAttempts, cfg.LLM.Timeout())
}

func providePageFetcher(log *slog.Logger) pipeline.PageFetcher {
	return pipeline.NewReadabilityFetcher(log)
}

func provideDescriptors(log *slog.Logger, cache *history.Cache, fetcher pipeline.PageFetcher, gateway *llm.Gateway) []pipeline.Descriptor {
	return []pipeline.Descriptor{
		{Name: "command", Priority: 10, Processor: pipeline.NewCommandProcessor(log, cache)},
		{Name: "media", Priority: 20, Processor: pipeline.NewMediaProcessor(log, fetcher, gateway)},
	}
}

func provideFallback(log *slog.Logger, cfg config.Config, gateway *llm.Gateway) *pipeline.ChainOfThoughtProcessor {
	return pipeline.NewChainOfThoughtProcessor(log, gateway, cfg.Cache.Window, cfg.Reply.SystemPrompt)
}

func provideRouter(log *slog.Logger, cfg config.Config, descriptors []pipeline.Descriptor, fallback *pipeline.ChainOfThoughtProcessor, cache *history.Cache, registry *channel.Registry) *pipeline.Router {
	return pipeline.NewRouter(log, descriptors, fallback, cache, registry, cfg.Reply.NotifyOnError)
}

func provideBus(log *slog.Logger, cfg config.Config) *bus.Bus {
	return bus.NewBus(log, cfg.Bus.Workers, cfg.Bus.QueueSize)
}

func provideChannelRegistry(log *slog.Logger, cfg config.Config) *channel.Registry {
	registry := channel.NewRegistry()
	if cfg.Discord.BotToken != "" {
		registry.MustRegister(discord.NewAdapter(log, cfg.Discord.BotToken))
	}
	if cfg.Telegram.BotToken != "" {
		registry.MustRegister(telegram.NewAdapter(log, cfg.Telegram.BotToken))
	}
	return registry
}

func provideChannelManager(log *slog.Logger, registry *channel.Registry, b *bus.Bus) *channel.Manager {
	return channel.NewManager(log, registry, func(ctx context.Context, in channel.Inbound) error {
		return b.Publish(ctx, in)
	})
}

func provideServer(cfg config.Config, pingHandler *handlers.PingHandler, historyHandler *handlers.HistoryHandler) *server.Server {
	return server.NewServer(cfg.Server.Addr, pingHandler, historyHandler)
}

func startBus(lc fx.Lifecycle, b *bus.Bus, router *pipeline.Router) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := b.Subscribe(func(ctx context.Context, in channel.Inbound) {
				router.Dispatch(ctx, in)
			}); err != nil {
				return err
			}
			return b.Start(ctx)
		},
		OnStop: func(stopCtx context.Context) error {
			err := b.Shutdown(stopCtx)
			cancel()
			return err
		},
	})
}

func startChannelManager(lc fx.Lifecycle, manager *channel.Manager) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return manager.Start(ctx) },
		OnStop: func(stopCtx context.Context) error {
			err := manager.Shutdown(stopCtx)
			cancel()
			return err
		},
	})
}

func startPruner(lc fx.Lifecycle, pruner *history.Pruner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return pruner.Start() },
		OnStop:  func(context.Context) error { pruner.Stop(); return nil },
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
