package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oasis-community/opsbot/internal/api/gateway"
	httptransport "github.com/oasis-community/opsbot/internal/api/http"
	"github.com/oasis-community/opsbot/internal/api/http/handlers"
	"github.com/oasis-community/opsbot/internal/auth"
	"github.com/oasis-community/opsbot/internal/capture"
	"github.com/oasis-community/opsbot/internal/config"
	"github.com/oasis-community/opsbot/internal/events"
	"github.com/oasis-community/opsbot/internal/observability"
	"github.com/oasis-community/opsbot/internal/persistence"
	"github.com/oasis-community/opsbot/internal/platform/discord"
	"github.com/oasis-community/opsbot/internal/service"
	"github.com/oasis-community/opsbot/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot gateway, the admin API and the ranking worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger, err := observability.NewLogger(cfg.Logger)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	repos, closeStore, err := openStore(ctx, cfg, false, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	if cfg.NATS.URL != "" {
		conn, err := events.ConnectNATS(cfg.NATS.URL, cfg.App.Name)
		if err != nil {
			return err
		}
		defer conn.Drain() //nolint:errcheck
		events.NewNATSForwarder(conn, cfg.NATS.SubjectPrefix, logger).Attach(dispatcher, events.AllEventTypes...)
		logger.Info("forwarding events to nats", zap.String("prefix", cfg.NATS.SubjectPrefix))
	}

	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		return err
	}
	client := discord.NewClient(session, cfg.Discord, logger)
	hub := capture.NewHub(metrics, logger)

	svc := service.New(service.Dependencies{
		Repos:      repos,
		Platform:   client,
		Hub:        hub,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
		Discord:    cfg.Discord,
		Workflow:   cfg.Workflow,
	})

	gw := gateway.New(gateway.Options{
		Services:  svc,
		Platform:  client,
		Hub:       hub,
		Responder: session,
		Discord:   cfg.Discord,
		Workflow:  cfg.Workflow,
		Logger:    logger,
	})

	var locker worker.Locker
	checks := []handlers.DependencyCheck{{Name: cfg.Store.Driver, Ping: repos.Ping}}
	if redis != nil {
		locker = redis
		checks = append(checks, handlers.DependencyCheck{Name: "redis", Ping: redis.Ping})
	}
	rankingWorker := worker.NewRankingWorker(svc.Ranking, locker, cfg.Workflow.RankingInterval, metrics, logger)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks...),
		Tickets:        handlers.NewTicketsHandler(svc.Tickets),
		Deliveries:     handlers.NewDeliveriesHandler(svc.Deliveries, svc.Approvals),
		Ranking:        handlers.NewRankingHandler(svc.Ranking),
		Metrics:        metrics.Handler(),
		AuthMiddleware: auth.NewAuthMiddleware(auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)),
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("admin api listening", zap.String("addr", cfg.App.Addr()))
		return app.Listen(cfg.App.Addr())
	})
	g.Go(func() error {
		<-ctx.Done()
		return app.ShutdownWithTimeout(shutdownTimeout)
	})
	g.Go(func() error {
		return gw.Run(ctx, session)
	})
	g.Go(func() error {
		return rankingWorker.Run(ctx)
	})

	err = g.Wait()
	logger.Info("shutting down")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
