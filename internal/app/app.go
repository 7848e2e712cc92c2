package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eventix/eventix/internal/config"
	"github.com/eventix/eventix/internal/postgres"
	"github.com/eventix/eventix/internal/realtime"
	redisx "github.com/eventix/eventix/internal/redis"
	postgresrepo "github.com/eventix/eventix/internal/repository/postgres"
	redisrepo "github.com/eventix/eventix/internal/repository/redis"
	"github.com/eventix/eventix/internal/service"
	httpgin "github.com/eventix/eventix/internal/transport/http/gin"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	hub        *realtime.Hub
	pubsub     *redisx.RealtimePubSub
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Initialize dependencies
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.Name,
		cfg.Postgres.SSLMode,
	)

	pgxPool, err := postgres.New(context.Background(), postgres.Config{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redisx.New(context.Background(), redisx.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.New(rdb)
	pubsub := redisx.NewRealtimePubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, redisx.PrefixRateLimit("booking"), 10, 1*time.Minute)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)

	// Initialize services
	services := service.NewServices(store, cache, pubsub, limiter, logger, service.Config{})

	// Initialize the fanout hub and Gin router
	hub := realtime.NewHub(logger)

	router := httpgin.NewRouter(httpgin.Deps{
		Catalog:     services.Catalog,
		Booking:     services.Booking,
		Admin:       services.Admin,
		Hub:         hub,
		Idem:        idempotencyStore,
		Logger:      logger,
		AllowOrigin: cfg.Server.ClientURL,
	})

	return &App{
		cfg:    cfg,
		logger: logger,
		hub:    hub,
		pubsub: pubsub,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Feed the fanout hub from the realtime channel
	g.Go(func() error {
		a.logger.Info("realtime subscriber started")
		err := a.pubsub.Subscribe(gCtx, func(ctx context.Context, msg realtime.Message) {
			a.hub.Dispatch(msg)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("realtime subscriber stopped: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
