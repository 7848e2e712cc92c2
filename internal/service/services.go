package service

import (
	"log/slog"

	redisx "github.com/eventix/eventix/internal/redis"
	postgres "github.com/eventix/eventix/internal/repository/postgres"
	redisrepo "github.com/eventix/eventix/internal/repository/redis"
	"github.com/eventix/eventix/internal/service/admin"
	"github.com/eventix/eventix/internal/service/booking"
	"github.com/eventix/eventix/internal/service/catalog"
)

type Services struct {
	Booking *booking.Service
	Catalog *catalog.Service
	Admin   *admin.Service
}

type Config struct {
	Catalog catalog.Config
}

func NewServices(
	store *postgres.Store,
	cache *redisrepo.Cache,
	pubsub *redisx.RealtimePubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	logger *slog.Logger,
	cfg Config,
) *Services {
	return &Services{
		Booking: booking.New(store.Bookings(), pubsub, cache, limiter, logger),
		Catalog: catalog.New(store, cache, cfg.Catalog),
		Admin:   admin.New(store, cache, pubsub, logger),
	}
}
