package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventix/eventix/internal/domain"
	redisx "github.com/eventix/eventix/internal/redis"
	"github.com/eventix/eventix/internal/repository"
	postgresrepo "github.com/eventix/eventix/internal/repository/postgres"
	redisrepo "github.com/eventix/eventix/internal/repository/redis"
)

type Config struct {
	EventSummaryTTL time.Duration
}

// Service is the read side of the event inventory: filtered listings and
// single-event lookups for the presentation layer.
type Service struct {
	store *postgresrepo.Store
	cache *redisrepo.Cache
	cfg   Config
}

func New(store *postgresrepo.Store, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.EventSummaryTTL <= 0 {
		cfg.EventSummaryTTL = 30 * time.Second
	}

	return &Service{
		store: store,
		cache: cache,
		cfg:   cfg,
	}
}

// List returns events matching the filter, ordered by date ascending.
// Listings are not cached: the filter space is wide and the seat counts on
// them are kept fresh by the realtime channel anyway.
func (s *Service) List(ctx context.Context, f domain.EventFilter) ([]domain.Event, error) {
	const op = "service.catalog.List"

	events, err := s.store.Events().List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return events, nil
}

// GetEvent retrieves one event through the summary cache.
//
// Returns:
//   - error: catalog.ErrEventNotFound if the event does not exist.
func (s *Service) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	const op = "service.catalog.GetEvent"

	key := redisx.KeyEventSummary(id)

	event, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		key,
		s.cfg.EventSummaryTTL,
		func(ctx context.Context) (domain.Event, error) {
			e, err := s.store.Events().Get(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.Event{}, ErrEventNotFound
				}

				return domain.Event{}, err
			}

			return *e, nil
		},
	)
	if err != nil {
		if errors.Is(err, ErrEventNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrEventNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &event, nil
}
