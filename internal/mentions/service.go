package mentions

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ghostbot/ghostbot/internal/logging"
)

// Service is the read path of the mention pipeline: parse, resolve, fetch
// through the entity cache, format.
type Service struct {
	resolver  *Resolver
	entities  *TTRCache[Key, Entity]
	formatter *Formatter
}

// NewService wires the pipeline stages together. Entities are cached for ttr.
func NewService(resolver *Resolver, fetcher *Fetcher, formatter *Formatter, ttr time.Duration, clock Clock) *Service {
	return &Service{
		resolver:  resolver,
		entities:  NewTTRCache(ttr, fetcher.Fetch, clock),
		formatter: formatter,
	}
}

// Render produces the reply body for content and the number of entities it
// shows. Entities that fail to load are left out; zero means "no reply".
func (s *Service) Render(ctx context.Context, content string) (string, int) {
	refs := ParseReferences(content)
	if len(refs) == 0 {
		return "", 0
	}
	keys := s.resolver.Resolve(ctx, refs)
	log := logging.WithContext(ctx).With(slog.String("component", "mentions"))

	// Fetch failures are logged and dropped per key, so every goroutine
	// returns nil and Wait only joins.
	results := make([]*Entity, len(keys))
	var g errgroup.Group
	for i, key := range keys {
		g.Go(func() error {
			entity, err := s.entities.Get(ctx, key)
			if err != nil {
				level := slog.LevelWarn
				if errors.Is(err, ErrNotFound) {
					level = slog.LevelDebug
				}
				log.Log(ctx, level, "Omitting entity",
					slog.String("key", key.String()),
					slog.Any("error", err))
				return nil
			}
			results[i] = &entity
			return nil
		})
	}
	_ = g.Wait()

	entities := make([]Entity, 0, len(results))
	for _, e := range results {
		if e != nil {
			entities = append(entities, *e)
		}
	}
	if len(entities) == 0 {
		return "", 0
	}
	return s.formatter.Format(entities)
}
