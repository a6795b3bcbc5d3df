package scoring

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/opensource-finance/shrike/internal/domain"
)

// ConfigStore provides read-through access to the active scoring
// configuration: cache first, then repository, seeding the default when
// nothing has been saved yet.
type ConfigStore struct {
	repo  domain.Repository
	cache domain.Cache
	ttl   time.Duration
}

// NewConfigStore creates a config store. cache may be nil.
func NewConfigStore(repo domain.Repository, cache domain.Cache) *ConfigStore {
	return &ConfigStore{
		repo:  repo,
		cache: cache,
		ttl:   5 * time.Minute,
	}
}

// Load returns the active configuration.
func (s *ConfigStore) Load(ctx context.Context) (*domain.ScoringConfig, error) {
	if s.cache != nil {
		cfg, err := s.cache.GetScoringConfig(ctx)
		if err != nil {
			slog.Warn("scoring config cache read failed", "error", err)
		} else if cfg != nil {
			return cfg, nil
		}
	}

	cfg, err := s.repo.GetScoringConfig(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		cfg = domain.DefaultScoringConfig()
		if err := s.repo.SaveScoringConfig(ctx, cfg); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetScoringConfig(ctx, cfg, s.ttl); err != nil {
			slog.Warn("scoring config cache write failed", "error", err)
		}
	}

	return cfg, nil
}

// Save validates and persists a new configuration version, then refreshes
// the cache so subsequent evaluations see it.
func (s *ConfigStore) Save(ctx context.Context, cfg *domain.ScoringConfig) error {
	if err := ValidateConfig(cfg); err != nil {
		return err
	}

	if err := s.repo.SaveScoringConfig(ctx, cfg); err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.SetScoringConfig(ctx, cfg, s.ttl); err != nil {
			slog.Warn("scoring config cache refresh failed", "error", err)
		}
	}

	return nil
}
