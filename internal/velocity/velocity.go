// Package velocity provides customer transaction velocity counts.
package velocity

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/shrike/internal/domain"
)

// DefaultWindowSecs is the lookback window rules see as velocity_count.
const DefaultWindowSecs = 3600

// Service counts a customer's recent transactions. The repository is the
// source of truth; the cache keeps a rolling counter on the hot write path
// so scoring does not always hit the database.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewService creates a velocity service. cache may be nil.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Count returns the customer's transaction count within the window.
func (s *Service) Count(ctx context.Context, customerID string, windowSecs int) (int64, error) {
	if customerID == "" {
		return 0, fmt.Errorf("%w: customer id is required", domain.ErrValidation)
	}
	if windowSecs <= 0 {
		windowSecs = DefaultWindowSecs
	}

	since := time.Now().Add(-time.Duration(windowSecs) * time.Second)
	count, err := s.repo.CountTransactionsByCustomer(ctx, customerID, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// Record bumps the rolling counter for a newly ingested transaction.
// Counter failures are non-fatal; the repository count stays correct.
func (s *Service) Record(ctx context.Context, customerID string, windowSecs int) (int64, error) {
	if s.cache == nil {
		return 0, nil
	}
	if windowSecs <= 0 {
		windowSecs = DefaultWindowSecs
	}
	key := "velocity:" + customerID
	return s.cache.IncrementCounter(ctx, key, time.Duration(windowSecs)*time.Second)
}

// Observe registers a newly ingested transaction and returns the customer's
// count within the window. The rolling counter serves the hot path; the
// repository count backs a missing cache and reconciles a counter window
// that opened after history was already written.
func (s *Service) Observe(ctx context.Context, customerID string, windowSecs int) (int64, error) {
	if customerID == "" {
		return 0, fmt.Errorf("%w: customer id is required", domain.ErrValidation)
	}

	count, err := s.Record(ctx, customerID, windowSecs)
	if err != nil || count == 0 {
		return s.Count(ctx, customerID, windowSecs)
	}

	if count == 1 {
		if repoCount, err := s.Count(ctx, customerID, windowSecs); err == nil && repoCount > count {
			return repoCount, nil
		}
	}
	return count, nil
}
