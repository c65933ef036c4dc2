package finance

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/importpro/importpro/internal/rbac"
	"github.com/importpro/importpro/internal/shared"
)

// Service implements the finance read model and the manual ledger entry
// flow. Every read is gated on the finance capability inside the service
// as well, so off-HTTP callers stay covered.
type Service struct {
	repo   RepositoryPort
	cache  *Cache
	authz  *rbac.Service
	logger *slog.Logger

	group singleflight.Group
}

// NewService constructs the finance service.
func NewService(repo RepositoryPort, cache *Cache, authz *rbac.Service, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, authz: authz, logger: logger}
}

func (s *Service) requireFinance(ctx context.Context) error {
	if s.authz == nil {
		return nil
	}
	actorID, ok := shared.ActorFromContext(ctx)
	if !ok {
		return rbac.ErrPermissionDenied
	}
	return s.authz.Require(ctx, actorID, shared.PermFinanceView)
}

// GetSummary returns the aggregated read model, served from cache and
// rebuilt at most once concurrently.
func (s *Service) GetSummary(ctx context.Context) (*Summary, error) {
	if err := s.requireFinance(ctx); err != nil {
		return nil, err
	}
	key, err := s.cache.SummaryKey(ctx)
	if err != nil {
		s.logger.Warn("finance cache key", "error", err)
		return s.repo.Summary(ctx)
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		var summary Summary
		loadErr := s.cache.FetchJSON(ctx, key, &summary, func(ctx context.Context) (any, error) {
			return s.repo.Summary(ctx)
		})
		if loadErr != nil {
			return nil, loadErr
		}
		return &summary, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Summary), nil
}

// WarmSummary precomputes the cached summary. Used by the background
// worker; it bypasses the capability gate because no actor is involved.
func (s *Service) WarmSummary(ctx context.Context) error {
	key, err := s.cache.SummaryKey(ctx)
	if err != nil {
		return err
	}
	var summary Summary
	return s.cache.FetchJSON(ctx, key, &summary, func(ctx context.Context) (any, error) {
		return s.repo.Summary(ctx)
	})
}

// ListLedger returns a page of ledger entries, newest first.
func (s *Service) ListLedger(ctx context.Context, filter LedgerFilter, page int) ([]Entry, int, error) {
	if err := s.requireFinance(ctx); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, filter, shared.NewPagination(page, 0, 0))
}

// AppendEntry books a manual ledger entry and invalidates the cached
// summary.
func (s *Service) AppendEntry(ctx context.Context, e Entry) (*Entry, error) {
	if err := s.requireFinance(ctx); err != nil {
		return nil, err
	}
	if e.Date.IsZero() {
		e.Date = time.Now().UTC()
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	id, err := s.repo.Append(ctx, e)
	if err != nil {
		return nil, err
	}
	e.ID = id
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("finance cache bump", "error", err)
	}
	return &e, nil
}

// InvalidateSummary bumps the cache version. Writing modules call this
// after booking ledger entries in their own transactions.
func (s *Service) InvalidateSummary(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("finance cache bump", "error", err)
	}
}
