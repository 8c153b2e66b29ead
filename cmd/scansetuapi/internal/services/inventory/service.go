// Package inventory serves the admin dashboard counts, the recent activity
// feed and a student's own assignments.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-bexpr"
	"go.uber.org/zap"

	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/cache"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/db/models"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/repository"
)

const (
	DefaultActivityLimit = 6
	MaxActivityLimit     = 100

	statsCacheKey = "inventory:stats"
)

// ErrInvalidFilter is returned for activity filters that do not parse.
var ErrInvalidFilter = errors.New("invalid filter expression")

// Stats are the dashboard counts. A count that could not be read is nil so
// the client can keep its placeholder for that card only.
type Stats struct {
	TotalProducts   *int64 `json:"total_products,omitempty"`
	ItemsInStock    *int64 `json:"items_in_stock,omitempty"`
	CurrentlyIssued *int64 `json:"currently_issued,omitempty"`
	Overdue         *int64 `json:"overdue,omitempty"`
}

func (s Stats) complete() bool {
	return s.TotalProducts != nil && s.ItemsInStock != nil && s.CurrentlyIssued != nil && s.Overdue != nil
}

// Service reads inventory data.
type Service struct {
	repo   repository.InventoryRepository
	cache  *cache.Redis
	logger *zap.Logger
	now    func() time.Time

	evaluators sync.Map
}

// NewService creates an inventory service; c may wrap a nil client.
func NewService(repo repository.InventoryRepository, c *cache.Redis, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, cache: c, logger: logger, now: time.Now}
}

// Stats returns the dashboard counts. Complete results are cached.
func (s *Service) Stats(ctx context.Context) Stats {
	var stats Stats
	if found, err := s.cache.GetJSON(ctx, statsCacheKey, &stats); err == nil && found {
		return stats
	}

	count := func(name string, fn func() (int64, error)) *int64 {
		n, err := fn()
		if err != nil {
			s.logger.Warn("inventory count failed", zap.String("count", name), zap.Error(err))
			return nil
		}
		return &n
	}
	stats = Stats{
		TotalProducts: count("total_products", func() (int64, error) { return s.repo.CountProducts(ctx) }),
		ItemsInStock: count("items_in_stock", func() (int64, error) {
			return s.repo.CountItemsByStatus(ctx, models.ItemInStock)
		}),
		CurrentlyIssued: count("currently_issued", func() (int64, error) {
			return s.repo.CountItemsByStatus(ctx, models.ItemIssued)
		}),
		Overdue: count("overdue", func() (int64, error) { return s.repo.CountOverdue(ctx, s.now()) }),
	}

	if stats.complete() {
		if err := s.cache.SetJSON(ctx, statsCacheKey, stats); err != nil {
			s.logger.Debug("cache stats failed", zap.Error(err))
		}
	}
	return stats
}

// InvalidateStats drops cached counts.
func (s *Service) InvalidateStats(ctx context.Context) error {
	return s.cache.Delete(ctx, statsCacheKey)
}

// RecentActivity returns the newest activity rows. filter is an optional
// boolean expression over code, product, holder and status, for example
// `status == "Issued" and holder == "Rohan Kumar"`.
func (s *Service) RecentActivity(ctx context.Context, limit int, filter string) ([]models.RecentActivity, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	if limit > MaxActivityLimit {
		limit = MaxActivityLimit
	}

	filter = strings.TrimSpace(filter)
	if filter == "" {
		return s.recent(ctx, limit)
	}

	eval, err := s.evaluator(filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.recent(ctx, MaxActivityLimit)
	if err != nil {
		return nil, err
	}
	out := make([]models.RecentActivity, 0, limit)
	for _, row := range rows {
		ok, err := eval.Evaluate(activityFields(row))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
		if ok {
			out = append(out, row)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Service) recent(ctx context.Context, limit int) ([]models.RecentActivity, error) {
	key := fmt.Sprintf("inventory:recent:%d", limit)
	var rows []models.RecentActivity
	if found, err := s.cache.GetJSON(ctx, key, &rows); err == nil && found {
		return rows, nil
	}
	rows, err := s.repo.RecentActivity(ctx, limit)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, key, rows); err != nil {
		s.logger.Debug("cache recent activity failed", zap.Error(err))
	}
	return rows, nil
}

func (s *Service) evaluator(filter string) (*bexpr.Evaluator, error) {
	if cached, ok := s.evaluators.Load(filter); ok {
		return cached.(*bexpr.Evaluator), nil
	}
	eval, err := bexpr.CreateEvaluator(filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	s.evaluators.Store(filter, eval)
	return eval, nil
}

func activityFields(row models.RecentActivity) map[string]any {
	return map[string]any{
		"code":    row.Code,
		"product": row.Product,
		"holder":  row.Holder,
		"status":  row.Status,
	}
}

// MyAssignments lists the items issued to userID.
func (s *Service) MyAssignments(ctx context.Context, userID string) ([]models.MyAssignment, error) {
	return s.repo.AssignmentsForUser(ctx, userID)
}
