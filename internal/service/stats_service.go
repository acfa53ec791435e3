package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/gms-api/internal/dto"
	"github.com/noah-isme/gms-api/internal/models"
	appErrors "github.com/noah-isme/gms-api/pkg/errors"
	"github.com/noah-isme/gms-api/pkg/export"
)

type statsRepository interface {
	CountByStatus(ctx context.Context, faculty string, year int) ([]models.StatusCount, error)
	CountByFaculty(ctx context.Context, year int) ([]models.FacultyStats, error)
	CountByDepartment(ctx context.Context, faculty string, year int) ([]models.DepartmentStats, error)
	Monthly(ctx context.Context, faculty string, year int) ([]models.MonthlyStats, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type cacheObserver interface {
	RecordCacheOperation(hit bool)
}

const statsCachePrefix = "stats:graduation:"

// StatsService composes the graduation statistics overview with a Redis cache
// in front of the aggregate queries, and renders CSV/PDF exports.
type StatsService struct {
	repo     statsRepository
	cache    statsCache
	metrics  cacheObserver
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewStatsService constructs the service.
func NewStatsService(repo statsRepository, cache statsCache, metrics cacheObserver, cacheTTL time.Duration, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &StatsService{
		repo:     repo,
		cache:    cache,
		metrics:  metrics,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Overview returns the composed statistics payload, served from cache when
// fresh.
func (s *StatsService) Overview(ctx context.Context, query dto.StatsQuery) (*models.GraduationOverview, error) {
	key := fmt.Sprintf("%s%s:%d", statsCachePrefix, query.Faculty, query.Year)

	var cached models.GraduationOverview
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		s.recordCache(true)
		return &cached, nil
	} else if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("stats cache read failed", zap.String("key", key), zap.Error(err))
	}
	s.recordCache(false)

	overview, err := s.compose(ctx, query)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, overview, s.cacheTTL); err != nil {
		s.logger.Warn("stats cache write failed", zap.String("key", key), zap.Error(err))
	}
	return overview, nil
}

func (s *StatsService) recordCache(hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(hit)
	}
}

// InvalidateOverview drops every cached statistics payload. Called after
// decisions and finalizations.
func (s *StatsService) InvalidateOverview(ctx context.Context) {
	if err := s.cache.DeleteByPattern(ctx, statsCachePrefix+"*"); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}
}

// Export renders the overview as CSV or PDF bytes plus a content type.
func (s *StatsService) Export(ctx context.Context, query dto.StatsQuery, format string) ([]byte, string, error) {
	overview, err := s.Overview(ctx, query)
	if err != nil {
		return nil, "", err
	}

	dataset := overviewDataset(overview)
	switch format {
	case "", "csv":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := s.pdf.Render(dataset, "Graduation Statistics")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

func (s *StatsService) compose(ctx context.Context, query dto.StatsQuery) (*models.GraduationOverview, error) {
	byStatus, err := s.repo.CountByStatus(ctx, query.Faculty, query.Year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate by status")
	}
	byFaculty, err := s.repo.CountByFaculty(ctx, query.Year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate by faculty")
	}
	byDepartment, err := s.repo.CountByDepartment(ctx, query.Faculty, query.Year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate by department")
	}
	monthly, err := s.repo.Monthly(ctx, query.Faculty, query.Year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate monthly series")
	}
	return &models.GraduationOverview{
		ByStatus:     byStatus,
		ByFaculty:    byFaculty,
		ByDepartment: byDepartment,
		Monthly:      monthly,
	}, nil
}

func overviewDataset(overview *models.GraduationOverview) export.Dataset {
	dataset := export.Dataset{
		Headers: []string{"Section", "Key", "Total", "Graduates", "Pending", "Rejected"},
	}
	for _, sc := range overview.ByStatus {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Section": "status",
			"Key":     string(sc.Status),
			"Total":   strconv.Itoa(sc.Count),
		})
	}
	for _, fs := range overview.ByFaculty {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Section":   "faculty",
			"Key":       fs.Faculty,
			"Total":     strconv.Itoa(fs.Total),
			"Graduates": strconv.Itoa(fs.Graduates),
			"Pending":   strconv.Itoa(fs.Pending),
			"Rejected":  strconv.Itoa(fs.Rejected),
		})
	}
	for _, ds := range overview.ByDepartment {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Section":   "department",
			"Key":       fmt.Sprintf("%s/%s", ds.Faculty, ds.Department),
			"Total":     strconv.Itoa(ds.Total),
			"Graduates": strconv.Itoa(ds.Graduates),
			"Pending":   strconv.Itoa(ds.Pending),
			"Rejected":  strconv.Itoa(ds.Rejected),
		})
	}
	for _, ms := range overview.Monthly {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Section":   "monthly",
			"Key":       ms.Month,
			"Total":     strconv.Itoa(ms.Applications),
			"Graduates": strconv.Itoa(ms.Graduates),
		})
	}
	return dataset
}
