package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/gms-api/internal/dto"
	"github.com/noah-isme/gms-api/internal/models"
	appErrors "github.com/noah-isme/gms-api/pkg/errors"
)

type stubStatsRepo struct {
	calls int
}

func (s *stubStatsRepo) CountByStatus(ctx context.Context, faculty string, year int) ([]models.StatusCount, error) {
	s.calls++
	return []models.StatusCount{
		{Status: models.GraduationStatusApproved, Count: 12},
		{Status: models.GraduationStatusPendingDean, Count: 3},
	}, nil
}

func (s *stubStatsRepo) CountByFaculty(ctx context.Context, year int) ([]models.FacultyStats, error) {
	return []models.FacultyStats{{Faculty: "Engineering", Total: 15, Graduates: 12, Pending: 3}}, nil
}

func (s *stubStatsRepo) CountByDepartment(ctx context.Context, faculty string, year int) ([]models.DepartmentStats, error) {
	return []models.DepartmentStats{{Faculty: "Engineering", Department: "Computer Engineering", Total: 15, Graduates: 12, Pending: 3}}, nil
}

func (s *stubStatsRepo) Monthly(ctx context.Context, faculty string, year int) ([]models.MonthlyStats, error) {
	return []models.MonthlyStats{{Month: "2026-06", Applications: 15, Graduates: 12}}, nil
}

type stubStatsCache struct {
	entries map[string][]byte
	deletes []string
}

func (s *stubStatsCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := s.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *stubStatsCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if s.entries == nil {
		s.entries = map[string][]byte{}
	}
	s.entries[key] = raw
	return nil
}

func (s *stubStatsCache) DeleteByPattern(ctx context.Context, pattern string) error {
	s.deletes = append(s.deletes, pattern)
	for key := range s.entries {
		if strings.HasPrefix(key, strings.TrimSuffix(pattern, "*")) {
			delete(s.entries, key)
		}
	}
	return nil
}

func TestStatsServiceOverviewCachesResult(t *testing.T) {
	repo := &stubStatsRepo{}
	cache := &stubStatsCache{}
	svc := NewStatsService(repo, cache, nil, time.Minute, zap.NewNop())

	query := dto.StatsQuery{Faculty: "Engineering", Year: 2026}
	first, err := svc.Overview(context.Background(), query)
	require.NoError(t, err)
	assert.Len(t, first.ByStatus, 2)
	assert.Equal(t, 1, repo.calls)

	second, err := svc.Overview(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, first.ByFaculty, second.ByFaculty)
	assert.Equal(t, 1, repo.calls)
}

type stubCacheObserver struct {
	hits   int
	misses int
}

func (s *stubCacheObserver) RecordCacheOperation(hit bool) {
	if hit {
		s.hits++
	} else {
		s.misses++
	}
}

func TestStatsServiceOverviewRecordsCacheMetrics(t *testing.T) {
	metrics := &stubCacheObserver{}
	svc := NewStatsService(&stubStatsRepo{}, &stubStatsCache{}, metrics, time.Minute, zap.NewNop())

	query := dto.StatsQuery{Faculty: "Engineering", Year: 2026}
	_, err := svc.Overview(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, 0, metrics.hits)
	assert.Equal(t, 1, metrics.misses)

	_, err = svc.Overview(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.hits)
	assert.Equal(t, 1, metrics.misses)
}

func TestStatsServiceInvalidateOverviewDropsCache(t *testing.T) {
	repo := &stubStatsRepo{}
	cache := &stubStatsCache{}
	svc := NewStatsService(repo, cache, nil, time.Minute, zap.NewNop())

	query := dto.StatsQuery{}
	_, err := svc.Overview(context.Background(), query)
	require.NoError(t, err)

	svc.InvalidateOverview(context.Background())
	assert.Equal(t, []string{"stats:graduation:*"}, cache.deletes)

	_, err = svc.Overview(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)
}

func TestStatsServiceExportCSV(t *testing.T) {
	svc := NewStatsService(&stubStatsRepo{}, &stubStatsCache{}, nil, time.Minute, zap.NewNop())

	payload, contentType, err := svc.Export(context.Background(), dto.StatsQuery{}, "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)

	body := string(payload)
	assert.Contains(t, body, "Section,Key,Total,Graduates,Pending,Rejected")
	assert.Contains(t, body, "faculty,Engineering,15,12,3")
	assert.Contains(t, body, "monthly,2026-06,15,12")
}

func TestStatsServiceExportPDF(t *testing.T) {
	svc := NewStatsService(&stubStatsRepo{}, &stubStatsCache{}, nil, time.Minute, zap.NewNop())

	payload, contentType, err := svc.Export(context.Background(), dto.StatsQuery{}, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.True(t, strings.HasPrefix(string(payload), "%PDF"))
}

func TestStatsServiceExportRejectsUnknownFormat(t *testing.T) {
	svc := NewStatsService(&stubStatsRepo{}, &stubStatsCache{}, nil, time.Minute, zap.NewNop())

	_, _, err := svc.Export(context.Background(), dto.StatsQuery{}, "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
