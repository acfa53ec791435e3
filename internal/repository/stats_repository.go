package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gms-api/internal/models"
)

// StatsRepository runs the aggregate queries behind graduation statistics.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository constructs the repository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// CountByStatus buckets applications by workflow status.
func (r *StatsRepository) CountByStatus(ctx context.Context, faculty string, year int) ([]models.StatusCount, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT status, COUNT(*) AS count FROM graduation_applications`)
	args, conditions := statsConditions(faculty, year)
	if len(conditions) > 0 {
		builder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	builder.WriteString(" GROUP BY status ORDER BY status")
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	return counts, nil
}

// CountByFaculty aggregates totals, graduates, pending and rejected per faculty.
func (r *StatsRepository) CountByFaculty(ctx context.Context, year int) ([]models.FacultyStats, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT faculty,
	COUNT(*) AS total,
	COUNT(*) FILTER (WHERE status = 'APPROVED') AS graduates,
	COUNT(*) FILTER (WHERE status IN ('PENDING_ADVISOR', 'PENDING_SECRETARY', 'PENDING_DEAN')) AS pending,
	COUNT(*) FILTER (WHERE status = 'REJECTED') AS rejected
	FROM graduation_applications`)
	args, conditions := statsConditions("", year)
	if len(conditions) > 0 {
		builder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	builder.WriteString(" GROUP BY faculty ORDER BY faculty")
	var stats []models.FacultyStats
	if err := r.db.SelectContext(ctx, &stats, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("count by faculty: %w", err)
	}
	return stats, nil
}

// CountByDepartment aggregates the same buckets per department.
func (r *StatsRepository) CountByDepartment(ctx context.Context, faculty string, year int) ([]models.DepartmentStats, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT department, faculty,
	COUNT(*) AS total,
	COUNT(*) FILTER (WHERE status = 'APPROVED') AS graduates,
	COUNT(*) FILTER (WHERE status IN ('PENDING_ADVISOR', 'PENDING_SECRETARY', 'PENDING_DEAN')) AS pending,
	COUNT(*) FILTER (WHERE status = 'REJECTED') AS rejected
	FROM graduation_applications`)
	args, conditions := statsConditions(faculty, year)
	if len(conditions) > 0 {
		builder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	builder.WriteString(" GROUP BY department, faculty ORDER BY faculty, department")
	var stats []models.DepartmentStats
	if err := r.db.SelectContext(ctx, &stats, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("count by department: %w", err)
	}
	return stats, nil
}

// Monthly returns per-month submission and graduation volume for one year.
func (r *StatsRepository) Monthly(ctx context.Context, faculty string, year int) ([]models.MonthlyStats, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT TO_CHAR(submitted_at, 'YYYY-MM') AS month,
	COUNT(*) AS applications,
	COUNT(*) FILTER (WHERE status = 'APPROVED') AS graduates
	FROM graduation_applications`)
	conditions := []string{"submitted_at IS NOT NULL"}
	args, extra := statsConditions(faculty, year)
	conditions = append(conditions, extra...)
	builder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	builder.WriteString(" GROUP BY month ORDER BY month")
	var stats []models.MonthlyStats
	if err := r.db.SelectContext(ctx, &stats, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("monthly stats: %w", err)
	}
	return stats, nil
}

func statsConditions(faculty string, year int) ([]interface{}, []string) {
	args := make([]interface{}, 0, 2)
	conditions := make([]string, 0, 2)
	if faculty != "" {
		args = append(args, faculty)
		conditions = append(conditions, fmt.Sprintf("faculty = $%d", len(args)))
	}
	if year > 0 {
		args = append(args, year)
		conditions = append(conditions, fmt.Sprintf("EXTRACT(YEAR FROM created_at) = $%d", len(args)))
	}
	return args, conditions
}
