package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/gms-api/internal/models"
)

// AcademicRepository reads the academic records mirrored from the student
// information system. This service never writes them.
type AcademicRepository struct {
	db *sqlx.DB
}

// NewAcademicRepository constructs the repository.
func NewAcademicRepository(db *sqlx.DB) *AcademicRepository {
	return &AcademicRepository{db: db}
}

// GetByStudent fetches the academic record backing eligibility checks.
func (r *AcademicRepository) GetByStudent(ctx context.Context, studentID string) (*models.AcademicRecord, error) {
	const query = `SELECT student_id, gpa, completed_credits, required_credits, outstanding_holds
	FROM academic_records WHERE student_id = $1 LIMIT 1`
	var record models.AcademicRecord
	if err := r.db.GetContext(ctx, &record, query, studentID); err != nil {
		return nil, err
	}
	return &record, nil
}

// UpsertHolds replaces the outstanding hold count after a sync run.
func (r *AcademicRepository) UpsertHolds(ctx context.Context, studentID string, holds int) error {
	const query = `UPDATE academic_records SET outstanding_holds = $2 WHERE student_id = $1`
	if _, err := r.db.ExecContext(ctx, query, studentID, holds); err != nil {
		return fmt.Errorf("update outstanding holds: %w", err)
	}
	return nil
}
