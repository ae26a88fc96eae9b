package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-proctor-api/internal/models"
)

// ConstraintRepository reads and writes declarative proctor constraints.
type ConstraintRepository struct {
	db *sqlx.DB
}

// NewConstraintRepository constructs the repository.
func NewConstraintRepository(db *sqlx.DB) *ConstraintRepository {
	return &ConstraintRepository{db: db}
}

const constraintColumns = `id, proctor_id, type, exam_id, date, can_override, note, created_at`

// ListByProctor returns all stored constraints for a proctor.
func (r *ConstraintRepository) ListByProctor(ctx context.Context, proctorID string) ([]models.ProctorConstraint, error) {
	query := `SELECT ` + constraintColumns + ` FROM proctor_constraints WHERE proctor_id = $1 ORDER BY created_at ASC`
	var constraints []models.ProctorConstraint
	if err := r.db.SelectContext(ctx, &constraints, query, proctorID); err != nil {
		return nil, fmt.Errorf("list proctor constraints: %w", err)
	}
	return constraints, nil
}

// Create inserts a constraint fact (leave approvals, own-exam markers and
// similar facts arrive from the surrounding workflows).
func (r *ConstraintRepository) Create(ctx context.Context, constraint *models.ProctorConstraint) error {
	if constraint.ID == "" {
		constraint.ID = uuid.NewString()
	}
	if constraint.CreatedAt.IsZero() {
		constraint.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO proctor_constraints
		(id, proctor_id, type, exam_id, date, can_override, note, created_at)
		VALUES (:id, :proctor_id, :type, :exam_id, :date, :can_override, :note, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, constraint); err != nil {
		return fmt.Errorf("create proctor constraint: %w", err)
	}
	return nil
}

// Delete removes a constraint fact.
func (r *ConstraintRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM proctor_constraints WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete proctor constraint: %w", err)
	}
	return nil
}
