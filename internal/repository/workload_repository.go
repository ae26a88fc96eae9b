package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-proctor-api/internal/models"
)

// WorkloadRepository persists per-term committed-minute records. All
// mutating methods take the caller's executor so workload changes commit
// or roll back with the assignment mutation that caused them.
type WorkloadRepository struct {
	db *sqlx.DB
}

// NewWorkloadRepository constructs the repository.
func NewWorkloadRepository(db *sqlx.DB) *WorkloadRepository {
	return &WorkloadRepository{db: db}
}

const workloadColumns = `id, proctor_id, term_id, committed_minutes, cap_minutes, overloaded, updated_at`

// Get reads the record for (proctor, term) without creating it.
func (r *WorkloadRepository) Get(ctx context.Context, proctorID, termID string) (*models.WorkloadRecord, error) {
	query := `SELECT ` + workloadColumns + ` FROM workload_records WHERE proctor_id = $1 AND term_id = $2`
	var record models.WorkloadRecord
	if err := r.db.GetContext(ctx, &record, query, proctorID, termID); err != nil {
		return nil, err
	}
	return &record, nil
}

// Ensure creates the (proctor, term) record on first use inside the
// caller's transaction and returns it.
func (r *WorkloadRepository) Ensure(ctx context.Context, exec sqlx.ExtContext, proctorID, termID string, capMinutes int) (*models.WorkloadRecord, error) {
	const insert = `INSERT INTO workload_records
		(id, proctor_id, term_id, committed_minutes, cap_minutes, overloaded, updated_at)
		VALUES ($1, $2, $3, 0, $4, FALSE, $5)
		ON CONFLICT (proctor_id, term_id) DO NOTHING`
	if _, err := exec.ExecContext(ctx, insert, uuid.NewString(), proctorID, termID, capMinutes, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("ensure workload record: %w", err)
	}

	query := `SELECT ` + workloadColumns + ` FROM workload_records WHERE proctor_id = $1 AND term_id = $2`
	var record models.WorkloadRecord
	if err := sqlx.GetContext(ctx, exec, &record, query, proctorID, termID); err != nil {
		return nil, fmt.Errorf("read workload record: %w", err)
	}
	return &record, nil
}

// AddMinutes shifts committed minutes by delta (negative to release) and
// refreshes the overload flag, inside the caller's transaction.
func (r *WorkloadRepository) AddMinutes(ctx context.Context, exec sqlx.ExtContext, proctorID, termID string, delta int) error {
	const query = `UPDATE workload_records
		SET committed_minutes = committed_minutes + $1,
		    overloaded = (committed_minutes + $1) > cap_minutes,
		    updated_at = $2
		WHERE proctor_id = $3 AND term_id = $4`
	result, err := exec.ExecContext(ctx, query, delta, time.Now().UTC(), proctorID, termID)
	if err != nil {
		return fmt.Errorf("add workload minutes: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check workload rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Committed returns the committed minutes for (proctor, term); a missing
// record reads as zero.
func (r *WorkloadRepository) Committed(ctx context.Context, proctorID, termID string) (int, error) {
	const query = `SELECT committed_minutes FROM workload_records WHERE proctor_id = $1 AND term_id = $2`
	var minutes int
	if err := r.db.GetContext(ctx, &minutes, query, proctorID, termID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("read committed minutes: %w", err)
	}
	return minutes, nil
}
