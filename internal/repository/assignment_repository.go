package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/exam-proctor-api/internal/models"
)

// AssignmentRepository persists proctor assignments and their swap history.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

const assignmentColumns = `id, exam_id, proctor_id, status, previous_proctor_id, swap_depth,
       override_flag, override_reason, created_at, updated_at`

const assignmentDetailColumns = `a.id, a.exam_id, a.proctor_id, a.status, a.previous_proctor_id, a.swap_depth,
       a.override_flag, a.override_reason, a.created_at, a.updated_at,
       e.title AS exam_title, e.course_code, e.section, e.date AS exam_date,
       e.start_time, e.end_time, e.duration_minutes, e.room`

// Create inserts a new assignment inside the caller's transaction.
func (r *AssignmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, assignment *models.ProctorAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.Status == "" {
		assignment.Status = models.AssignmentAssigned
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now
	const query = `INSERT INTO proctor_assignments
		(id, exam_id, proctor_id, status, previous_proctor_id, swap_depth, override_flag, override_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := exec.ExecContext(ctx, query,
		assignment.ID, assignment.ExamID, assignment.ProctorID, assignment.Status,
		assignment.PreviousProctorID, assignment.SwapDepth, assignment.OverrideFlag,
		assignment.OverrideReason, assignment.CreatedAt, assignment.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// FindByID fetches one assignment without locking.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.ProctorAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM proctor_assignments WHERE id = $1`
	var assignment models.ProctorAssignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// LockByID reads the assignment under an exclusive row lock. Concurrent
// swaps on the same assignment serialize here.
func (r *AssignmentRepository) LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.ProctorAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM proctor_assignments WHERE id = $1 FOR UPDATE`
	var assignment models.ProctorAssignment
	if err := tx.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// ApplySwapParams carries the in-place proctor reassignment.
type ApplySwapParams struct {
	AssignmentID      string
	NewProctorID      string
	PreviousProctorID string
	SwapDepth         int
}

// ApplySwap mutates the assignment row in place: proctor replaced, previous
// proctor recorded, depth bumped, status reset to ASSIGNED.
func (r *AssignmentRepository) ApplySwap(ctx context.Context, exec sqlx.ExtContext, params ApplySwapParams) error {
	const query = `UPDATE proctor_assignments
		SET proctor_id = $1, previous_proctor_id = $2, swap_depth = $3, status = $4, updated_at = $5
		WHERE id = $6`
	result, err := exec.ExecContext(ctx, query,
		params.NewProctorID, params.PreviousProctorID, params.SwapDepth,
		models.AssignmentAssigned, time.Now().UTC(), params.AssignmentID,
	)
	if err != nil {
		return fmt.Errorf("apply swap: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check swap rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AppendSwapHistory writes the immutable per-swap log row.
func (r *AssignmentRepository) AppendSwapHistory(ctx context.Context, exec sqlx.ExtContext, entry *models.SwapHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO assignment_swap_history
		(id, assignment_id, from_proctor_id, to_proctor_id, swap_request_id, depth, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := exec.ExecContext(ctx, query,
		entry.ID, entry.AssignmentID, entry.FromProctorID, entry.ToProctorID,
		entry.SwapRequestID, entry.Depth, entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("append swap history: %w", err)
	}
	return nil
}

// ListHistory returns the swap trail for an assignment, oldest first.
func (r *AssignmentRepository) ListHistory(ctx context.Context, assignmentID string) ([]models.SwapHistoryEntry, error) {
	const query = `SELECT id, assignment_id, from_proctor_id, to_proctor_id, swap_request_id, depth, created_at
		FROM assignment_swap_history WHERE assignment_id = $1 ORDER BY depth ASC`
	var entries []models.SwapHistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list swap history: %w", err)
	}
	return entries, nil
}

// ListByExam returns all assignment rows for an exam.
func (r *AssignmentRepository) ListByExam(ctx context.Context, examID string) ([]models.ProctorAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM proctor_assignments WHERE exam_id = $1 ORDER BY created_at ASC`
	var assignments []models.ProctorAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, examID); err != nil {
		return nil, fmt.Errorf("list exam assignments: %w", err)
	}
	return assignments, nil
}

// Exists checks the unique (exam, proctor) pair.
func (r *AssignmentRepository) Exists(ctx context.Context, examID, proctorID string) (bool, error) {
	const query = `SELECT 1 FROM proctor_assignments WHERE exam_id = $1 AND proctor_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, examID, proctorID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check assignment exists: %w", err)
	}
	return true, nil
}

// ListActiveDetailByProctorOnDate returns the proctor's active duties joined
// with exam windows for one date; the schedule-conflict rule scans these.
func (r *AssignmentRepository) ListActiveDetailByProctorOnDate(ctx context.Context, proctorID string, date time.Time) ([]models.AssignmentDetail, error) {
	query := `SELECT ` + assignmentDetailColumns + `
		FROM proctor_assignments a
		JOIN exams e ON e.id = a.exam_id
		WHERE a.proctor_id = $1 AND e.date = $2 AND a.status IN ($3, $4)
		ORDER BY e.start_time ASC`
	var details []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &details, query, proctorID, date, models.AssignmentAssigned, models.AssignmentConfirmed); err != nil {
		return nil, fmt.Errorf("list duties on date: %w", err)
	}
	return details, nil
}

// HasActiveOnDates reports whether the proctor holds an active duty on any
// of the given dates. The planner feeds it the adjacent days of an exam.
func (r *AssignmentRepository) HasActiveOnDates(ctx context.Context, proctorID string, dates []time.Time) (bool, error) {
	if len(dates) == 0 {
		return false, nil
	}
	const query = `SELECT COUNT(*) FROM proctor_assignments a
		JOIN exams e ON e.id = a.exam_id
		WHERE a.proctor_id = $1 AND e.date = ANY($2) AND a.status IN ($3, $4)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, proctorID, pq.Array(dates), models.AssignmentAssigned, models.AssignmentConfirmed); err != nil {
		return false, fmt.Errorf("check duties on dates: %w", err)
	}
	return count > 0, nil
}

// ListUpcomingByProctor returns the proctor's duty roster from today on.
func (r *AssignmentRepository) ListUpcomingByProctor(ctx context.Context, proctorID string, from time.Time) ([]models.AssignmentDetail, error) {
	query := `SELECT ` + assignmentDetailColumns + `
		FROM proctor_assignments a
		JOIN exams e ON e.id = a.exam_id
		WHERE a.proctor_id = $1 AND e.date >= $2 AND a.status IN ($3, $4)
		ORDER BY e.date ASC, e.start_time ASC`
	var details []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &details, query, proctorID, from, models.AssignmentAssigned, models.AssignmentConfirmed); err != nil {
		return nil, fmt.Errorf("list upcoming duties: %w", err)
	}
	return details, nil
}
