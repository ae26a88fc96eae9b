package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-proctor-api/internal/models"
)

// SwapRepository persists swap request workflow data.
type SwapRepository struct {
	db *sqlx.DB
}

// NewSwapRepository constructs the repository.
func NewSwapRepository(db *sqlx.DB) *SwapRepository {
	return &SwapRepository{db: db}
}

const swapColumns = `id, assignment_id, requesting_proctor_id, target_proctor_id, reason, status,
       rejection_detail, forced_by, requested_at, resolved_at`

// Create inserts a new swap request row.
func (r *SwapRepository) Create(ctx context.Context, request *models.SwapRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.SwapStatusPending
	}
	if request.RequestedAt.IsZero() {
		request.RequestedAt = time.Now().UTC()
	}
	const query = `INSERT INTO swap_requests
		(id, assignment_id, requesting_proctor_id, target_proctor_id, reason, status, rejection_detail, forced_by, requested_at, resolved_at)
		VALUES (:id, :assignment_id, :requesting_proctor_id, :target_proctor_id, :reason, :status, :rejection_detail, :forced_by, :requested_at, :resolved_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create swap request: %w", err)
	}
	return nil
}

// GetByID fetches a swap request by identifier.
func (r *SwapRepository) GetByID(ctx context.Context, id string) (*models.SwapRequest, error) {
	query := `SELECT ` + swapColumns + ` FROM swap_requests WHERE id = $1`
	var request models.SwapRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns swap requests matching the filter (latest first).
func (r *SwapRepository) List(ctx context.Context, filter models.SwapFilter) ([]models.SwapRequest, error) {
	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.RequestingProctorID != "" {
		args = append(args, filter.RequestingProctorID)
		conditions = append(conditions, fmt.Sprintf("requesting_proctor_id = $%d", len(args)))
	}
	if filter.AssignmentID != "" {
		args = append(args, filter.AssignmentID)
		conditions = append(conditions, fmt.Sprintf("assignment_id = $%d", len(args)))
	}

	query := `SELECT ` + swapColumns + ` FROM swap_requests`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY requested_at DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	var requests []models.SwapRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("list swap requests: %w", err)
	}
	return requests, nil
}

// ListAvailable returns open requests visible to the given proctor (all
// AVAILABLE requests except their own).
func (r *SwapRepository) ListAvailable(ctx context.Context, excludeProctorID string) ([]models.SwapRequest, error) {
	query := `SELECT ` + swapColumns + ` FROM swap_requests
		WHERE status = $1 AND requesting_proctor_id <> $2
		ORDER BY requested_at ASC`
	var requests []models.SwapRequest
	if err := r.db.SelectContext(ctx, &requests, query, models.SwapStatusAvailable, excludeProctorID); err != nil {
		return nil, fmt.Errorf("list available swap requests: %w", err)
	}
	return requests, nil
}

// Claim flips an AVAILABLE request to PENDING with the claimer as target.
// The status guard makes concurrent claims lose with sql.ErrNoRows.
func (r *SwapRepository) Claim(ctx context.Context, id, claimerID string) error {
	const query = `UPDATE swap_requests SET status = $1, target_proctor_id = $2
		WHERE id = $3 AND status = $4`
	result, err := r.db.ExecContext(ctx, query, models.SwapStatusPending, claimerID, id, models.SwapStatusAvailable)
	if err != nil {
		return fmt.Errorf("claim swap request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check claim rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Release returns a claimed request to the open pool after a failed claim.
func (r *SwapRepository) Release(ctx context.Context, id string) error {
	const query = `UPDATE swap_requests SET status = $1, target_proctor_id = NULL
		WHERE id = $2 AND status = $3`
	result, err := r.db.ExecContext(ctx, query, models.SwapStatusAvailable, id, models.SwapStatusPending)
	if err != nil {
		return fmt.Errorf("release swap request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check release rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ResolveSwapParams groups the mutable columns written when a request
// reaches a terminal state.
type ResolveSwapParams struct {
	ID              string
	Status          models.SwapStatus
	RejectionDetail []byte
	ForcedBy        *string
	ResolvedAt      time.Time
}

// Resolve finalizes a PENDING request inside the caller's transaction. A
// zero row count means another resolution won the race.
func (r *SwapRepository) Resolve(ctx context.Context, exec sqlx.ExtContext, params ResolveSwapParams) error {
	const query = `UPDATE swap_requests
		SET status = $1, rejection_detail = $2, forced_by = $3, resolved_at = $4
		WHERE id = $5 AND status = $6`
	result, err := exec.ExecContext(ctx, query,
		params.Status, params.RejectionDetail, params.ForcedBy, params.ResolvedAt,
		params.ID, models.SwapStatusPending,
	)
	if err != nil {
		return fmt.Errorf("resolve swap request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check resolve rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Cancel terminates a request still sitting in PENDING or AVAILABLE.
func (r *SwapRepository) Cancel(ctx context.Context, id string) error {
	const query = `UPDATE swap_requests SET status = $1, resolved_at = $2
		WHERE id = $3 AND status IN ($4, $5)`
	result, err := r.db.ExecContext(ctx, query,
		models.SwapStatusCancelled, time.Now().UTC(), id,
		models.SwapStatusPending, models.SwapStatusAvailable,
	)
	if err != nil {
		return fmt.Errorf("cancel swap request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check cancel rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
