package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-proctor-api/internal/dto"
	"github.com/noah-isme/exam-proctor-api/internal/models"
	"github.com/noah-isme/exam-proctor-api/internal/repository"
	appErrors "github.com/noah-isme/exam-proctor-api/pkg/errors"
)

type swapDatabase interface {
	txBeginner
	sqlx.ExtContext
}

type swapStore interface {
	Create(ctx context.Context, request *models.SwapRequest) error
	GetByID(ctx context.Context, id string) (*models.SwapRequest, error)
	List(ctx context.Context, filter models.SwapFilter) ([]models.SwapRequest, error)
	ListAvailable(ctx context.Context, excludeProctorID string) ([]models.SwapRequest, error)
	Claim(ctx context.Context, id, claimerID string) error
	Release(ctx context.Context, id string) error
	Resolve(ctx context.Context, exec sqlx.ExtContext, params repository.ResolveSwapParams) error
	Cancel(ctx context.Context, id string) error
}

type swapAssignmentStore interface {
	FindByID(ctx context.Context, id string) (*models.ProctorAssignment, error)
	LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.ProctorAssignment, error)
	ApplySwap(ctx context.Context, exec sqlx.ExtContext, params repository.ApplySwapParams) error
	AppendSwapHistory(ctx context.Context, exec sqlx.ExtContext, entry *models.SwapHistoryEntry) error
}

type examReader interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
}

type proctorReader interface {
	FindByID(ctx context.Context, id string) (*models.Proctor, error)
}

type swapNotifier interface {
	NotifySwap(ctx context.Context, exam *models.Exam, request *models.SwapRequest, from, to *models.Proctor)
}

type swapMetrics interface {
	SwapResolved(outcome string)
}

// SwapService runs the swap-request workflow. Every mutation path funnels
// through processSwap, which locks the assignment row so concurrent claims
// and force swaps serialize on the same exam slot: exactly one resolution
// wins, everyone else sees a rejected or finalized request.
type SwapService struct {
	db          swapDatabase
	swaps       swapStore
	assignments swapAssignmentStore
	exams       examReader
	proctors    proctorReader
	eligibility eligibilityChecker
	workload    workloadBooker
	audit       auditLogger
	notifier    swapNotifier
	roster      rosterInvalidator
	metrics     swapMetrics
	validator   *validator.Validate
	logger      *zap.Logger
}

// SwapServiceOption configures optional collaborators.
type SwapServiceOption func(*SwapService)

// WithSwapAudit attaches the audit sink.
func WithSwapAudit(audit auditLogger) SwapServiceOption {
	return func(s *SwapService) { s.audit = audit }
}

// WithSwapNotifier attaches the notification sink.
func WithSwapNotifier(n swapNotifier) SwapServiceOption {
	return func(s *SwapService) { s.notifier = n }
}

// WithSwapRosterCache attaches the roster cache invalidator.
func WithSwapRosterCache(r rosterInvalidator) SwapServiceOption {
	return func(s *SwapService) { s.roster = r }
}

// WithSwapMetrics attaches the metrics recorder.
func WithSwapMetrics(m swapMetrics) SwapServiceOption {
	return func(s *SwapService) { s.metrics = m }
}

// NewSwapService creates a service instance.
func NewSwapService(
	db swapDatabase,
	swaps swapStore,
	assignments swapAssignmentStore,
	exams examReader,
	proctors proctorReader,
	eligibility eligibilityChecker,
	workload workloadBooker,
	logger *zap.Logger,
	opts ...SwapServiceOption,
) *SwapService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SwapService{
		db:          db,
		swaps:       swaps,
		assignments: assignments,
		exams:       exams,
		proctors:    proctors,
		eligibility: eligibility,
		workload:    workload,
		validator:   validator.New(),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a swap request for one of the requester's active
// assignments. Targeted requests are processed immediately; open requests
// rest AVAILABLE until a volunteer claims them.
func (s *SwapService) Create(ctx context.Context, req dto.CreateSwapRequest, requesterID string, actor *models.JWTClaims) (*dto.SwapResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid swap request")
	}
	assignment, err := s.assignments.FindByID(ctx, req.AssignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if assignment.ProctorID != requesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned proctor can request a swap")
	}
	if !assignment.Active() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "assignment is not active")
	}

	request := &models.SwapRequest{
		AssignmentID:        req.AssignmentID,
		RequestingProctorID: requesterID,
		Reason:              req.Reason,
	}
	if req.TargetProctorID == "" {
		request.Status = models.SwapStatusAvailable
		if err := s.swaps.Create(ctx, request); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create swap request")
		}
		return &dto.SwapResult{Request: request}, nil
	}

	if req.TargetProctorID == requesterID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot target yourself")
	}
	if _, err := s.proctors.FindByID(ctx, req.TargetProctorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "target proctor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load target proctor")
	}
	target := req.TargetProctorID
	request.TargetProctorID = &target
	request.Status = models.SwapStatusPending
	if err := s.swaps.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create swap request")
	}
	return s.processSwap(ctx, request, processOptions{actor: actor})
}

// Claim lets a volunteer take an open request. The AVAILABLE->PENDING guard
// in the store means two volunteers racing for the same request leave
// exactly one holding it; the loser gets a conflict. A failed eligibility
// check puts the request back on the board.
func (s *SwapService) Claim(ctx context.Context, requestID, claimerID string, actor *models.JWTClaims) (*dto.SwapResult, error) {
	request, err := s.swaps.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "swap request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load swap request")
	}
	if request.RequestingProctorID == claimerID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot claim your own swap request")
	}
	if err := s.swaps.Claim(ctx, requestID, claimerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "swap request is no longer available")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to claim swap request")
	}
	request.Status = models.SwapStatusPending
	request.TargetProctorID = &claimerID
	return s.processSwap(ctx, request, processOptions{actor: actor, releaseOnReject: true})
}

// Force resolves a pending targeted request regardless of eligibility. Staff
// only; the override is recorded on both the request and the audit trail.
func (s *SwapService) Force(ctx context.Context, requestID string, actor *models.JWTClaims) (*dto.SwapResult, error) {
	request, err := s.swaps.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "swap request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load swap request")
	}
	if request.Status != models.SwapStatusPending {
		return nil, appErrors.Clone(appErrors.ErrSwapFinalized, fmt.Sprintf("request is %s", request.Status))
	}
	if request.TargetProctorID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "request has no target to force")
	}
	return s.processSwap(ctx, request, processOptions{actor: actor, force: true})
}

// Cancel withdraws a request that has not been resolved.
func (s *SwapService) Cancel(ctx context.Context, requestID, requesterID string) (*models.SwapRequest, error) {
	request, err := s.swaps.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "swap request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load swap request")
	}
	if request.RequestingProctorID != requesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the requesting proctor can cancel")
	}
	if err := s.swaps.Cancel(ctx, requestID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrSwapFinalized, "swap request already resolved")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel swap request")
	}
	request.Status = models.SwapStatusCancelled
	return request, nil
}

// Get fetches one request.
func (s *SwapService) Get(ctx context.Context, requestID string) (*models.SwapRequest, error) {
	request, err := s.swaps.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "swap request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load swap request")
	}
	return request, nil
}

// List returns requests matching the filter.
func (s *SwapService) List(ctx context.Context, filter models.SwapFilter) ([]models.SwapRequest, error) {
	requests, err := s.swaps.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list swap requests")
	}
	return requests, nil
}

// ListAvailable returns the open board, hiding the caller's own requests.
func (s *SwapService) ListAvailable(ctx context.Context, proctorID string) ([]models.SwapRequest, error) {
	requests, err := s.swaps.ListAvailable(ctx, proctorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list open swap requests")
	}
	return requests, nil
}

type processOptions struct {
	actor           *models.JWTClaims
	force           bool
	releaseOnReject bool
}

// processSwap is the single resolution path. It locks the assignment row,
// re-checks ownership under the lock, evaluates the target, and applies the
// in-place mutation, history append, workload transfer and request
// resolution as one transaction.
func (s *SwapService) processSwap(ctx context.Context, request *models.SwapRequest, opts processOptions) (*dto.SwapResult, error) {
	target, err := s.proctors.FindByID(ctx, *request.TargetProctorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "target proctor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load target proctor")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	assignment, err := s.assignments.LockByID(ctx, tx, request.AssignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock assignment")
	}

	// Ownership re-check under the lock. A request created before some other
	// swap resolved still references the old holder; it can never move the
	// slot again.
	if assignment.ProctorID != request.RequestingProctorID || !assignment.Active() {
		tx.Rollback() //nolint:errcheck
		return s.reject(ctx, request, nil, "already_swapped", opts)
	}

	exam, err := s.exams.FindByID(ctx, assignment.ExamID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	verdict, err := s.eligibility.Check(ctx, target, exam, assignment)
	if err != nil {
		return nil, err
	}
	if !verdict.Eligible && !opts.force {
		tx.Rollback() //nolint:errcheck
		return s.reject(ctx, request, verdict, "target ineligible", opts)
	}

	from, err := s.proctors.FindByID(ctx, assignment.ProctorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current proctor")
	}

	depth := assignment.SwapDepth + 1
	if err := s.assignments.ApplySwap(ctx, tx, repository.ApplySwapParams{
		AssignmentID:      assignment.ID,
		NewProctorID:      target.ID,
		PreviousProctorID: assignment.ProctorID,
		SwapDepth:         depth,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply swap")
	}
	if err := s.assignments.AppendSwapHistory(ctx, tx, &models.SwapHistoryEntry{
		AssignmentID:  assignment.ID,
		FromProctorID: assignment.ProctorID,
		ToProctorID:   target.ID,
		SwapRequestID: request.ID,
		Depth:         depth,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to append swap history")
	}
	if err := s.workload.RemoveCommitted(ctx, tx, from, exam.TermID, exam.DurationMinutes); err != nil {
		return nil, err
	}
	if err := s.workload.AddCommitted(ctx, tx, target, exam.TermID, exam.DurationMinutes); err != nil {
		return nil, err
	}

	status := models.SwapStatusAutoSwap
	var forcedBy *string
	if opts.force {
		status = models.SwapStatusForceSwap
		if opts.actor != nil {
			id := opts.actor.UserID
			forcedBy = &id
		}
	}
	resolvedAt := time.Now().UTC()
	if err := s.swaps.Resolve(ctx, tx, repository.ResolveSwapParams{
		ID:         request.ID,
		Status:     status,
		ForcedBy:   forcedBy,
		ResolvedAt: resolvedAt,
	}); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrSwapFinalized, "swap request already resolved")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve swap request")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit swap")
	}

	request.Status = status
	request.ForcedBy = forcedBy
	request.ResolvedAt = &resolvedAt
	s.afterSwap(ctx, exam, request, from, target, verdict, opts)
	return &dto.SwapResult{Request: request, Swapped: true, Verdict: verdict}, nil
}

// reject finalizes a request that cannot proceed. Claimed open requests go
// back on the board instead; targeted requests resolve REJECTED.
func (s *SwapService) reject(ctx context.Context, request *models.SwapRequest, verdict *models.EligibilityVerdict, reason string, opts processOptions) (*dto.SwapResult, error) {
	if opts.releaseOnReject && reason != "already_swapped" {
		if err := s.swaps.Release(ctx, request.ID); err != nil {
			s.logger.Warn("failed to release swap request", zap.String("request_id", request.ID), zap.Error(err))
		}
		request.Status = models.SwapStatusAvailable
		request.TargetProctorID = nil
		return &dto.SwapResult{Request: request, Verdict: verdict}, nil
	}

	detail := map[string]interface{}{"reason": reason}
	if verdict != nil {
		detail["verdict"] = verdict
	}
	payload, _ := json.Marshal(detail)
	resolvedAt := time.Now().UTC()
	if err := s.swaps.Resolve(ctx, s.db, repository.ResolveSwapParams{
		ID:              request.ID,
		Status:          models.SwapStatusRejected,
		RejectionDetail: payload,
		ResolvedAt:      resolvedAt,
	}); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrSwapFinalized, "swap request already resolved")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject swap request")
	}
	request.Status = models.SwapStatusRejected
	request.RejectionDetail = payload
	request.ResolvedAt = &resolvedAt
	if s.metrics != nil {
		s.metrics.SwapResolved("rejected")
	}
	if reason == "already_swapped" {
		return nil, appErrors.Clone(appErrors.ErrAlreadySwapped, "")
	}
	return &dto.SwapResult{Request: request, Verdict: verdict}, nil
}

// afterSwap emits audit, notification, cache and metric side effects; the
// swap is already committed so nothing here can fail it.
func (s *SwapService) afterSwap(ctx context.Context, exam *models.Exam, request *models.SwapRequest, from, to *models.Proctor, verdict *models.EligibilityVerdict, opts processOptions) {
	action := models.AuditActionSwapAuto
	outcome := "auto"
	switch {
	case opts.force:
		action = models.AuditActionSwapForce
		outcome = "forced"
	case verdict != nil && verdict.CrossDepartment:
		action = models.AuditActionSwapCrossDeptAuto
		outcome = "cross_dept"
	}
	if s.audit != nil {
		old, _ := json.Marshal(map[string]string{"proctor_id": from.ID})
		now, _ := json.Marshal(map[string]string{"proctor_id": to.ID})
		requestID := request.ID
		entry := &models.AuditLog{
			Action:      action,
			Resource:    "swap_requests",
			ResourceID:  &requestID,
			Description: fmt.Sprintf("assignment %s moved from %s to %s", request.AssignmentID, from.ID, to.ID),
			OldValues:   old,
			NewValues:   now,
		}
		if opts.actor != nil {
			actorID := opts.actor.UserID
			entry.ActorID = &actorID
		}
		if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
			s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		}
	}
	if s.metrics != nil {
		s.metrics.SwapResolved(outcome)
	}
	if s.notifier != nil {
		s.notifier.NotifySwap(ctx, exam, request, from, to)
	}
	if s.roster != nil {
		s.roster.Invalidate(ctx, from.ID, to.ID)
	}
}
