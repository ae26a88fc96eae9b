package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-proctor-api/internal/dto"
	"github.com/noah-isme/exam-proctor-api/internal/models"
	"github.com/noah-isme/exam-proctor-api/internal/repository"
	appErrors "github.com/noah-isme/exam-proctor-api/pkg/errors"
)

type swapStoreStub struct {
	mu       sync.Mutex
	requests map[string]*models.SwapRequest
	claimErr error
}

func newSwapStoreStub(requests ...*models.SwapRequest) *swapStoreStub {
	s := &swapStoreStub{requests: map[string]*models.SwapRequest{}}
	for _, r := range requests {
		s.requests[r.ID] = r
	}
	return s
}

func (s *swapStoreStub) Create(_ context.Context, request *models.SwapRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if request.ID == "" {
		request.ID = "swap-" + request.AssignmentID
	}
	if request.RequestedAt.IsZero() {
		request.RequestedAt = time.Now().UTC()
	}
	stored := *request
	s.requests[request.ID] = &stored
	return nil
}

func (s *swapStoreStub) GetByID(_ context.Context, id string) (*models.SwapRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.requests[id]; ok {
		copy := *r
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *swapStoreStub) List(_ context.Context, filter models.SwapFilter) ([]models.SwapRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]models.SwapRequest, 0, len(s.requests))
	for _, r := range s.requests {
		if filter.RequestingProctorID != "" && r.RequestingProctorID != filter.RequestingProctorID {
			continue
		}
		result = append(result, *r)
	}
	return result, nil
}

func (s *swapStoreStub) ListAvailable(_ context.Context, excludeProctorID string) ([]models.SwapRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]models.SwapRequest, 0)
	for _, r := range s.requests {
		if r.Status == models.SwapStatusAvailable && r.RequestingProctorID != excludeProctorID {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (s *swapStoreStub) Claim(_ context.Context, id, claimerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimErr != nil {
		return s.claimErr
	}
	r, ok := s.requests[id]
	if !ok || r.Status != models.SwapStatusAvailable {
		return sql.ErrNoRows
	}
	r.Status = models.SwapStatusPending
	r.TargetProctorID = &claimerID
	return nil
}

func (s *swapStoreStub) Release(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok || r.Status != models.SwapStatusPending {
		return sql.ErrNoRows
	}
	r.Status = models.SwapStatusAvailable
	r.TargetProctorID = nil
	return nil
}

func (s *swapStoreStub) Resolve(_ context.Context, _ sqlx.ExtContext, params repository.ResolveSwapParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[params.ID]
	if !ok || r.Status != models.SwapStatusPending {
		return sql.ErrNoRows
	}
	r.Status = params.Status
	r.RejectionDetail = params.RejectionDetail
	r.ForcedBy = params.ForcedBy
	resolvedAt := params.ResolvedAt
	r.ResolvedAt = &resolvedAt
	return nil
}

func (s *swapStoreStub) Cancel(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok || (r.Status != models.SwapStatusPending && r.Status != models.SwapStatusAvailable) {
		return sql.ErrNoRows
	}
	r.Status = models.SwapStatusCancelled
	return nil
}

type swapAssignmentStub struct {
	assignments map[string]*models.ProctorAssignment
	history     []*models.SwapHistoryEntry
}

func newSwapAssignmentStub(assignments ...*models.ProctorAssignment) *swapAssignmentStub {
	s := &swapAssignmentStub{assignments: map[string]*models.ProctorAssignment{}}
	for _, a := range assignments {
		s.assignments[a.ID] = a
	}
	return s
}

func (s *swapAssignmentStub) FindByID(_ context.Context, id string) (*models.ProctorAssignment, error) {
	if a, ok := s.assignments[id]; ok {
		copy := *a
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *swapAssignmentStub) LockByID(_ context.Context, _ *sqlx.Tx, id string) (*models.ProctorAssignment, error) {
	if a, ok := s.assignments[id]; ok {
		copy := *a
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *swapAssignmentStub) ApplySwap(_ context.Context, _ sqlx.ExtContext, params repository.ApplySwapParams) error {
	a, ok := s.assignments[params.AssignmentID]
	if !ok {
		return sql.ErrNoRows
	}
	previous := params.PreviousProctorID
	a.ProctorID = params.NewProctorID
	a.PreviousProctorID = &previous
	a.SwapDepth = params.SwapDepth
	a.Status = models.AssignmentAssigned
	return nil
}

func (s *swapAssignmentStub) AppendSwapHistory(_ context.Context, _ sqlx.ExtContext, entry *models.SwapHistoryEntry) error {
	s.history = append(s.history, entry)
	return nil
}

func newSwapDBMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return sqlxdb, mock
}

type swapFixture struct {
	svc         *SwapService
	swaps       *swapStoreStub
	assignments *swapAssignmentStub
	booker      *bookerStub
	audit       *auditStub
	mock        sqlmock.Sqlmock
}

func newSwapFixture(t *testing.T, verdicts *verdictStub, assignments *swapAssignmentStub, swaps *swapStoreStub, proctors *proctorStoreStub, exams *examStoreStub) *swapFixture {
	db, mock := newSwapDBMock(t)
	booker := newBookerStub()
	audit := &auditStub{}
	svc := NewSwapService(db, swaps, assignments, exams, proctors, verdicts, booker, nil,
		WithSwapAudit(audit))
	return &swapFixture{svc: svc, swaps: swaps, assignments: assignments, booker: booker, audit: audit, mock: mock}
}

func TestSwapTargetedSuccess(t *testing.T) {
	exam := gradExam()
	assignment := &models.ProctorAssignment{ID: "a-1", ExamID: exam.ID, ProctorID: "px", Status: models.AssignmentAssigned}
	f := newSwapFixture(t,
		&verdictStub{verdicts: map[string]models.EligibilityVerdict{"py": {Eligible: true}}},
		newSwapAssignmentStub(assignment),
		newSwapStoreStub(),
		newProctorStoreStub(phd("px", "CS"), phd("py", "CS")),
		newExamStoreStub(exam),
	)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.svc.Create(context.Background(), dto.CreateSwapRequest{
		AssignmentID:    "a-1",
		TargetProctorID: "py",
		Reason:          "conference travel",
	}, "px", staffActor())
	require.NoError(t, err)
	require.True(t, result.Swapped)
	require.Equal(t, models.SwapStatusAutoSwap, result.Request.Status)
	require.NotNil(t, result.Request.ResolvedAt)

	// The assignment row mutates in place; history carries the hand-off.
	require.Equal(t, "py", assignment.ProctorID)
	require.Equal(t, "px", *assignment.PreviousProctorID)
	require.Equal(t, 1, assignment.SwapDepth)
	require.Len(t, f.assignments.history, 1)
	require.Equal(t, "px", f.assignments.history[0].FromProctorID)
	require.Equal(t, "py", f.assignments.history[0].ToProctorID)

	// Workload moves with the duty.
	require.Equal(t, exam.DurationMinutes, f.booker.removed["px"])
	require.Equal(t, exam.DurationMinutes, f.booker.added["py"])

	require.Contains(t, f.audit.actions(), models.AuditActionSwapAuto)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSwapTargetIneligible(t *testing.T) {
	exam := gradExam()
	assignment := &models.ProctorAssignment{ID: "a-1", ExamID: exam.ID, ProctorID: "px", Status: models.AssignmentAssigned}
	f := newSwapFixture(t,
		&verdictStub{verdicts: map[string]models.EligibilityVerdict{
			"py": {Violations: []models.Violation{{Type: models.ConstraintScheduleConflict}}},
		}},
		newSwapAssignmentStub(assignment),
		newSwapStoreStub(),
		newProctorStoreStub(phd("px", "CS"), phd("py", "CS")),
		newExamStoreStub(exam),
	)
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	result, err := f.svc.Create(context.Background(), dto.CreateSwapRequest{
		AssignmentID:    "a-1",
		TargetProctorID: "py",
		Reason:          "conference travel",
	}, "px", staffActor())
	require.NoError(t, err)
	require.False(t, result.Swapped)
	require.Equal(t, models.SwapStatusRejected, result.Request.Status)
	require.NotNil(t, result.Verdict)
	require.True(t, result.Verdict.Has(models.ConstraintScheduleConflict))

	var detail map[string]interface{}
	require.NoError(t, json.Unmarshal(result.Request.RejectionDetail, &detail))
	require.Contains(t, detail, "verdict")

	// Nothing moved.
	require.Equal(t, "px", assignment.ProctorID)
	require.Zero(t, assignment.SwapDepth)
	require.Empty(t, f.assignments.history)
	require.Empty(t, f.booker.removed)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSwapAlreadySwappedLoses(t *testing.T) {
	exam := gradExam()
	// The slot changed hands after the request was written.
	assignment := &models.ProctorAssignment{ID: "a-1", ExamID: exam.ID, ProctorID: "pz", Status: models.AssignmentAssigned, SwapDepth: 1}
	target := "py"
	request := &models.SwapRequest{
		ID: "swap-1", AssignmentID: "a-1", RequestingProctorID: "px",
		TargetProctorID: &target, Status: models.SwapStatusPending, Reason: "stale",
	}
	f := newSwapFixture(t,
		&verdictStub{},
		newSwapAssignmentStub(assignment),
		newSwapStoreStub(request),
		newProctorStoreStub(phd("px", "CS"), phd("py", "CS"), phd("pz", "CS")),
		newExamStoreStub(exam),
	)
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	result, err := f.svc.Force(context.Background(), "swap-1", staffActor())
	require.Nil(t, result)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrAlreadySwapped.Code, appErr.Code)

	// The request is finalized REJECTED even though the caller sees a conflict.
	require.Equal(t, models.SwapStatusRejected, request.Status)
	var detail map[string]interface{}
	require.NoError(t, json.Unmarshal(request.RejectionDetail, &detail))
	require.Equal(t, "already_swapped", detail["reason"])

	require.Equal(t, "pz", assignment.ProctorID)
	require.Equal(t, 1, assignment.SwapDepth)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSwapClaimSuccess(t *testing.T) {
	exam := gradExam()
	assignment := &models.ProctorAssignment{ID: "a-1", ExamID: exam.ID, ProctorID: "px", Status: models.AssignmentAssigned}
	request := &models.SwapRequest{
		ID: "swap-1", AssignmentID: "a-1", RequestingProctorID: "px",
		Status: models.SwapStatusAvailable, Reason: "open offer",
	}
	f := newSwapFixture(t,
		&verdictStub{verdicts: map[string]models.EligibilityVerdict{"py": {Eligible: true}}},
		newSwapAssignmentStub(assignment),
		newSwapStoreStub(request),
		newProctorStoreStub(phd("px", "CS"), phd("py", "CS")),
		newExamStoreStub(exam),
	)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.svc.Claim(context.Background(), "swap-1", "py", staffActor())
	require.NoError(t, err)
	require.True(t, result.Swapped)
	require.Equal(t, models.SwapStatusAutoSwap, result.Request.Status)
	require.Equal(t, "py", assignment.ProctorID)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSwapClaimRaceLoserGetsConflict(t *testing.T) {
	request := &models.SwapRequest{
		ID: "swap-1", AssignmentID: "a-1", RequestingProctorID: "px",
		Status: models.SwapStatusAvailable, Reason: "open offer",
	}
	swaps := newSwapStoreStub(request)
	// The guarded UPDATE matched zero rows: someone else claimed first.
	swaps.claimErr = sql.ErrNoRows
	f := newSwapFixture(t, &verdictStub{}, newSwapAssignmentStub(), swaps,
		newProctorStoreStub(phd("px", "CS"), phd("py", "CS")), newExamStoreStub())

	_, err := f.svc.Claim(context.Background(), "swap-1", "py", staffActor())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSwapClaimIneligibleReturnsToBoard(t *testing.T) {
	exam := gradExam()
	assignment := &models.ProctorAssignment{ID: "a-1", ExamID: exam.ID, ProctorID: "px", Status: models.AssignmentAssigned}
	request := &models.SwapRequest{
		ID: "swap-1", AssignmentID: "a-1", RequestingProctorID: "px",
		Status: models.SwapStatusAvailable, Reason: "open offer",
	}
	f := newSwapFixture(t,
		&verdictStub{verdicts: map[string]models.EligibilityVerdict{
			"py": {Violations: []models.Violation{{Type: models.ConstraintWorkloadCap}}},
		}},
		newSwapAssignmentStub(assignment),
		newSwapStoreStub(request),
		newProctorStoreStub(phd("px", "CS"), phd("py", "CS")),
		newExamStoreStub(exam),
	)
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	result, err := f.svc.Claim(context.Background(), "swap-1", "py", staffActor())
	require.NoError(t, err)
	require.False(t, result.Swapped)
	require.Equal(t, models.SwapStatusAvailable, result.Request.Status)
	require.Nil(t, result.Request.TargetProctorID)

	stored, err := f.swaps.GetByID(context.Background(), "swap-1")
	require.NoError(t, err)
	require.Equal(t, models.SwapStatusAvailable, stored.Status)
	require.Equal(t, "px", assignment.ProctorID)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSwapForceOverridesEligibility(t *testing.T) {
	exam := gradExam()
	assignment := &models.ProctorAssignment{ID: "a-1", ExamID: exam.ID, ProctorID: "px", Status: models.AssignmentAssigned}
	target := "py"
	request := &models.SwapRequest{
		ID: "swap-1", AssignmentID: "a-1", RequestingProctorID: "px",
		TargetProctorID: &target, Status: models.SwapStatusPending, Reason: "emergency",
	}
	f := newSwapFixture(t,
		&verdictStub{verdicts: map[string]models.EligibilityVerdict{
			"py": {Violations: []models.Violation{{Type: models.ConstraintWorkloadCap}}},
		}},
		newSwapAssignmentStub(assignment),
		newSwapStoreStub(request),
		newProctorStoreStub(phd("px", "CS"), phd("py", "CS")),
		newExamStoreStub(exam),
	)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.svc.Force(context.Background(), "swap-1", staffActor())
	require.NoError(t, err)
	require.True(t, result.Swapped)
	require.Equal(t, models.SwapStatusForceSwap, result.Request.Status)
	require.NotNil(t, result.Request.ForcedBy)
	require.Equal(t, "staff-1", *result.Request.ForcedBy)
	require.Equal(t, "py", assignment.ProctorID)
	require.Contains(t, f.audit.actions(), models.AuditActionSwapForce)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSwapCancelOnlyByRequester(t *testing.T) {
	request := &models.SwapRequest{
		ID: "swap-1", AssignmentID: "a-1", RequestingProctorID: "px",
		Status: models.SwapStatusAvailable, Reason: "open offer",
	}
	f := newSwapFixture(t, &verdictStub{}, newSwapAssignmentStub(), newSwapStoreStub(request),
		newProctorStoreStub(phd("px", "CS")), newExamStoreStub())

	_, err := f.svc.Cancel(context.Background(), "swap-1", "py")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	cancelled, err := f.svc.Cancel(context.Background(), "swap-1", "px")
	require.NoError(t, err)
	require.Equal(t, models.SwapStatusCancelled, cancelled.Status)

	// Cancelling a finalized request is a conflict.
	_, err = f.svc.Cancel(context.Background(), "swap-1", "px")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrSwapFinalized.Code, appErrors.FromError(err).Code)
}

func TestSwapCreateValidations(t *testing.T) {
	exam := gradExam()
	assignment := &models.ProctorAssignment{ID: "a-1", ExamID: exam.ID, ProctorID: "px", Status: models.AssignmentAssigned}
	f := newSwapFixture(t, &verdictStub{}, newSwapAssignmentStub(assignment), newSwapStoreStub(),
		newProctorStoreStub(phd("px", "CS"), phd("py", "CS")), newExamStoreStub(exam))

	// Only the current holder can offer the assignment.
	_, err := f.svc.Create(context.Background(), dto.CreateSwapRequest{
		AssignmentID: "a-1", TargetProctorID: "px", Reason: "nope",
	}, "py", staffActor())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// Self-targeting is rejected.
	_, err = f.svc.Create(context.Background(), dto.CreateSwapRequest{
		AssignmentID: "a-1", TargetProctorID: "px", Reason: "self",
	}, "px", staffActor())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSwapOpenRequestRestsAvailable(t *testing.T) {
	exam := gradExam()
	assignment := &models.ProctorAssignment{ID: "a-1", ExamID: exam.ID, ProctorID: "px", Status: models.AssignmentAssigned}
	f := newSwapFixture(t, &verdictStub{}, newSwapAssignmentStub(assignment), newSwapStoreStub(),
		newProctorStoreStub(phd("px", "CS")), newExamStoreStub(exam))

	result, err := f.svc.Create(context.Background(), dto.CreateSwapRequest{
		AssignmentID: "a-1", Reason: "anyone welcome",
	}, "px", staffActor())
	require.NoError(t, err)
	require.False(t, result.Swapped)
	require.Equal(t, models.SwapStatusAvailable, result.Request.Status)

	// The open board hides the requester's own offer.
	board, err := f.svc.ListAvailable(context.Background(), "px")
	require.NoError(t, err)
	require.Empty(t, board)
	board, err = f.svc.ListAvailable(context.Background(), "py")
	require.NoError(t, err)
	require.Len(t, board, 1)
}

func TestSwapClaimSingleWinner(t *testing.T) {
	exam := gradExam()
	assignment := &models.ProctorAssignment{ID: "a-1", ExamID: exam.ID, ProctorID: "px", Status: models.AssignmentAssigned}
	request := &models.SwapRequest{
		ID: "swap-1", AssignmentID: "a-1", RequestingProctorID: "px",
		Status: models.SwapStatusAvailable, Reason: "open offer",
	}
	f := newSwapFixture(t,
		&verdictStub{verdicts: map[string]models.EligibilityVerdict{
			"py": {Eligible: true},
			"pz": {Eligible: true},
		}},
		newSwapAssignmentStub(assignment),
		newSwapStoreStub(request),
		newProctorStoreStub(phd("px", "CS"), phd("py", "CS"), phd("pz", "CS")),
		newExamStoreStub(exam),
	)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	type outcome struct {
		result *dto.SwapResult
		err    error
	}
	outcomes := make(chan outcome, 2)
	var wg sync.WaitGroup
	for _, claimer := range []string{"py", "pz"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			result, err := f.svc.Claim(context.Background(), "swap-1", id, staffActor())
			outcomes <- outcome{result: result, err: err}
		}(claimer)
	}
	wg.Wait()
	close(outcomes)

	var wins, conflicts int
	for o := range outcomes {
		if o.err != nil {
			require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(o.err).Code)
			conflicts++
			continue
		}
		require.True(t, o.result.Swapped)
		wins++
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 1, conflicts)
	require.Equal(t, 1, assignment.SwapDepth)
	require.NoError(t, f.mock.ExpectationsWereMet())
}
