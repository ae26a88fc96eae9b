package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-proctor-api/internal/dto"
	"github.com/noah-isme/exam-proctor-api/internal/models"
	"github.com/noah-isme/exam-proctor-api/pkg/config"
	appErrors "github.com/noah-isme/exam-proctor-api/pkg/errors"
)

type examStore interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ExamStatus, needsCrossDepartment bool) error
}

type proctorStore interface {
	FindByID(ctx context.Context, id string) (*models.Proctor, error)
	ListActive(ctx context.Context) ([]models.Proctor, error)
	ListCourseAssistantIDs(ctx context.Context, courseCode string) ([]string, error)
}

type assignmentPlannerStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, assignment *models.ProctorAssignment) error
	ListByExam(ctx context.Context, examID string) ([]models.ProctorAssignment, error)
	HasActiveOnDates(ctx context.Context, proctorID string, dates []time.Time) (bool, error)
}

type eligibilityChecker interface {
	Check(ctx context.Context, proctor *models.Proctor, exam *models.Exam, excludeAssignment *models.ProctorAssignment) (*models.EligibilityVerdict, error)
}

type workloadBooker interface {
	AddCommitted(ctx context.Context, exec sqlx.ExtContext, proctor *models.Proctor, termID string, minutes int) error
	RemoveCommitted(ctx context.Context, exec sqlx.ExtContext, proctor *models.Proctor, termID string, minutes int) error
}

type txBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type assignmentNotifier interface {
	NotifyAssignment(ctx context.Context, exam *models.Exam, proctor *models.Proctor)
	NotifyEscalation(ctx context.Context, exam *models.Exam, shortfall int)
}

type rosterInvalidator interface {
	Invalidate(ctx context.Context, proctorIDs ...string)
}

type plannerMetrics interface {
	PlanExecuted(success bool)
	AssignmentRecorded(mode string)
	RelaxationApplied(constraint string)
	EscalationRaised()
}

// PlannerService fills an exam's proctor slots. Manual picks and the auto
// pool are evaluated against the same eligibility rules; shortfalls trigger
// relaxation passes in the configured order, and an exam that still cannot
// be filled is escalated for cross-department handling instead of failing
// the request.
type PlannerService struct {
	db          txBeginner
	exams       examStore
	proctors    proctorStore
	assignments assignmentPlannerStore
	eligibility eligibilityChecker
	workload    workloadBooker
	audit       auditLogger
	notifier    assignmentNotifier
	roster      rosterInvalidator
	metrics     plannerMetrics
	engine      config.EngineConfig
	validator   *validator.Validate
	logger      *zap.Logger
}

// PlannerServiceOption configures optional collaborators.
type PlannerServiceOption func(*PlannerService)

// WithPlannerAudit attaches the audit sink.
func WithPlannerAudit(audit auditLogger) PlannerServiceOption {
	return func(s *PlannerService) { s.audit = audit }
}

// WithPlannerNotifier attaches the notification sink.
func WithPlannerNotifier(n assignmentNotifier) PlannerServiceOption {
	return func(s *PlannerService) { s.notifier = n }
}

// WithPlannerRosterCache attaches the roster cache invalidator.
func WithPlannerRosterCache(r rosterInvalidator) PlannerServiceOption {
	return func(s *PlannerService) { s.roster = r }
}

// WithPlannerMetrics attaches the metrics recorder.
func WithPlannerMetrics(m plannerMetrics) PlannerServiceOption {
	return func(s *PlannerService) { s.metrics = m }
}

// NewPlannerService creates a service instance.
func NewPlannerService(
	db txBeginner,
	exams examStore,
	proctors proctorStore,
	assignments assignmentPlannerStore,
	eligibility eligibilityChecker,
	workload workloadBooker,
	engine config.EngineConfig,
	logger *zap.Logger,
	opts ...PlannerServiceOption,
) *PlannerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(engine.RelaxationOrder) == 0 {
		engine.RelaxationOrder = []string{
			string(models.ConstraintConsecutiveDay),
			string(models.ConstraintPhDRequired),
		}
	}
	s := &PlannerService{
		db:          db,
		exams:       exams,
		proctors:    proctors,
		assignments: assignments,
		eligibility: eligibility,
		workload:    workload,
		engine:      engine,
		validator:   validator.New(),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// planCandidate carries one proctor through pooling, relaxation and ranking.
type planCandidate struct {
	proctor        *models.Proctor
	verdict        *models.EligibilityVerdict
	fromCourse     bool
	fromDepartment bool
	consecutive    bool
	overrideReason string
}

// Plan runs one planning pass for the exam. All assignment rows, workload
// bookings and the exam status transition commit in a single transaction;
// audit entries and notifications follow only after commit.
func (s *PlannerService) Plan(ctx context.Context, examID string, req dto.PlanAssignmentRequest, actor *models.JWTClaims) (*dto.PlanResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid planning request")
	}

	exam, err := s.exams.FindByID(ctx, examID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	if exam.Status != models.ExamStatusPending && exam.Status != models.ExamStatusEscalated {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("exam is %s and cannot be planned", exam.Status))
	}
	if len(req.ManualProctorIDs)+req.AutoCount != exam.RequiredProctorCount {
		return nil, appErrors.Clone(appErrors.ErrCountMismatch,
			fmt.Sprintf("%d manual + %d auto does not cover %d required proctors",
				len(req.ManualProctorIDs), req.AutoCount, exam.RequiredProctorCount))
	}
	seen := make(map[string]struct{}, len(req.ManualProctorIDs))
	for _, id := range req.ManualProctorIDs {
		if _, dup := seen[id]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, "duplicate proctor in manual selection")
		}
		seen[id] = struct{}{}
	}

	result := &dto.PlanResult{ExamID: exam.ID}

	existing, err := s.assignments.ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing assignments")
	}
	taken := make(map[string]struct{})
	for i := range existing {
		if existing[i].Active() {
			taken[existing[i].ProctorID] = struct{}{}
		}
	}

	// Manual picks go through the same rules as everyone else; a rejected
	// pick leaves a hole the escalation path reports, it never aborts the
	// run.
	var manual []planCandidate
	for _, id := range req.ManualProctorIDs {
		proctor, err := s.proctors.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("proctor %s not found", id))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proctor")
		}
		if _, dup := taken[id]; dup {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("proctor %s is already assigned to this exam", id))
		}
		verdict, err := s.eligibility.Check(ctx, proctor, exam, nil)
		if err != nil {
			return nil, err
		}
		if !verdict.Eligible {
			result.Rejections = append(result.Rejections, dto.PlanRejection{ProctorID: id, Verdict: *verdict})
			continue
		}
		manual = append(manual, planCandidate{proctor: proctor, verdict: verdict})
	}

	auto, err := s.selectAuto(ctx, exam, req.AutoCount+(len(req.ManualProctorIDs)-len(manual)), seen, taken, result)
	if err != nil {
		return nil, err
	}

	selected := append(manual, auto...)
	shortfall := exam.RequiredProctorCount - len(selected)
	result.Success = shortfall == 0
	result.NeedsCrossDepartment = shortfall > 0

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	for i := range selected {
		c := &selected[i]
		assignment := &models.ProctorAssignment{
			ExamID:       exam.ID,
			ProctorID:    c.proctor.ID,
			Status:       models.AssignmentAssigned,
			OverrideFlag: c.overrideReason != "",
		}
		if c.overrideReason != "" {
			reason := c.overrideReason
			assignment.OverrideReason = &reason
		}
		if err := s.assignments.Create(ctx, tx, assignment); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
		}
		if err := s.workload.AddCommitted(ctx, tx, c.proctor, exam.TermID, exam.DurationMinutes); err != nil {
			return nil, err
		}
		result.Assigned = append(result.Assigned, *assignment)
	}

	status := models.ExamStatusScheduled
	if shortfall > 0 {
		status = models.ExamStatusEscalated
	}
	if err := s.exams.UpdateStatus(ctx, tx, exam.ID, status, shortfall > 0); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update exam status")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit plan")
	}

	s.afterPlan(ctx, exam, selected, manual, shortfall, result, actor)
	return result, nil
}

// selectAuto builds, filters, relaxes and ranks the automatic candidate
// pool, returning at most needed candidates.
func (s *PlannerService) selectAuto(ctx context.Context, exam *models.Exam, needed int, manualIDs map[string]struct{}, taken map[string]struct{}, result *dto.PlanResult) ([]planCandidate, error) {
	if needed <= 0 {
		return nil, nil
	}

	pool, err := s.proctors.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proctor pool")
	}
	assistantIDs, err := s.proctors.ListCourseAssistantIDs(ctx, exam.CourseCode)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course assistants")
	}
	assistants := make(map[string]struct{}, len(assistantIDs))
	for _, id := range assistantIDs {
		assistants[id] = struct{}{}
	}
	adjacent := []time.Time{exam.Date.AddDate(0, 0, -1), exam.Date.AddDate(0, 0, 1)}

	var primary, consecutive, relaxablePhD []planCandidate
	for i := range pool {
		proctor := &pool[i]
		if _, skip := manualIDs[proctor.ID]; skip {
			continue
		}
		if _, skip := taken[proctor.ID]; skip {
			continue
		}
		verdict, err := s.eligibility.Check(ctx, proctor, exam, nil)
		if err != nil {
			return nil, err
		}
		busyAdjacent, err := s.assignments.HasActiveOnDates(ctx, proctor.ID, adjacent)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check adjacent duties")
		}
		_, fromCourse := assistants[proctor.ID]
		candidate := planCandidate{
			proctor:        proctor,
			verdict:        verdict,
			fromCourse:     fromCourse,
			fromDepartment: proctor.DepartmentCode == exam.CourseDepartment,
			consecutive:    busyAdjacent,
		}
		switch {
		case verdict.Eligible && !busyAdjacent:
			primary = append(primary, candidate)
		case verdict.Eligible && busyAdjacent:
			consecutive = append(consecutive, candidate)
		case verdict.HasOnly(models.ConstraintPhDRequired) && verdict.Violations[0].CanOverride:
			// Adjacent-day pressure is ranking metadata here, not a block;
			// the candidate is only reachable through the PHD pass anyway.
			relaxablePhD = append(relaxablePhD, candidate)
		default:
			result.Rejections = append(result.Rejections, dto.PlanRejection{ProctorID: proctor.ID, Verdict: *verdict})
		}
	}

	rankCandidates(primary)
	selected := primary
	if len(selected) > needed {
		selected = selected[:needed]
	}

	for _, constraint := range s.engine.RelaxationOrder {
		if len(selected) >= needed {
			break
		}
		var admitted []planCandidate
		var reason string
		switch models.ConstraintType(constraint) {
		case models.ConstraintConsecutiveDay:
			admitted = consecutive
			reason = "consecutive exam-day limit relaxed"
			consecutive = nil
		case models.ConstraintPhDRequired:
			admitted = relaxablePhD
			reason = "graduate-level proctor requirement relaxed"
			relaxablePhD = nil
		default:
			continue
		}
		if len(admitted) == 0 {
			continue
		}
		rankCandidates(admitted)
		if remaining := needed - len(selected); len(admitted) > remaining {
			admitted = admitted[:remaining]
		}
		relaxation := dto.PlanRelaxation{Constraint: models.ConstraintType(constraint), Reason: reason}
		for i := range admitted {
			admitted[i].overrideReason = reason
			relaxation.ProctorIDs = append(relaxation.ProctorIDs, admitted[i].proctor.ID)
			if s.metrics != nil {
				s.metrics.RelaxationApplied(constraint)
			}
		}
		result.Relaxations = append(result.Relaxations, relaxation)
		selected = append(selected, admitted...)
	}
	return selected, nil
}

// rankCandidates orders the pool: course assistants first, then same
// department, then free adjacent days, then the lightest workload. The
// trailing ID comparison keeps runs deterministic.
func rankCandidates(pool []planCandidate) {
	sort.SliceStable(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		if a.fromCourse != b.fromCourse {
			return a.fromCourse
		}
		if a.fromDepartment != b.fromDepartment {
			return a.fromDepartment
		}
		if a.consecutive != b.consecutive {
			return !a.consecutive
		}
		if a.verdict.Workload.Current != b.verdict.Workload.Current {
			return a.verdict.Workload.Current < b.verdict.Workload.Current
		}
		return a.proctor.ID < b.proctor.ID
	})
}

// afterPlan emits audit entries, notifications, cache invalidations and
// metrics. Nothing here can undo the committed plan, so every failure is
// logged and swallowed.
func (s *PlannerService) afterPlan(ctx context.Context, exam *models.Exam, selected, manual []planCandidate, shortfall int, result *dto.PlanResult, actor *models.JWTClaims) {
	manualSet := make(map[string]struct{}, len(manual))
	for i := range manual {
		manualSet[manual[i].proctor.ID] = struct{}{}
	}
	proctorIDs := make([]string, 0, len(selected))
	for i := range selected {
		c := selected[i]
		proctorIDs = append(proctorIDs, c.proctor.ID)
		action := models.AuditActionAssignAuto
		if _, isManual := manualSet[c.proctor.ID]; isManual {
			action = models.AuditActionAssignManual
		} else if c.overrideReason != "" {
			action = models.AuditActionAssignAutoRelaxed
		}
		s.emitAudit(ctx, actor, action, "proctor_assignments", c.proctor.ID,
			fmt.Sprintf("proctor %s assigned to exam %s", c.proctor.ID, exam.ID), nil)
		if s.metrics != nil {
			mode := "auto"
			if action == models.AuditActionAssignManual {
				mode = "manual"
			} else if action == models.AuditActionAssignAutoRelaxed {
				mode = "auto_relaxed"
			}
			s.metrics.AssignmentRecorded(mode)
		}
		if s.notifier != nil {
			s.notifier.NotifyAssignment(ctx, exam, c.proctor)
		}
	}

	if shortfall > 0 {
		detail, _ := json.Marshal(map[string]interface{}{
			"shortfall":  shortfall,
			"rejections": len(result.Rejections),
		})
		s.emitAudit(ctx, actor, models.AuditActionInsufficientTAs, "exams", exam.ID,
			fmt.Sprintf("exam %s short %d proctors, escalated for cross-department assignment", exam.ID, shortfall), detail)
		if s.metrics != nil {
			s.metrics.EscalationRaised()
		}
		if s.notifier != nil {
			s.notifier.NotifyEscalation(ctx, exam, shortfall)
		}
	} else {
		s.emitAudit(ctx, actor, models.AuditActionExamScheduled, "exams", exam.ID,
			fmt.Sprintf("exam %s fully staffed with %d proctors", exam.ID, len(selected)), nil)
	}
	if s.metrics != nil {
		s.metrics.PlanExecuted(shortfall == 0)
	}
	if s.roster != nil && len(proctorIDs) > 0 {
		s.roster.Invalidate(ctx, proctorIDs...)
	}
}

func (s *PlannerService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resource, resourceID, description string, newValues []byte) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		Action:      action,
		Resource:    resource,
		ResourceID:  &resourceID,
		Description: description,
		NewValues:   newValues,
	}
	if actor != nil {
		actorID := actor.UserID
		entry.ActorID = &actorID
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}
