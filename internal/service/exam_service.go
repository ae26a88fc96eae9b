package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-proctor-api/internal/dto"
	"github.com/noah-isme/exam-proctor-api/internal/models"
	appErrors "github.com/noah-isme/exam-proctor-api/pkg/errors"
)

type examCatalog interface {
	Create(ctx context.Context, exam *models.Exam) error
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, error)
}

type examAssignmentReader interface {
	ListByExam(ctx context.Context, examID string) ([]models.ProctorAssignment, error)
	ListHistory(ctx context.Context, assignmentID string) ([]models.SwapHistoryEntry, error)
}

// ExamService manages the exam catalog. Durations are derived from the
// HH:MM window at create time so every downstream workload calculation
// reads one authoritative number.
type ExamService struct {
	exams       examCatalog
	assignments examAssignmentReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewExamService creates a service instance.
func NewExamService(exams examCatalog, assignments examAssignmentReader, logger *zap.Logger) *ExamService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamService{
		exams:       exams,
		assignments: assignments,
		validator:   validator.New(),
		logger:      logger,
	}
}

// Create registers a new exam in PENDING state.
func (s *ExamService) Create(ctx context.Context, req dto.CreateExamRequest) (*models.Exam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}
	duration, err := models.ExamDuration(req.StartTime, req.EndTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam time window")
	}
	date, err := time.ParseInLocation("2006-01-02", req.Date, time.UTC)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam date, expected YYYY-MM-DD")
	}
	var room *string
	if trimmed := strings.TrimSpace(req.Room); trimmed != "" {
		room = &trimmed
	}
	var instructorEmail *string
	if trimmed := strings.TrimSpace(req.InstructorEmail); trimmed != "" {
		instructorEmail = &trimmed
	}

	exam := &models.Exam{
		CourseCode:           req.CourseCode,
		CourseDepartment:     req.CourseDepartment,
		Section:              req.Section,
		Title:                req.Title,
		InstructorName:       req.InstructorName,
		InstructorEmail:      instructorEmail,
		Type:                 models.ExamType(req.Type),
		TermID:               req.TermID,
		Date:                 date,
		StartTime:            req.StartTime,
		EndTime:              req.EndTime,
		DurationMinutes:      duration,
		RequiredProctorCount: req.RequiredProctorCount,
		Status:               models.ExamStatusPending,
		Room:                 room,
	}
	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam")
	}
	s.logger.Info("exam created",
		zap.String("exam_id", exam.ID),
		zap.String("course", exam.CourseCode),
		zap.Int("duration_minutes", exam.DurationMinutes),
	)
	return exam, nil
}

// Get fetches one exam.
func (s *ExamService) Get(ctx context.Context, id string) (*models.Exam, error) {
	exam, err := s.exams.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	return exam, nil
}

// List returns exams matching the filter.
func (s *ExamService) List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, error) {
	exams, err := s.exams.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}
	return exams, nil
}

// Assignments returns every assignment row for the exam, active or not.
func (s *ExamService) Assignments(ctx context.Context, examID string) ([]models.ProctorAssignment, error) {
	if _, err := s.Get(ctx, examID); err != nil {
		return nil, err
	}
	assignments, err := s.assignments.ListByExam(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// AssignmentHistory returns the append-only swap trail for one assignment.
func (s *ExamService) AssignmentHistory(ctx context.Context, assignmentID string) ([]models.SwapHistoryEntry, error) {
	history, err := s.assignments.ListHistory(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load swap history")
	}
	return history, nil
}
