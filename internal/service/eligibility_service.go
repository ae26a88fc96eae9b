package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/exam-proctor-api/internal/models"
	"github.com/noah-isme/exam-proctor-api/pkg/config"
	appErrors "github.com/noah-isme/exam-proctor-api/pkg/errors"
)

type constraintReader interface {
	ListByProctor(ctx context.Context, proctorID string) ([]models.ProctorConstraint, error)
}

type dutyReader interface {
	ListActiveDetailByProctorOnDate(ctx context.Context, proctorID string, date time.Time) ([]models.AssignmentDetail, error)
}

type workloadReader interface {
	Committed(ctx context.Context, proctorID, termID string) (int, error)
	ResolveCap(proctor *models.Proctor) int
}

// EligibilityService evaluates one proctor against one exam and returns a
// structured verdict. It mutates nothing; callers decide what to do with
// the verdict. Rules run in a fixed order so identical inputs always yield
// identical violation lists.
type EligibilityService struct {
	constraints constraintReader
	duties      dutyReader
	workload    workloadReader
	engine      config.EngineConfig
	logger      *zap.Logger
}

// NewEligibilityService creates a service instance.
func NewEligibilityService(constraints constraintReader, duties dutyReader, workload workloadReader, engine config.EngineConfig, logger *zap.Logger) *EligibilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine.GraduateLevelDigit <= 0 {
		engine.GraduateLevelDigit = 5
	}
	return &EligibilityService{
		constraints: constraints,
		duties:      duties,
		workload:    workload,
		engine:      engine,
		logger:      logger,
	}
}

// Check runs every hard rule for the (proctor, exam) pair and collects all
// violations rather than stopping at the first. excludeAssignment, when set,
// names an assignment the proctor is about to give up: its exam is skipped
// in the conflict scan and its minutes are subtracted from the workload
// projection.
func (s *EligibilityService) Check(ctx context.Context, proctor *models.Proctor, exam *models.Exam, excludeAssignment *models.ProctorAssignment) (*models.EligibilityVerdict, error) {
	verdict := &models.EligibilityVerdict{
		CrossDepartment: proctor.DepartmentCode != exam.CourseDepartment,
	}

	if digit := models.CourseLevelDigit(exam.CourseCode); digit >= s.engine.GraduateLevelDigit && proctor.AcademicLevel != models.LevelPhD {
		verdict.Violations = append(verdict.Violations, models.Violation{
			Type:        models.ConstraintPhDRequired,
			CanOverride: digit < s.engine.CoreGraduateDigit,
			Detail:      fmt.Sprintf("%s requires a PhD-level proctor", exam.CourseCode),
		})
	}

	constraints, err := s.constraints.ListByProctor(ctx, proctor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proctor constraints")
	}
	for _, c := range constraints {
		switch c.Type {
		case models.ConstraintOwnExam:
			if c.ExamID != nil && *c.ExamID == exam.ID {
				verdict.Violations = append(verdict.Violations, models.Violation{
					Type:   models.ConstraintOwnExam,
					Detail: "proctor assists the course this exam belongs to",
				})
			}
		case models.ConstraintLeaveDay:
			if c.Date != nil && sameDay(*c.Date, exam.Date) {
				verdict.Violations = append(verdict.Violations, models.Violation{
					Type:   models.ConstraintLeaveDay,
					Detail: fmt.Sprintf("approved leave on %s", exam.Date.Format("2006-01-02")),
				})
			}
		}
	}

	examStart, examEnd, err := exam.TimeWindow()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "exam has an invalid time window")
	}
	duties, err := s.duties.ListActiveDetailByProctorOnDate(ctx, proctor.ID, exam.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load same-day duties")
	}
	for _, duty := range duties {
		if duty.ExamID == exam.ID {
			continue
		}
		if excludeAssignment != nil && duty.ID == excludeAssignment.ID {
			continue
		}
		start, perr := models.ParseClock(duty.StartTime)
		if perr != nil {
			continue
		}
		end := start + duty.DurationMinutes
		if start < examEnd && examStart < end {
			verdict.Violations = append(verdict.Violations, models.Violation{
				Type:   models.ConstraintScheduleConflict,
				Detail: fmt.Sprintf("overlaps %s %s-%s", duty.CourseCode, duty.StartTime, duty.EndTime),
			})
			break
		}
	}

	current, err := s.workload.Committed(ctx, proctor.ID, exam.TermID)
	if err != nil {
		return nil, err
	}
	if excludeAssignment != nil && excludeAssignment.ExamID == exam.ID && excludeAssignment.ProctorID == proctor.ID {
		current -= exam.DurationMinutes
		if current < 0 {
			current = 0
		}
	}
	cap := s.workload.ResolveCap(proctor)
	verdict.Workload = models.WorkloadProjection{
		Current:       current,
		AfterThisExam: current + exam.DurationMinutes,
		Cap:           cap,
	}
	if verdict.Workload.AfterThisExam > cap {
		verdict.Violations = append(verdict.Violations, models.Violation{
			Type:   models.ConstraintWorkloadCap,
			Detail: fmt.Sprintf("would commit %d of %d allowed minutes", verdict.Workload.AfterThisExam, cap),
		})
	}

	verdict.Eligible = len(verdict.Violations) == 0
	return verdict, nil
}

func sameDay(a, b time.Time) bool {
	return a.Format("2006-01-02") == b.Format("2006-01-02")
}
