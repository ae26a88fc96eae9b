package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-proctor-api/internal/models"
	"github.com/noah-isme/exam-proctor-api/pkg/config"
)

type constraintStub struct {
	constraints map[string][]models.ProctorConstraint
}

func (s *constraintStub) ListByProctor(_ context.Context, proctorID string) ([]models.ProctorConstraint, error) {
	return s.constraints[proctorID], nil
}

type dutyStub struct {
	duties map[string][]models.AssignmentDetail
}

func (s *dutyStub) ListActiveDetailByProctorOnDate(_ context.Context, proctorID string, _ time.Time) ([]models.AssignmentDetail, error) {
	return s.duties[proctorID], nil
}

type workloadStub struct {
	committed map[string]int
	caps      map[string]int
}

func (s *workloadStub) Committed(_ context.Context, proctorID, _ string) (int, error) {
	return s.committed[proctorID], nil
}

func (s *workloadStub) ResolveCap(proctor *models.Proctor) int {
	if cap, ok := s.caps[proctor.ID]; ok {
		return cap
	}
	return 1200
}

func newEligibilityFixture() (*EligibilityService, *constraintStub, *dutyStub, *workloadStub) {
	constraints := &constraintStub{constraints: map[string][]models.ProctorConstraint{}}
	duties := &dutyStub{duties: map[string][]models.AssignmentDetail{}}
	workload := &workloadStub{committed: map[string]int{}, caps: map[string]int{}}
	svc := NewEligibilityService(constraints, duties, workload, config.EngineConfig{
		GraduateLevelDigit: 5,
		CoreGraduateDigit:  6,
	}, nil)
	return svc, constraints, duties, workload
}

func phd(id, dept string) *models.Proctor {
	return &models.Proctor{ID: id, DepartmentCode: dept, AcademicLevel: models.LevelPhD, EmploymentType: models.EmploymentFullTime, Active: true}
}

func msc(id, dept string) *models.Proctor {
	return &models.Proctor{ID: id, DepartmentCode: dept, AcademicLevel: models.LevelMSc, EmploymentType: models.EmploymentFullTime, Active: true}
}

func gradExam() *models.Exam {
	return &models.Exam{
		ID:               "exam-1",
		CourseCode:       "CS546",
		CourseDepartment: "CS",
		TermID:           "2026F",
		Date:             time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC),
		StartTime:        "09:00",
		EndTime:          "11:00",
		DurationMinutes:  120,
	}
}

func TestEligibilityGraduateCourseNeedsPhD(t *testing.T) {
	svc, _, _, _ := newEligibilityFixture()

	verdict, err := svc.Check(context.Background(), msc("p1", "CS"), gradExam(), nil)
	require.NoError(t, err)
	require.False(t, verdict.Eligible)
	require.True(t, verdict.HasOnly(models.ConstraintPhDRequired))
	// A 500-level course is relaxable, a 600-level one is not.
	require.True(t, verdict.Violations[0].CanOverride)

	verdict, err = svc.Check(context.Background(), phd("p2", "CS"), gradExam(), nil)
	require.NoError(t, err)
	require.True(t, verdict.Eligible)
}

func TestEligibilityCoreGraduateNotOverridable(t *testing.T) {
	svc, _, _, _ := newEligibilityFixture()
	exam := gradExam()
	exam.CourseCode = "CS646"

	verdict, err := svc.Check(context.Background(), msc("p1", "CS"), exam, nil)
	require.NoError(t, err)
	require.False(t, verdict.Eligible)
	require.False(t, verdict.Violations[0].CanOverride)
}

func TestEligibilityOwnExam(t *testing.T) {
	svc, constraints, _, _ := newEligibilityFixture()
	examID := "exam-1"
	constraints.constraints["p1"] = []models.ProctorConstraint{
		{ProctorID: "p1", Type: models.ConstraintOwnExam, ExamID: &examID},
	}

	verdict, err := svc.Check(context.Background(), phd("p1", "CS"), gradExam(), nil)
	require.NoError(t, err)
	require.False(t, verdict.Eligible)
	require.True(t, verdict.Has(models.ConstraintOwnExam))
}

func TestEligibilityLeaveDay(t *testing.T) {
	svc, constraints, _, _ := newEligibilityFixture()
	leave := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	constraints.constraints["p1"] = []models.ProctorConstraint{
		{ProctorID: "p1", Type: models.ConstraintLeaveDay, Date: &leave},
	}

	verdict, err := svc.Check(context.Background(), phd("p1", "CS"), gradExam(), nil)
	require.NoError(t, err)
	require.False(t, verdict.Eligible)
	require.True(t, verdict.Has(models.ConstraintLeaveDay))

	// Leave on a different day does not block.
	otherLeave := leave.AddDate(0, 0, 1)
	constraints.constraints["p1"][0].Date = &otherLeave
	verdict, err = svc.Check(context.Background(), phd("p1", "CS"), gradExam(), nil)
	require.NoError(t, err)
	require.True(t, verdict.Eligible)
}

func TestEligibilityScheduleConflict(t *testing.T) {
	svc, _, duties, _ := newEligibilityFixture()
	duties.duties["p1"] = []models.AssignmentDetail{{
		ProctorAssignment: models.ProctorAssignment{ID: "a-other", ExamID: "exam-2", ProctorID: "p1"},
		StartTime:         "10:00",
		EndTime:           "12:00",
		DurationMinutes:   120,
	}}

	verdict, err := svc.Check(context.Background(), phd("p1", "CS"), gradExam(), nil)
	require.NoError(t, err)
	require.False(t, verdict.Eligible)
	require.True(t, verdict.Has(models.ConstraintScheduleConflict))
}

func TestEligibilityBackToBackIsNotConflict(t *testing.T) {
	svc, _, duties, _ := newEligibilityFixture()
	duties.duties["p1"] = []models.AssignmentDetail{{
		ProctorAssignment: models.ProctorAssignment{ID: "a-other", ExamID: "exam-2", ProctorID: "p1"},
		StartTime:         "11:00",
		EndTime:           "13:00",
		DurationMinutes:   120,
	}}

	verdict, err := svc.Check(context.Background(), phd("p1", "CS"), gradExam(), nil)
	require.NoError(t, err)
	require.True(t, verdict.Eligible)
}

func TestEligibilityWorkloadCap(t *testing.T) {
	svc, _, _, workload := newEligibilityFixture()
	workload.committed["p1"] = 1100
	workload.caps["p1"] = 1200

	verdict, err := svc.Check(context.Background(), phd("p1", "CS"), gradExam(), nil)
	require.NoError(t, err)
	require.False(t, verdict.Eligible)
	require.True(t, verdict.Has(models.ConstraintWorkloadCap))
	require.Equal(t, 1100, verdict.Workload.Current)
	require.Equal(t, 1220, verdict.Workload.AfterThisExam)
	require.Equal(t, 1200, verdict.Workload.Cap)
}

func TestEligibilityNoViolationsImpliesProjectionWithinCap(t *testing.T) {
	svc, _, _, workload := newEligibilityFixture()
	workload.committed["p1"] = 1080
	workload.caps["p1"] = 1200

	verdict, err := svc.Check(context.Background(), phd("p1", "CS"), gradExam(), nil)
	require.NoError(t, err)
	require.True(t, verdict.Eligible)
	require.LessOrEqual(t, verdict.Workload.AfterThisExam, verdict.Workload.Cap)
}

func TestEligibilityExcludedAssignmentFreesWorkloadAndSlot(t *testing.T) {
	svc, _, duties, workload := newEligibilityFixture()
	exam := gradExam()
	holding := &models.ProctorAssignment{ID: "a-1", ExamID: exam.ID, ProctorID: "p1", Status: models.AssignmentAssigned}
	duties.duties["p1"] = []models.AssignmentDetail{{
		ProctorAssignment: *holding,
		StartTime:         exam.StartTime,
		EndTime:           exam.EndTime,
		DurationMinutes:   exam.DurationMinutes,
	}}
	workload.committed["p1"] = 1200
	workload.caps["p1"] = 1200

	// Without the exclusion the proctor is over cap.
	verdict, err := svc.Check(context.Background(), phd("p1", "CS"), exam, nil)
	require.NoError(t, err)
	require.False(t, verdict.Eligible)

	// Giving up the same assignment returns its minutes first.
	verdict, err = svc.Check(context.Background(), phd("p1", "CS"), exam, holding)
	require.NoError(t, err)
	require.True(t, verdict.Eligible)
	require.Equal(t, 1080, verdict.Workload.Current)
}

func TestEligibilityCrossDepartmentFlag(t *testing.T) {
	svc, _, _, _ := newEligibilityFixture()

	verdict, err := svc.Check(context.Background(), phd("p1", "MATH"), gradExam(), nil)
	require.NoError(t, err)
	require.True(t, verdict.Eligible)
	require.True(t, verdict.CrossDepartment)
}

func TestEligibilityVerdictDeterministic(t *testing.T) {
	svc, constraints, duties, workload := newEligibilityFixture()
	leave := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	constraints.constraints["p1"] = []models.ProctorConstraint{
		{ProctorID: "p1", Type: models.ConstraintLeaveDay, Date: &leave},
	}
	duties.duties["p1"] = []models.AssignmentDetail{{
		ProctorAssignment: models.ProctorAssignment{ID: "a-2", ExamID: "exam-2", ProctorID: "p1"},
		StartTime:         "09:30",
		EndTime:           "10:30",
		DurationMinutes:   60,
	}}
	workload.committed["p1"] = 1190

	first, err := svc.Check(context.Background(), msc("p1", "CS"), gradExam(), nil)
	require.NoError(t, err)
	second, err := svc.Check(context.Background(), msc("p1", "CS"), gradExam(), nil)
	require.NoError(t, err)
	require.Equal(t, first, second)
	// Every failed rule is reported, in rule order.
	require.Equal(t, models.ConstraintPhDRequired, first.Violations[0].Type)
	require.Equal(t, models.ConstraintLeaveDay, first.Violations[1].Type)
	require.Equal(t, models.ConstraintScheduleConflict, first.Violations[2].Type)
	require.Equal(t, models.ConstraintWorkloadCap, first.Violations[3].Type)
}
