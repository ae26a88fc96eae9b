package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	minutes, err := ParseClock("09:30")
	require.NoError(t, err)
	require.Equal(t, 9*60+30, minutes)

	minutes, err = ParseClock("00:00")
	require.NoError(t, err)
	require.Equal(t, 0, minutes)

	_, err = ParseClock("24:00")
	require.Error(t, err)
	_, err = ParseClock("12:60")
	require.Error(t, err)
	_, err = ParseClock("noon")
	require.Error(t, err)
}

func TestExamDuration(t *testing.T) {
	duration, err := ExamDuration("09:00", "11:00")
	require.NoError(t, err)
	require.Equal(t, 120, duration)

	// Window rolling past midnight normalizes onto the next day.
	duration, err = ExamDuration("23:00", "01:00")
	require.NoError(t, err)
	require.Equal(t, 120, duration)

	_, err = ExamDuration("09:00", "9am")
	require.Error(t, err)
}

func TestTimeWindowOverlapSemantics(t *testing.T) {
	exam := &Exam{StartTime: "22:30", EndTime: "00:30"}
	start, end, err := exam.TimeWindow()
	require.NoError(t, err)
	require.Equal(t, 22*60+30, start)
	require.Equal(t, 24*60+30, end)
}

func TestCourseLevelDigit(t *testing.T) {
	require.Equal(t, 5, CourseLevelDigit("CS546"))
	require.Equal(t, 1, CourseLevelDigit("MATH101"))
	require.Equal(t, 6, CourseLevelDigit("EE601-H"))
	require.Equal(t, -1, CourseLevelDigit("SEMINAR"))
}

func TestRoomOrTBD(t *testing.T) {
	exam := &Exam{}
	require.Equal(t, "TBD", exam.RoomOrTBD())

	empty := "  "
	exam.Room = &empty
	require.Equal(t, "TBD", exam.RoomOrTBD())

	room := "B-204"
	exam.Room = &room
	require.Equal(t, "B-204", exam.RoomOrTBD())
}

func TestSwapStatusTerminal(t *testing.T) {
	require.False(t, SwapStatusPending.Terminal())
	require.False(t, SwapStatusAvailable.Terminal())
	require.True(t, SwapStatusAutoSwap.Terminal())
	require.True(t, SwapStatusForceSwap.Terminal())
	require.True(t, SwapStatusRejected.Terminal())
	require.True(t, SwapStatusCancelled.Terminal())
}

func TestVerdictHasOnly(t *testing.T) {
	verdict := &EligibilityVerdict{}
	require.False(t, verdict.HasOnly(ConstraintPhDRequired))

	verdict.Violations = []Violation{{Type: ConstraintPhDRequired}}
	require.True(t, verdict.HasOnly(ConstraintPhDRequired))
	require.True(t, verdict.Has(ConstraintPhDRequired))

	verdict.Violations = append(verdict.Violations, Violation{Type: ConstraintLeaveDay})
	require.False(t, verdict.HasOnly(ConstraintPhDRequired))
	require.True(t, verdict.Has(ConstraintLeaveDay))
}

func TestAssignmentActive(t *testing.T) {
	a := &ProctorAssignment{Status: AssignmentAssigned}
	require.True(t, a.Active())
	a.Status = AssignmentConfirmed
	require.True(t, a.Active())
	a.Status = AssignmentSwapped
	require.False(t, a.Active())
}
