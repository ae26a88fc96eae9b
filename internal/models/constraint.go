package models

import "time"

// ConstraintType enumerates declarative eligibility limits.
type ConstraintType string

const (
	ConstraintPhDRequired      ConstraintType = "PHD_REQUIRED"
	ConstraintOwnExam          ConstraintType = "OWN_EXAM"
	ConstraintScheduleConflict ConstraintType = "SCHEDULE_CONFLICT"
	ConstraintLeaveDay         ConstraintType = "LEAVE_DAY"
	ConstraintConsecutiveDay   ConstraintType = "CONSECUTIVE_DAY"
	ConstraintWorkloadCap      ConstraintType = "WORKLOAD_CAP"
	ConstraintOther            ConstraintType = "OTHER"
)

// ProctorConstraint is a stored fact limiting a proctor's eligibility for
// one exam or one date.
type ProctorConstraint struct {
	ID          string         `db:"id" json:"id"`
	ProctorID   string         `db:"proctor_id" json:"proctor_id"`
	Type        ConstraintType `db:"type" json:"type"`
	ExamID      *string        `db:"exam_id" json:"exam_id,omitempty"`
	Date        *time.Time     `db:"date" json:"date,omitempty"`
	CanOverride bool           `db:"can_override" json:"can_override"`
	Note        string         `db:"note" json:"note"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// Violation is one failed eligibility rule inside a verdict.
type Violation struct {
	Type        ConstraintType `json:"type"`
	CanOverride bool           `json:"can_override"`
	Detail      string         `json:"detail,omitempty"`
}

// WorkloadProjection shows the committed-minute effect of taking an exam.
type WorkloadProjection struct {
	Current       int `json:"current"`
	AfterThisExam int `json:"after_this_exam"`
	Cap           int `json:"cap"`
}

// EligibilityVerdict is the structured result of checking one proctor
// against all hard constraints for one exam. It is business data, not an
// error.
type EligibilityVerdict struct {
	Eligible        bool               `json:"eligible"`
	Violations      []Violation        `json:"violations,omitempty"`
	CrossDepartment bool               `json:"cross_department"`
	Workload        WorkloadProjection `json:"workload"`
}

// HasOnly reports whether the verdict's violations consist solely of the
// given type. Used by the planner's relaxation passes.
func (v *EligibilityVerdict) HasOnly(t ConstraintType) bool {
	if len(v.Violations) == 0 {
		return false
	}
	for _, violation := range v.Violations {
		if violation.Type != t {
			return false
		}
	}
	return true
}

// Has reports whether a violation of the given type is present.
func (v *EligibilityVerdict) Has(t ConstraintType) bool {
	for _, violation := range v.Violations {
		if violation.Type == t {
			return true
		}
	}
	return false
}
