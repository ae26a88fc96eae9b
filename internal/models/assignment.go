package models

import "time"

// AssignmentStatus enumerates proctor assignment states.
type AssignmentStatus string

const (
	AssignmentAssigned  AssignmentStatus = "ASSIGNED"
	AssignmentConfirmed AssignmentStatus = "CONFIRMED"
	AssignmentCompleted AssignmentStatus = "COMPLETED"
	AssignmentSwapped   AssignmentStatus = "SWAPPED"
	AssignmentDeclined  AssignmentStatus = "DECLINED"
)

// ProctorAssignment binds one proctor to one exam. The proctor field is
// swapped in place; PreviousProctorID is history metadata, not an ownership
// edge. The authoritative trail is the swap history table.
type ProctorAssignment struct {
	ID                string           `db:"id" json:"id"`
	ExamID            string           `db:"exam_id" json:"exam_id"`
	ProctorID         string           `db:"proctor_id" json:"proctor_id"`
	Status            AssignmentStatus `db:"status" json:"status"`
	PreviousProctorID *string          `db:"previous_proctor_id" json:"previous_proctor_id,omitempty"`
	SwapDepth         int              `db:"swap_depth" json:"swap_depth"`
	OverrideFlag      bool             `db:"override_flag" json:"override_flag"`
	OverrideReason    *string          `db:"override_reason" json:"override_reason,omitempty"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updated_at"`
}

// SwapHistoryEntry is the immutable per-swap log row appended whenever an
// assignment changes hands.
type SwapHistoryEntry struct {
	ID            string    `db:"id" json:"id"`
	AssignmentID  string    `db:"assignment_id" json:"assignment_id"`
	FromProctorID string    `db:"from_proctor_id" json:"from_proctor_id"`
	ToProctorID   string    `db:"to_proctor_id" json:"to_proctor_id"`
	SwapRequestID string    `db:"swap_request_id" json:"swap_request_id"`
	Depth         int       `db:"depth" json:"depth"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// AssignmentDetail joins the exam context used by duty rosters and
// notification payloads.
type AssignmentDetail struct {
	ProctorAssignment
	ExamTitle       string    `db:"exam_title" json:"exam_title"`
	CourseCode      string    `db:"course_code" json:"course_code"`
	Section         string    `db:"section" json:"section"`
	ExamDate        time.Time `db:"exam_date" json:"exam_date"`
	StartTime       string    `db:"start_time" json:"start_time"`
	EndTime         string    `db:"end_time" json:"end_time"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	Room            *string   `db:"room" json:"room,omitempty"`
}

// Active reports whether the row currently represents who proctors the exam.
func (a *ProctorAssignment) Active() bool {
	return a.Status == AssignmentAssigned || a.Status == AssignmentConfirmed
}
