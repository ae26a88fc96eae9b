package dto

import "github.com/noah-isme/exam-proctor-api/internal/models"

// PlanAssignmentRequest describes a planning run for one exam. The manual
// and auto counts together must equal the exam's required proctor count.
type PlanAssignmentRequest struct {
	ManualProctorIDs []string `json:"manual_proctor_ids"`
	AutoCount        int      `json:"auto_count" validate:"min=0"`
}

// PlanRejection records a candidate turned away during planning.
type PlanRejection struct {
	ProctorID string                    `json:"proctor_id"`
	Verdict   models.EligibilityVerdict `json:"verdict"`
}

// PlanRelaxation records one relaxation pass the planner applied.
type PlanRelaxation struct {
	Constraint models.ConstraintType `json:"constraint"`
	ProctorIDs []string              `json:"proctor_ids"`
	Reason     string                `json:"reason"`
}

// PlanResult is the structured planning outcome. A failed plan still
// returns the partial assignment list plus the escalation signal.
type PlanResult struct {
	Success              bool                       `json:"success"`
	ExamID               string                     `json:"exam_id"`
	Assigned             []models.ProctorAssignment `json:"assigned"`
	Rejections           []PlanRejection            `json:"rejections,omitempty"`
	Relaxations          []PlanRelaxation           `json:"relaxations,omitempty"`
	NeedsCrossDepartment bool                       `json:"needs_cross_department"`
}

// RosterQuery shapes duty roster reads.
type RosterQuery struct {
	ProctorID    string `json:"proctor_id"`
	UpcomingOnly bool   `json:"upcoming_only"`
}
