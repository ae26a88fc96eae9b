package dto

import "github.com/noah-isme/exam-proctor-api/internal/models"

// CreateSwapRequest opens a swap. A populated target makes it a targeted
// swap processed immediately; an empty target publishes an open request.
type CreateSwapRequest struct {
	AssignmentID    string `json:"assignment_id" validate:"required"`
	TargetProctorID string `json:"target_proctor_id"`
	Reason          string `json:"reason" validate:"required"`
}

// SwapResult reports the outcome of processing a swap request. When the
// target was ineligible the verdict explains why; no state beyond the
// request status changed.
type SwapResult struct {
	Request *models.SwapRequest        `json:"request"`
	Swapped bool                       `json:"swapped"`
	Verdict *models.EligibilityVerdict `json:"verdict,omitempty"`
}

// SwapQuery filters swap request listings.
type SwapQuery struct {
	Status []models.SwapStatus
	Mine   bool
}
