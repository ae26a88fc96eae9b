package models

import "time"

// SwapStatus captures workflow states for swap requests.
type SwapStatus string

const (
	SwapStatusPending   SwapStatus = "PENDING"
	SwapStatusAvailable SwapStatus = "AVAILABLE"
	SwapStatusAutoSwap  SwapStatus = "AUTO_SWAP"
	SwapStatusForceSwap SwapStatus = "FORCE_SWAP"
	SwapStatusRejected  SwapStatus = "REJECTED"
	SwapStatusCancelled SwapStatus = "CANCELLED"
)

// Terminal reports whether the status admits no further transitions.
func (s SwapStatus) Terminal() bool {
	switch s {
	case SwapStatusAutoSwap, SwapStatusForceSwap, SwapStatusRejected, SwapStatusCancelled:
		return true
	}
	return false
}

// SwapRequest represents a proctor's intent to hand an assignment to another
// proctor. Targeted requests name a target up front; open requests rest
// AVAILABLE until claimed.
type SwapRequest struct {
	ID                  string     `db:"id" json:"id"`
	AssignmentID        string     `db:"assignment_id" json:"assignment_id"`
	RequestingProctorID string     `db:"requesting_proctor_id" json:"requesting_proctor_id"`
	TargetProctorID     *string    `db:"target_proctor_id" json:"target_proctor_id,omitempty"`
	Reason              string     `db:"reason" json:"reason"`
	Status              SwapStatus `db:"status" json:"status"`
	RejectionDetail     []byte     `db:"rejection_detail" json:"rejection_detail,omitempty"`
	ForcedBy            *string    `db:"forced_by" json:"forced_by,omitempty"`
	RequestedAt         time.Time  `db:"requested_at" json:"requested_at"`
	ResolvedAt          *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// SwapFilter constrains swap request listing.
type SwapFilter struct {
	Status              []SwapStatus
	RequestingProctorID string
	AssignmentID        string
	Limit               int
	Offset              int
}
