package models

import "time"

// AuditAction constants represent engine mutations to be logged.
const (
	AuditActionAssignManual      = "assign_manual"
	AuditActionAssignAuto        = "assign_auto"
	AuditActionAssignAutoRelaxed = "assign_auto_relaxed"
	AuditActionSwapAuto          = "swap_auto"
	AuditActionSwapCrossDeptAuto = "swap_cross_dept_auto"
	AuditActionSwapForce         = "swap_force"
	AuditActionInsufficientTAs   = "insufficient_tas"
	AuditActionExamScheduled     = "exam_scheduled"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID          string    `db:"id" json:"id"`
	ActorID     *string   `db:"actor_id" json:"actor_id,omitempty"`
	Action      string    `db:"action" json:"action"`
	Resource    string    `db:"resource" json:"resource"`
	ResourceID  *string   `db:"resource_id" json:"resource_id,omitempty"`
	Description string    `db:"description" json:"description"`
	OldValues   []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues   []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress   string    `db:"ip_address" json:"ip_address"`
	UserAgent   string    `db:"user_agent" json:"user_agent"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
