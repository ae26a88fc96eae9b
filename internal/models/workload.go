package models

import "time"

// WorkloadRecord tracks committed proctoring minutes per proctor per term.
// Rows are created lazily on first use and only ever mutated inside the
// transaction that mutates the related assignment.
type WorkloadRecord struct {
	ID               string    `db:"id" json:"id"`
	ProctorID        string    `db:"proctor_id" json:"proctor_id"`
	TermID           string    `db:"term_id" json:"term_id"`
	CommittedMinutes int       `db:"committed_minutes" json:"committed_minutes"`
	CapMinutes       int       `db:"cap_minutes" json:"cap_minutes"`
	Overloaded       bool      `db:"overloaded" json:"overloaded"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}
