package models

import "time"

// AcademicLevel enumerates proctor academic standing.
type AcademicLevel string

const (
	LevelBSc AcademicLevel = "BSC"
	LevelMSc AcademicLevel = "MSC"
	LevelPhD AcademicLevel = "PHD"
)

// EmploymentType distinguishes full-time from part-time proctors.
type EmploymentType string

const (
	EmploymentFullTime EmploymentType = "FULL_TIME"
	EmploymentPartTime EmploymentType = "PART_TIME"
)

// Proctor is the read-model of a teaching assistant from the identity
// directory, enriched with the attributes eligibility rules consume.
type Proctor struct {
	ID             string         `db:"id" json:"id"`
	UserID         string         `db:"user_id" json:"user_id"`
	FullName       string         `db:"full_name" json:"full_name"`
	Email          string         `db:"email" json:"email"`
	DepartmentCode string         `db:"department_code" json:"department_code"`
	AcademicLevel  AcademicLevel  `db:"academic_level" json:"academic_level"`
	EmploymentType EmploymentType `db:"employment_type" json:"employment_type"`
	Active         bool           `db:"active" json:"active"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// ProctorFilter constrains pool enumeration.
type ProctorFilter struct {
	DepartmentCode string
	AcademicLevel  AcademicLevel
	Active         *bool
	Search         string
	Page           int
	PageSize       int
}
