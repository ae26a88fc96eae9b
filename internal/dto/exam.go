package dto

import "github.com/noah-isme/exam-proctor-api/internal/models"

// CreateExamRequest registers an exam instance from the course catalog.
type CreateExamRequest struct {
	CourseCode           string          `json:"course_code" validate:"required"`
	CourseDepartment     string          `json:"course_department" validate:"required"`
	Section              string          `json:"section" validate:"required"`
	Title                string          `json:"title" validate:"required"`
	InstructorName       string          `json:"instructor_name" validate:"required"`
	InstructorEmail      string          `json:"instructor_email" validate:"omitempty,email"`
	Type                 models.ExamType `json:"type" validate:"required,oneof=MIDTERM FINAL QUIZ MAKEUP"`
	TermID               string          `json:"term_id" validate:"required"`
	Date                 string          `json:"date" validate:"required"`
	StartTime            string          `json:"start_time" validate:"required"`
	EndTime              string          `json:"end_time" validate:"required"`
	RequiredProctorCount int             `json:"required_proctor_count" validate:"required,min=1"`
	Room                 string          `json:"room"`
}

// ExamQuery filters exam listings.
type ExamQuery struct {
	TermID     string
	Status     string
	Department string
	Page       int
	PageSize   int
}
