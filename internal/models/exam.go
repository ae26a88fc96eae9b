package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ExamType enumerates exam instances per course section.
type ExamType string

const (
	ExamMidterm ExamType = "MIDTERM"
	ExamFinal   ExamType = "FINAL"
	ExamQuiz    ExamType = "QUIZ"
	ExamMakeup  ExamType = "MAKEUP"
)

// ExamStatus captures the scheduling lifecycle of an exam.
type ExamStatus string

const (
	ExamStatusPending   ExamStatus = "PENDING"
	ExamStatusScheduled ExamStatus = "SCHEDULED"
	ExamStatusEscalated ExamStatus = "ESCALATED"
	ExamStatusCompleted ExamStatus = "COMPLETED"
	ExamStatusCancelled ExamStatus = "CANCELLED"
)

// Exam identifies a course section's exam instance. Start and end times are
// stored as HH:MM wall-clock values; DurationMinutes is derived on create
// with midnight rollover normalized.
type Exam struct {
	ID                   string     `db:"id" json:"id"`
	CourseCode           string     `db:"course_code" json:"course_code"`
	CourseDepartment     string     `db:"course_department" json:"course_department"`
	Section              string     `db:"section" json:"section"`
	Title                string     `db:"title" json:"title"`
	InstructorName       string     `db:"instructor_name" json:"instructor_name"`
	InstructorEmail      *string    `db:"instructor_email" json:"instructor_email,omitempty"`
	Type                 ExamType   `db:"type" json:"type"`
	TermID               string     `db:"term_id" json:"term_id"`
	Date                 time.Time  `db:"date" json:"date"`
	StartTime            string     `db:"start_time" json:"start_time"`
	EndTime              string     `db:"end_time" json:"end_time"`
	DurationMinutes      int        `db:"duration_minutes" json:"duration_minutes"`
	RequiredProctorCount int        `db:"required_proctor_count" json:"required_proctor_count"`
	Status               ExamStatus `db:"status" json:"status"`
	NeedsCrossDepartment bool       `db:"needs_cross_department" json:"needs_cross_department"`
	Room                 *string    `db:"room" json:"room,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// ExamFilter constrains exam listing.
type ExamFilter struct {
	TermID     string
	Status     ExamStatus
	Department string
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	PageSize   int
}

// RoomOrTBD returns the room label used in notifications.
func (e *Exam) RoomOrTBD() string {
	if e.Room == nil || strings.TrimSpace(*e.Room) == "" {
		return "TBD"
	}
	return *e.Room
}

// ParseClock converts an HH:MM value into minutes since midnight.
func ParseClock(raw string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	return hour*60 + minute, nil
}

// ExamDuration derives the exam duration in minutes from HH:MM boundaries,
// normalizing windows that roll over midnight. The normalized end must be
// strictly after the start.
func ExamDuration(startTime, endTime string) (int, error) {
	start, err := ParseClock(startTime)
	if err != nil {
		return 0, err
	}
	end, err := ParseClock(endTime)
	if err != nil {
		return 0, err
	}
	if end <= start {
		end += 24 * 60
	}
	duration := end - start
	if duration <= 0 {
		return 0, fmt.Errorf("exam must end after it starts (%s-%s)", startTime, endTime)
	}
	return duration, nil
}

// TimeWindow returns the exam interval as minutes since midnight, with the
// end normalized past midnight when the window rolls over.
func (e *Exam) TimeWindow() (start, end int, err error) {
	start, err = ParseClock(e.StartTime)
	if err != nil {
		return 0, 0, err
	}
	end, err = ParseClock(e.EndTime)
	if err != nil {
		return 0, 0, err
	}
	if end <= start {
		end += 24 * 60
	}
	return start, end, nil
}

// CourseLevelDigit extracts the leading digit of the numeric part of a
// course code ("CS546" -> 5). Returns -1 when the code carries no digit.
func CourseLevelDigit(courseCode string) int {
	for _, r := range courseCode {
		if unicode.IsDigit(r) {
			return int(r - '0')
		}
	}
	return -1
}
