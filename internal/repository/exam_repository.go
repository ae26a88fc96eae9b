package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-proctor-api/internal/models"
)

// ExamRepository persists exam instances.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository constructs the repository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

const examColumns = `id, course_code, course_department, section, title, instructor_name,
       instructor_email, type, term_id, date, start_time, end_time, duration_minutes,
       required_proctor_count, status, needs_cross_department, room, created_at, updated_at`

// Create inserts a new exam row.
func (r *ExamRepository) Create(ctx context.Context, exam *models.Exam) error {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	if exam.Status == "" {
		exam.Status = models.ExamStatusPending
	}
	now := time.Now().UTC()
	if exam.CreatedAt.IsZero() {
		exam.CreatedAt = now
	}
	exam.UpdatedAt = now
	const query = `INSERT INTO exams
		(id, course_code, course_department, section, title, instructor_name, instructor_email,
		 type, term_id, date, start_time, end_time, duration_minutes, required_proctor_count,
		 status, needs_cross_department, room, created_at, updated_at)
		VALUES (:id, :course_code, :course_department, :section, :title, :instructor_name, :instructor_email,
		 :type, :term_id, :date, :start_time, :end_time, :duration_minutes, :required_proctor_count,
		 :status, :needs_cross_department, :room, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("create exam: %w", err)
	}
	return nil
}

// FindByID fetches one exam.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	query := `SELECT ` + examColumns + ` FROM exams WHERE id = $1`
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		return nil, err
	}
	return &exam, nil
}

// List returns exams matching the filter (soonest first).
func (r *ExamRepository) List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, error) {
	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)

	if filter.TermID != "" {
		args = append(args, filter.TermID)
		conditions = append(conditions, fmt.Sprintf("term_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		conditions = append(conditions, fmt.Sprintf("course_department = $%d", len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)))
	}

	query := `SELECT ` + examColumns + ` FROM exams`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date ASC, start_time ASC"

	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)

	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, args...); err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	return exams, nil
}

// UpdateStatus transitions the exam status inside the caller's transaction.
func (r *ExamRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ExamStatus, needsCrossDepartment bool) error {
	const query = `UPDATE exams SET status = $1, needs_cross_department = $2, updated_at = $3 WHERE id = $4`
	result, err := exec.ExecContext(ctx, query, status, needsCrossDepartment, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update exam status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check exam update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
