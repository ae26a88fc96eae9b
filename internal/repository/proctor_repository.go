package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/exam-proctor-api/internal/models"
)

// ProctorRepository reads the proctor directory mirror.
type ProctorRepository struct {
	db *sqlx.DB
}

// NewProctorRepository constructs the repository.
func NewProctorRepository(db *sqlx.DB) *ProctorRepository {
	return &ProctorRepository{db: db}
}

// FindByID fetches one proctor.
func (r *ProctorRepository) FindByID(ctx context.Context, id string) (*models.Proctor, error) {
	const query = `SELECT id, user_id, full_name, email, department_code, academic_level, employment_type, active, created_at
		FROM proctors WHERE id = $1`
	var proctor models.Proctor
	if err := r.db.GetContext(ctx, &proctor, query, id); err != nil {
		return nil, err
	}
	return &proctor, nil
}

// FindByUserID resolves the proctor record behind an authenticated user.
func (r *ProctorRepository) FindByUserID(ctx context.Context, userID string) (*models.Proctor, error) {
	const query = `SELECT id, user_id, full_name, email, department_code, academic_level, employment_type, active, created_at
		FROM proctors WHERE user_id = $1`
	var proctor models.Proctor
	if err := r.db.GetContext(ctx, &proctor, query, userID); err != nil {
		return nil, err
	}
	return &proctor, nil
}

// List returns proctors matching the filter plus the total count.
func (r *ProctorRepository) List(ctx context.Context, filter models.ProctorFilter) ([]models.Proctor, int, error) {
	conditions := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)

	if filter.DepartmentCode != "" {
		args = append(args, filter.DepartmentCode)
		conditions = append(conditions, fmt.Sprintf("department_code = $%d", len(args)))
	}
	if filter.AcademicLevel != "" {
		args = append(args, filter.AcademicLevel)
		conditions = append(conditions, fmt.Sprintf("academic_level = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(email) LIKE $%d)", len(args), len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM proctors"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count proctors: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}

	query := `SELECT id, user_id, full_name, email, department_code, academic_level, employment_type, active, created_at
		FROM proctors` + where + fmt.Sprintf(" ORDER BY full_name ASC LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)

	var proctors []models.Proctor
	if err := r.db.SelectContext(ctx, &proctors, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list proctors: %w", err)
	}
	return proctors, total, nil
}

// ListActive returns the candidate pool for automatic planning.
func (r *ProctorRepository) ListActive(ctx context.Context) ([]models.Proctor, error) {
	const query = `SELECT id, user_id, full_name, email, department_code, academic_level, employment_type, active, created_at
		FROM proctors WHERE active = TRUE ORDER BY full_name ASC`
	var proctors []models.Proctor
	if err := r.db.SelectContext(ctx, &proctors, query); err != nil {
		return nil, fmt.Errorf("list active proctors: %w", err)
	}
	return proctors, nil
}

// ListCourseAssistantIDs returns proctors attached to a course as TAs, used
// as planner priority metadata.
func (r *ProctorRepository) ListCourseAssistantIDs(ctx context.Context, courseCode string) ([]string, error) {
	const query = `SELECT proctor_id FROM course_assistants WHERE course_code = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, courseCode); err != nil {
		return nil, fmt.Errorf("list course assistants: %w", err)
	}
	return ids, nil
}
