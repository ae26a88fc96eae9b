package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-proctor-api/internal/models"
)

func newExamRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func examRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "course_code", "course_department", "section", "title", "instructor_name",
		"instructor_email", "type", "term_id", "date", "start_time", "end_time",
		"duration_minutes", "required_proctor_count", "status", "needs_cross_department",
		"room", "created_at", "updated_at",
	})
}

func TestExamRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newExamRepoMock(t)
	defer cleanup()

	repo := NewExamRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO exams")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	exam := &models.Exam{
		CourseCode:           "CS546",
		CourseDepartment:     "CS",
		Section:              "01",
		Title:                "Distributed Systems Final",
		InstructorName:       "Prof. Li",
		Type:                 models.ExamFinal,
		TermID:               "2026F",
		Date:                 time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC),
		StartTime:            "09:00",
		EndTime:              "11:00",
		DurationMinutes:      120,
		RequiredProctorCount: 2,
	}
	require.NoError(t, repo.Create(context.Background(), exam))
	require.NotEmpty(t, exam.ID)
	require.Equal(t, models.ExamStatusPending, exam.Status)

	rows := examRows().
		AddRow(exam.ID, "CS546", "CS", "01", "Distributed Systems Final", "Prof. Li", nil,
			"FINAL", "2026F", exam.Date, "09:00", "11:00", 120, 2, "PENDING", false, nil,
			time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, course_code, course_department")).
		WithArgs(exam.ID).
		WillReturnRows(rows)

	found, err := repo.FindByID(context.Background(), exam.ID)
	require.NoError(t, err)
	require.Equal(t, "CS546", found.CourseCode)
	require.Equal(t, 120, found.DurationMinutes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newExamRepoMock(t)
	defer cleanup()

	repo := NewExamRepository(db)
	rows := examRows().
		AddRow("exam-1", "CS546", "CS", "01", "Final", "Prof. Li", nil, "FINAL", "2026F",
			time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), "09:00", "11:00", 120, 2,
			"PENDING", false, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, course_code, course_department")).
		WithArgs("2026F", "PENDING").
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.ExamFilter{
		TermID: "2026F",
		Status: models.ExamStatusPending,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "exam-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryUpdateStatusGuard(t *testing.T) {
	db, mock, cleanup := newExamRepoMock(t)
	defer cleanup()

	repo := NewExamRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE exams SET status")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateStatus(context.Background(), db, "exam-1", models.ExamStatusScheduled, false))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE exams SET status")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateStatus(context.Background(), db, "ghost", models.ExamStatusEscalated, true)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
