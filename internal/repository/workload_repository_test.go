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
)

func newWorkloadRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func workloadRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "proctor_id", "term_id", "committed_minutes", "cap_minutes", "overloaded", "updated_at",
	})
}

func TestWorkloadRepositoryEnsureCreatesOnce(t *testing.T) {
	db, mock, cleanup := newWorkloadRepoMock(t)
	defer cleanup()

	repo := NewWorkloadRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO workload_records")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, proctor_id, term_id")).
		WithArgs("proctor-1", "2026F").
		WillReturnRows(workloadRows().
			AddRow("w-1", "proctor-1", "2026F", 0, 1200, false, time.Now()))

	record, err := repo.Ensure(context.Background(), db, "proctor-1", "2026F", 1200)
	require.NoError(t, err)
	require.Equal(t, 0, record.CommittedMinutes)
	require.Equal(t, 1200, record.CapMinutes)

	// A second Ensure hits the conflict clause and re-reads the existing row.
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO workload_records")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, proctor_id, term_id")).
		WithArgs("proctor-1", "2026F").
		WillReturnRows(workloadRows().
			AddRow("w-1", "proctor-1", "2026F", 240, 1200, false, time.Now()))

	record, err = repo.Ensure(context.Background(), db, "proctor-1", "2026F", 1200)
	require.NoError(t, err)
	require.Equal(t, 240, record.CommittedMinutes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkloadRepositoryAddMinutes(t *testing.T) {
	db, mock, cleanup := newWorkloadRepoMock(t)
	defer cleanup()

	repo := NewWorkloadRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE workload_records")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.AddMinutes(context.Background(), db, "proctor-1", "2026F", 120))

	// No record means nothing to shift.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE workload_records")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.AddMinutes(context.Background(), db, "proctor-1", "2026F", -120)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkloadRepositoryCommittedDefaultsToZero(t *testing.T) {
	db, mock, cleanup := newWorkloadRepoMock(t)
	defer cleanup()

	repo := NewWorkloadRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT committed_minutes FROM workload_records")).
		WithArgs("proctor-1", "2026F").
		WillReturnError(sql.ErrNoRows)

	minutes, err := repo.Committed(context.Background(), "proctor-1", "2026F")
	require.NoError(t, err)
	require.Equal(t, 0, minutes)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT committed_minutes FROM workload_records")).
		WithArgs("proctor-1", "2026F").
		WillReturnRows(sqlmock.NewRows([]string{"committed_minutes"}).AddRow(360))

	minutes, err = repo.Committed(context.Background(), "proctor-1", "2026F")
	require.NoError(t, err)
	require.Equal(t, 360, minutes)
	require.NoError(t, mock.ExpectationsWereMet())
}
