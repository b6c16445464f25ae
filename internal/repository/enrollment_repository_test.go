package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-enroll-api/internal/models"
)

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func enrollmentRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "course_id", "student_id", "is_deleted", "deleted_at", "deleted_by", "updated_by", "created_at", "updated_at"})
	now := time.Now()
	for _, id := range ids {
		rows.AddRow(id, "c1", "s1", false, nil, nil, nil, now, now)
	}
	return rows
}

func TestEnrollmentRepositoryListFiltersByStudent(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.is_deleted = FALSE AND e.student_id = $1 ORDER BY e.created_at DESC LIMIT 10 OFFSET 0")).
		WithArgs("s1").
		WillReturnRows(enrollmentRows("e1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments e")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollment_lectures")).
		WithArgs(pq.Array([]string{"e1"})).
		WillReturnRows(sqlmock.NewRows([]string{"enrollment_id", "lecture_id", "completed_at"}).
			AddRow("e1", "l1", time.Now()))

	enrollments, total, err := repo.List(context.Background(), models.EnrollmentFilter{StudentID: "s1"})
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	require.Equal(t, 1, total)
	require.Len(t, enrollments[0].CompletedLectures, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListSearchesCourseTitle(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("c.title ILIKE '%' || $1 || '%'")).
		WithArgs("go").
		WillReturnRows(enrollmentRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments e")).
		WithArgs("go").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	enrollments, total, err := repo.List(context.Background(), models.EnrollmentFilter{Search: "go"})
	require.NoError(t, err)
	require.Empty(t, enrollments)
	require.Equal(t, 0, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindByIDInvisibleWhenDeleted(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.id = $1 AND e.is_deleted = FALSE")).
		WithArgs("e1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "e1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryMarkLectureCompleted(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)
	at := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollment_lectures")).
		WithArgs("e1", "l1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("updated_by = COALESCE(NULLIF($3, ''), updated_by)")).
		WithArgs("e1", at, "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.MarkLectureCompleted(context.Background(), "e1", "l1", "s1", at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositorySoftDeleteMissingRow(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)
	at := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("SET is_deleted = TRUE")).
		WithArgs("gone", at, "a1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SoftDelete(context.Background(), "gone", "a1", at)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsActive(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments e WHERE e.student_id = $1 AND e.course_id = $2")).
		WithArgs("s1", "c1").
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsActive(context.Background(), "s1", "c1")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}
