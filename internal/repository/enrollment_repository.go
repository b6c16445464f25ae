package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-enroll-api/internal/models"
)

// activeOnly is composed into every enrollment read so soft-deleted rows
// are invisible by default; no call site repeats the check.
const activeOnly = "e.is_deleted = FALSE"

const enrollmentColumns = `e.id, e.course_id, e.student_id, e.is_deleted, e.deleted_at, e.deleted_by, e.updated_by, e.created_at, e.updated_at`

// EnrollmentRepository handles persistence of enrollments and their
// completed-lecture sets.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns a page of non-deleted enrollments plus the total match count.
// The count reflects the full matching set regardless of page bounds.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	base := `FROM enrollments e
LEFT JOIN courses c ON c.id = e.course_id`
	conditions := []string{activeOnly}
	var args []interface{}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("c.title ILIKE '%%' || $%d || '%%'", len(args)+1))
		args = append(args, filter.Search)
	}

	clause := " WHERE " + strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 10
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY e.created_at DESC LIMIT %d OFFSET %d",
		enrollmentColumns, base+clause, size, offset)

	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}

	if err := r.attachCompletedLectures(ctx, enrollments); err != nil {
		return nil, 0, err
	}
	return enrollments, total, nil
}

// FindByID returns a non-deleted enrollment with its completed set.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments e WHERE e.id = $1 AND %s", enrollmentColumns, activeOnly)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	single := []models.Enrollment{enrollment}
	if err := r.attachCompletedLectures(ctx, single); err != nil {
		return nil, err
	}
	return &single[0], nil
}

// ExistsActive checks whether the student already holds a live enrollment
// for the course.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, studentID, courseID string) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM enrollments e WHERE e.student_id = $1 AND e.course_id = $2 AND %s LIMIT 1", activeOnly)
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now
	const query = `INSERT INTO enrollments (id, course_id, student_id, is_deleted, created_at, updated_at)
        VALUES (:id, :course_id, :student_id, FALSE, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// MarkLectureCompleted appends a lecture to the completed set. The primary
// key on (enrollment_id, lecture_id) makes the insert idempotent. An empty
// updatedBy leaves the existing stamp untouched.
func (r *EnrollmentRepository) MarkLectureCompleted(ctx context.Context, enrollmentID, lectureID, updatedBy string, completedAt time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin complete lecture: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insert = `INSERT INTO enrollment_lectures (enrollment_id, lecture_id, completed_at)
        VALUES ($1, $2, $3) ON CONFLICT (enrollment_id, lecture_id) DO NOTHING`
	if _, err := tx.ExecContext(ctx, insert, enrollmentID, lectureID, completedAt); err != nil {
		return fmt.Errorf("record completed lecture: %w", err)
	}

	const touch = `UPDATE enrollments SET updated_at = $2, updated_by = COALESCE(NULLIF($3, ''), updated_by) WHERE id = $1`
	if _, err := tx.ExecContext(ctx, touch, enrollmentID, completedAt, updatedBy); err != nil {
		return fmt.Errorf("touch enrollment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit complete lecture: %w", err)
	}
	return nil
}

// SoftDelete flags an enrollment as withdrawn without removing the row.
func (r *EnrollmentRepository) SoftDelete(ctx context.Context, id, deletedBy string, at time.Time) error {
	const query = `UPDATE enrollments SET is_deleted = TRUE, deleted_at = $2, deleted_by = $3, updated_at = $2
        WHERE id = $1 AND is_deleted = FALSE`
	result, err := r.db.ExecContext(ctx, query, id, at, deletedBy)
	if err != nil {
		return fmt.Errorf("soft delete enrollment: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *EnrollmentRepository) attachCompletedLectures(ctx context.Context, enrollments []models.Enrollment) error {
	if len(enrollments) == 0 {
		return nil
	}
	ids := make([]string, len(enrollments))
	for i := range enrollments {
		ids[i] = enrollments[i].ID
	}

	const query = `SELECT enrollment_id, lecture_id, completed_at FROM enrollment_lectures
        WHERE enrollment_id = ANY($1) ORDER BY completed_at`
	var completed []models.CompletedLecture
	if err := r.db.SelectContext(ctx, &completed, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("load completed lectures: %w", err)
	}

	byEnrollment := make(map[string][]models.CompletedLecture, len(enrollments))
	for _, cl := range completed {
		byEnrollment[cl.EnrollmentID] = append(byEnrollment[cl.EnrollmentID], cl)
	}
	for i := range enrollments {
		enrollments[i].CompletedLectures = byEnrollment[enrollments[i].ID]
	}
	return nil
}
