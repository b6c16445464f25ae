package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-enroll-api/internal/models"
)

// ReviewRepository reads course reviews for rating aggregation.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository constructs the repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// ListByCourseIDs returns non-deleted reviews grouped by course id.
func (r *ReviewRepository) ListByCourseIDs(ctx context.Context, courseIDs []string) (map[string][]models.Review, error) {
	out := make(map[string][]models.Review, len(courseIDs))
	if len(courseIDs) == 0 {
		return out, nil
	}
	const query = `SELECT id, course_id, student_id, rating, comment, is_deleted, created_at FROM reviews
        WHERE course_id = ANY($1) AND is_deleted = FALSE ORDER BY created_at DESC`
	var reviews []models.Review
	if err := r.db.SelectContext(ctx, &reviews, query, pq.Array(courseIDs)); err != nil {
		return nil, fmt.Errorf("load reviews: %w", err)
	}
	for _, review := range reviews {
		out[review.CourseID] = append(out[review.CourseID], review)
	}
	return out, nil
}
