package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-enroll-api/internal/models"
)

// QuizRepository reads quiz shells referenced from section items.
type QuizRepository struct {
	db *sqlx.DB
}

// NewQuizRepository constructs the repository.
func NewQuizRepository(db *sqlx.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

// FindByIDs batch-loads quizzes keyed by id.
func (r *QuizRepository) FindByIDs(ctx context.Context, ids []string) (map[string]models.Quiz, error) {
	out := make(map[string]models.Quiz, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	const query = `SELECT id, title, question_count FROM quizzes WHERE id = ANY($1)`
	var quizzes []models.Quiz
	if err := r.db.SelectContext(ctx, &quizzes, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("load quizzes: %w", err)
	}
	for _, quiz := range quizzes {
		out[quiz.ID] = quiz
	}
	return out, nil
}

// AssignmentRepository reads assignments referenced from section items.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// FindByIDs batch-loads assignments keyed by id.
func (r *AssignmentRepository) FindByIDs(ctx context.Context, ids []string) (map[string]models.Assignment, error) {
	out := make(map[string]models.Assignment, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	const query = `SELECT id, title, instruction_video_id, instruction_file_id, solution_video_id, solution_file_id
        FROM assignments WHERE id = ANY($1)`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}
	for _, assignment := range assignments {
		out[assignment.ID] = assignment
	}
	return out, nil
}
