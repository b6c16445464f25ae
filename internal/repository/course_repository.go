package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-enroll-api/internal/models"
)

// CourseRepository reads course shells with their section/item structure.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByIDs loads courses with sections and items in three batched queries,
// keyed by course id. Ids that do not resolve are simply absent from the
// result; callers decide how to treat the gap.
func (r *CourseRepository) FindByIDs(ctx context.Context, ids []string) (map[string]models.Course, error) {
	out := make(map[string]models.Course, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	const courseQuery = `SELECT id, title, slug, sub_title, level, language, price,
        thumbnail_id, promo_video_id, category_id, sub_category_id
        FROM courses WHERE id = ANY($1)`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, courseQuery, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("load courses: %w", err)
	}
	if len(courses) == 0 {
		return out, nil
	}

	courseIDs := make([]string, len(courses))
	for i := range courses {
		courseIDs[i] = courses[i].ID
	}

	const sectionQuery = `SELECT id, course_id, title, position FROM sections
        WHERE course_id = ANY($1) ORDER BY course_id, position`
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, sectionQuery, pq.Array(courseIDs)); err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}

	sectionIDs := make([]string, len(sections))
	for i := range sections {
		sectionIDs[i] = sections[i].ID
	}

	var items []models.SectionItem
	if len(sectionIDs) > 0 {
		const itemQuery = `SELECT id, section_id, position, kind, lecture_id, quiz_id, assignment_id
            FROM section_items WHERE section_id = ANY($1) ORDER BY section_id, position`
		if err := r.db.SelectContext(ctx, &items, itemQuery, pq.Array(sectionIDs)); err != nil {
			return nil, fmt.Errorf("load section items: %w", err)
		}
	}

	itemsBySection := make(map[string][]models.SectionItem, len(sections))
	for _, item := range items {
		itemsBySection[item.SectionID] = append(itemsBySection[item.SectionID], item)
	}
	sectionsByCourse := make(map[string][]models.Section, len(courses))
	for _, section := range sections {
		section.Items = itemsBySection[section.ID]
		sectionsByCourse[section.CourseID] = append(sectionsByCourse[section.CourseID], section)
	}
	for _, course := range courses {
		course.Sections = sectionsByCourse[course.ID]
		out[course.ID] = course
	}
	return out, nil
}

// Exists reports whether a course id resolves.
func (r *CourseRepository) Exists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT 1 FROM courses WHERE id = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course: %w", err)
	}
	return true, nil
}
