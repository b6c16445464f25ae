package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-enroll-api/internal/models"
)

// LectureRepository reads lectures and their attachment links.
type LectureRepository struct {
	db *sqlx.DB
}

// NewLectureRepository constructs the repository.
func NewLectureRepository(db *sqlx.DB) *LectureRepository {
	return &LectureRepository{db: db}
}

// FindByIDs batch-loads lectures with resource and caption references,
// keyed by lecture id.
func (r *LectureRepository) FindByIDs(ctx context.Context, ids []string) (map[string]models.Lecture, error) {
	out := make(map[string]models.Lecture, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	const lectureQuery = `SELECT id, title, description, video_id FROM lectures WHERE id = ANY($1)`
	var lectures []models.Lecture
	if err := r.db.SelectContext(ctx, &lectures, lectureQuery, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("load lectures: %w", err)
	}
	if len(lectures) == 0 {
		return out, nil
	}

	lectureIDs := make([]string, len(lectures))
	for i := range lectures {
		lectureIDs[i] = lectures[i].ID
	}

	const linkQuery = `SELECT lecture_id, file_id, role, position FROM lecture_files
        WHERE lecture_id = ANY($1) ORDER BY lecture_id, role, position`
	var links []models.LectureFile
	if err := r.db.SelectContext(ctx, &links, linkQuery, pq.Array(lectureIDs)); err != nil {
		return nil, fmt.Errorf("load lecture files: %w", err)
	}

	resources := make(map[string][]string)
	captions := make(map[string][]string)
	for _, link := range links {
		switch link.Role {
		case models.LectureFileResource:
			resources[link.LectureID] = append(resources[link.LectureID], link.FileID)
		case models.LectureFileCaption:
			captions[link.LectureID] = append(captions[link.LectureID], link.FileID)
		}
	}
	for _, lecture := range lectures {
		lecture.ResourceIDs = resources[lecture.ID]
		lecture.CaptionIDs = captions[lecture.ID]
		out[lecture.ID] = lecture
	}
	return out, nil
}
