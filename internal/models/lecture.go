package models

// Lecture is a single video lesson with attached resources and captions.
type Lecture struct {
	ID      string  `db:"id" json:"id"`
	Title   string  `db:"title" json:"title"`
	Desc    string  `db:"description" json:"description"`
	VideoID *string `db:"video_id" json:"video_id,omitempty"`

	ResourceIDs []string `db:"-" json:"resource_ids"`
	CaptionIDs  []string `db:"-" json:"caption_ids"`
}

// LectureFileRole distinguishes lecture attachments.
type LectureFileRole string

// Lecture attachment roles.
const (
	LectureFileResource LectureFileRole = "resource"
	LectureFileCaption  LectureFileRole = "caption"
)

// LectureFile links a lecture to an attached file.
type LectureFile struct {
	LectureID string          `db:"lecture_id"`
	FileID    string          `db:"file_id"`
	Role      LectureFileRole `db:"role"`
	Position  int             `db:"position"`
}
