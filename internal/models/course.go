package models

// ItemKind tags the payload type of a section item.
type ItemKind string

// Section item kinds. Items with an unknown kind or no reference are
// dropped from flattened views.
const (
	ItemKindLecture    ItemKind = "lecture"
	ItemKindQuiz       ItemKind = "quiz"
	ItemKindAssignment ItemKind = "assignment"
)

// Course is the published course shell. Media and category fields hold
// references that may no longer resolve; readers must tolerate that.
type Course struct {
	ID            string   `db:"id" json:"id"`
	Title         string   `db:"title" json:"title"`
	Slug          string   `db:"slug" json:"slug"`
	SubTitle      string   `db:"sub_title" json:"sub_title"`
	Level         string   `db:"level" json:"level"`
	Language      string   `db:"language" json:"language"`
	Price         *float64 `db:"price" json:"price,omitempty"`
	ThumbnailID   *string  `db:"thumbnail_id" json:"thumbnail_id,omitempty"`
	PromoVideoID  *string  `db:"promo_video_id" json:"promo_video_id,omitempty"`
	CategoryID    *string  `db:"category_id" json:"category_id,omitempty"`
	SubCategoryID *string  `db:"sub_category_id" json:"sub_category_id,omitempty"`

	Sections []Section `db:"-" json:"sections"`
}

// Section groups ordered content items inside a course.
type Section struct {
	ID       string `db:"id" json:"id"`
	CourseID string `db:"course_id" json:"-"`
	Title    string `db:"title" json:"title"`
	Position int    `db:"position" json:"-"`

	Items []SectionItem `db:"-" json:"items"`
}

// SectionItem is a tagged union: exactly one of the reference columns is
// set, selected by Kind.
type SectionItem struct {
	ID           string   `db:"id" json:"id"`
	SectionID    string   `db:"section_id" json:"-"`
	Position     int      `db:"position" json:"-"`
	Kind         ItemKind `db:"kind" json:"kind"`
	LectureID    *string  `db:"lecture_id" json:"lecture_id,omitempty"`
	QuizID       *string  `db:"quiz_id" json:"quiz_id,omitempty"`
	AssignmentID *string  `db:"assignment_id" json:"assignment_id,omitempty"`
}
