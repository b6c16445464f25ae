package dto

import "time"

// EnrollmentPage is the list result. It is always well-formed: aggregation
// failures yield an empty page, never a missing one.
type EnrollmentPage struct {
	Enrollments []EnrollmentSummaryView `json:"enrollments"`
	TotalItem   int                     `json:"totalItem"`
	TotalPage   int                     `json:"totalPage"`
}

// EnrollmentSummaryView is one list card.
type EnrollmentSummaryView struct {
	ID             string            `json:"id"`
	StudentID      string            `json:"studentId"`
	CourseID       string            `json:"courseId"`
	Course         CourseSummaryView `json:"course"`
	CompletedCount int               `json:"completedCount"`
	Progress       string            `json:"progress"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// CourseSummaryView carries the card-level course fields. Thumbnail is the
// resolved file view or an empty object when the reference dangles.
type CourseSummaryView struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Slug         string      `json:"slug"`
	SubTitle     string      `json:"subTitle"`
	Level        string      `json:"level"`
	Language     string      `json:"language"`
	Price        *float64    `json:"price"`
	ThumbnailID  *string     `json:"thumbnailId"`
	Thumbnail    interface{} `json:"thumbnail"`
	CategoryID   *string     `json:"categoryId"`
	TotalLecture int         `json:"totalLecture"`
	TotalLength  float64     `json:"totalLength"`
	Rating       string      `json:"rating"`
}

// EnrollmentDetailView is the full content view for one enrollment.
type EnrollmentDetailView struct {
	ID                string                 `json:"id"`
	StudentID         string                 `json:"studentId"`
	CourseID          string                 `json:"courseId"`
	Course            CourseContentView      `json:"course"`
	CompletedLectures []CompletedLectureView `json:"completedLectures"`
	Progress          string                 `json:"progress"`
	CreatedAt         time.Time              `json:"createdAt"`
	UpdatedAt         time.Time              `json:"updatedAt"`
}

// CompletedLectureView mirrors one completed-set entry.
type CompletedLectureView struct {
	LectureID   string    `json:"lectureId"`
	CompletedAt time.Time `json:"completedAt"`
}

// CourseContentView extends the summary card with the full section tree.
type CourseContentView struct {
	CourseSummaryView
	PromoVideoID *string       `json:"promotionalVideoId"`
	PromoVideo   interface{}   `json:"promotionalVideo"`
	Sections     []SectionView `json:"sections"`
}

// SectionView is a flattened section.
type SectionView struct {
	ID    string     `json:"id"`
	Title string     `json:"title"`
	Items []ItemView `json:"items"`
}

// ItemView is a flattened section item. Exactly one payload pair is set
// according to Kind; unrecognized or unresolved items never reach the view.
type ItemView struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`

	LectureID *string      `json:"lectureId,omitempty"`
	Lecture   *LectureView `json:"lecture,omitempty"`

	QuizID *string   `json:"quizId,omitempty"`
	Quiz   *QuizView `json:"quiz,omitempty"`

	AssignmentID *string         `json:"assignmentId,omitempty"`
	Assignment   *AssignmentView `json:"assignment,omitempty"`
}

// LectureView is a flattened lecture with resolved media.
type LectureView struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Desc      string         `json:"description"`
	VideoID   *string        `json:"videoId"`
	Video     *FileView      `json:"video"`
	Resources []FileLinkView `json:"resources"`
	Captions  []FileLinkView `json:"captions"`
}

// FileLinkView pairs an attachment reference with its resolved file.
type FileLinkView struct {
	FileID string    `json:"fileId"`
	File   *FileView `json:"file"`
}

// QuizView is a flattened quiz shell.
type QuizView struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	QuestionCount int    `json:"questionCount"`
}

// AssignmentView is a flattened assignment with its four optional media
// references pulled up beside their resolved files.
type AssignmentView struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	InstructionVideoID *string   `json:"instructionVideoId"`
	InstructionVideo   *FileView `json:"instructionVideo"`
	InstructionFileID  *string   `json:"instructionFileId"`
	InstructionFile    *FileView `json:"instructionFile"`
	SolutionVideoID    *string   `json:"solutionVideoId"`
	SolutionVideo      *FileView `json:"solutionVideo"`
	SolutionFileID     *string   `json:"solutionFileId"`
	SolutionFile       *FileView `json:"solutionFile"`
}

// FileView is resolved file metadata plus a signed download URL.
type FileView struct {
	ID         string   `json:"id"`
	Path       string   `json:"path"`
	URL        string   `json:"url,omitempty"`
	MimeType   string   `json:"mimetype"`
	Size       int64    `json:"size"`
	TimeLength *float64 `json:"timeLength,omitempty"`
}

// EnrollRequest is the enrollment creation payload.
type EnrollRequest struct {
	CourseID  string `json:"courseId" binding:"required" validate:"required"`
	StudentID string `json:"studentId" validate:"required"`
}
