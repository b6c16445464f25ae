package graph

import "github.com/noah-isme/lms-enroll-api/internal/models"

// CourseGraph is a course with its referenced documents resolved in place.
// Unresolved (dangling) references stay nil; nothing here is persisted.
type CourseGraph struct {
	Course     models.Course
	Thumbnail  *models.File
	PromoVideo *models.File
	Sections   []SectionGraph
}

// SectionGraph mirrors a section with resolved items.
type SectionGraph struct {
	Section models.Section
	Items   []ItemGraph
}

// ItemGraph carries the resolved payload for one section item. At most one
// of Lecture/Quiz/Assignment is non-nil, matching the item kind.
type ItemGraph struct {
	Item       models.SectionItem
	Lecture    *LectureGraph
	Quiz       *models.Quiz
	Assignment *AssignmentGraph
}

// LectureGraph is a lecture with its video and attachments resolved.
type LectureGraph struct {
	Lecture   models.Lecture
	Video     *models.File
	Resources []FileRef
	Captions  []FileRef
}

// FileRef pairs an attachment reference with its resolved file, nil when
// the reference dangles.
type FileRef struct {
	FileID string
	File   *models.File
}

// AssignmentGraph is an assignment with its media references resolved.
type AssignmentGraph struct {
	Assignment       models.Assignment
	InstructionVideo *models.File
	InstructionFile  *models.File
	SolutionVideo    *models.File
	SolutionFile     *models.File
}
