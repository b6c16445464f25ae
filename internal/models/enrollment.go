package models

import "time"

// Enrollment captures a student's registration to a course and their
// per-lecture completion state. Withdrawn enrollments are soft deleted.
type Enrollment struct {
	ID        string     `db:"id" json:"id"`
	CourseID  string     `db:"course_id" json:"course_id"`
	StudentID string     `db:"student_id" json:"student_id"`
	IsDeleted bool       `db:"is_deleted" json:"-"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
	DeletedBy *string    `db:"deleted_by" json:"-"`
	UpdatedBy *string    `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`

	CompletedLectures []CompletedLecture `db:"-" json:"completed_lectures"`
}

// CompletedLecture records a single lecture completion. Entries are unique
// per (enrollment, lecture); re-completing a lecture is a no-op.
type CompletedLecture struct {
	EnrollmentID string    `db:"enrollment_id" json:"-"`
	LectureID    string    `db:"lecture_id" json:"lecture_id"`
	CompletedAt  time.Time `db:"completed_at" json:"completed_at"`
}

// HasCompleted reports whether the lecture is already in the completed set.
func (e *Enrollment) HasCompleted(lectureID string) bool {
	for _, cl := range e.CompletedLectures {
		if cl.LectureID == lectureID {
			return true
		}
	}
	return false
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	CourseID  string
	StudentID string
	Search    string
	Page      int
	PageSize  int
}
