package models

// Quiz is referenced from section items; its questions live outside this
// service's scope.
type Quiz struct {
	ID            string `db:"id" json:"id"`
	Title         string `db:"title" json:"title"`
	QuestionCount int    `db:"question_count" json:"question_count"`
}

// Assignment carries up to four optional media references.
type Assignment struct {
	ID                 string  `db:"id" json:"id"`
	Title              string  `db:"title" json:"title"`
	InstructionVideoID *string `db:"instruction_video_id" json:"instruction_video_id,omitempty"`
	InstructionFileID  *string `db:"instruction_file_id" json:"instruction_file_id,omitempty"`
	SolutionVideoID    *string `db:"solution_video_id" json:"solution_video_id,omitempty"`
	SolutionFileID     *string `db:"solution_file_id" json:"solution_file_id,omitempty"`
}
