package graph

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-enroll-api/internal/models"
)

// Collection names the store collection a relation resolves against.
type Collection string

// Collections addressable by relation specs.
const (
	CollectionLectures    Collection = "lectures"
	CollectionQuizzes     Collection = "quizzes"
	CollectionAssignments Collection = "assignments"
	CollectionFiles       Collection = "files"
)

// Spec declares one relation to expand on the course content tree. Field is
// the dotted path of the reference field relative to the course (or, for
// nested specs, relative to the parent relation's document).
type Spec struct {
	Field  string
	Source Collection
	Nested []Spec
}

// SummarySpecs resolves just enough of the tree for enrollment list cards:
// thumbnail plus lecture videos for runtime totals. Resources, captions,
// quizzes and assignments stay unexpanded.
var SummarySpecs = []Spec{
	{Field: "thumbnail", Source: CollectionFiles},
	{Field: "sections.items.lecture", Source: CollectionLectures, Nested: []Spec{
		{Field: "video", Source: CollectionFiles},
	}},
}

// DetailSpecs resolves the full content tree for the enrollment detail view.
var DetailSpecs = []Spec{
	{Field: "thumbnail", Source: CollectionFiles},
	{Field: "promotionalVideo", Source: CollectionFiles},
	{Field: "sections.items.lecture", Source: CollectionLectures, Nested: []Spec{
		{Field: "video", Source: CollectionFiles},
		{Field: "resources.file", Source: CollectionFiles},
		{Field: "captions.file", Source: CollectionFiles},
	}},
	{Field: "sections.items.quiz", Source: CollectionQuizzes},
	{Field: "sections.items.assignment", Source: CollectionAssignments, Nested: []Spec{
		{Field: "instructionVideo", Source: CollectionFiles},
		{Field: "instructionFile", Source: CollectionFiles},
		{Field: "solutionVideo", Source: CollectionFiles},
		{Field: "solutionFile", Source: CollectionFiles},
	}},
}

// LectureSource batch-resolves lecture documents by id.
type LectureSource interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Lecture, error)
}

// QuizSource batch-resolves quiz documents by id.
type QuizSource interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Quiz, error)
}

// AssignmentSource batch-resolves assignment documents by id.
type AssignmentSource interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Assignment, error)
}

// FileSource batch-resolves file documents by id.
type FileSource interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]models.File, error)
}

// Sources groups the per-collection resolvers the expander reads from.
type Sources struct {
	Lectures    LectureSource
	Quizzes     QuizSource
	Assignments AssignmentSource
	Files       FileSource
}

// Expander substitutes referenced documents into course trees. Expansion is
// read-only and issues one batched lookup per (collection, depth level), so
// a whole page of courses expands in a constant number of store reads.
type Expander struct {
	sources Sources
	logger  *zap.Logger
}

// NewExpander constructs an Expander.
func NewExpander(sources Sources, logger *zap.Logger) *Expander {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Expander{sources: sources, logger: logger}
}

// plan is the compiled form of a spec list.
type plan struct {
	thumbnail        bool
	promoVideo       bool
	lecture          bool
	lectureVideo     bool
	lectureResources bool
	lectureCaptions  bool
	quiz             bool
	assignment       bool
	assignmentMedia  bool
}

func compile(specs []Spec) plan {
	var p plan
	for _, spec := range specs {
		switch spec.Field {
		case "thumbnail":
			p.thumbnail = true
		case "promotionalVideo":
			p.promoVideo = true
		case "sections.items.lecture":
			p.lecture = true
			for _, nested := range spec.Nested {
				switch nested.Field {
				case "video":
					p.lectureVideo = true
				case "resources.file":
					p.lectureResources = true
				case "captions.file":
					p.lectureCaptions = true
				}
			}
		case "sections.items.quiz":
			p.quiz = true
		case "sections.items.assignment":
			p.assignment = true
			if len(spec.Nested) > 0 {
				p.assignmentMedia = true
			}
		}
	}
	return p
}

// ExpandCourse expands a single course tree.
func (e *Expander) ExpandCourse(ctx context.Context, course models.Course, specs []Spec) (*CourseGraph, error) {
	graphs, err := e.ExpandCourses(ctx, []models.Course{course}, specs)
	if err != nil {
		return nil, err
	}
	return graphs[course.ID], nil
}

// ExpandCourses expands many course trees at once and returns them keyed by
// course id.
func (e *Expander) ExpandCourses(ctx context.Context, courses []models.Course, specs []Spec) (map[string]*CourseGraph, error) {
	p := compile(specs)

	// First level: referenced content documents plus course-level media.
	var lectureIDs, quizIDs, assignmentIDs, courseFileIDs []string
	seen := map[string]struct{}{}
	collect := func(bucket *[]string, id *string) {
		if id == nil || *id == "" {
			return
		}
		if _, ok := seen[*id]; ok {
			return
		}
		seen[*id] = struct{}{}
		*bucket = append(*bucket, *id)
	}

	for i := range courses {
		course := &courses[i]
		if p.thumbnail {
			collect(&courseFileIDs, course.ThumbnailID)
		}
		if p.promoVideo {
			collect(&courseFileIDs, course.PromoVideoID)
		}
		for _, section := range course.Sections {
			for _, item := range section.Items {
				switch item.Kind {
				case models.ItemKindLecture:
					if p.lecture {
						collect(&lectureIDs, item.LectureID)
					}
				case models.ItemKindQuiz:
					if p.quiz {
						collect(&quizIDs, item.QuizID)
					}
				case models.ItemKindAssignment:
					if p.assignment {
						collect(&assignmentIDs, item.AssignmentID)
					}
				}
			}
		}
	}

	lectures, err := e.loadLectures(ctx, lectureIDs)
	if err != nil {
		return nil, err
	}
	quizzes, err := e.loadQuizzes(ctx, quizIDs)
	if err != nil {
		return nil, err
	}
	assignments, err := e.loadAssignments(ctx, assignmentIDs)
	if err != nil {
		return nil, err
	}
	courseFiles, err := e.loadFiles(ctx, courseFileIDs)
	if err != nil {
		return nil, err
	}

	// Second level: media referenced by the documents resolved above.
	var nestedFileIDs []string
	nestedSeen := map[string]struct{}{}
	collectNested := func(id *string) {
		if id == nil || *id == "" {
			return
		}
		if _, ok := nestedSeen[*id]; ok {
			return
		}
		nestedSeen[*id] = struct{}{}
		nestedFileIDs = append(nestedFileIDs, *id)
	}

	for _, lecture := range lectures {
		if p.lectureVideo {
			collectNested(lecture.VideoID)
		}
		if p.lectureResources {
			for i := range lecture.ResourceIDs {
				collectNested(&lecture.ResourceIDs[i])
			}
		}
		if p.lectureCaptions {
			for i := range lecture.CaptionIDs {
				collectNested(&lecture.CaptionIDs[i])
			}
		}
	}
	if p.assignmentMedia {
		for _, assignment := range assignments {
			collectNested(assignment.InstructionVideoID)
			collectNested(assignment.InstructionFileID)
			collectNested(assignment.SolutionVideoID)
			collectNested(assignment.SolutionFileID)
		}
	}

	nestedFiles, err := e.loadFiles(ctx, nestedFileIDs)
	if err != nil {
		return nil, err
	}

	graphs := make(map[string]*CourseGraph, len(courses))
	for i := range courses {
		course := courses[i]
		g := &CourseGraph{Course: course}
		if p.thumbnail {
			g.Thumbnail = e.resolveFile(courseFiles, course.ThumbnailID, course.ID, "thumbnail")
		}
		if p.promoVideo {
			g.PromoVideo = e.resolveFile(courseFiles, course.PromoVideoID, course.ID, "promotionalVideo")
		}
		g.Sections = make([]SectionGraph, 0, len(course.Sections))
		for _, section := range course.Sections {
			sg := SectionGraph{Section: section, Items: make([]ItemGraph, 0, len(section.Items))}
			for _, item := range section.Items {
				sg.Items = append(sg.Items, e.assembleItem(p, item, lectures, quizzes, assignments, nestedFiles))
			}
			g.Sections = append(g.Sections, sg)
		}
		graphs[course.ID] = g
	}
	return graphs, nil
}

func (e *Expander) assembleItem(p plan, item models.SectionItem, lectures map[string]models.Lecture, quizzes map[string]models.Quiz, assignments map[string]models.Assignment, files map[string]models.File) ItemGraph {
	ig := ItemGraph{Item: item}
	switch item.Kind {
	case models.ItemKindLecture:
		if !p.lecture || item.LectureID == nil {
			return ig
		}
		lecture, ok := lectures[*item.LectureID]
		if !ok {
			e.logDangling("lecture", *item.LectureID, item.ID)
			return ig
		}
		lg := &LectureGraph{Lecture: lecture}
		if p.lectureVideo && lecture.VideoID != nil {
			if video, ok := files[*lecture.VideoID]; ok {
				lg.Video = &video
			} else {
				e.logDangling("file", *lecture.VideoID, lecture.ID)
			}
		}
		if p.lectureResources {
			lg.Resources = e.resolveFileRefs(files, lecture.ResourceIDs, lecture.ID)
		}
		if p.lectureCaptions {
			lg.Captions = e.resolveFileRefs(files, lecture.CaptionIDs, lecture.ID)
		}
		ig.Lecture = lg
	case models.ItemKindQuiz:
		if !p.quiz || item.QuizID == nil {
			return ig
		}
		if quiz, ok := quizzes[*item.QuizID]; ok {
			ig.Quiz = &quiz
		} else {
			e.logDangling("quiz", *item.QuizID, item.ID)
		}
	case models.ItemKindAssignment:
		if !p.assignment || item.AssignmentID == nil {
			return ig
		}
		assignment, ok := assignments[*item.AssignmentID]
		if !ok {
			e.logDangling("assignment", *item.AssignmentID, item.ID)
			return ig
		}
		ag := &AssignmentGraph{Assignment: assignment}
		if p.assignmentMedia {
			ag.InstructionVideo = e.resolveFile(files, assignment.InstructionVideoID, assignment.ID, "instructionVideo")
			ag.InstructionFile = e.resolveFile(files, assignment.InstructionFileID, assignment.ID, "instructionFile")
			ag.SolutionVideo = e.resolveFile(files, assignment.SolutionVideoID, assignment.ID, "solutionVideo")
			ag.SolutionFile = e.resolveFile(files, assignment.SolutionFileID, assignment.ID, "solutionFile")
		}
		ig.Assignment = ag
	}
	return ig
}

func (e *Expander) resolveFile(files map[string]models.File, id *string, ownerID, field string) *models.File {
	if id == nil || *id == "" {
		return nil
	}
	if file, ok := files[*id]; ok {
		return &file
	}
	e.logger.Warn("dangling reference",
		zap.String("collection", "files"),
		zap.String("field", field),
		zap.String("ref", *id),
		zap.String("owner", ownerID))
	return nil
}

func (e *Expander) resolveFileRefs(files map[string]models.File, ids []string, ownerID string) []FileRef {
	refs := make([]FileRef, 0, len(ids))
	for _, id := range ids {
		ref := FileRef{FileID: id}
		if file, ok := files[id]; ok {
			ref.File = &file
		} else {
			e.logDangling("file", id, ownerID)
		}
		refs = append(refs, ref)
	}
	return refs
}

func (e *Expander) logDangling(collection, ref, ownerID string) {
	e.logger.Warn("dangling reference",
		zap.String("collection", collection),
		zap.String("ref", ref),
		zap.String("owner", ownerID))
}

func (e *Expander) loadLectures(ctx context.Context, ids []string) (map[string]models.Lecture, error) {
	if len(ids) == 0 {
		return map[string]models.Lecture{}, nil
	}
	if e.sources.Lectures == nil {
		return nil, fmt.Errorf("lecture source not configured")
	}
	docs, err := e.sources.Lectures.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve lectures: %w", err)
	}
	return docs, nil
}

func (e *Expander) loadQuizzes(ctx context.Context, ids []string) (map[string]models.Quiz, error) {
	if len(ids) == 0 {
		return map[string]models.Quiz{}, nil
	}
	if e.sources.Quizzes == nil {
		return nil, fmt.Errorf("quiz source not configured")
	}
	docs, err := e.sources.Quizzes.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve quizzes: %w", err)
	}
	return docs, nil
}

func (e *Expander) loadAssignments(ctx context.Context, ids []string) (map[string]models.Assignment, error) {
	if len(ids) == 0 {
		return map[string]models.Assignment{}, nil
	}
	if e.sources.Assignments == nil {
		return nil, fmt.Errorf("assignment source not configured")
	}
	docs, err := e.sources.Assignments.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve assignments: %w", err)
	}
	return docs, nil
}

func (e *Expander) loadFiles(ctx context.Context, ids []string) (map[string]models.File, error) {
	if len(ids) == 0 {
		return map[string]models.File{}, nil
	}
	if e.sources.Files == nil {
		return nil, fmt.Errorf("file source not configured")
	}
	docs, err := e.sources.Files.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve files: %w", err)
	}
	return docs, nil
}
