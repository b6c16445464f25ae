package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-enroll-api/internal/models"
)

type fakeSources struct {
	lectures    map[string]models.Lecture
	quizzes     map[string]models.Quiz
	assignments map[string]models.Assignment
	files       map[string]models.File

	lectureCalls    int
	quizCalls       int
	assignmentCalls int
	fileCalls       int
	fileErr         error
}

func (f *fakeSources) FindLectures(ctx context.Context, ids []string) (map[string]models.Lecture, error) {
	f.lectureCalls++
	return pick(f.lectures, ids), nil
}

func (f *fakeSources) FindQuizzes(ctx context.Context, ids []string) (map[string]models.Quiz, error) {
	f.quizCalls++
	return pick(f.quizzes, ids), nil
}

func (f *fakeSources) FindAssignments(ctx context.Context, ids []string) (map[string]models.Assignment, error) {
	f.assignmentCalls++
	return pick(f.assignments, ids), nil
}

func (f *fakeSources) FindFiles(ctx context.Context, ids []string) (map[string]models.File, error) {
	f.fileCalls++
	if f.fileErr != nil {
		return nil, f.fileErr
	}
	return pick(f.files, ids), nil
}

func pick[T any](all map[string]T, ids []string) map[string]T {
	out := make(map[string]T, len(ids))
	for _, id := range ids {
		if doc, ok := all[id]; ok {
			out[id] = doc
		}
	}
	return out
}

type lectureFn func(context.Context, []string) (map[string]models.Lecture, error)

func (fn lectureFn) FindByIDs(ctx context.Context, ids []string) (map[string]models.Lecture, error) {
	return fn(ctx, ids)
}

type quizFn func(context.Context, []string) (map[string]models.Quiz, error)

func (fn quizFn) FindByIDs(ctx context.Context, ids []string) (map[string]models.Quiz, error) {
	return fn(ctx, ids)
}

type assignmentFn func(context.Context, []string) (map[string]models.Assignment, error)

func (fn assignmentFn) FindByIDs(ctx context.Context, ids []string) (map[string]models.Assignment, error) {
	return fn(ctx, ids)
}

type fileFn func(context.Context, []string) (map[string]models.File, error)

func (fn fileFn) FindByIDs(ctx context.Context, ids []string) (map[string]models.File, error) {
	return fn(ctx, ids)
}

func sourcesFor(f *fakeSources) Sources {
	return Sources{
		Lectures:    lectureFn(f.FindLectures),
		Quizzes:     quizFn(f.FindQuizzes),
		Assignments: assignmentFn(f.FindAssignments),
		Files:       fileFn(f.FindFiles),
	}
}

func testCourse() models.Course {
	return models.Course{
		ID:           "c1",
		Title:        "Intro to Go",
		ThumbnailID:  strPtr("thumb-1"),
		PromoVideoID: strPtr("promo-1"),
		Sections: []models.Section{
			{
				ID:    "s1",
				Title: "Basics",
				Items: []models.SectionItem{
					{ID: "i1", Kind: models.ItemKindLecture, LectureID: strPtr("l1")},
					{ID: "i2", Kind: models.ItemKindQuiz, QuizID: strPtr("q1")},
					{ID: "i3", Kind: models.ItemKindAssignment, AssignmentID: strPtr("a1")},
				},
			},
		},
	}
}

func testFakeSources() *fakeSources {
	return &fakeSources{
		lectures: map[string]models.Lecture{
			"l1": {ID: "l1", Title: "Hello", VideoID: strPtr("v1"), ResourceIDs: []string{"r1"}, CaptionIDs: []string{"cap1"}},
		},
		quizzes: map[string]models.Quiz{
			"q1": {ID: "q1", Title: "Checkpoint"},
		},
		assignments: map[string]models.Assignment{
			"a1": {ID: "a1", Title: "Build a CLI", InstructionFileID: strPtr("inst1")},
		},
		files: map[string]models.File{
			"thumb-1": {ID: "thumb-1", Path: "img/thumb.png", MimeType: "image/png"},
			"promo-1": {ID: "promo-1", Path: "vid/promo.mp4", MimeType: "video/mp4", TimeLength: floatPtr(60)},
			"v1":      {ID: "v1", Path: "vid/l1.mp4", MimeType: "video/mp4", TimeLength: floatPtr(300)},
			"r1":      {ID: "r1", Path: "doc/r1.pdf", MimeType: "application/pdf"},
			"cap1":    {ID: "cap1", Path: "cap/en.vtt", MimeType: "text/vtt"},
			"inst1":   {ID: "inst1", Path: "doc/inst.pdf", MimeType: "application/pdf"},
		},
	}
}

func TestExpandCourseFullDepth(t *testing.T) {
	fake := testFakeSources()
	expander := NewExpander(sourcesFor(fake), zap.NewNop())

	g, err := expander.ExpandCourse(context.Background(), testCourse(), DetailSpecs)
	require.NoError(t, err)
	require.NotNil(t, g)

	require.NotNil(t, g.Thumbnail)
	assert.Equal(t, "img/thumb.png", g.Thumbnail.Path)
	require.NotNil(t, g.PromoVideo)

	require.Len(t, g.Sections, 1)
	items := g.Sections[0].Items
	require.Len(t, items, 3)

	lecture := items[0].Lecture
	require.NotNil(t, lecture)
	require.NotNil(t, lecture.Video)
	assert.Equal(t, 300.0, *lecture.Video.TimeLength)
	require.Len(t, lecture.Resources, 1)
	require.NotNil(t, lecture.Resources[0].File)
	assert.Equal(t, "doc/r1.pdf", lecture.Resources[0].File.Path)
	require.Len(t, lecture.Captions, 1)

	require.NotNil(t, items[1].Quiz)
	assert.Equal(t, "Checkpoint", items[1].Quiz.Title)

	assignment := items[2].Assignment
	require.NotNil(t, assignment)
	require.NotNil(t, assignment.InstructionFile)
	assert.Nil(t, assignment.SolutionVideo)
}

func TestExpandCoursesBatchesPerCollectionLevel(t *testing.T) {
	fake := testFakeSources()
	expander := NewExpander(sourcesFor(fake), zap.NewNop())

	courses := []models.Course{testCourse()}
	second := testCourse()
	second.ID = "c2"
	second.ThumbnailID = strPtr("thumb-1")
	courses = append(courses, second)

	graphs, err := expander.ExpandCourses(context.Background(), courses, DetailSpecs)
	require.NoError(t, err)
	require.Len(t, graphs, 2)

	assert.Equal(t, 1, fake.lectureCalls)
	assert.Equal(t, 1, fake.quizCalls)
	assert.Equal(t, 1, fake.assignmentCalls)
	// one lookup for course-level media, one for lecture/assignment media
	assert.Equal(t, 2, fake.fileCalls)
}

func TestExpandCourseSummaryDepthSkipsContentDetail(t *testing.T) {
	fake := testFakeSources()
	expander := NewExpander(sourcesFor(fake), zap.NewNop())

	g, err := expander.ExpandCourse(context.Background(), testCourse(), SummarySpecs)
	require.NoError(t, err)

	assert.Equal(t, 0, fake.quizCalls)
	assert.Equal(t, 0, fake.assignmentCalls)
	require.NotNil(t, g.Sections[0].Items[0].Lecture)
	assert.NotNil(t, g.Sections[0].Items[0].Lecture.Video)
	assert.Empty(t, g.Sections[0].Items[0].Lecture.Resources)
	assert.Nil(t, g.Sections[0].Items[1].Quiz)
	assert.Nil(t, g.PromoVideo)
}

func TestExpandCourseDanglingThumbnail(t *testing.T) {
	fake := testFakeSources()
	delete(fake.files, "thumb-1")
	expander := NewExpander(sourcesFor(fake), zap.NewNop())

	g, err := expander.ExpandCourse(context.Background(), testCourse(), DetailSpecs)
	require.NoError(t, err)
	assert.Nil(t, g.Thumbnail)
}

func TestExpandCourseDanglingLecture(t *testing.T) {
	fake := testFakeSources()
	delete(fake.lectures, "l1")
	expander := NewExpander(sourcesFor(fake), zap.NewNop())

	g, err := expander.ExpandCourse(context.Background(), testCourse(), DetailSpecs)
	require.NoError(t, err)
	assert.Nil(t, g.Sections[0].Items[0].Lecture)
}

func TestExpandCoursesSourceFailure(t *testing.T) {
	fake := testFakeSources()
	fake.fileErr = errors.New("connection reset")
	expander := NewExpander(sourcesFor(fake), zap.NewNop())

	_, err := expander.ExpandCourses(context.Background(), []models.Course{testCourse()}, DetailSpecs)
	require.Error(t, err)
}
