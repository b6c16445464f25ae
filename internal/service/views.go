package service

import (
	"go.uber.org/zap"

	"github.com/noah-isme/lms-enroll-api/internal/dto"
	"github.com/noah-isme/lms-enroll-api/internal/graph"
	"github.com/noah-isme/lms-enroll-api/internal/models"
	"github.com/noah-isme/lms-enroll-api/pkg/storage"
)

// ViewBuilder flattens expanded course graphs into the response shapes.
// Relations render as sibling xId/x pairs; course-level media that failed
// to resolve render as an empty object, deeper media as null. Items with an
// unknown kind or an unresolved payload are dropped.
type ViewBuilder struct {
	signer *storage.SignedURLSigner
	logger *zap.Logger
}

// NewViewBuilder constructs a builder. The signer is optional; without it
// file views carry no download URL.
func NewViewBuilder(signer *storage.SignedURLSigner, logger *zap.Logger) *ViewBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewBuilder{signer: signer, logger: logger}
}

// Summary builds the list card for one enrollment.
func (b *ViewBuilder) Summary(e models.Enrollment, g *graph.CourseGraph, reviews []models.Review) dto.EnrollmentSummaryView {
	stats := graph.StatsOf(g)
	return dto.EnrollmentSummaryView{
		ID:             e.ID,
		StudentID:      e.StudentID,
		CourseID:       e.CourseID,
		Course:         b.courseSummary(g, stats, reviews),
		CompletedCount: len(e.CompletedLectures),
		Progress:       graph.CompletionPercent(len(e.CompletedLectures), stats.LectureCount),
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

// Detail builds the full content view for one enrollment.
func (b *ViewBuilder) Detail(e models.Enrollment, g *graph.CourseGraph, reviews []models.Review) dto.EnrollmentDetailView {
	stats := graph.StatsOf(g)

	completed := make([]dto.CompletedLectureView, 0, len(e.CompletedLectures))
	for _, cl := range e.CompletedLectures {
		completed = append(completed, dto.CompletedLectureView{
			LectureID:   cl.LectureID,
			CompletedAt: cl.CompletedAt,
		})
	}

	course := dto.CourseContentView{
		CourseSummaryView: b.courseSummary(g, stats, reviews),
		PromoVideoID:      fileID(g.PromoVideo),
		PromoVideo:        b.fileOrEmpty(g.PromoVideo),
		Sections:          b.sections(g.Sections),
	}

	return dto.EnrollmentDetailView{
		ID:                e.ID,
		StudentID:         e.StudentID,
		CourseID:          e.CourseID,
		Course:            course,
		CompletedLectures: completed,
		Progress:          graph.CompletionPercent(len(e.CompletedLectures), stats.LectureCount),
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}

func (b *ViewBuilder) courseSummary(g *graph.CourseGraph, stats graph.CourseStats, reviews []models.Review) dto.CourseSummaryView {
	return dto.CourseSummaryView{
		ID:           g.Course.ID,
		Title:        g.Course.Title,
		Slug:         g.Course.Slug,
		SubTitle:     g.Course.SubTitle,
		Level:        g.Course.Level,
		Language:     g.Course.Language,
		Price:        g.Course.Price,
		ThumbnailID:  fileID(g.Thumbnail),
		Thumbnail:    b.fileOrEmpty(g.Thumbnail),
		CategoryID:   g.Course.CategoryID,
		TotalLecture: stats.LectureCount,
		TotalLength:  stats.TotalSeconds,
		Rating:       graph.AverageRating(reviews),
	}
}

func (b *ViewBuilder) sections(sections []graph.SectionGraph) []dto.SectionView {
	out := make([]dto.SectionView, 0, len(sections))
	for _, sg := range sections {
		out = append(out, dto.SectionView{
			ID:    sg.Section.ID,
			Title: sg.Section.Title,
			Items: b.items(sg.Items),
		})
	}
	return out
}

func (b *ViewBuilder) items(items []graph.ItemGraph) []dto.ItemView {
	out := make([]dto.ItemView, 0, len(items))
	for _, ig := range items {
		view, ok := b.item(ig)
		if !ok {
			b.logger.Warn("dropping section item from view",
				zap.String("itemId", ig.Item.ID),
				zap.String("kind", string(ig.Item.Kind)))
			continue
		}
		out = append(out, view)
	}
	return out
}

func (b *ViewBuilder) item(ig graph.ItemGraph) (dto.ItemView, bool) {
	view := dto.ItemView{ID: ig.Item.ID, Kind: string(ig.Item.Kind)}
	switch ig.Item.Kind {
	case models.ItemKindLecture:
		if ig.Lecture == nil {
			return view, false
		}
		view.LectureID = ig.Item.LectureID
		view.Lecture = b.lecture(ig.Lecture)
	case models.ItemKindQuiz:
		if ig.Quiz == nil {
			return view, false
		}
		view.QuizID = ig.Item.QuizID
		view.Quiz = &dto.QuizView{
			ID:            ig.Quiz.ID,
			Title:         ig.Quiz.Title,
			QuestionCount: ig.Quiz.QuestionCount,
		}
	case models.ItemKindAssignment:
		if ig.Assignment == nil {
			return view, false
		}
		view.AssignmentID = ig.Item.AssignmentID
		view.Assignment = b.assignment(ig.Assignment)
	default:
		return view, false
	}
	return view, true
}

func (b *ViewBuilder) lecture(lg *graph.LectureGraph) *dto.LectureView {
	return &dto.LectureView{
		ID:        lg.Lecture.ID,
		Title:     lg.Lecture.Title,
		Desc:      lg.Lecture.Desc,
		VideoID:   lg.Lecture.VideoID,
		Video:     b.fileView(lg.Video),
		Resources: b.fileLinks(lg.Resources),
		Captions:  b.fileLinks(lg.Captions),
	}
}

func (b *ViewBuilder) assignment(ag *graph.AssignmentGraph) *dto.AssignmentView {
	return &dto.AssignmentView{
		ID:                 ag.Assignment.ID,
		Title:              ag.Assignment.Title,
		InstructionVideoID: ag.Assignment.InstructionVideoID,
		InstructionVideo:   b.fileView(ag.InstructionVideo),
		InstructionFileID:  ag.Assignment.InstructionFileID,
		InstructionFile:    b.fileView(ag.InstructionFile),
		SolutionVideoID:    ag.Assignment.SolutionVideoID,
		SolutionVideo:      b.fileView(ag.SolutionVideo),
		SolutionFileID:     ag.Assignment.SolutionFileID,
		SolutionFile:       b.fileView(ag.SolutionFile),
	}
}

func (b *ViewBuilder) fileLinks(refs []graph.FileRef) []dto.FileLinkView {
	out := make([]dto.FileLinkView, 0, len(refs))
	for _, ref := range refs {
		out = append(out, dto.FileLinkView{FileID: ref.FileID, File: b.fileView(ref.File)})
	}
	return out
}

// fileID echoes the resolved file's id beside the rendered object. A
// stored reference that did not resolve yields nil, so dangling ids never
// leak into course-level views.
func fileID(f *models.File) *string {
	if f == nil {
		return nil
	}
	id := f.ID
	return &id
}

// fileOrEmpty keeps course-level media keys present even when the
// reference dangles: the resolved view, or a bare empty object.
func (b *ViewBuilder) fileOrEmpty(f *models.File) interface{} {
	if f == nil {
		return struct{}{}
	}
	return b.fileView(f)
}

func (b *ViewBuilder) fileView(f *models.File) *dto.FileView {
	if f == nil {
		return nil
	}
	view := &dto.FileView{
		ID:         f.ID,
		Path:       f.Path,
		MimeType:   f.MimeType,
		Size:       f.Size,
		TimeLength: f.TimeLength,
	}
	if b.signer != nil {
		token, _, err := b.signer.Generate(f.ID, f.Path)
		if err != nil {
			b.logger.Warn("signing media url failed", zap.String("fileId", f.ID), zap.Error(err))
		} else {
			view.URL = "/downloads?token=" + token
		}
	}
	return view
}
