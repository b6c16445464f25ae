package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-enroll-api/internal/dto"
	"github.com/noah-isme/lms-enroll-api/internal/graph"
	"github.com/noah-isme/lms-enroll-api/internal/models"
	appErrors "github.com/noah-isme/lms-enroll-api/pkg/errors"
)

// AggregationError marks a read that degraded instead of failing: the
// caller still receives a well-formed (empty) result alongside it.
type AggregationError struct {
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregation failed during %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *AggregationError) Unwrap() error {
	return e.Err
}

type enrollmentStore interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ExistsActive(ctx context.Context, studentID, courseID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	MarkLectureCompleted(ctx context.Context, enrollmentID, lectureID, updatedBy string, completedAt time.Time) error
	SoftDelete(ctx context.Context, id, deletedBy string, at time.Time) error
}

type courseStore interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Course, error)
	Exists(ctx context.Context, id string) (bool, error)
}

type reviewStore interface {
	ListByCourseIDs(ctx context.Context, courseIDs []string) (map[string][]models.Review, error)
}

type courseExpander interface {
	ExpandCourse(ctx context.Context, course models.Course, specs []graph.Spec) (*graph.CourseGraph, error)
	ExpandCourses(ctx context.Context, courses []models.Course, specs []graph.Spec) (map[string]*graph.CourseGraph, error)
}

type aggregationObserver interface {
	RecordRowSkipped()
	ObserveExpansion(duration time.Duration)
}

// EnrollmentService composes enrollments with their expanded course
// content. List and Detail never surface raw store failures to callers.
type EnrollmentService struct {
	enrollments enrollmentStore
	courses     courseStore
	reviews     reviewStore
	expander    courseExpander
	views       *ViewBuilder
	metrics     aggregationObserver
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEnrollmentService creates the service.
func NewEnrollmentService(
	enrollments enrollmentStore,
	courses courseStore,
	reviews reviewStore,
	expander courseExpander,
	views *ViewBuilder,
	metrics aggregationObserver,
	logger *zap.Logger,
) *EnrollmentService {
	if views == nil {
		views = NewViewBuilder(nil, logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		enrollments: enrollments,
		courses:     courses,
		reviews:     reviews,
		expander:    expander,
		views:       views,
		metrics:     metrics,
		validator:   validator.New(),
		logger:      logger,
	}
}

func emptyPage() *dto.EnrollmentPage {
	return &dto.EnrollmentPage{Enrollments: []dto.EnrollmentSummaryView{}}
}

// List returns a paginated summary page. Store or expansion failures
// degrade to an empty page plus an *AggregationError; rows whose course
// reference dangles are skipped individually.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) (*dto.EnrollmentPage, *AggregationError) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 10
	}

	enrollments, total, err := s.enrollments.List(ctx, filter)
	if err != nil {
		return emptyPage(), s.degrade("list enrollments", err)
	}
	if len(enrollments) == 0 {
		page := emptyPage()
		page.TotalItem = total
		page.TotalPage = pageCount(total, filter.PageSize)
		return page, nil
	}

	courseIDs := make([]string, 0, len(enrollments))
	seen := make(map[string]struct{}, len(enrollments))
	for _, e := range enrollments {
		if _, ok := seen[e.CourseID]; ok {
			continue
		}
		seen[e.CourseID] = struct{}{}
		courseIDs = append(courseIDs, e.CourseID)
	}

	courses, err := s.courses.FindByIDs(ctx, courseIDs)
	if err != nil {
		return emptyPage(), s.degrade("load courses", err)
	}

	courseList := make([]models.Course, 0, len(courses))
	for _, c := range courses {
		courseList = append(courseList, c)
	}

	started := time.Now()
	graphs, err := s.expander.ExpandCourses(ctx, courseList, graph.SummarySpecs)
	if s.metrics != nil {
		s.metrics.ObserveExpansion(time.Since(started))
	}
	if err != nil {
		return emptyPage(), s.degrade("expand courses", err)
	}

	reviews, err := s.reviews.ListByCourseIDs(ctx, courseIDs)
	if err != nil {
		return emptyPage(), s.degrade("load reviews", err)
	}

	views := make([]dto.EnrollmentSummaryView, 0, len(enrollments))
	for _, e := range enrollments {
		g, ok := graphs[e.CourseID]
		if !ok || g == nil {
			s.logger.Warn("skipping enrollment with dangling course",
				zap.String("enrollmentId", e.ID),
				zap.String("courseId", e.CourseID))
			if s.metrics != nil {
				s.metrics.RecordRowSkipped()
			}
			continue
		}
		views = append(views, s.views.Summary(e, g, reviews[e.CourseID]))
	}

	return &dto.EnrollmentPage{
		Enrollments: views,
		TotalItem:   total,
		TotalPage:   pageCount(total, filter.PageSize),
	}, nil
}

// Detail returns the full-depth view for one enrollment. A missing
// enrollment or a dangling course reference maps to NOT_FOUND; store
// failures during expansion degrade to an *AggregationError.
func (s *EnrollmentService) Detail(ctx context.Context, id string) (*dto.EnrollmentDetailView, error) {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, s.degrade("load enrollment", err)
	}

	courses, err := s.courses.FindByIDs(ctx, []string{enrollment.CourseID})
	if err != nil {
		return nil, s.degrade("load course", err)
	}
	course, ok := courses[enrollment.CourseID]
	if !ok {
		s.logger.Warn("enrollment references dangling course",
			zap.String("enrollmentId", enrollment.ID),
			zap.String("courseId", enrollment.CourseID))
		if s.metrics != nil {
			s.metrics.RecordRowSkipped()
		}
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}

	started := time.Now()
	g, err := s.expander.ExpandCourse(ctx, course, graph.DetailSpecs)
	if s.metrics != nil {
		s.metrics.ObserveExpansion(time.Since(started))
	}
	if err != nil {
		return nil, s.degrade("expand course", err)
	}

	reviews, err := s.reviews.ListByCourseIDs(ctx, []string{enrollment.CourseID})
	if err != nil {
		return nil, s.degrade("load reviews", err)
	}

	view := s.views.Detail(*enrollment, g, reviews[enrollment.CourseID])
	return &view, nil
}

// Enroll registers a student onto a course.
func (s *EnrollmentService) Enroll(ctx context.Context, req dto.EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	exists, err := s.courses.Exists(ctx, req.CourseID)
	if err != nil {
		return nil, fmt.Errorf("check course: %w", err)
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}

	active, err := s.enrollments.ExistsActive(ctx, req.StudentID, req.CourseID)
	if err != nil {
		return nil, fmt.Errorf("check existing enrollment: %w", err)
	}
	if active {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled in course")
	}

	enrollment := &models.Enrollment{
		CourseID:  req.CourseID,
		StudentID: req.StudentID,
	}
	if err := s.enrollments.Create(ctx, enrollment); err != nil {
		return nil, fmt.Errorf("create enrollment: %w", err)
	}
	enrollment.CompletedLectures = []models.CompletedLecture{}

	s.logger.Info("enrollment created",
		zap.String("enrollmentId", enrollment.ID),
		zap.String("courseId", enrollment.CourseID),
		zap.String("studentId", enrollment.StudentID))
	return enrollment, nil
}

// CompleteLecture appends a lecture to the completed set. Re-completing is
// a no-op. The updated_by stamp is written only for student actors; write
// failures propagate unchanged.
func (s *EnrollmentService) CompleteLecture(ctx context.Context, id, lectureID string, actor models.JWTClaims) error {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return fmt.Errorf("load enrollment: %w", err)
	}
	if enrollment.HasCompleted(lectureID) {
		return nil
	}

	updatedBy := ""
	if actor.Role == models.RoleStudent {
		updatedBy = actor.UserID
	}
	if err := s.enrollments.MarkLectureCompleted(ctx, id, lectureID, updatedBy, time.Now().UTC()); err != nil {
		return fmt.Errorf("complete lecture: %w", err)
	}
	return nil
}

// Withdraw soft-deletes an enrollment.
func (s *EnrollmentService) Withdraw(ctx context.Context, id, actorID string) error {
	if err := s.enrollments.SoftDelete(ctx, id, actorID, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return fmt.Errorf("withdraw enrollment: %w", err)
	}
	return nil
}

func (s *EnrollmentService) degrade(stage string, err error) *AggregationError {
	s.logger.Error("enrollment aggregation degraded", zap.String("stage", stage), zap.Error(err))
	return &AggregationError{Stage: stage, Err: err}
}

func pageCount(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
