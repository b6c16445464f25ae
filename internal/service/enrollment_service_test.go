package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-enroll-api/internal/dto"
	"github.com/noah-isme/lms-enroll-api/internal/graph"
	"github.com/noah-isme/lms-enroll-api/internal/models"
	appErrors "github.com/noah-isme/lms-enroll-api/pkg/errors"
)

type markCall struct {
	enrollmentID string
	lectureID    string
	updatedBy    string
}

type fakeEnrollmentStore struct {
	enrollments []models.Enrollment
	total       int
	listErr     error

	byID    map[string]*models.Enrollment
	findErr error

	activeExists bool
	createErr    error

	markCalls []markCall
	markErr   error

	deleteCalls []string
	deleteErr   error
}

func (f *fakeEnrollmentStore) List(_ context.Context, _ models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	return f.enrollments, f.total, nil
}

func (f *fakeEnrollmentStore) FindByID(_ context.Context, id string) (*models.Enrollment, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	e, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return e, nil
}

func (f *fakeEnrollmentStore) ExistsActive(_ context.Context, _, _ string) (bool, error) {
	return f.activeExists, nil
}

func (f *fakeEnrollmentStore) Create(_ context.Context, e *models.Enrollment) error {
	if f.createErr != nil {
		return f.createErr
	}
	e.ID = "generated"
	return nil
}

func (f *fakeEnrollmentStore) MarkLectureCompleted(_ context.Context, enrollmentID, lectureID, updatedBy string, _ time.Time) error {
	f.markCalls = append(f.markCalls, markCall{enrollmentID, lectureID, updatedBy})
	return f.markErr
}

func (f *fakeEnrollmentStore) SoftDelete(_ context.Context, id, _ string, _ time.Time) error {
	f.deleteCalls = append(f.deleteCalls, id)
	return f.deleteErr
}

type fakeCourseStore struct {
	courses map[string]models.Course
	exists  bool
	err     error
}

func (f *fakeCourseStore) FindByIDs(_ context.Context, ids []string) (map[string]models.Course, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]models.Course)
	for _, id := range ids {
		if c, ok := f.courses[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (f *fakeCourseStore) Exists(_ context.Context, _ string) (bool, error) {
	return f.exists, f.err
}

type fakeReviewStore struct {
	reviews map[string][]models.Review
	err     error
}

func (f *fakeReviewStore) ListByCourseIDs(_ context.Context, _ []string) (map[string][]models.Review, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.reviews, nil
}

type fakeExpander struct {
	missing map[string]bool
	err     error
}

func (f *fakeExpander) ExpandCourse(_ context.Context, course models.Course, _ []graph.Spec) (*graph.CourseGraph, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &graph.CourseGraph{Course: course}, nil
}

func (f *fakeExpander) ExpandCourses(_ context.Context, courses []models.Course, _ []graph.Spec) (map[string]*graph.CourseGraph, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]*graph.CourseGraph, len(courses))
	for _, c := range courses {
		if f.missing[c.ID] {
			continue
		}
		out[c.ID] = &graph.CourseGraph{Course: c}
	}
	return out, nil
}

type fakeAggMetrics struct {
	skipped    int
	expansions int
}

func (f *fakeAggMetrics) RecordRowSkipped() { f.skipped++ }

func (f *fakeAggMetrics) ObserveExpansion(_ time.Duration) { f.expansions++ }

func enrollmentFixture(id, courseID string) models.Enrollment {
	return models.Enrollment{ID: id, CourseID: courseID, StudentID: "student-1"}
}

func newTestService(store *fakeEnrollmentStore, courses *fakeCourseStore, reviews *fakeReviewStore, expander *fakeExpander, metrics *fakeAggMetrics) *EnrollmentService {
	var observer aggregationObserver
	if metrics != nil {
		observer = metrics
	}
	return NewEnrollmentService(store, courses, reviews, expander, nil, observer, nil)
}

func TestListBuildsPage(t *testing.T) {
	store := &fakeEnrollmentStore{
		enrollments: []models.Enrollment{
			enrollmentFixture("e1", "c1"),
			enrollmentFixture("e2", "c2"),
		},
		total: 12,
	}
	courses := &fakeCourseStore{courses: map[string]models.Course{
		"c1": {ID: "c1", Title: "Go"},
		"c2": {ID: "c2", Title: "SQL"},
	}}
	reviews := &fakeReviewStore{reviews: map[string][]models.Review{
		"c1": {{Rating: 4}, {Rating: 5}},
	}}
	svc := newTestService(store, courses, reviews, &fakeExpander{}, nil)

	page, aggErr := svc.List(context.Background(), models.EnrollmentFilter{Page: 2, PageSize: 10})

	require.Nil(t, aggErr)
	require.Len(t, page.Enrollments, 2)
	assert.Equal(t, 12, page.TotalItem)
	assert.Equal(t, 2, page.TotalPage)
	assert.Equal(t, "4.50", page.Enrollments[0].Course.Rating)
	assert.Equal(t, "0", page.Enrollments[1].Course.Rating)
}

func TestListDegradesToEmptyPageOnStoreFailure(t *testing.T) {
	store := &fakeEnrollmentStore{listErr: errors.New("connection reset")}
	svc := newTestService(store, &fakeCourseStore{}, &fakeReviewStore{}, &fakeExpander{}, nil)

	page, aggErr := svc.List(context.Background(), models.EnrollmentFilter{})

	require.NotNil(t, aggErr)
	assert.Equal(t, "list enrollments", aggErr.Stage)
	require.NotNil(t, page)
	assert.Empty(t, page.Enrollments)
	assert.Equal(t, 0, page.TotalItem)
	assert.Equal(t, 0, page.TotalPage)
}

func TestListDegradesOnReviewFailure(t *testing.T) {
	store := &fakeEnrollmentStore{
		enrollments: []models.Enrollment{enrollmentFixture("e1", "c1")},
		total:       1,
	}
	courses := &fakeCourseStore{courses: map[string]models.Course{"c1": {ID: "c1"}}}
	reviews := &fakeReviewStore{err: errors.New("timeout")}
	svc := newTestService(store, courses, reviews, &fakeExpander{}, nil)

	page, aggErr := svc.List(context.Background(), models.EnrollmentFilter{})

	require.NotNil(t, aggErr)
	assert.Equal(t, "load reviews", aggErr.Stage)
	assert.Empty(t, page.Enrollments)
}

func TestListSkipsDanglingCourseRows(t *testing.T) {
	store := &fakeEnrollmentStore{
		enrollments: []models.Enrollment{
			enrollmentFixture("e1", "c1"),
			enrollmentFixture("e2", "gone"),
		},
		total: 2,
	}
	courses := &fakeCourseStore{courses: map[string]models.Course{"c1": {ID: "c1"}}}
	metrics := &fakeAggMetrics{}
	svc := newTestService(store, courses, &fakeReviewStore{}, &fakeExpander{}, metrics)

	page, aggErr := svc.List(context.Background(), models.EnrollmentFilter{})

	require.Nil(t, aggErr)
	require.Len(t, page.Enrollments, 1)
	assert.Equal(t, "e1", page.Enrollments[0].ID)
	assert.Equal(t, 2, page.TotalItem)
	assert.Equal(t, 1, metrics.skipped)
	assert.Equal(t, 1, metrics.expansions)
}

func TestDetailNotFound(t *testing.T) {
	svc := newTestService(&fakeEnrollmentStore{byID: map[string]*models.Enrollment{}}, &fakeCourseStore{}, &fakeReviewStore{}, &fakeExpander{}, nil)

	view, err := svc.Detail(context.Background(), "missing")

	assert.Nil(t, view)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestDetailDanglingCourseMapsToNotFound(t *testing.T) {
	e := enrollmentFixture("e1", "gone")
	store := &fakeEnrollmentStore{byID: map[string]*models.Enrollment{"e1": &e}}
	svc := newTestService(store, &fakeCourseStore{}, &fakeReviewStore{}, &fakeExpander{}, nil)

	view, err := svc.Detail(context.Background(), "e1")

	assert.Nil(t, view)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestDetailDegradesOnExpansionFailure(t *testing.T) {
	e := enrollmentFixture("e1", "c1")
	store := &fakeEnrollmentStore{byID: map[string]*models.Enrollment{"e1": &e}}
	courses := &fakeCourseStore{courses: map[string]models.Course{"c1": {ID: "c1"}}}
	svc := newTestService(store, courses, &fakeReviewStore{}, &fakeExpander{err: errors.New("store gone")}, nil)

	view, err := svc.Detail(context.Background(), "e1")

	assert.Nil(t, view)
	var aggErr *AggregationError
	require.ErrorAs(t, err, &aggErr)
	assert.Equal(t, "expand course", aggErr.Stage)
}

func TestDetailFlattensEnrollment(t *testing.T) {
	e := enrollmentFixture("e1", "c1")
	e.CompletedLectures = []models.CompletedLecture{{LectureID: "l1", CompletedAt: time.Now()}}
	store := &fakeEnrollmentStore{byID: map[string]*models.Enrollment{"e1": &e}}
	courses := &fakeCourseStore{courses: map[string]models.Course{"c1": {ID: "c1", Title: "Go"}}}
	svc := newTestService(store, courses, &fakeReviewStore{}, &fakeExpander{}, nil)

	view, err := svc.Detail(context.Background(), "e1")

	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, "Go", view.Course.Title)
	require.Len(t, view.CompletedLectures, 1)
	assert.Equal(t, "l1", view.CompletedLectures[0].LectureID)
}

func TestEnrollConflictOnActiveEnrollment(t *testing.T) {
	store := &fakeEnrollmentStore{activeExists: true}
	svc := newTestService(store, &fakeCourseStore{exists: true}, &fakeReviewStore{}, &fakeExpander{}, nil)

	_, err := svc.Enroll(context.Background(), dto.EnrollRequest{CourseID: "c1", StudentID: "s1"})

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestEnrollValidatesPayload(t *testing.T) {
	svc := newTestService(&fakeEnrollmentStore{}, &fakeCourseStore{exists: true}, &fakeReviewStore{}, &fakeExpander{}, nil)

	_, err := svc.Enroll(context.Background(), dto.EnrollRequest{CourseID: "c1"})

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestEnrollCreates(t *testing.T) {
	store := &fakeEnrollmentStore{}
	svc := newTestService(store, &fakeCourseStore{exists: true}, &fakeReviewStore{}, &fakeExpander{}, nil)

	enrollment, err := svc.Enroll(context.Background(), dto.EnrollRequest{CourseID: "c1", StudentID: "s1"})

	require.NoError(t, err)
	assert.Equal(t, "generated", enrollment.ID)
	assert.NotNil(t, enrollment.CompletedLectures)
}

func TestCompleteLectureIdempotent(t *testing.T) {
	e := enrollmentFixture("e1", "c1")
	e.CompletedLectures = []models.CompletedLecture{{LectureID: "l1"}}
	store := &fakeEnrollmentStore{byID: map[string]*models.Enrollment{"e1": &e}}
	svc := newTestService(store, &fakeCourseStore{}, &fakeReviewStore{}, &fakeExpander{}, nil)

	err := svc.CompleteLecture(context.Background(), "e1", "l1", models.JWTClaims{UserID: "s1", Role: models.RoleStudent})

	require.NoError(t, err)
	assert.Empty(t, store.markCalls)
}

func TestCompleteLectureStampsStudentOnly(t *testing.T) {
	e := enrollmentFixture("e1", "c1")
	store := &fakeEnrollmentStore{byID: map[string]*models.Enrollment{"e1": &e}}
	svc := newTestService(store, &fakeCourseStore{}, &fakeReviewStore{}, &fakeExpander{}, nil)

	require.NoError(t, svc.CompleteLecture(context.Background(), "e1", "l1", models.JWTClaims{UserID: "s1", Role: models.RoleStudent}))
	require.NoError(t, svc.CompleteLecture(context.Background(), "e1", "l2", models.JWTClaims{UserID: "a1", Role: models.RoleAdmin}))

	require.Len(t, store.markCalls, 2)
	assert.Equal(t, "s1", store.markCalls[0].updatedBy)
	assert.Equal(t, "", store.markCalls[1].updatedBy)
}

func TestCompleteLecturePropagatesWriteFailure(t *testing.T) {
	e := enrollmentFixture("e1", "c1")
	store := &fakeEnrollmentStore{
		byID:    map[string]*models.Enrollment{"e1": &e},
		markErr: fmt.Errorf("disk full"),
	}
	svc := newTestService(store, &fakeCourseStore{}, &fakeReviewStore{}, &fakeExpander{}, nil)

	err := svc.CompleteLecture(context.Background(), "e1", "l1", models.JWTClaims{Role: models.RoleAdmin})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestWithdrawNotFound(t *testing.T) {
	store := &fakeEnrollmentStore{deleteErr: sql.ErrNoRows}
	svc := newTestService(store, &fakeCourseStore{}, &fakeReviewStore{}, &fakeExpander{}, nil)

	err := svc.Withdraw(context.Background(), "missing", "a1")

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestWithdrawSoftDeletes(t *testing.T) {
	store := &fakeEnrollmentStore{}
	svc := newTestService(store, &fakeCourseStore{}, &fakeReviewStore{}, &fakeExpander{}, nil)

	require.NoError(t, svc.Withdraw(context.Background(), "e1", "a1"))
	assert.Equal(t, []string{"e1"}, store.deleteCalls)
}
