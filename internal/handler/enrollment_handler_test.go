package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-enroll-api/internal/graph"
	"github.com/noah-isme/lms-enroll-api/internal/middleware"
	"github.com/noah-isme/lms-enroll-api/internal/models"
	"github.com/noah-isme/lms-enroll-api/internal/service"
)

type enrollmentStoreMock struct {
	enrollments []models.Enrollment
	total       int
	listErr     error
	lastFilter  models.EnrollmentFilter

	byID map[string]*models.Enrollment
}

func (m *enrollmentStoreMock) List(_ context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	m.lastFilter = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.enrollments, m.total, nil
}

func (m *enrollmentStoreMock) FindByID(_ context.Context, id string) (*models.Enrollment, error) {
	e, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return e, nil
}

func (m *enrollmentStoreMock) ExistsActive(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

func (m *enrollmentStoreMock) Create(_ context.Context, e *models.Enrollment) error {
	e.ID = "created"
	return nil
}

func (m *enrollmentStoreMock) MarkLectureCompleted(_ context.Context, _, _, _ string, _ time.Time) error {
	return nil
}

func (m *enrollmentStoreMock) SoftDelete(_ context.Context, _, _ string, _ time.Time) error {
	return nil
}

type courseStoreMock struct {
	courses map[string]models.Course
}

func (m *courseStoreMock) FindByIDs(_ context.Context, ids []string) (map[string]models.Course, error) {
	out := make(map[string]models.Course)
	for _, id := range ids {
		if c, ok := m.courses[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (m *courseStoreMock) Exists(_ context.Context, id string) (bool, error) {
	_, ok := m.courses[id]
	return ok, nil
}

type reviewStoreMock struct{}

func (m *reviewStoreMock) ListByCourseIDs(_ context.Context, _ []string) (map[string][]models.Review, error) {
	return map[string][]models.Review{}, nil
}

type expanderMock struct{}

func (m *expanderMock) ExpandCourse(_ context.Context, course models.Course, _ []graph.Spec) (*graph.CourseGraph, error) {
	return &graph.CourseGraph{Course: course}, nil
}

func (m *expanderMock) ExpandCourses(_ context.Context, courses []models.Course, _ []graph.Spec) (map[string]*graph.CourseGraph, error) {
	out := make(map[string]*graph.CourseGraph, len(courses))
	for _, c := range courses {
		out[c.ID] = &graph.CourseGraph{Course: c}
	}
	return out, nil
}

func asClaims(userID string, role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: userID, Role: role})
		c.Next()
	}
}

func newEnrollmentRouter(store *enrollmentStoreMock, courses *courseStoreMock, userID string, role models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.NewEnrollmentService(store, courses, &reviewStoreMock{}, &expanderMock{}, nil, nil, nil)
	h := NewEnrollmentHandler(svc, nil)

	r := gin.New()
	r.Use(asClaims(userID, role))
	r.GET("/enrollments", h.List)
	r.GET("/enrollments/:id", h.Detail)
	r.POST("/enrollments", h.Create)
	r.POST("/enrollments/:id/lectures/:lectureId/complete", h.CompleteLecture)
	r.DELETE("/enrollments/:id", h.Delete)
	return r
}

func TestListAnswers200OnAggregationFailure(t *testing.T) {
	store := &enrollmentStoreMock{listErr: errors.New("connection reset")}
	router := newEnrollmentRouter(store, &courseStoreMock{}, "admin-1", models.RoleAdmin)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/enrollments", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data struct {
			Enrollments []json.RawMessage `json:"enrollments"`
			TotalItem   int               `json:"totalItem"`
			TotalPage   int               `json:"totalPage"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Empty(t, body.Data.Enrollments)
	assert.Equal(t, 0, body.Data.TotalItem)
}

func TestListScopesStudentsToOwnEnrollments(t *testing.T) {
	store := &enrollmentStoreMock{}
	router := newEnrollmentRouter(store, &courseStoreMock{}, "stu-1", models.RoleStudent)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/enrollments?studentId=other", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stu-1", store.lastFilter.StudentID)
}

func TestDetailNotFoundMapsTo404(t *testing.T) {
	store := &enrollmentStoreMock{byID: map[string]*models.Enrollment{}}
	router := newEnrollmentRouter(store, &courseStoreMock{}, "admin-1", models.RoleAdmin)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/enrollments/missing", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDetailHidesForeignEnrollmentFromStudent(t *testing.T) {
	store := &enrollmentStoreMock{byID: map[string]*models.Enrollment{
		"e1": {ID: "e1", CourseID: "c1", StudentID: "stu-2"},
	}}
	courses := &courseStoreMock{courses: map[string]models.Course{"c1": {ID: "c1"}}}
	router := newEnrollmentRouter(store, courses, "stu-1", models.RoleStudent)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/enrollments/e1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateForcesStudentIdentity(t *testing.T) {
	store := &enrollmentStoreMock{}
	courses := &courseStoreMock{courses: map[string]models.Course{"c1": {ID: "c1"}}}
	router := newEnrollmentRouter(store, courses, "stu-1", models.RoleStudent)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/enrollments",
		strings.NewReader(`{"courseId":"c1","studentId":"someone-else"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"student_id":"stu-1"`)
}

func TestCompleteLectureAnswersOK(t *testing.T) {
	store := &enrollmentStoreMock{byID: map[string]*models.Enrollment{
		"e1": {ID: "e1", CourseID: "c1", StudentID: "stu-1"},
	}}
	router := newEnrollmentRouter(store, &courseStoreMock{}, "stu-1", models.RoleStudent)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/enrollments/e1/lectures/l1/complete", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"completed":true`)
}

func TestDeleteAnswersNoContent(t *testing.T) {
	store := &enrollmentStoreMock{}
	router := newEnrollmentRouter(store, &courseStoreMock{}, "admin-1", models.RoleAdmin)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/enrollments/e1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}
