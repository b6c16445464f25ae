package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-enroll-api/internal/graph"
	"github.com/noah-isme/lms-enroll-api/internal/models"
	appErrors "github.com/noah-isme/lms-enroll-api/pkg/errors"
	"github.com/noah-isme/lms-enroll-api/pkg/export"
	"github.com/noah-isme/lms-enroll-api/pkg/jobs"
	"github.com/noah-isme/lms-enroll-api/pkg/storage"
)

const exportJobType = "progress-report"

// exportPageSize bounds how many enrollments each store round-trip loads
// while building a report.
const exportPageSize = 100

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type exportPayload struct {
	JobID    string
	Format   models.ExportFormat
	CourseID string
}

// ExportService renders enrollment progress reports asynchronously. Job
// state lives in memory; artifacts land in local storage and are served
// through signed download tokens.
type ExportService struct {
	enrollments enrollmentStore
	courses     courseStore
	reviews     reviewStore
	expander    courseExpander

	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	store  *storage.LocalStorage
	signer *storage.SignedURLSigner
	queue  jobEnqueuer
	logger *zap.Logger

	mu      sync.RWMutex
	jobByID map[string]*models.ExportJob
}

// NewExportService creates the service. Attach a queue with UseQueue
// before accepting requests.
func NewExportService(
	enrollments enrollmentStore,
	courses courseStore,
	reviews reviewStore,
	expander courseExpander,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	logger *zap.Logger,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		enrollments: enrollments,
		courses:     courses,
		reviews:     reviews,
		expander:    expander,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		store:       store,
		signer:      signer,
		logger:      logger,
		jobByID:     make(map[string]*models.ExportJob),
	}
}

// UseQueue attaches the dispatcher that runs Process.
func (s *ExportService) UseQueue(queue jobEnqueuer) {
	s.queue = queue
}

// Request registers a new export job and enqueues it.
func (s *ExportService) Request(_ context.Context, format models.ExportFormat, courseID, requestedBy string) (*models.ExportJob, error) {
	if format != models.ExportFormatCSV && format != models.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "export queue unavailable")
	}

	now := time.Now().UTC()
	job := &models.ExportJob{
		ID:          uuid.NewString(),
		Format:      format,
		CourseID:    courseID,
		Status:      models.ExportStatusPending,
		RequestedBy: requestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	s.jobByID[job.ID] = job
	s.mu.Unlock()

	err := s.queue.Enqueue(jobs.Job{
		ID:      job.ID,
		Type:    exportJobType,
		Payload: exportPayload{JobID: job.ID, Format: format, CourseID: courseID},
	})
	if err != nil {
		s.fail(job.ID, fmt.Errorf("enqueue export: %w", err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "could not queue export")
	}

	s.logger.Info("export requested",
		zap.String("jobId", job.ID),
		zap.String("format", string(format)),
		zap.String("courseId", courseID))
	return s.snapshot(job.ID), nil
}

// Get returns the current state of an export job.
func (s *ExportService) Get(_ context.Context, id string) (*models.ExportJob, error) {
	job := s.snapshot(id)
	if job == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	return job, nil
}

// Process runs one export job. It is the handler wired into the queue;
// returned errors trigger the queue's retry policy.
func (s *ExportService) Process(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(exportPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	data, err := s.buildDataset(ctx, payload.CourseID)
	if err != nil {
		s.fail(payload.JobID, err)
		return err
	}

	var rendered []byte
	switch payload.Format {
	case models.ExportFormatPDF:
		rendered, err = s.pdf.Render(data, "Enrollment Progress Report")
	default:
		rendered, err = s.csv.Render(data)
	}
	if err != nil {
		s.fail(payload.JobID, fmt.Errorf("render %s: %w", payload.Format, err))
		return err
	}

	filename := fmt.Sprintf("%s.%s", payload.JobID, payload.Format)
	if _, err := s.store.Save(filename, rendered); err != nil {
		s.fail(payload.JobID, fmt.Errorf("store artifact: %w", err))
		return err
	}

	token, expiresAt, err := s.signer.Generate(payload.JobID, filename)
	if err != nil {
		s.fail(payload.JobID, fmt.Errorf("sign download: %w", err))
		return err
	}

	s.mu.Lock()
	if j, ok := s.jobByID[payload.JobID]; ok {
		j.Status = models.ExportStatusReady
		j.FileName = filename
		j.DownloadURL = "/downloads?token=" + token
		j.ExpiresAt = &expiresAt
		j.Error = ""
		j.UpdatedAt = time.Now().UTC()
	}
	s.mu.Unlock()

	s.logger.Info("export ready", zap.String("jobId", payload.JobID), zap.Int("bytes", len(rendered)))
	return nil
}

// ResolveDownload validates a signed token and returns the artifact path
// on disk together with the filename to serve.
func (s *ExportService) ResolveDownload(token string) (string, string, error) {
	jobID, filename, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid download token")
	}

	job := s.snapshot(jobID)
	if job == nil || job.Status != models.ExportStatusReady {
		return "", "", appErrors.Clone(appErrors.ErrNotFound, "export artifact not available")
	}
	return s.store.Path(filename), filename, nil
}

func (s *ExportService) buildDataset(ctx context.Context, courseID string) (export.Dataset, error) {
	var all []models.Enrollment
	filter := models.EnrollmentFilter{CourseID: courseID, Page: 1, PageSize: exportPageSize}
	for {
		page, total, err := s.enrollments.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, fmt.Errorf("list enrollments: %w", err)
		}
		all = append(all, page...)
		if len(all) >= total || len(page) == 0 {
			break
		}
		filter.Page++
	}

	courseIDs := make([]string, 0, len(all))
	seen := make(map[string]struct{}, len(all))
	for _, e := range all {
		if _, ok := seen[e.CourseID]; ok {
			continue
		}
		seen[e.CourseID] = struct{}{}
		courseIDs = append(courseIDs, e.CourseID)
	}

	courses, err := s.courses.FindByIDs(ctx, courseIDs)
	if err != nil {
		return export.Dataset{}, fmt.Errorf("load courses: %w", err)
	}
	courseList := make([]models.Course, 0, len(courses))
	for _, c := range courses {
		courseList = append(courseList, c)
	}
	graphs, err := s.expander.ExpandCourses(ctx, courseList, graph.SummarySpecs)
	if err != nil {
		return export.Dataset{}, fmt.Errorf("expand courses: %w", err)
	}
	reviews, err := s.reviews.ListByCourseIDs(ctx, courseIDs)
	if err != nil {
		return export.Dataset{}, fmt.Errorf("load reviews: %w", err)
	}

	data := export.Dataset{
		Headers: []string{"Enrollment ID", "Student ID", "Course", "Completed", "Total Lectures", "Progress", "Rating"},
	}
	for _, e := range all {
		g := graphs[e.CourseID]
		if g == nil {
			continue
		}
		stats := graph.StatsOf(g)
		data.Rows = append(data.Rows, map[string]string{
			"Enrollment ID":  e.ID,
			"Student ID":     e.StudentID,
			"Course":         g.Course.Title,
			"Completed":      strconv.Itoa(len(e.CompletedLectures)),
			"Total Lectures": strconv.Itoa(stats.LectureCount),
			"Progress":       graph.CompletionPercent(len(e.CompletedLectures), stats.LectureCount),
			"Rating":         graph.AverageRating(reviews[e.CourseID]),
		})
	}
	return data, nil
}

func (s *ExportService) fail(jobID string, err error) {
	s.logger.Error("export failed", zap.String("jobId", jobID), zap.Error(err))
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobByID[jobID]; ok {
		j.Status = models.ExportStatusFailed
		j.Error = err.Error()
		j.UpdatedAt = time.Now().UTC()
	}
}

func (s *ExportService) snapshot(id string) *models.ExportJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if j, ok := s.jobByID[id]; ok {
		copied := *j
		return &copied
	}
	return nil
}
