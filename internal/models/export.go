package models

import "time"

// ExportFormat selects the rendered artifact type.
type ExportFormat string

// Supported export formats.
const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportStatus tracks an export job through its lifecycle.
type ExportStatus string

// Export job statuses.
const (
	ExportStatusPending ExportStatus = "PENDING"
	ExportStatusReady   ExportStatus = "READY"
	ExportStatusFailed  ExportStatus = "FAILED"
)

// ExportJob describes one progress-report export request.
type ExportJob struct {
	ID          string       `json:"id"`
	Format      ExportFormat `json:"format"`
	CourseID    string       `json:"course_id,omitempty"`
	Status      ExportStatus `json:"status"`
	FileName    string       `json:"-"`
	DownloadURL string       `json:"download_url,omitempty"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
	Error       string       `json:"error,omitempty"`
	RequestedBy string       `json:"requested_by"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
