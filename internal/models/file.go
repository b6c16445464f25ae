package models

// File is stored media metadata. TimeLength is only meaningful for video
// mimetypes and is expressed in seconds.
type File struct {
	ID         string   `db:"id" json:"id"`
	Path       string   `db:"path" json:"path"`
	MimeType   string   `db:"mimetype" json:"mimetype"`
	Size       int64    `db:"size" json:"size"`
	TimeLength *float64 `db:"time_length" json:"time_length,omitempty"`
}
