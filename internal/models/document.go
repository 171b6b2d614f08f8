package models

import "time"

// Document is uploaded file metadata attached to a grievance. Only the
// uploader may delete a document.
type Document struct {
	ID             string    `db:"id" json:"id"`
	GrievanceID    string    `db:"grievance_id" json:"grievance_id"`
	UploadedBy     string    `db:"uploaded_by" json:"uploaded_by"`
	UploadedByName *string   `db:"uploaded_by_name" json:"uploaded_by_name,omitempty"`
	FileName       string    `db:"file_name" json:"file_name"`
	FilePath       string    `db:"file_path" json:"file_path"`
	FileType       string    `db:"file_type" json:"file_type"`
	FileSize       int64     `db:"file_size" json:"file_size"`
	Label          string    `db:"label" json:"label"`
	Description    *string   `db:"description" json:"description,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
