package models

import "time"

// Note is a free-text annotation on a grievance. Notes are append-only and
// immutable after creation. Internal notes are hidden from employees.
type Note struct {
	ID          string    `db:"id" json:"id"`
	GrievanceID string    `db:"grievance_id" json:"grievance_id"`
	AuthorID    string    `db:"author_id" json:"author_id"`
	AuthorName  *string   `db:"author_name" json:"author_name,omitempty"`
	NoteText    string    `db:"note_text" json:"note_text"`
	IsInternal  bool      `db:"is_internal" json:"is_internal"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
