package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/unioncase/unioncase-api/internal/models"
)

// NoteRepository provides database access for grievance notes.
type NoteRepository struct {
	db *sqlx.DB
}

// NewNoteRepository creates a new instance of NoteRepository.
func NewNoteRepository(db *sqlx.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

// Create inserts a note.
func (r *NoteRepository) Create(ctx context.Context, note *models.Note) error {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notes (id, grievance_id, author_id, note_text, is_internal, created_at)
		VALUES (:id, :grievance_id, :author_id, :note_text, :is_internal, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, note); err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	return nil
}

// ListByGrievance returns notes for a grievance, newest first. Internal notes
// are filtered out for employees.
func (r *NoteRepository) ListByGrievance(ctx context.Context, grievanceID string, includeInternal bool) ([]models.Note, error) {
	query := `SELECT n.id, n.grievance_id, n.author_id,
		u.first_name || ' ' || u.last_name AS author_name, n.note_text, n.is_internal, n.created_at
		FROM notes n
		LEFT JOIN users u ON u.id = n.author_id
		WHERE n.grievance_id = $1`
	if !includeInternal {
		query += ` AND n.is_internal = FALSE`
	}
	query += ` ORDER BY n.created_at DESC`
	var notes []models.Note
	if err := r.db.SelectContext(ctx, &notes, query, grievanceID); err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}
