package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/unioncase/unioncase-api/internal/models"
)

// DocumentRepository provides database access for uploaded case documents.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository creates a new instance of DocumentRepository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a document record.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO documents (id, grievance_id, uploaded_by, file_name, file_path, file_type, file_size, label, description, created_at)
		VALUES (:id, :grievance_id, :uploaded_by, :file_name, :file_path, :file_type, :file_size, :label, :description, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// FindByID returns a document record.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*models.Document, error) {
	const query = `SELECT d.id, d.grievance_id, d.uploaded_by,
		u.first_name || ' ' || u.last_name AS uploaded_by_name,
		d.file_name, d.file_path, d.file_type, d.file_size, d.label, d.description, d.created_at
		FROM documents d
		LEFT JOIN users u ON u.id = d.uploaded_by
		WHERE d.id = $1 LIMIT 1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return &doc, nil
}

// ListByGrievance returns documents attached to a grievance, newest first.
func (r *DocumentRepository) ListByGrievance(ctx context.Context, grievanceID string) ([]models.Document, error) {
	const query = `SELECT d.id, d.grievance_id, d.uploaded_by,
		u.first_name || ' ' || u.last_name AS uploaded_by_name,
		d.file_name, d.file_path, d.file_type, d.file_size, d.label, d.description, d.created_at
		FROM documents d
		LEFT JOIN users u ON u.id = d.uploaded_by
		WHERE d.grievance_id = $1
		ORDER BY d.created_at DESC`
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, grievanceID); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Delete removes a document record. Returns sql.ErrNoRows when absent.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
