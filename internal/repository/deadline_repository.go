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

// DeadlineRepository provides database access for grievance deadlines.
type DeadlineRepository struct {
	db *sqlx.DB
}

// NewDeadlineRepository creates a new instance of DeadlineRepository.
func NewDeadlineRepository(db *sqlx.DB) *DeadlineRepository {
	return &DeadlineRepository{db: db}
}

// Create inserts a deadline outside of the filing transaction.
func (r *DeadlineRepository) Create(ctx context.Context, deadline *models.Deadline) error {
	if deadline.ID == "" {
		deadline.ID = uuid.NewString()
	}
	if deadline.CreatedAt.IsZero() {
		deadline.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO deadlines (id, grievance_id, deadline_type, deadline_date, description, is_completed, created_at)
		VALUES (:id, :grievance_id, :deadline_type, :deadline_date, :description, :is_completed, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, deadline); err != nil {
		return fmt.Errorf("create deadline: %w", err)
	}
	return nil
}

// ListByGrievance returns all deadlines for a grievance, soonest first.
func (r *DeadlineRepository) ListByGrievance(ctx context.Context, grievanceID string) ([]models.Deadline, error) {
	const query = `SELECT id, grievance_id, deadline_type, deadline_date, description, is_completed, created_at
		FROM deadlines WHERE grievance_id = $1 ORDER BY deadline_date ASC`
	var deadlines []models.Deadline
	if err := r.db.SelectContext(ctx, &deadlines, query, grievanceID); err != nil {
		return nil, fmt.Errorf("list deadlines: %w", err)
	}
	return deadlines, nil
}

// FindByID returns one deadline row.
func (r *DeadlineRepository) FindByID(ctx context.Context, id string) (*models.Deadline, error) {
	const query = `SELECT id, grievance_id, deadline_type, deadline_date, description, is_completed, created_at
		FROM deadlines WHERE id = $1 LIMIT 1`
	var deadline models.Deadline
	if err := r.db.GetContext(ctx, &deadline, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find deadline: %w", err)
	}
	return &deadline, nil
}

// ListDue returns incomplete deadlines on open grievances joined with the
// owning user and their stored notification preferences. The sweep decides
// per row whether anything is due.
func (r *DeadlineRepository) ListDue(ctx context.Context) ([]models.DueDeadline, error) {
	const query = `SELECT d.id AS deadline_id, d.deadline_type, d.deadline_date, d.description,
		g.id AS grievance_id, g.case_number, g.grievant_name, g.violation_type, g.current_step,
		g.created_at AS filed_at,
		u.id AS user_id, u.first_name, u.last_name, u.email, u.notification_preferences
		FROM deadlines d
		JOIN grievances g ON g.id = d.grievance_id
		JOIN users u ON u.id = g.user_id
		WHERE d.is_completed = FALSE AND g.status = 'active'
		ORDER BY d.deadline_date ASC`
	var due []models.DueDeadline
	if err := r.db.SelectContext(ctx, &due, query); err != nil {
		return nil, fmt.Errorf("list due deadlines: %w", err)
	}
	return due, nil
}

// MarkCompleted flags a deadline as satisfied.
func (r *DeadlineRepository) MarkCompleted(ctx context.Context, id string) error {
	const query = `UPDATE deadlines SET is_completed = TRUE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("complete deadline: %w", err)
	}
	return nil
}
