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

// NotificationRepository provides database access for the in-app notification
// inbox and the sent-notification ledger that keeps sweeps exactly-once.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a new instance of NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateInbox inserts an in-app notification row.
func (r *NotificationRepository) CreateInbox(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (id, user_id, grievance_id, notification_type, title, message, is_read, created_at)
		VALUES (:id, :user_id, :grievance_id, :notification_type, :title, :message, :is_read, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListByUser returns the user's inbox, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	if limit < 1 {
		limit = 50
	}
	const query = `SELECT id, user_id, grievance_id, notification_type, title, message, is_read, created_at
		FROM notifications WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	var rows []models.Notification
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return rows, nil
}

// MarkRead flags a single notification as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	const query = `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`
	if _, err := r.db.ExecContext(ctx, query, id, userID); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// TryClaim atomically claims (entityID, kind) in the sent-notification
// ledger. It returns true exactly once per pair: a fresh insert or a retry of
// a previously released claim, as long as the attempt cap is not exhausted.
// Concurrent sweeps racing on the same pair see at most one true.
func (r *NotificationRepository) TryClaim(ctx context.Context, entityID, kind string, maxAttempts int) (bool, error) {
	const query = `INSERT INTO sent_notifications (entity_id, kind, attempts, sent_at, claimed_at)
		VALUES ($1, $2, 1, now(), now())
		ON CONFLICT (entity_id, kind) DO UPDATE
		SET attempts = sent_notifications.attempts + 1, sent_at = now(), claimed_at = now()
		WHERE sent_notifications.sent_at IS NULL AND sent_notifications.attempts < $3
		RETURNING attempts`
	var attempts int
	err := r.db.GetContext(ctx, &attempts, query, entityID, kind, maxAttempts)
	if err == sql.ErrNoRows {
		// Already sent, or attempts exhausted.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim notification: %w", err)
	}
	return true, nil
}

// ReleaseClaim reopens a claim after a dispatch failure so a later sweep may
// retry. The attempt counter keeps its incremented value.
func (r *NotificationRepository) ReleaseClaim(ctx context.Context, entityID, kind string) error {
	const query = `UPDATE sent_notifications SET sent_at = NULL WHERE entity_id = $1 AND kind = $2`
	if _, err := r.db.ExecContext(ctx, query, entityID, kind); err != nil {
		return fmt.Errorf("release notification claim: %w", err)
	}
	return nil
}
