package models

import "time"

// NotificationKind enumerates every outbound notification the system sends.
type NotificationKind string

const (
	KindNewGrievance      NotificationKind = "new_grievance"
	KindDeadlineReminder  NotificationKind = "deadline_reminder"
	KindDeadlineOverdue   NotificationKind = "deadline_overdue"
	KindStatusUpdate      NotificationKind = "status_update"
	KindNewNote           NotificationKind = "new_note"
	KindGrievanceResolved NotificationKind = "grievance_resolved"
	KindTrialWelcome      NotificationKind = "trial_welcome"
	KindTrialWarning7     NotificationKind = "trial_warning_7"
	KindTrialWarning2     NotificationKind = "trial_warning_2"
	KindTrialExpired      NotificationKind = "trial_expired"
)

// Notification is a write-once inbox/audit row. It records what was sent but
// does not gate resends; that is the sent_notifications ledger's job.
type Notification struct {
	ID          string           `db:"id" json:"id"`
	UserID      string           `db:"user_id" json:"user_id"`
	GrievanceID *string          `db:"grievance_id" json:"grievance_id,omitempty"`
	Type        NotificationKind `db:"notification_type" json:"notification_type"`
	Title       string           `db:"title" json:"title"`
	Message     string           `db:"message" json:"message"`
	IsRead      bool             `db:"is_read" json:"is_read"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

// SentNotification is a row in the durable idempotency ledger keyed by
// (entity_id, kind). A row with sent_at set means the notification went out;
// attempts counts dispatch tries so permanently failing recipients are
// eventually given up on.
type SentNotification struct {
	EntityID  string     `db:"entity_id"`
	Kind      string     `db:"kind"`
	Attempts  int        `db:"attempts"`
	SentAt    *time.Time `db:"sent_at"`
	ClaimedAt time.Time  `db:"claimed_at"`
}
