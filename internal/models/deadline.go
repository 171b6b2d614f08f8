package models

import "time"

// DeadlineType identifies which contractual time limit a deadline tracks.
// The values mirror the step a grievance must reach before the date passes.
type DeadlineType string

const (
	DeadlineInformalA   DeadlineType = "informal_step_a"
	DeadlineFormalA     DeadlineType = "formal_step_a"
	DeadlineStepB       DeadlineType = "step_b"
	DeadlineArbitration DeadlineType = "arbitration"
)

// Deadline is a dated obligation tied to a grievance. Deadlines are never
// deleted; completion is tracked via the flag only.
type Deadline struct {
	ID           string       `db:"id" json:"id"`
	GrievanceID  string       `db:"grievance_id" json:"grievance_id"`
	DeadlineType DeadlineType `db:"deadline_type" json:"deadline_type"`
	DeadlineDate time.Time    `db:"deadline_date" json:"deadline_date"`
	Description  string       `db:"description" json:"description"`
	IsCompleted  bool         `db:"is_completed" json:"is_completed"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

// Overdue reports whether the deadline has passed without completion.
func (d *Deadline) Overdue(now time.Time) bool {
	return !d.IsCompleted && d.DeadlineDate.Before(now)
}

// DueDeadline is the sweep projection: an incomplete deadline joined to its
// open grievance and the filing user's notification preferences.
type DueDeadline struct {
	DeadlineID   string       `db:"deadline_id"`
	DeadlineType DeadlineType `db:"deadline_type"`
	DeadlineDate time.Time    `db:"deadline_date"`
	Description  string       `db:"description"`

	GrievanceID   string        `db:"grievance_id"`
	CaseNumber    string        `db:"case_number"`
	GrievantName  string        `db:"grievant_name"`
	ViolationType string        `db:"violation_type"`
	CurrentStep   GrievanceStep `db:"current_step"`
	FiledAt       time.Time     `db:"filed_at"`

	UserID      string                   `db:"user_id"`
	FirstName   string                   `db:"first_name"`
	LastName    string                   `db:"last_name"`
	Email       string                   `db:"email"`
	Preferences *NotificationPreferences `db:"notification_preferences"`
}

// EffectivePreferences overlays the stored preferences on the defaults.
func (d *DueDeadline) EffectivePreferences() NotificationPreferences {
	prefs := DefaultNotificationPreferences()
	if d.Preferences == nil {
		return prefs
	}
	stored := *d.Preferences
	if stored.ReminderDays == nil {
		stored.ReminderDays = prefs.ReminderDays
	}
	return stored
}
