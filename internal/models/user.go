package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// UserRole represents the available roles in the grievance workflow.
type UserRole string

const (
	RoleEmployee       UserRole = "employee"
	RoleSteward        UserRole = "steward"
	RoleRepresentative UserRole = "representative"
)

// SubscriptionStatus tracks the per-user trial/subscription state.
type SubscriptionStatus string

const (
	SubscriptionTrial     SubscriptionStatus = "trial"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// TrialDuration is the fixed trial window length granted at enrollment.
const TrialDuration = 30 * 24 * time.Hour

// NotificationPreferences holds the per-user notification opt-ins stored as
// JSONB. Missing fields fall back to the defaults at evaluation time.
type NotificationPreferences struct {
	EmailEnabled      bool  `json:"email_enabled"`
	NewGrievance      bool  `json:"new_grievance"`
	DeadlineReminders bool  `json:"deadline_reminders"`
	StatusUpdates     bool  `json:"status_updates"`
	NewNotes          bool  `json:"new_notes"`
	GrievanceResolved bool  `json:"grievance_resolved"`
	ReminderDays      []int `json:"reminder_days"`
}

// DefaultNotificationPreferences returns the preferences applied when a user
// has never stored an override.
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		EmailEnabled:      true,
		NewGrievance:      true,
		DeadlineReminders: true,
		StatusUpdates:     true,
		NewNotes:          true,
		GrievanceResolved: true,
		ReminderDays:      []int{3, 1, 0},
	}
}

// Value implements driver.Valuer for JSONB persistence.
func (p NotificationPreferences) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner for JSONB retrieval. Stored keys overlay the
// defaults so a partial object never zeroes the remaining opt-ins.
func (p *NotificationPreferences) Scan(src interface{}) error {
	merged := DefaultNotificationPreferences()
	switch v := src.(type) {
	case nil:
	case []byte:
		if err := json.Unmarshal(v, &merged); err != nil {
			return err
		}
	case string:
		if err := json.Unmarshal([]byte(v), &merged); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported notification preferences type %T", src)
	}
	*p = merged
	return nil
}

// User represents an application user stored in the users table.
type User struct {
	ID                 string                   `db:"id" json:"id"`
	Email              string                   `db:"email" json:"email"`
	PasswordHash       string                   `db:"password_hash" json:"-"`
	FirstName          string                   `db:"first_name" json:"first_name"`
	LastName           string                   `db:"last_name" json:"last_name"`
	EmployeeID         string                   `db:"employee_id" json:"employee_id"`
	Role               UserRole                 `db:"role" json:"role"`
	Facility           string                   `db:"facility" json:"facility"`
	Craft              Craft                    `db:"craft" json:"craft"`
	Phone              string                   `db:"phone" json:"phone"`
	Preferences        *NotificationPreferences `db:"notification_preferences" json:"notification_preferences,omitempty"`
	SubscriptionStatus SubscriptionStatus       `db:"subscription_status" json:"subscription_status"`
	TrialStartsAt      *time.Time               `db:"trial_starts_at" json:"trial_starts_at,omitempty"`
	TrialEndsAt        *time.Time               `db:"trial_ends_at" json:"trial_ends_at,omitempty"`
	CreatedAt          time.Time                `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time                `db:"updated_at" json:"updated_at"`
}

// FullName joins the stored name parts for display and email salutations.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// EffectivePreferences overlays stored preferences on the defaults.
func (u *User) EffectivePreferences() NotificationPreferences {
	prefs := DefaultNotificationPreferences()
	if u.Preferences == nil {
		return prefs
	}
	stored := *u.Preferences
	if stored.ReminderDays == nil {
		stored.ReminderDays = prefs.ReminderDays
	}
	return stored
}

// Steward is the reduced projection returned for assignment dropdowns.
type Steward struct {
	ID        string `db:"id" json:"id"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	Email     string `db:"email" json:"email"`
	Facility  string `db:"facility" json:"facility"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
