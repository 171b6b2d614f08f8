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

const userColumns = `id, email, password_hash, first_name, last_name, employee_id, role, facility, craft, phone,
	notification_preferences, subscription_status, trial_starts_at, trial_ends_at, created_at, updated_at`

// UserRepository provides database access for user accounts and sessions.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1 LIMIT 1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1 LIMIT 1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// ExistsByEmailOrEmployeeID reports whether an account already claims either
// identifier.
func (r *UserRepository) ExistsByEmailOrEmployeeID(ctx context.Context, email, employeeID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM users WHERE email = $1 OR employee_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, email, employeeID); err != nil {
		return false, fmt.Errorf("check user existence: %w", err)
	}
	return count > 0, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users
		(id, email, password_hash, first_name, last_name, employee_id, role, facility, craft, phone,
		 notification_preferences, subscription_status, trial_starts_at, trial_ends_at, created_at, updated_at)
		VALUES (:id, :email, :password_hash, :first_name, :last_name, :employee_id, :role, :facility, :craft, :phone,
		 :notification_preferences, :subscription_status, :trial_starts_at, :trial_ends_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateSubscriptionStatus flips the stored subscription state.
func (r *UserRepository) UpdateSubscriptionStatus(ctx context.Context, id string, status models.SubscriptionStatus) error {
	const query = `UPDATE users SET subscription_status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	return nil
}

// SubscriptionState is the minimal projection the access gate needs.
type SubscriptionState struct {
	Status      models.SubscriptionStatus `db:"subscription_status"`
	TrialEndsAt *time.Time                `db:"trial_ends_at"`
}

// GetSubscriptionState loads only the gate-relevant columns.
func (r *UserRepository) GetSubscriptionState(ctx context.Context, id string) (*SubscriptionState, error) {
	const query = `SELECT subscription_status, trial_ends_at FROM users WHERE id = $1 LIMIT 1`
	var state SubscriptionState
	if err := r.db.GetContext(ctx, &state, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get subscription state: %w", err)
	}
	return &state, nil
}

// ListTrialUsers returns every user still marked as trialing.
func (r *UserRepository) ListTrialUsers(ctx context.Context) ([]models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE subscription_status = $1 ORDER BY trial_ends_at ASC`, userColumns)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, models.SubscriptionTrial); err != nil {
		return nil, fmt.Errorf("list trial users: %w", err)
	}
	return users, nil
}

// ListStewards returns stewards and representatives for assignment dropdowns.
func (r *UserRepository) ListStewards(ctx context.Context) ([]models.Steward, error) {
	const query = `SELECT id, first_name, last_name, email, facility FROM users
		WHERE role IN ('steward', 'representative')
		ORDER BY last_name, first_name`
	var stewards []models.Steward
	if err := r.db.SelectContext(ctx, &stewards, query); err != nil {
		return nil, fmt.Errorf("list stewards: %w", err)
	}
	return stewards, nil
}

// UpdatePreferences stores the full preference object.
func (r *UserRepository) UpdatePreferences(ctx context.Context, id string, prefs models.NotificationPreferences) error {
	const query = `UPDATE users SET notification_preferences = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, prefs, time.Now().UTC()); err != nil {
		return fmt.Errorf("update notification preferences: %w", err)
	}
	return nil
}

// CreateRefreshToken persists a refresh token entry.
func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent)
		VALUES (:id, :user_id, :token, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken returns a refresh token by token string.
func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent
		FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// RevokeRefreshToken marks a token as revoked.
func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, revokedAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}
