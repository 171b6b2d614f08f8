package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/unioncase/unioncase-api/internal/models"
	appErrors "github.com/unioncase/unioncase-api/pkg/errors"
)

type userDirectoryRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListStewards(ctx context.Context) ([]models.Steward, error)
	UpdatePreferences(ctx context.Context, id string, prefs models.NotificationPreferences) error
}

type userInboxRepository interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}

// UserService exposes the user directory, notification preferences and the
// in-app inbox.
type UserService struct {
	repo      userDirectoryRepository
	inbox     userInboxRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(repo userDirectoryRepository, inbox userInboxRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, inbox: inbox, validator: validate, logger: logger}
}

// Stewards returns stewards and representatives for assignment dropdowns.
func (s *UserService) Stewards(ctx context.Context) ([]models.Steward, error) {
	stewards, err := s.repo.ListStewards(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list stewards")
	}
	return stewards, nil
}

// Preferences returns the caller's effective notification preferences.
func (s *UserService) Preferences(ctx context.Context, userID string) (*models.NotificationPreferences, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	prefs := user.EffectivePreferences()
	return &prefs, nil
}

// UpdatePreferences replaces the caller's notification preferences. Reminder
// offsets must be non-negative whole days.
func (s *UserService) UpdatePreferences(ctx context.Context, userID string, prefs models.NotificationPreferences) (*models.NotificationPreferences, error) {
	for _, d := range prefs.ReminderDays {
		if d < 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "reminder days must be zero or positive")
		}
	}
	if prefs.ReminderDays == nil {
		prefs.ReminderDays = models.DefaultNotificationPreferences().ReminderDays
	}

	if err := s.repo.UpdatePreferences(ctx, userID, prefs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update preferences")
	}
	return &prefs, nil
}

// Inbox returns the caller's most recent notifications.
func (s *UserService) Inbox(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	rows, err := s.inbox.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return rows, nil
}

// MarkNotificationRead flags one inbox entry as read.
func (s *UserService) MarkNotificationRead(ctx context.Context, id, userID string) error {
	if err := s.inbox.MarkRead(ctx, id, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}
