package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/unioncase/unioncase-api/internal/models"
)

type dueDeadlineRepository interface {
	ListDue(ctx context.Context) ([]models.DueDeadline, error)
}

// ReminderServiceConfig tunes the deadline sweep.
type ReminderServiceConfig struct {
	ClientURL   string
	MaxAttempts int
}

// ReminderService is the deadline notification engine. Each sweep loads
// every incomplete deadline on an open case and decides, per the owner's
// preferences, whether a reminder or an overdue alert is due today. Sends
// are deduplicated through the durable ledger, so a sweep can run as often
// as it likes.
type ReminderService struct {
	deadlines dueDeadlineRepository
	ledger    notificationLedger
	inbox     notifierInboxRepository
	mailer    Mailer
	logger    *zap.Logger
	config    ReminderServiceConfig
}

// NewReminderService constructs a ReminderService.
func NewReminderService(deadlines dueDeadlineRepository, ledger notificationLedger, inbox notifierInboxRepository, mailer Mailer, logger *zap.Logger, config ReminderServiceConfig) *ReminderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	return &ReminderService{deadlines: deadlines, ledger: ledger, inbox: inbox, mailer: mailer, logger: logger, config: config}
}

// reminderKind is the ledger key for a reminder fired d days ahead. Distinct
// offsets are distinct kinds: a day-3 and a day-1 reminder for the same
// deadline both go out, once each.
func reminderKind(daysUntil int) string {
	return fmt.Sprintf("reminder_%d", daysUntil)
}

const overdueKind = "overdue"

// Sweep runs one pass over all due deadlines and returns how many
// notifications it dispatched.
func (s *ReminderService) Sweep(ctx context.Context) (int, error) {
	due, err := s.deadlines.ListDue(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	var sent int
	for i := range due {
		if s.process(ctx, &due[i], now) {
			sent++
		}
	}
	s.logger.Info("deadline sweep finished", zap.Int("deadlines", len(due)), zap.Int("notifications", sent))
	return sent, nil
}

// process evaluates one deadline row and reports whether a notification was
// dispatched.
func (s *ReminderService) process(ctx context.Context, d *models.DueDeadline, now time.Time) bool {
	prefs := d.EffectivePreferences()
	if !prefs.EmailEnabled || !prefs.DeadlineReminders {
		return false
	}

	days := daysUntil(d.DeadlineDate, now)
	if days < 0 {
		return s.send(ctx, d, overdueKind, models.KindDeadlineOverdue, days)
	}
	for _, offset := range prefs.ReminderDays {
		if days == offset {
			return s.send(ctx, d, reminderKind(days), models.KindDeadlineReminder, days)
		}
	}
	return false
}

func (s *ReminderService) send(ctx context.Context, d *models.DueDeadline, ledgerKind string, kind models.NotificationKind, days int) bool {
	claimed, err := s.ledger.TryClaim(ctx, d.DeadlineID, ledgerKind, s.config.MaxAttempts)
	if err != nil {
		s.logger.Error("failed to claim deadline notification",
			zap.String("deadline_id", d.DeadlineID), zap.String("kind", ledgerKind), zap.Error(err))
		return false
	}
	if !claimed {
		return false
	}

	var subject, body string
	if kind == models.KindDeadlineOverdue {
		subject, body = deadlineOverdueEmail(s.config.ClientURL, *d)
	} else {
		subject, body = deadlineReminderEmail(s.config.ClientURL, *d, days)
	}

	if err := s.inbox.CreateInbox(ctx, &models.Notification{
		UserID:      d.UserID,
		GrievanceID: &d.GrievanceID,
		Type:        kind,
		Title:       subject,
		Message:     subject,
	}); err != nil {
		s.logger.Warn("failed to write deadline inbox row",
			zap.String("deadline_id", d.DeadlineID), zap.Error(err))
	}

	if err := s.mailer.Send(ctx, d.Email, subject, body); err != nil {
		s.logger.Error("failed to send deadline email, releasing claim",
			zap.String("deadline_id", d.DeadlineID), zap.String("kind", ledgerKind), zap.Error(err))
		if relErr := s.ledger.ReleaseClaim(ctx, d.DeadlineID, ledgerKind); relErr != nil {
			s.logger.Error("failed to release deadline claim",
				zap.String("deadline_id", d.DeadlineID), zap.Error(relErr))
		}
		return false
	}
	return true
}
