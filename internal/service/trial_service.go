package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/unioncase/unioncase-api/internal/models"
)

type trialUserRepository interface {
	ListTrialUsers(ctx context.Context) ([]models.User, error)
	UpdateSubscriptionStatus(ctx context.Context, id string, status models.SubscriptionStatus) error
}

// notificationLedger is the durable claim table keeping sweep notifications
// exactly-once across restarts and concurrent runs.
type notificationLedger interface {
	TryClaim(ctx context.Context, entityID, kind string, maxAttempts int) (bool, error)
	ReleaseClaim(ctx context.Context, entityID, kind string) error
}

type welcomeDispatcher interface {
	NotifyTrialWelcome(user *models.User, trialEndsAt time.Time)
}

// TrialServiceConfig governs trial enrollment and warning emails.
type TrialServiceConfig struct {
	Duration          time.Duration
	FacilityAllowList []string
	SupportEmail      string
	SupportPhone      string
	ClientURL         string
	MaxAttempts       int
}

// TrialService enrolls new accounts into the trial program and runs the
// daily expiry sweep.
type TrialService struct {
	repo     trialUserRepository
	ledger   notificationLedger
	inbox    notifierInboxRepository
	mailer   Mailer
	notifier welcomeDispatcher
	logger   *zap.Logger
	config   TrialServiceConfig
}

// NewTrialService constructs a TrialService.
func NewTrialService(repo trialUserRepository, ledger notificationLedger, inbox notifierInboxRepository, mailer Mailer, notifier welcomeDispatcher, logger *zap.Logger, config TrialServiceConfig) *TrialService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Duration <= 0 {
		config.Duration = models.TrialDuration
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	return &TrialService{repo: repo, ledger: ledger, inbox: inbox, mailer: mailer, notifier: notifier, logger: logger, config: config}
}

// facilityAllowed reports whether the facility qualifies for a trial. A "*"
// entry opens the trial to every facility.
func (s *TrialService) facilityAllowed(facility string) bool {
	for _, allowed := range s.config.FacilityAllowList {
		if allowed == "*" || allowed == facility {
			return true
		}
	}
	return false
}

// Enroll stamps the subscription fields on a not-yet-persisted user.
// Qualifying facilities start a trial window; everyone else is activated
// outright. The decision is made once, at registration.
func (s *TrialService) Enroll(user *models.User) {
	if !s.facilityAllowed(user.Facility) {
		user.SubscriptionStatus = models.SubscriptionActive
		return
	}
	now := time.Now().UTC()
	ends := now.Add(s.config.Duration)
	user.SubscriptionStatus = models.SubscriptionTrial
	user.TrialStartsAt = &now
	user.TrialEndsAt = &ends
}

// NotifyWelcome sends the trial welcome email through the async dispatcher.
func (s *TrialService) NotifyWelcome(user *models.User) {
	if user.TrialEndsAt == nil {
		return
	}
	s.notifier.NotifyTrialWelcome(user, *user.TrialEndsAt)
}

// daysUntil counts whole days remaining, rounding partial days up. A
// deadline later today is day 0; one that passed yesterday is negative.
func daysUntil(t, now time.Time) int {
	return int(math.Ceil(t.Sub(now).Hours() / 24))
}

// Sweep walks every trial user and sends the 7-day warning, the 2-day
// warning, or flips the account to expired. Each (user, kind) is claimed in
// the durable ledger before sending, so restarts and overlapping runs never
// double-send. Returns how many notifications were dispatched.
func (s *TrialService) Sweep(ctx context.Context) (int, error) {
	users, err := s.repo.ListTrialUsers(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	var sent int
	for i := range users {
		user := &users[i]
		if user.TrialEndsAt == nil {
			continue
		}
		daysLeft := daysUntil(*user.TrialEndsAt, now)

		switch {
		case daysLeft <= 0:
			if s.expire(ctx, user) {
				sent++
			}
		case daysLeft == 7:
			if s.warn(ctx, user, models.KindTrialWarning7, daysLeft) {
				sent++
			}
		case daysLeft == 2:
			if s.warn(ctx, user, models.KindTrialWarning2, daysLeft) {
				sent++
			}
		}
	}
	return sent, nil
}

func (s *TrialService) expire(ctx context.Context, user *models.User) bool {
	if err := s.repo.UpdateSubscriptionStatus(ctx, user.ID, models.SubscriptionExpired); err != nil {
		s.logger.Error("failed to expire trial", zap.String("user_id", user.ID), zap.Error(err))
		return false
	}

	claimed, err := s.ledger.TryClaim(ctx, user.ID, string(models.KindTrialExpired), s.config.MaxAttempts)
	if err != nil {
		s.logger.Error("failed to claim trial expiry notification", zap.String("user_id", user.ID), zap.Error(err))
		return false
	}
	if !claimed {
		return false
	}

	subject, body := trialExpiredEmail(s.config.SupportEmail, s.config.SupportPhone, user)
	return s.deliver(ctx, user, models.KindTrialExpired, subject, body)
}

func (s *TrialService) warn(ctx context.Context, user *models.User, kind models.NotificationKind, daysLeft int) bool {
	prefs := user.EffectivePreferences()
	if !prefs.EmailEnabled {
		return false
	}

	claimed, err := s.ledger.TryClaim(ctx, user.ID, string(kind), s.config.MaxAttempts)
	if err != nil {
		s.logger.Error("failed to claim trial warning", zap.String("user_id", user.ID), zap.String("kind", string(kind)), zap.Error(err))
		return false
	}
	if !claimed {
		return false
	}

	subject, body := trialWarningEmail(s.config.ClientURL, s.config.SupportEmail, user, daysLeft, *user.TrialEndsAt)
	return s.deliver(ctx, user, kind, subject, body)
}

// deliver sends the claimed notification inline and releases the claim on
// failure so the next sweep retries.
func (s *TrialService) deliver(ctx context.Context, user *models.User, kind models.NotificationKind, subject, body string) bool {
	if err := s.inbox.CreateInbox(ctx, &models.Notification{
		UserID:  user.ID,
		Type:    kind,
		Title:   subject,
		Message: subject,
	}); err != nil {
		s.logger.Warn("failed to write trial inbox row", zap.String("user_id", user.ID), zap.Error(err))
	}

	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		s.logger.Error("failed to send trial email, releasing claim",
			zap.String("user_id", user.ID), zap.String("kind", string(kind)), zap.Error(err))
		if relErr := s.ledger.ReleaseClaim(ctx, user.ID, string(kind)); relErr != nil {
			s.logger.Error("failed to release trial claim", zap.String("user_id", user.ID), zap.Error(relErr))
		}
		return false
	}
	return true
}
