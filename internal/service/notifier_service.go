package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unioncase/unioncase-api/internal/models"
	"github.com/unioncase/unioncase-api/pkg/jobs"
)

type notifierInboxRepository interface {
	CreateInbox(ctx context.Context, n *models.Notification) error
}

// emailJob is the queue payload for one outbound message.
type emailJob struct {
	To      string
	Subject string
	Body    string
}

// NotifierConfig tunes the email dispatch queue.
type NotifierConfig struct {
	ClientURL string
	Queue     jobs.QueueConfig
}

// NotifierService fans out event-driven notifications: an inbox row written
// synchronously plus an email dispatched through the background queue so
// request latency never waits on SMTP.
type NotifierService struct {
	inbox  notifierInboxRepository
	mailer Mailer
	queue  *jobs.Queue
	logger *zap.Logger
	config NotifierConfig
}

// NewNotifierService constructs a NotifierService and its dispatch queue.
func NewNotifierService(inbox notifierInboxRepository, mailer Mailer, logger *zap.Logger, cfg NotifierConfig) *NotifierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotifierService{inbox: inbox, mailer: mailer, logger: logger, config: cfg}
	cfg.Queue.Logger = logger
	s.queue = jobs.NewQueue("notifications", s.handleEmailJob, cfg.Queue)
	return s
}

// Start begins queue workers.
func (s *NotifierService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains queue workers.
func (s *NotifierService) Stop() {
	s.queue.Stop()
}

func (s *NotifierService) handleEmailJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(emailJob)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}
	return s.mailer.Send(ctx, payload.To, payload.Subject, payload.Body)
}

func (s *NotifierService) dispatch(userID string, grievanceID *string, kind models.NotificationKind, to, subject, body string) {
	if err := s.inbox.CreateInbox(context.Background(), &models.Notification{
		UserID:      userID,
		GrievanceID: grievanceID,
		Type:        kind,
		Title:       subject,
		Message:     subject,
	}); err != nil {
		s.logger.Warn("failed to write notification inbox row",
			zap.String("user_id", userID), zap.String("kind", string(kind)), zap.Error(err))
	}
	if err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    string(kind),
		Payload: emailJob{To: to, Subject: subject, Body: body},
	}); err != nil {
		s.logger.Warn("failed to enqueue notification email",
			zap.String("user_id", userID), zap.String("kind", string(kind)), zap.Error(err))
	}
}

// NotifyNewGrievance alerts the assigned steward about a fresh filing.
func (s *NotifierService) NotifyNewGrievance(steward *models.User, g *models.Grievance) {
	prefs := steward.EffectivePreferences()
	if !prefs.EmailEnabled || !prefs.NewGrievance {
		return
	}
	subject, body := newGrievanceEmail(s.config.ClientURL, steward, g)
	s.dispatch(steward.ID, &g.ID, models.KindNewGrievance, steward.Email, subject, body)
}

// NotifyStepChange tells the filer their case moved to a new step.
func (s *NotifierService) NotifyStepChange(user *models.User, g *models.Grievance, oldStep, newStep models.GrievanceStep) {
	prefs := user.EffectivePreferences()
	if !prefs.EmailEnabled || !prefs.StatusUpdates {
		return
	}
	subject, body := statusUpdateEmail(s.config.ClientURL, user, g, oldStep, newStep)
	s.dispatch(user.ID, &g.ID, models.KindStatusUpdate, user.Email, subject, body)
}

// NotifyNewNote tells the recipient a note was added to their case.
func (s *NotifierService) NotifyNewNote(user *models.User, g *models.Grievance, authorName, noteText string) {
	prefs := user.EffectivePreferences()
	if !prefs.EmailEnabled || !prefs.NewNotes {
		return
	}
	subject, body := newNoteEmail(s.config.ClientURL, user, g, authorName, noteText)
	s.dispatch(user.ID, &g.ID, models.KindNewNote, user.Email, subject, body)
}

// NotifyTrialWelcome greets a freshly enrolled trial user.
func (s *NotifierService) NotifyTrialWelcome(user *models.User, trialEndsAt time.Time) {
	prefs := user.EffectivePreferences()
	if !prefs.EmailEnabled {
		return
	}
	subject, body := trialWelcomeEmail(s.config.ClientURL, user, trialEndsAt)
	s.dispatch(user.ID, nil, models.KindTrialWelcome, user.Email, subject, body)
}

// NotifyResolved congratulates the filer on a resolved case.
func (s *NotifierService) NotifyResolved(user *models.User, g *models.Grievance) {
	prefs := user.EffectivePreferences()
	if !prefs.EmailEnabled || !prefs.GrievanceResolved {
		return
	}
	subject, body := grievanceResolvedEmail(s.config.ClientURL, user, g)
	s.dispatch(user.ID, &g.ID, models.KindGrievanceResolved, user.Email, subject, body)
}
