package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/unioncase/unioncase-api/internal/models"
	appErrors "github.com/unioncase/unioncase-api/pkg/errors"
)

type grievanceRepository interface {
	Create(ctx context.Context, grievance *models.Grievance, deadline *models.Deadline) error
	UpdateStep(ctx context.Context, id string, step models.GrievanceStep, handlerID, notes string) error
	UpdateStatus(ctx context.Context, id string, status models.GrievanceStatus, handlerID, notes string) error
	List(ctx context.Context, scope models.AccessScope, filter models.GrievanceFilter) ([]models.GrievanceSummary, int, error)
	FindByID(ctx context.Context, id string) (*models.Grievance, error)
	FindDetail(ctx context.Context, id string) (*models.GrievanceDetail, error)
	Timeline(ctx context.Context, grievanceID string) ([]models.TimelineEntry, error)
	Statistics(ctx context.Context, scope models.AccessScope) (*models.Statistics, error)
	CountPendingDeadlines(ctx context.Context, scope models.AccessScope) (int, error)
}

type grievanceUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type grievanceDeadlineRepository interface {
	ListByGrievance(ctx context.Context, grievanceID string) ([]models.Deadline, error)
	FindByID(ctx context.Context, id string) (*models.Deadline, error)
	MarkCompleted(ctx context.Context, id string) error
}

type grievanceNoteRepository interface {
	Create(ctx context.Context, note *models.Note) error
	ListByGrievance(ctx context.Context, grievanceID string, includeInternal bool) ([]models.Note, error)
}

type grievanceDocumentRepository interface {
	ListByGrievance(ctx context.Context, grievanceID string) ([]models.Document, error)
}

type grievanceNotifier interface {
	NotifyNewGrievance(steward *models.User, g *models.Grievance)
	NotifyStepChange(user *models.User, g *models.Grievance, oldStep, newStep models.GrievanceStep)
	NotifyNewNote(user *models.User, g *models.Grievance, authorName, noteText string)
	NotifyResolved(user *models.User, g *models.Grievance)
}

type statisticsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// GrievanceServiceConfig tunes grievance workflows. Metrics may be nil.
type GrievanceServiceConfig struct {
	StatsCacheTTL time.Duration
	Metrics       *MetricsService
}

// GrievanceService drives the grievance case lifecycle.
type GrievanceService struct {
	repo      grievanceRepository
	users     grievanceUserRepository
	deadlines grievanceDeadlineRepository
	notes     grievanceNoteRepository
	documents grievanceDocumentRepository
	notifier  grievanceNotifier
	cache     statisticsCache
	validator *validator.Validate
	logger    *zap.Logger
	config    GrievanceServiceConfig
}

// NewGrievanceService constructs a GrievanceService.
func NewGrievanceService(
	repo grievanceRepository,
	users grievanceUserRepository,
	deadlines grievanceDeadlineRepository,
	notes grievanceNoteRepository,
	documents grievanceDocumentRepository,
	notifier grievanceNotifier,
	cache statisticsCache,
	validate *validator.Validate,
	logger *zap.Logger,
	config GrievanceServiceConfig,
) *GrievanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.StatsCacheTTL <= 0 {
		config.StatsCacheTTL = 5 * time.Minute
	}
	return &GrievanceService{
		repo:      repo,
		users:     users,
		deadlines: deadlines,
		notes:     notes,
		documents: documents,
		notifier:  notifier,
		cache:     cache,
		validator: validate,
		logger:    logger,
		config:    config,
	}
}

// canAccess reports whether the caller may view or act on the grievance.
func canAccess(scope models.AccessScope, g *models.Grievance) bool {
	switch scope.Role {
	case models.RoleRepresentative:
		return true
	case models.RoleSteward:
		return g.UserID == scope.UserID || (g.StewardAssigned != nil && *g.StewardAssigned == scope.UserID)
	default:
		return g.UserID == scope.UserID
	}
}

// Create files a new grievance. The case number, the initial timeline entry
// and the first contractual deadline commit atomically with the case row.
func (s *GrievanceService) Create(ctx context.Context, scope models.AccessScope, req models.CreateGrievanceRequest) (*models.Grievance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grievance payload")
	}

	incidentDate, err := time.Parse("2006-01-02", req.IncidentDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "incident date must be YYYY-MM-DD")
	}

	craft := models.Craft(req.Craft)
	grievance := &models.Grievance{
		UserID:              scope.UserID,
		GrievantName:        req.GrievantName,
		GrievantEmployeeID:  req.GrievantEmployeeID,
		Facility:            req.Facility,
		Craft:               craft,
		IncidentDate:        incidentDate,
		ContractArticle:     req.ContractArticle,
		ViolationType:       req.ViolationType,
		BriefDescription:    req.BriefDescription,
		DetailedDescription: req.DetailedDescription,
		Witnesses:           pq.StringArray(req.Witnesses),
		CurrentStep:         models.StepFiled,
		Status:              models.StatusActive,
	}
	if req.IncidentTime != "" {
		grievance.IncidentTime = &req.IncidentTime
	}
	if req.ManagementRepresentative != "" {
		grievance.ManagementRepresentative = &req.ManagementRepresentative
	}
	if req.StewardAssigned != "" {
		grievance.StewardAssigned = &req.StewardAssigned
	}

	deadline := s.initialDeadline(craft, incidentDate)
	if err := s.repo.Create(ctx, grievance, deadline); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to file grievance")
	}

	s.invalidateStats(ctx)

	if grievance.StewardAssigned != nil {
		steward, err := s.users.FindByID(ctx, *grievance.StewardAssigned)
		if err != nil {
			s.logger.Warn("failed to load assigned steward for notification",
				zap.String("grievance_id", grievance.ID), zap.Error(err))
		} else {
			s.notifier.NotifyNewGrievance(steward, grievance)
		}
	}

	return grievance, nil
}

// initialDeadline computes the first contractual deadline from the union's
// time limits, counted from the incident date.
func (s *GrievanceService) initialDeadline(craft models.Craft, incidentDate time.Time) *models.Deadline {
	union := models.UnionForCraft(craft)
	limit, ok := models.TimeLimitFor(union, models.DeadlineInformalA)
	if !ok {
		limit = models.TimeLimit{Days: 14, Description: "Discussion with supervisor"}
	}
	return &models.Deadline{
		DeadlineType: models.DeadlineInformalA,
		DeadlineDate: incidentDate.Add(time.Duration(limit.Days) * 24 * time.Hour),
		Description:  limit.Description,
	}
}

// List returns cases visible to the caller.
func (s *GrievanceService) List(ctx context.Context, scope models.AccessScope, filter models.GrievanceFilter) ([]models.GrievanceSummary, int, error) {
	if filter.Status != "" {
		if _, err := models.ParseStatus(filter.Status); err != nil {
			return nil, 0, appErrors.Clone(appErrors.ErrValidation, "unknown status filter")
		}
	}
	if filter.CurrentStep != "" {
		if _, err := models.ParseStep(filter.CurrentStep); err != nil {
			return nil, 0, appErrors.Clone(appErrors.ErrValidation, "unknown step filter")
		}
	}

	summaries, total, err := s.repo.List(ctx, scope, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grievances")
	}
	return summaries, total, nil
}

// Get assembles the full case file, enforcing access scope. Internal notes
// are hidden from employees.
func (s *GrievanceService) Get(ctx context.Context, scope models.AccessScope, id string) (*models.GrievanceDetail, error) {
	detail, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grievance")
	}
	if !canAccess(scope, &detail.Grievance) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not have access to this grievance")
	}

	if detail.Timeline, err = s.repo.Timeline(ctx, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timeline")
	}
	if detail.Deadlines, err = s.deadlines.ListByGrievance(ctx, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load deadlines")
	}
	if detail.Documents, err = s.documents.ListByGrievance(ctx, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load documents")
	}
	if detail.Notes, err = s.notes.ListByGrievance(ctx, id, scope.Role != models.RoleEmployee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notes")
	}

	return detail, nil
}

// UpdateStep moves the case to a new step. Any vocabulary step is accepted,
// including moving backwards to correct a mistake.
func (s *GrievanceService) UpdateStep(ctx context.Context, scope models.AccessScope, id string, req models.UpdateStepRequest) (*models.Grievance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid step payload")
	}
	newStep, err := models.ParseStep(req.NewStep)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	grievance, err := s.loadForUpdate(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if grievance.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "case is closed")
	}
	oldStep := grievance.CurrentStep

	if err := s.repo.UpdateStep(ctx, id, newStep, scope.UserID, req.Notes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update step")
	}
	grievance.CurrentStep = newStep

	s.invalidateStats(ctx)
	s.notifyFiler(ctx, grievance, func(filer *models.User) {
		s.notifier.NotifyStepChange(filer, grievance, oldStep, newStep)
	})

	return grievance, nil
}

// UpdateStatus changes the case disposition.
func (s *GrievanceService) UpdateStatus(ctx context.Context, scope models.AccessScope, id string, req models.UpdateStatusRequest) (*models.Grievance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	status, err := models.ParseStatus(req.Status)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	grievance, err := s.loadForUpdate(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, id, status, scope.UserID, req.Notes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update status")
	}
	grievance.Status = status

	s.invalidateStats(ctx)
	if status == models.StatusResolved {
		s.notifyFiler(ctx, grievance, func(filer *models.User) {
			s.notifier.NotifyResolved(filer, grievance)
		})
	}

	return grievance, nil
}

// AddNote appends a note and notifies the case counterpart: a steward's note
// goes to the filer, the filer's note goes to the assigned steward.
func (s *GrievanceService) AddNote(ctx context.Context, scope models.AccessScope, id string, req models.AddNoteRequest) (*models.Note, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid note payload")
	}

	grievance, err := s.loadForUpdate(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	note := &models.Note{
		GrievanceID: id,
		AuthorID:    scope.UserID,
		NoteText:    req.NoteText,
		IsInternal:  req.IsInternal,
	}
	if err := s.notes.Create(ctx, note); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add note")
	}

	if !req.IsInternal {
		s.notifyNoteCounterpart(ctx, scope, grievance, req.NoteText)
	}

	return note, nil
}

func (s *GrievanceService) notifyNoteCounterpart(ctx context.Context, scope models.AccessScope, grievance *models.Grievance, noteText string) {
	author, err := s.users.FindByID(ctx, scope.UserID)
	if err != nil {
		s.logger.Warn("failed to load note author", zap.String("grievance_id", grievance.ID), zap.Error(err))
		return
	}

	recipientID := grievance.UserID
	if scope.UserID == grievance.UserID {
		if grievance.StewardAssigned == nil {
			return
		}
		recipientID = *grievance.StewardAssigned
	}
	recipient, err := s.users.FindByID(ctx, recipientID)
	if err != nil {
		s.logger.Warn("failed to load note recipient", zap.String("grievance_id", grievance.ID), zap.Error(err))
		return
	}
	s.notifier.NotifyNewNote(recipient, grievance, author.FullName(), noteText)
}

// CompleteDeadline marks a deadline as satisfied so the sweep stops
// reminding about it.
func (s *GrievanceService) CompleteDeadline(ctx context.Context, scope models.AccessScope, deadlineID string) (*models.Deadline, error) {
	deadline, err := s.deadlines.FindByID(ctx, deadlineID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "deadline not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load deadline")
	}
	if _, err := s.loadForUpdate(ctx, scope, deadline.GrievanceID); err != nil {
		return nil, err
	}

	if err := s.deadlines.MarkCompleted(ctx, deadlineID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete deadline")
	}
	deadline.IsCompleted = true
	return deadline, nil
}

// Statistics returns dashboard counts for the caller's scope, served from
// redis when fresh.
func (s *GrievanceService) Statistics(ctx context.Context, scope models.AccessScope) (*models.Statistics, error) {
	cacheKey := fmt.Sprintf("stats:grievances:%s:%s", scope.Role, scope.UserID)
	if s.cache != nil {
		var cached models.Statistics
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.config.Metrics.RecordCacheOperation(true)
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("statistics cache read failed", zap.Error(err))
		}
		s.config.Metrics.RecordCacheOperation(false)
	}

	queryStart := time.Now()
	stats, err := s.repo.Statistics(ctx, scope)
	s.config.Metrics.ObserveDBQuery("grievance_statistics", time.Since(queryStart))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate statistics")
	}
	pending, err := s.repo.CountPendingDeadlines(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending deadlines")
	}
	stats.PendingDeadlines = pending

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, stats, s.config.StatsCacheTTL); err != nil {
			s.logger.Warn("statistics cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}

// loadForUpdate loads the grievance and enforces access scope.
func (s *GrievanceService) loadForUpdate(ctx context.Context, scope models.AccessScope, id string) (*models.Grievance, error) {
	grievance, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grievance")
	}
	if !canAccess(scope, grievance) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you do not have access to this grievance")
	}
	return grievance, nil
}

func (s *GrievanceService) notifyFiler(ctx context.Context, grievance *models.Grievance, notify func(*models.User)) {
	filer, err := s.users.FindByID(ctx, grievance.UserID)
	if err != nil {
		s.logger.Warn("failed to load filer for notification",
			zap.String("grievance_id", grievance.ID), zap.Error(err))
		return
	}
	notify(filer)
}

func (s *GrievanceService) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "stats:grievances:*"); err != nil {
		s.logger.Warn("failed to invalidate statistics cache", zap.Error(err))
	}
}
