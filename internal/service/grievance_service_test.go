package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unioncase/unioncase-api/internal/models"
	appErrors "github.com/unioncase/unioncase-api/pkg/errors"
)

type mockGrievanceRepo struct {
	grievances map[string]*models.Grievance
	created    *models.Grievance
	deadline   *models.Deadline
	stepCalls  []string
	stats      models.Statistics
	pending    int
	statsCalls int
}

func (m *mockGrievanceRepo) Create(ctx context.Context, g *models.Grievance, d *models.Deadline) error {
	g.ID = "grv-new"
	g.CaseNumber = "GRVNC-2026-0001"
	m.created = g
	m.deadline = d
	return nil
}

func (m *mockGrievanceRepo) UpdateStep(ctx context.Context, id string, step models.GrievanceStep, handlerID, notes string) error {
	g, ok := m.grievances[id]
	if !ok {
		return sql.ErrNoRows
	}
	g.CurrentStep = step
	m.stepCalls = append(m.stepCalls, id+"->"+string(step))
	return nil
}

func (m *mockGrievanceRepo) UpdateStatus(ctx context.Context, id string, status models.GrievanceStatus, handlerID, notes string) error {
	g, ok := m.grievances[id]
	if !ok {
		return sql.ErrNoRows
	}
	g.Status = status
	return nil
}

func (m *mockGrievanceRepo) List(ctx context.Context, scope models.AccessScope, filter models.GrievanceFilter) ([]models.GrievanceSummary, int, error) {
	return nil, 0, nil
}

func (m *mockGrievanceRepo) FindByID(ctx context.Context, id string) (*models.Grievance, error) {
	g, ok := m.grievances[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *g
	return &copied, nil
}

func (m *mockGrievanceRepo) FindDetail(ctx context.Context, id string) (*models.GrievanceDetail, error) {
	g, ok := m.grievances[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.GrievanceDetail{Grievance: *g}, nil
}

func (m *mockGrievanceRepo) Timeline(ctx context.Context, grievanceID string) ([]models.TimelineEntry, error) {
	return []models.TimelineEntry{{GrievanceID: grievanceID, Step: models.StepFiled}}, nil
}

func (m *mockGrievanceRepo) Statistics(ctx context.Context, scope models.AccessScope) (*models.Statistics, error) {
	m.statsCalls++
	stats := m.stats
	return &stats, nil
}

func (m *mockGrievanceRepo) CountPendingDeadlines(ctx context.Context, scope models.AccessScope) (int, error) {
	return m.pending, nil
}

type mockGrievanceUsers struct {
	users map[string]*models.User
}

func (m *mockGrievanceUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

type mockGrievanceDeadlines struct {
	deadlines []models.Deadline
	byID      map[string]*models.Deadline
	completed []string
}

func (m *mockGrievanceDeadlines) ListByGrievance(ctx context.Context, grievanceID string) ([]models.Deadline, error) {
	return m.deadlines, nil
}

func (m *mockGrievanceDeadlines) FindByID(ctx context.Context, id string) (*models.Deadline, error) {
	d, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *d
	return &copied, nil
}

func (m *mockGrievanceDeadlines) MarkCompleted(ctx context.Context, id string) error {
	m.completed = append(m.completed, id)
	return nil
}

type mockGrievanceNotes struct {
	created      []*models.Note
	notes        []models.Note
	internalSeen []bool
}

func (m *mockGrievanceNotes) Create(ctx context.Context, note *models.Note) error {
	note.ID = "note-new"
	m.created = append(m.created, note)
	return nil
}

func (m *mockGrievanceNotes) ListByGrievance(ctx context.Context, grievanceID string, includeInternal bool) ([]models.Note, error) {
	m.internalSeen = append(m.internalSeen, includeInternal)
	return m.notes, nil
}

type mockGrievanceDocuments struct{ documents []models.Document }

func (m *mockGrievanceDocuments) ListByGrievance(ctx context.Context, grievanceID string) ([]models.Document, error) {
	return m.documents, nil
}

type mockGrievanceNotifier struct {
	newGrievance []string
	stepChanges  []string
	newNotes     []string
	resolved     []string
}

func (m *mockGrievanceNotifier) NotifyNewGrievance(steward *models.User, g *models.Grievance) {
	m.newGrievance = append(m.newGrievance, steward.ID)
}

func (m *mockGrievanceNotifier) NotifyStepChange(user *models.User, g *models.Grievance, oldStep, newStep models.GrievanceStep) {
	m.stepChanges = append(m.stepChanges, user.ID+":"+string(oldStep)+"->"+string(newStep))
}

func (m *mockGrievanceNotifier) NotifyNewNote(user *models.User, g *models.Grievance, authorName, noteText string) {
	m.newNotes = append(m.newNotes, user.ID)
}

func (m *mockGrievanceNotifier) NotifyResolved(user *models.User, g *models.Grievance) {
	m.resolved = append(m.resolved, user.ID)
}

type mockStatsCache struct {
	gets     []string
	sets     []string
	patterns []string
}

func (m *mockStatsCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.gets = append(m.gets, key)
	return appErrors.ErrCacheMiss
}

func (m *mockStatsCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.sets = append(m.sets, key)
	return nil
}

func (m *mockStatsCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	return nil
}

type grievanceFixture struct {
	repo      *mockGrievanceRepo
	users     *mockGrievanceUsers
	deadlines *mockGrievanceDeadlines
	notes     *mockGrievanceNotes
	documents *mockGrievanceDocuments
	notifier  *mockGrievanceNotifier
	cache     *mockStatsCache
	svc       *GrievanceService
}

func newGrievanceFixture() *grievanceFixture {
	f := &grievanceFixture{
		repo:      &mockGrievanceRepo{grievances: map[string]*models.Grievance{}},
		users:     &mockGrievanceUsers{users: map[string]*models.User{}},
		deadlines: &mockGrievanceDeadlines{},
		notes:     &mockGrievanceNotes{},
		documents: &mockGrievanceDocuments{},
		notifier:  &mockGrievanceNotifier{},
		cache:     &mockStatsCache{},
	}
	f.svc = NewGrievanceService(f.repo, f.users, f.deadlines, f.notes, f.documents, f.notifier, f.cache, nil, nil, GrievanceServiceConfig{})
	return f
}

func (f *grievanceFixture) seedGrievance(id, filerID string, stewardID string) *models.Grievance {
	g := &models.Grievance{
		ID:           id,
		CaseNumber:   "GRVNC-2026-0042",
		UserID:       filerID,
		GrievantName: "Pat Jordan",
		Facility:     "Main St Station",
		Craft:        models.CraftCityCarrier,
		CurrentStep:  models.StepInformalA,
		Status:       models.StatusActive,
	}
	if stewardID != "" {
		g.StewardAssigned = &stewardID
	}
	f.repo.grievances[id] = g
	return g
}

func (f *grievanceFixture) seedUser(id string, role models.UserRole) *models.User {
	u := &models.User{ID: id, Email: id + "@example.com", FirstName: "Sam", LastName: "Lee", Role: role}
	f.users.users[id] = u
	return u
}

func createGrievanceRequest() models.CreateGrievanceRequest {
	return models.CreateGrievanceRequest{
		GrievantName:        "Pat Jordan",
		GrievantEmployeeID:  "EMP-200",
		Facility:            "Main St Station",
		Craft:               string(models.CraftCityCarrier),
		IncidentDate:        "2026-08-20",
		ContractArticle:     "Article 8",
		ViolationType:       "Overtime bypass",
		BriefDescription:    "Skipped on the overtime desired list",
		DetailedDescription: "Management assigned mandatory overtime out of rotation.",
		Witnesses:           []string{"Chris Doe"},
	}
}

func TestGrievanceServiceCreateFilesCaseWithInitialDeadline(t *testing.T) {
	f := newGrievanceFixture()
	scope := models.AccessScope{UserID: "filer-1", Role: models.RoleEmployee}

	g, err := f.svc.Create(context.Background(), scope, createGrievanceRequest())
	require.NoError(t, err)
	assert.Equal(t, "GRVNC-2026-0001", g.CaseNumber)
	assert.Equal(t, models.StepFiled, g.CurrentStep)
	assert.Equal(t, models.StatusActive, g.Status)
	assert.Equal(t, "filer-1", g.UserID)

	require.NotNil(t, f.repo.deadline)
	assert.Equal(t, models.DeadlineInformalA, f.repo.deadline.DeadlineType)
	incident, _ := time.Parse("2006-01-02", "2026-08-20")
	assert.Equal(t, incident.Add(14*24*time.Hour), f.repo.deadline.DeadlineDate)

	assert.Contains(t, f.cache.patterns, "stats:grievances:*")
	assert.Empty(t, f.notifier.newGrievance)
}

func TestGrievanceServiceCreateNotifiesAssignedSteward(t *testing.T) {
	f := newGrievanceFixture()
	f.seedUser("steward-1", models.RoleSteward)
	req := createGrievanceRequest()
	req.StewardAssigned = "steward-1"

	_, err := f.svc.Create(context.Background(), models.AccessScope{UserID: "filer-1", Role: models.RoleEmployee}, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"steward-1"}, f.notifier.newGrievance)
}

func TestGrievanceServiceCreateRejectsBadIncidentDate(t *testing.T) {
	f := newGrievanceFixture()
	req := createGrievanceRequest()
	req.IncidentDate = "08/20/2026"

	_, err := f.svc.Create(context.Background(), models.AccessScope{UserID: "filer-1", Role: models.RoleEmployee}, req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGrievanceServiceGetEnforcesScope(t *testing.T) {
	f := newGrievanceFixture()
	f.seedGrievance("grv-1", "filer-1", "steward-1")

	cases := []struct {
		name    string
		scope   models.AccessScope
		allowed bool
	}{
		{"filer sees own case", models.AccessScope{UserID: "filer-1", Role: models.RoleEmployee}, true},
		{"other employee denied", models.AccessScope{UserID: "filer-2", Role: models.RoleEmployee}, false},
		{"assigned steward allowed", models.AccessScope{UserID: "steward-1", Role: models.RoleSteward}, true},
		{"unassigned steward denied", models.AccessScope{UserID: "steward-2", Role: models.RoleSteward}, false},
		{"representative sees all", models.AccessScope{UserID: "rep-1", Role: models.RoleRepresentative}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Get(context.Background(), tc.scope, "grv-1")
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
			}
		})
	}
}

func TestGrievanceServiceGetHidesInternalNotesFromEmployees(t *testing.T) {
	f := newGrievanceFixture()
	f.seedGrievance("grv-1", "filer-1", "steward-1")

	_, err := f.svc.Get(context.Background(), models.AccessScope{UserID: "filer-1", Role: models.RoleEmployee}, "grv-1")
	require.NoError(t, err)
	_, err = f.svc.Get(context.Background(), models.AccessScope{UserID: "steward-1", Role: models.RoleSteward}, "grv-1")
	require.NoError(t, err)

	assert.Equal(t, []bool{false, true}, f.notes.internalSeen)
}

func TestGrievanceServiceUpdateStepNotifiesFiler(t *testing.T) {
	f := newGrievanceFixture()
	f.seedGrievance("grv-1", "filer-1", "steward-1")
	f.seedUser("filer-1", models.RoleEmployee)

	g, err := f.svc.UpdateStep(context.Background(), models.AccessScope{UserID: "steward-1", Role: models.RoleSteward}, "grv-1", models.UpdateStepRequest{NewStep: string(models.StepFormalA)})
	require.NoError(t, err)
	assert.Equal(t, models.StepFormalA, g.CurrentStep)
	assert.Equal(t, []string{"filer-1:informal_step_a->formal_step_a"}, f.notifier.stepChanges)
	assert.Contains(t, f.cache.patterns, "stats:grievances:*")
}

func TestGrievanceServiceUpdateStepAllowsMovingBackwards(t *testing.T) {
	f := newGrievanceFixture()
	g := f.seedGrievance("grv-1", "filer-1", "")
	g.CurrentStep = models.StepB
	f.seedUser("filer-1", models.RoleEmployee)

	updated, err := f.svc.UpdateStep(context.Background(), models.AccessScope{UserID: "filer-1", Role: models.RoleEmployee}, "grv-1", models.UpdateStepRequest{NewStep: string(models.StepFormalA)})
	require.NoError(t, err)
	assert.Equal(t, models.StepFormalA, updated.CurrentStep)
}

func TestGrievanceServiceUpdateStepRejectsUnknownStep(t *testing.T) {
	f := newGrievanceFixture()
	f.seedGrievance("grv-1", "filer-1", "")

	_, err := f.svc.UpdateStep(context.Background(), models.AccessScope{UserID: "filer-1", Role: models.RoleEmployee}, "grv-1", models.UpdateStepRequest{NewStep: "step_z"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.repo.stepCalls)
}

func TestGrievanceServiceUpdateStepRejectsClosedCase(t *testing.T) {
	f := newGrievanceFixture()
	g := f.seedGrievance("grv-1", "filer-1", "")
	g.Status = models.StatusSettled

	_, err := f.svc.UpdateStep(context.Background(), models.AccessScope{UserID: "filer-1", Role: models.RoleEmployee}, "grv-1", models.UpdateStepRequest{NewStep: string(models.StepFormalA)})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.repo.stepCalls)
}

func TestGrievanceServiceUpdateStatusResolvedNotifiesFiler(t *testing.T) {
	f := newGrievanceFixture()
	f.seedGrievance("grv-1", "filer-1", "steward-1")
	f.seedUser("filer-1", models.RoleEmployee)

	g, err := f.svc.UpdateStatus(context.Background(), models.AccessScope{UserID: "steward-1", Role: models.RoleSteward}, "grv-1", models.UpdateStatusRequest{Status: string(models.StatusResolved)})
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, g.Status)
	assert.Equal(t, []string{"filer-1"}, f.notifier.resolved)
}

func TestGrievanceServiceUpdateStatusWithdrawnStaysQuiet(t *testing.T) {
	f := newGrievanceFixture()
	f.seedGrievance("grv-1", "filer-1", "")
	f.seedUser("filer-1", models.RoleEmployee)

	_, err := f.svc.UpdateStatus(context.Background(), models.AccessScope{UserID: "filer-1", Role: models.RoleEmployee}, "grv-1", models.UpdateStatusRequest{Status: string(models.StatusWithdrawn)})
	require.NoError(t, err)
	assert.Empty(t, f.notifier.resolved)
}

func TestGrievanceServiceAddNoteRoutesToCounterpart(t *testing.T) {
	f := newGrievanceFixture()
	f.seedGrievance("grv-1", "filer-1", "steward-1")
	f.seedUser("filer-1", models.RoleEmployee)
	f.seedUser("steward-1", models.RoleSteward)

	// steward's note goes to the filer
	_, err := f.svc.AddNote(context.Background(), models.AccessScope{UserID: "steward-1", Role: models.RoleSteward}, "grv-1", models.AddNoteRequest{NoteText: "Met with management"})
	require.NoError(t, err)
	assert.Equal(t, []string{"filer-1"}, f.notifier.newNotes)

	// filer's note goes to the assigned steward
	_, err = f.svc.AddNote(context.Background(), models.AccessScope{UserID: "filer-1", Role: models.RoleEmployee}, "grv-1", models.AddNoteRequest{NoteText: "Found another witness"})
	require.NoError(t, err)
	assert.Equal(t, []string{"filer-1", "steward-1"}, f.notifier.newNotes)
}

func TestGrievanceServiceAddInternalNoteSkipsNotification(t *testing.T) {
	f := newGrievanceFixture()
	f.seedGrievance("grv-1", "filer-1", "steward-1")
	f.seedUser("steward-1", models.RoleSteward)

	note, err := f.svc.AddNote(context.Background(), models.AccessScope{UserID: "steward-1", Role: models.RoleSteward}, "grv-1", models.AddNoteRequest{NoteText: "internal strategy", IsInternal: true})
	require.NoError(t, err)
	assert.True(t, note.IsInternal)
	assert.Empty(t, f.notifier.newNotes)
}

func TestGrievanceServiceStatisticsCachesPerScope(t *testing.T) {
	f := newGrievanceFixture()
	f.repo.stats = models.Statistics{ActiveGrievances: 3, TotalGrievances: 5}
	f.repo.pending = 2
	scope := models.AccessScope{UserID: "steward-1", Role: models.RoleSteward}

	stats, err := f.svc.Statistics(context.Background(), scope)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.ActiveGrievances)
	assert.Equal(t, 2, stats.PendingDeadlines)
	assert.Equal(t, []string{"stats:grievances:steward:steward-1"}, f.cache.gets)
	assert.Equal(t, []string{"stats:grievances:steward:steward-1"}, f.cache.sets)
	assert.Equal(t, 1, f.repo.statsCalls)
}

func TestGrievanceServiceCompleteDeadlineEnforcesScope(t *testing.T) {
	f := newGrievanceFixture()
	f.seedGrievance("grv-1", "filer-1", "steward-1")
	f.deadlines.byID = map[string]*models.Deadline{
		"dl-1": {ID: "dl-1", GrievanceID: "grv-1", DeadlineType: models.DeadlineInformalA},
	}

	_, err := f.svc.CompleteDeadline(context.Background(), models.AccessScope{UserID: "intruder", Role: models.RoleEmployee}, "dl-1")
	require.Error(t, err)
	assert.Empty(t, f.deadlines.completed)

	done, err := f.svc.CompleteDeadline(context.Background(), models.AccessScope{UserID: "steward-1", Role: models.RoleSteward}, "dl-1")
	require.NoError(t, err)
	assert.True(t, done.IsCompleted)
	assert.Equal(t, []string{"dl-1"}, f.deadlines.completed)
}

func TestGrievanceServiceListRejectsUnknownFilters(t *testing.T) {
	f := newGrievanceFixture()
	scope := models.AccessScope{UserID: "rep-1", Role: models.RoleRepresentative}

	_, _, err := f.svc.List(context.Background(), scope, models.GrievanceFilter{Status: "bogus"})
	require.Error(t, err)
	_, _, err = f.svc.List(context.Background(), scope, models.GrievanceFilter{CurrentStep: "bogus"})
	require.Error(t, err)
}
