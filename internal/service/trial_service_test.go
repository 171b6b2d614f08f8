package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unioncase/unioncase-api/internal/models"
)

type mockTrialRepo struct {
	trialUsers    []models.User
	listErr       error
	statusUpdates map[string]models.SubscriptionStatus
	updateErr     error
}

func (m *mockTrialRepo) ListTrialUsers(ctx context.Context) ([]models.User, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.trialUsers, nil
}

func (m *mockTrialRepo) UpdateSubscriptionStatus(ctx context.Context, id string, status models.SubscriptionStatus) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if m.statusUpdates == nil {
		m.statusUpdates = make(map[string]models.SubscriptionStatus)
	}
	m.statusUpdates[id] = status
	return nil
}

type mockLedger struct {
	claims   []string
	releases []string
	denied   map[string]bool
	claimErr error
}

func (m *mockLedger) TryClaim(ctx context.Context, entityID, kind string, maxAttempts int) (bool, error) {
	if m.claimErr != nil {
		return false, m.claimErr
	}
	key := entityID + "/" + kind
	if m.denied[key] {
		return false, nil
	}
	m.claims = append(m.claims, key)
	return true, nil
}

func (m *mockLedger) ReleaseClaim(ctx context.Context, entityID, kind string) error {
	m.releases = append(m.releases, entityID+"/"+kind)
	return nil
}

type mockInbox struct {
	rows      []*models.Notification
	createErr error
}

func (m *mockInbox) CreateInbox(ctx context.Context, n *models.Notification) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.rows = append(m.rows, n)
	return nil
}

type mockMailer struct {
	sent    []string
	sendErr error
}

func (m *mockMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, to+": "+subject)
	return nil
}

type mockWelcomeDispatcher struct {
	welcomed []string
}

func (m *mockWelcomeDispatcher) NotifyTrialWelcome(user *models.User, trialEndsAt time.Time) {
	m.welcomed = append(m.welcomed, user.ID)
}

type trialFixture struct {
	repo     *mockTrialRepo
	ledger   *mockLedger
	inbox    *mockInbox
	mailer   *mockMailer
	notifier *mockWelcomeDispatcher
	svc      *TrialService
}

func newTrialFixture(allowList []string) *trialFixture {
	f := &trialFixture{
		repo:     &mockTrialRepo{},
		ledger:   &mockLedger{denied: map[string]bool{}},
		inbox:    &mockInbox{},
		mailer:   &mockMailer{},
		notifier: &mockWelcomeDispatcher{},
	}
	f.svc = NewTrialService(f.repo, f.ledger, f.inbox, f.mailer, f.notifier, nil, TrialServiceConfig{
		FacilityAllowList: allowList,
		SupportEmail:      "support@unioncase.app",
		SupportPhone:      "555-0100",
		ClientURL:         "https://app.unioncase.test",
	})
	return f
}

func trialUser(id string, endsIn time.Duration) models.User {
	ends := time.Now().UTC().Add(endsIn)
	return models.User{
		ID:                 id,
		Email:              id + "@example.com",
		FirstName:          "Pat",
		LastName:           "Jordan",
		SubscriptionStatus: models.SubscriptionTrial,
		TrialEndsAt:        &ends,
	}
}

func TestTrialServiceEnrollAllowListed(t *testing.T) {
	f := newTrialFixture([]string{"Main St Station"})

	user := &models.User{Facility: "Main St Station"}
	f.svc.Enroll(user)
	assert.Equal(t, models.SubscriptionTrial, user.SubscriptionStatus)
	require.NotNil(t, user.TrialEndsAt)
	require.NotNil(t, user.TrialStartsAt)
	assert.Equal(t, models.TrialDuration, user.TrialEndsAt.Sub(*user.TrialStartsAt))
	assert.WithinDuration(t, time.Now().UTC().Add(models.TrialDuration), *user.TrialEndsAt, time.Minute)

	other := &models.User{Facility: "Elsewhere Annex"}
	f.svc.Enroll(other)
	assert.Equal(t, models.SubscriptionActive, other.SubscriptionStatus)
	assert.Nil(t, other.TrialEndsAt)
}

func TestTrialServiceEnrollWildcard(t *testing.T) {
	f := newTrialFixture([]string{"*"})
	user := &models.User{Facility: "Anywhere"}
	f.svc.Enroll(user)
	assert.Equal(t, models.SubscriptionTrial, user.SubscriptionStatus)
}

func TestTrialServiceSweepSendsWarningsAndExpires(t *testing.T) {
	f := newTrialFixture([]string{"*"})
	f.repo.trialUsers = []models.User{
		trialUser("warn-7", 7*24*time.Hour-time.Hour),
		trialUser("warn-2", 2*24*time.Hour-time.Hour),
		trialUser("lapsed", -time.Hour),
		trialUser("mid-trial", 15*24*time.Hour),
	}

	sent, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sent)

	assert.Equal(t, models.SubscriptionExpired, f.repo.statusUpdates["lapsed"])
	assert.NotContains(t, f.repo.statusUpdates, "warn-7")
	assert.ElementsMatch(t, []string{
		"warn-7/" + string(models.KindTrialWarning7),
		"warn-2/" + string(models.KindTrialWarning2),
		"lapsed/" + string(models.KindTrialExpired),
	}, f.ledger.claims)
	assert.Len(t, f.mailer.sent, 3)
	assert.Len(t, f.inbox.rows, 3)
}

func TestTrialServiceSweepSkipsAlreadyClaimed(t *testing.T) {
	f := newTrialFixture([]string{"*"})
	f.repo.trialUsers = []models.User{trialUser("warn-7", 7*24*time.Hour-time.Hour)}
	f.ledger.denied["warn-7/"+string(models.KindTrialWarning7)] = true

	sent, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, f.mailer.sent)
}

func TestTrialServiceSweepHonorsEmailOptOut(t *testing.T) {
	f := newTrialFixture([]string{"*"})
	user := trialUser("warn-2", 2*24*time.Hour-time.Hour)
	prefs := models.DefaultNotificationPreferences()
	prefs.EmailEnabled = false
	user.Preferences = &prefs
	f.repo.trialUsers = []models.User{user}

	sent, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, f.ledger.claims)
}

func TestTrialServiceSweepReleasesClaimOnSendFailure(t *testing.T) {
	f := newTrialFixture([]string{"*"})
	f.repo.trialUsers = []models.User{trialUser("warn-7", 7*24*time.Hour-time.Hour)}
	f.mailer.sendErr = errors.New("smtp down")

	sent, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Equal(t, []string{"warn-7/" + string(models.KindTrialWarning7)}, f.ledger.releases)
}

func TestTrialServiceExpiryStillFlipsStatusWhenOptedOut(t *testing.T) {
	f := newTrialFixture([]string{"*"})
	user := trialUser("lapsed", -time.Hour)
	prefs := models.DefaultNotificationPreferences()
	prefs.EmailEnabled = false
	user.Preferences = &prefs
	f.repo.trialUsers = []models.User{user}

	_, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionExpired, f.repo.statusUpdates["lapsed"])
}

func TestDaysUntilRoundsPartialDaysUp(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, daysUntil(now, now))
	assert.Equal(t, 1, daysUntil(now.Add(6*time.Hour), now))
	assert.Equal(t, 1, daysUntil(now.Add(24*time.Hour), now))
	assert.Equal(t, 7, daysUntil(now.Add(7*24*time.Hour-time.Hour), now))
	assert.Equal(t, -1, daysUntil(now.Add(-30*time.Hour), now))
	assert.Equal(t, 0, daysUntil(now.Add(-time.Hour), now))
}
