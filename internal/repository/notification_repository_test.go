package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/unioncase/unioncase-api/internal/models"
)

func newNotificationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestNotificationRepositoryTryClaimFreshPair(t *testing.T) {
	db, mock, cleanup := newNotificationRepoMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO sent_notifications")).
		WithArgs("deadline-1", "reminder_3", 5).
		WillReturnRows(sqlmock.NewRows([]string{"attempts"}).AddRow(1))

	claimed, err := repo.TryClaim(context.Background(), "deadline-1", "reminder_3", 5)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryTryClaimAlreadySent(t *testing.T) {
	db, mock, cleanup := newNotificationRepoMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO sent_notifications")).
		WithArgs("deadline-1", "reminder_3", 5).
		WillReturnRows(sqlmock.NewRows([]string{"attempts"}))

	claimed, err := repo.TryClaim(context.Background(), "deadline-1", "reminder_3", 5)
	require.NoError(t, err)
	require.False(t, claimed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryReleaseClaim(t *testing.T) {
	db, mock, cleanup := newNotificationRepoMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sent_notifications SET sent_at = NULL")).
		WithArgs("deadline-1", "overdue").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ReleaseClaim(context.Background(), "deadline-1", "overdue"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryCreateInbox(t *testing.T) {
	db, mock, cleanup := newNotificationRepoMock(t)
	defer cleanup()

	repo := NewNotificationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	grievanceID := "grv-1"
	n := &models.Notification{
		UserID:      "user-1",
		GrievanceID: &grievanceID,
		Type:        models.KindDeadlineReminder,
		Title:       "Deadline approaching",
		Message:     "Informal Step A deadline in 3 days",
	}
	require.NoError(t, repo.CreateInbox(context.Background(), n))
	require.NotEmpty(t, n.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
