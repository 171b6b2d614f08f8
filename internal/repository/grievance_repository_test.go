package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/unioncase/unioncase-api/internal/models"
)

func newGrievanceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestGrievanceRepositoryCreateFilesCaseInOneTransaction(t *testing.T) {
	db, mock, cleanup := newGrievanceRepoMock(t)
	defer cleanup()

	repo := NewGrievanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO case_sequences")).
		WithArgs(time.Now().UTC().Year()).
		WillReturnRows(sqlmock.NewRows([]string{"last_seq"}).AddRow(42))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grievances")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grievance_timeline")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO deadlines")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	grievance := &models.Grievance{
		UserID:              "user-1",
		GrievantName:        "Dana Reyes",
		GrievantEmployeeID:  "EMP-100",
		Facility:            "Main St Station",
		Craft:               models.CraftCityCarrier,
		IncidentDate:        time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		ContractArticle:     "Article 8",
		ViolationType:       "Overtime bypass",
		BriefDescription:    "Mandatory overtime assigned out of rotation",
		DetailedDescription: "Carrier was skipped on the overtime desired list.",
		CurrentStep:         models.StepFiled,
		Status:              models.StatusActive,
	}
	deadline := &models.Deadline{
		DeadlineType: models.DeadlineInformalA,
		DeadlineDate: grievance.IncidentDate.Add(14 * 24 * time.Hour),
		Description:  "Informal Step A discussion deadline",
	}
	require.NoError(t, repo.Create(context.Background(), grievance, deadline))
	require.Equal(t, fmt.Sprintf("GRVNC-%d-0042", time.Now().UTC().Year()), grievance.CaseNumber)
	require.Equal(t, grievance.ID, deadline.GrievanceID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrievanceRepositoryCreateRollsBackOnTimelineFailure(t *testing.T) {
	db, mock, cleanup := newGrievanceRepoMock(t)
	defer cleanup()

	repo := NewGrievanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO case_sequences")).
		WillReturnRows(sqlmock.NewRows([]string{"last_seq"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grievances")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grievance_timeline")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	grievance := &models.Grievance{
		UserID:      "user-1",
		CurrentStep: models.StepFiled,
		Status:      models.StatusActive,
	}
	err := repo.Create(context.Background(), grievance, nil)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrievanceRepositoryUpdateStepWritesTimeline(t *testing.T) {
	db, mock, cleanup := newGrievanceRepoMock(t)
	defer cleanup()

	repo := NewGrievanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE grievances SET current_step")).
		WithArgs("grv-1", models.StepFormalA, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grievance_timeline")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.UpdateStep(context.Background(), "grv-1", models.StepFormalA, "steward-1", ""))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrievanceRepositoryUpdateStepNotFound(t *testing.T) {
	db, mock, cleanup := newGrievanceRepoMock(t)
	defer cleanup()

	repo := NewGrievanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE grievances SET current_step")).
		WithArgs("missing", models.StepFormalA, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.UpdateStep(context.Background(), "missing", models.StepFormalA, "steward-1", "")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrievanceRepositoryListScopesEmployeeToOwnCases(t *testing.T) {
	db, mock, cleanup := newGrievanceRepoMock(t)
	defer cleanup()

	repo := NewGrievanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM grievances g")).
		WithArgs("user-1", "active").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "case_number", "user_id", "grievant_name", "grievant_employee_id", "facility", "craft",
		"incident_date", "incident_time", "contract_article", "violation_type", "brief_description",
		"detailed_description", "management_representative", "witnesses", "steward_assigned",
		"current_step", "status", "created_at", "updated_at", "filed_by_name", "steward_name", "document_count",
	}).AddRow("grv-1", "GRVNC-2025-0001", "user-1", "Dana Reyes", "EMP-100", "Main St Station", "city_carrier",
		now, nil, "Article 8", "Overtime bypass", "brief", "detail", nil, "{}", nil,
		"filed", "active", now, now, "Dana Reyes", nil, 2)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY g.created_at DESC")).
		WithArgs("user-1", "active", 20, 0).
		WillReturnRows(rows)

	scope := models.AccessScope{UserID: "user-1", Role: models.RoleEmployee}
	summaries, total, err := repo.List(context.Background(), scope, models.GrievanceFilter{Status: "active"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, summaries, 1)
	require.Equal(t, "GRVNC-2025-0001", summaries[0].CaseNumber)
	require.Equal(t, 2, summaries[0].DocumentCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrievanceRepositoryCountPendingDeadlinesExcludesOverdue(t *testing.T) {
	db, mock, cleanup := newGrievanceRepoMock(t)
	defer cleanup()

	repo := NewGrievanceRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("d.is_completed = FALSE AND d.deadline_date >= CURRENT_DATE")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountPendingDeadlines(context.Background(), models.AccessScope{UserID: "user-1", Role: models.RoleEmployee})
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrievanceRepositoryStatistics(t *testing.T) {
	db, mock, cleanup := newGrievanceRepoMock(t)
	defer cleanup()

	repo := NewGrievanceRepository(db)
	rows := sqlmock.NewRows([]string{"active_count", "resolved_count", "settled_count", "total_count", "filed_count", "step_b_count"}).
		AddRow(3, 2, 1, 6, 1, 1)
	mock.ExpectQuery(regexp.QuoteMeta("FROM grievances g WHERE")).
		WithArgs("user-1").
		WillReturnRows(rows)

	stats, err := repo.Statistics(context.Background(), models.AccessScope{UserID: "user-1", Role: models.RoleEmployee})
	require.NoError(t, err)
	require.Equal(t, 3, stats.ActiveGrievances)
	require.Equal(t, 6, stats.TotalGrievances)
	require.NoError(t, mock.ExpectationsWereMet())
}
