package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/unioncase/unioncase-api/internal/models"
)

// GrievanceRepository provides database access for grievance cases, their
// timeline and deadlines.
type GrievanceRepository struct {
	db *sqlx.DB
}

// NewGrievanceRepository creates a new instance of GrievanceRepository.
func NewGrievanceRepository(db *sqlx.DB) *GrievanceRepository {
	return &GrievanceRepository{db: db}
}

// nextCaseNumber advances the per-year counter and formats the case number.
// Runs inside the caller's transaction so the sequence and the insert commit
// together.
func nextCaseNumber(ctx context.Context, tx *sqlx.Tx, year int) (string, error) {
	const query = `INSERT INTO case_sequences (year, last_seq) VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET last_seq = case_sequences.last_seq + 1
		RETURNING last_seq`
	var seq int
	if err := tx.GetContext(ctx, &seq, query, year); err != nil {
		return "", fmt.Errorf("advance case sequence: %w", err)
	}
	return fmt.Sprintf("GRVNC-%d-%04d", year, seq), nil
}

// Create files a grievance: allocates the case number, inserts the row, the
// initial timeline entry and the first deadline in one transaction.
func (r *GrievanceRepository) Create(ctx context.Context, grievance *models.Grievance, deadline *models.Deadline) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create grievance: %w", err)
	}

	now := time.Now().UTC()
	if grievance.ID == "" {
		grievance.ID = uuid.NewString()
	}
	grievance.CreatedAt = now
	grievance.UpdatedAt = now

	caseNumber, err := nextCaseNumber(ctx, tx, now.Year())
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	grievance.CaseNumber = caseNumber

	const insertGrievance = `INSERT INTO grievances
		(id, case_number, user_id, grievant_name, grievant_employee_id, facility, craft,
		 incident_date, incident_time, contract_article, violation_type, brief_description,
		 detailed_description, management_representative, witnesses, steward_assigned,
		 current_step, status, created_at, updated_at)
		VALUES (:id, :case_number, :user_id, :grievant_name, :grievant_employee_id, :facility, :craft,
		 :incident_date, :incident_time, :contract_article, :violation_type, :brief_description,
		 :detailed_description, :management_representative, :witnesses, :steward_assigned,
		 :current_step, :status, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertGrievance, grievance); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create grievance: %w", err)
	}

	if err := insertTimelineEntry(ctx, tx, &models.TimelineEntry{
		GrievanceID: grievance.ID,
		Step:        grievance.CurrentStep,
		StepDate:    now,
		HandlerID:   grievance.UserID,
		Notes:       "Grievance filed",
	}); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if deadline != nil {
		deadline.GrievanceID = grievance.ID
		if err := insertDeadline(ctx, tx, deadline); err != nil {
			tx.Rollback() //nolint:errcheck
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create grievance: %w", err)
	}
	return nil
}

func insertTimelineEntry(ctx context.Context, tx *sqlx.Tx, entry *models.TimelineEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.StepDate.IsZero() {
		entry.StepDate = time.Now().UTC()
	}
	const query = `INSERT INTO grievance_timeline (id, grievance_id, step, step_date, handler_id, notes)
		VALUES (:id, :grievance_id, :step, :step_date, :handler_id, :notes)`
	if _, err := tx.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create timeline entry: %w", err)
	}
	return nil
}

func insertDeadline(ctx context.Context, tx *sqlx.Tx, deadline *models.Deadline) error {
	if deadline.ID == "" {
		deadline.ID = uuid.NewString()
	}
	if deadline.CreatedAt.IsZero() {
		deadline.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO deadlines (id, grievance_id, deadline_type, deadline_date, description, is_completed, created_at)
		VALUES (:id, :grievance_id, :deadline_type, :deadline_date, :description, :is_completed, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, deadline); err != nil {
		return fmt.Errorf("create deadline: %w", err)
	}
	return nil
}

// UpdateStep moves the case to a new step and records the timeline entry in
// one transaction. Returns sql.ErrNoRows when the grievance does not exist.
func (r *GrievanceRepository) UpdateStep(ctx context.Context, id string, step models.GrievanceStep, handlerID, notes string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update step: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE grievances SET current_step = $2, updated_at = $3 WHERE id = $1`,
		id, step, time.Now().UTC())
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update grievance step: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update grievance step: %w", err)
	}
	if affected == 0 {
		tx.Rollback() //nolint:errcheck
		return sql.ErrNoRows
	}

	if notes == "" {
		notes = fmt.Sprintf("Updated to %s", models.StepLabel(step))
	}
	if err := insertTimelineEntry(ctx, tx, &models.TimelineEntry{
		GrievanceID: id,
		Step:        step,
		HandlerID:   handlerID,
		Notes:       notes,
	}); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update step: %w", err)
	}
	return nil
}

// UpdateStatus changes the case disposition and records the timeline entry.
func (r *GrievanceRepository) UpdateStatus(ctx context.Context, id string, status models.GrievanceStatus, handlerID, notes string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update status: %w", err)
	}

	var currentStep models.GrievanceStep
	err = tx.GetContext(ctx, &currentStep,
		`UPDATE grievances SET status = $2, updated_at = $3 WHERE id = $1 RETURNING current_step`,
		id, status, time.Now().UTC())
	if err != nil {
		tx.Rollback() //nolint:errcheck
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("update grievance status: %w", err)
	}

	if notes == "" {
		notes = fmt.Sprintf("Status changed to %s", models.StatusLabel(status))
	}
	if err := insertTimelineEntry(ctx, tx, &models.TimelineEntry{
		GrievanceID: id,
		Step:        currentStep,
		HandlerID:   handlerID,
		Notes:       notes,
	}); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update status: %w", err)
	}
	return nil
}

// scopeClause returns the WHERE fragment restricting rows to the caller.
func scopeClause(scope models.AccessScope, args *[]interface{}) string {
	switch scope.Role {
	case models.RoleRepresentative:
		return "TRUE"
	case models.RoleSteward:
		*args = append(*args, scope.UserID)
		n := len(*args)
		return fmt.Sprintf("(g.user_id = $%d OR g.steward_assigned = $%d)", n, n)
	default:
		*args = append(*args, scope.UserID)
		return fmt.Sprintf("g.user_id = $%d", len(*args))
	}
}

// List returns grievance summaries visible to the caller, filtered and
// paginated, newest first.
func (r *GrievanceRepository) List(ctx context.Context, scope models.AccessScope, filter models.GrievanceFilter) ([]models.GrievanceSummary, int, error) {
	args := make([]interface{}, 0, 6)
	conditions := []string{scopeClause(scope, &args)}

	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("g.status = $%d", len(args)))
	}
	if filter.CurrentStep != "" {
		args = append(args, filter.CurrentStep)
		conditions = append(conditions, fmt.Sprintf("g.current_step = $%d", len(args)))
	}
	if filter.Facility != "" {
		args = append(args, filter.Facility)
		conditions = append(conditions, fmt.Sprintf("g.facility = $%d", len(args)))
	}
	where := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM grievances g WHERE %s`, where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count grievances: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	args = append(args, pageSize, (page-1)*pageSize)

	listQuery := fmt.Sprintf(`SELECT g.id, g.case_number, g.user_id, g.grievant_name, g.grievant_employee_id,
		g.facility, g.craft, g.incident_date, g.incident_time, g.contract_article, g.violation_type,
		g.brief_description, g.detailed_description, g.management_representative, g.witnesses,
		g.steward_assigned, g.current_step, g.status, g.created_at, g.updated_at,
		u.first_name || ' ' || u.last_name AS filed_by_name,
		s.first_name || ' ' || s.last_name AS steward_name,
		(SELECT COUNT(*) FROM documents d WHERE d.grievance_id = g.id) AS document_count
		FROM grievances g
		JOIN users u ON u.id = g.user_id
		LEFT JOIN users s ON s.id = g.steward_assigned
		WHERE %s
		ORDER BY g.created_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	var summaries []models.GrievanceSummary
	if err := r.db.SelectContext(ctx, &summaries, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list grievances: %w", err)
	}
	return summaries, total, nil
}

// FindByID returns a bare grievance row.
func (r *GrievanceRepository) FindByID(ctx context.Context, id string) (*models.Grievance, error) {
	const query = `SELECT id, case_number, user_id, grievant_name, grievant_employee_id, facility, craft,
		incident_date, incident_time, contract_article, violation_type, brief_description,
		detailed_description, management_representative, witnesses, steward_assigned,
		current_step, status, created_at, updated_at
		FROM grievances WHERE id = $1 LIMIT 1`
	var grievance models.Grievance
	if err := r.db.GetContext(ctx, &grievance, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find grievance: %w", err)
	}
	return &grievance, nil
}

// FindDetail loads the grievance joined with the filer and steward contact
// columns.
func (r *GrievanceRepository) FindDetail(ctx context.Context, id string) (*models.GrievanceDetail, error) {
	const query = `SELECT g.id, g.case_number, g.user_id, g.grievant_name, g.grievant_employee_id,
		g.facility, g.craft, g.incident_date, g.incident_time, g.contract_article, g.violation_type,
		g.brief_description, g.detailed_description, g.management_representative, g.witnesses,
		g.steward_assigned, g.current_step, g.status, g.created_at, g.updated_at,
		u.first_name || ' ' || u.last_name AS filed_by_name,
		u.email AS filed_by_email,
		s.first_name || ' ' || s.last_name AS steward_name,
		s.email AS steward_email
		FROM grievances g
		JOIN users u ON u.id = g.user_id
		LEFT JOIN users s ON s.id = g.steward_assigned
		WHERE g.id = $1 LIMIT 1`
	var detail models.GrievanceDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find grievance detail: %w", err)
	}
	return &detail, nil
}

// Timeline returns the timeline entries for a grievance, oldest first.
func (r *GrievanceRepository) Timeline(ctx context.Context, grievanceID string) ([]models.TimelineEntry, error) {
	const query = `SELECT t.id, t.grievance_id, t.step, t.step_date, t.handler_id,
		u.first_name || ' ' || u.last_name AS handler_name, t.notes
		FROM grievance_timeline t
		LEFT JOIN users u ON u.id = t.handler_id
		WHERE t.grievance_id = $1
		ORDER BY t.step_date ASC`
	var entries []models.TimelineEntry
	if err := r.db.SelectContext(ctx, &entries, query, grievanceID); err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}
	return entries, nil
}

// Statistics aggregates case counts within the caller's scope.
func (r *GrievanceRepository) Statistics(ctx context.Context, scope models.AccessScope) (*models.Statistics, error) {
	args := make([]interface{}, 0, 1)
	where := scopeClause(scope, &args)
	query := fmt.Sprintf(`SELECT
		COUNT(*) FILTER (WHERE g.status = 'active') AS active_count,
		COUNT(*) FILTER (WHERE g.status = 'resolved') AS resolved_count,
		COUNT(*) FILTER (WHERE g.status = 'settled') AS settled_count,
		COUNT(*) AS total_count,
		COUNT(*) FILTER (WHERE g.current_step = 'filed') AS filed_count,
		COUNT(*) FILTER (WHERE g.current_step IN ('step_b', 'arbitration')) AS step_b_count
		FROM grievances g WHERE %s`, where)
	var stats models.Statistics
	if err := r.db.GetContext(ctx, &stats, query, args...); err != nil {
		return nil, fmt.Errorf("aggregate statistics: %w", err)
	}
	return &stats, nil
}

// CountPendingDeadlines counts upcoming incomplete deadlines on open cases in
// scope. Overdue deadlines are not pending; they surface through the sweep.
func (r *GrievanceRepository) CountPendingDeadlines(ctx context.Context, scope models.AccessScope) (int, error) {
	args := make([]interface{}, 0, 1)
	where := scopeClause(scope, &args)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM deadlines d
		JOIN grievances g ON g.id = d.grievance_id
		WHERE d.is_completed = FALSE AND d.deadline_date >= CURRENT_DATE
		  AND g.status = 'active' AND %s`, where)
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count pending deadlines: %w", err)
	}
	return count, nil
}
