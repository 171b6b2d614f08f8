package models

import (
	"fmt"
	"time"

	"github.com/lib/pq"
)

// GrievanceStep is the current stage of a grievance in the resolution process.
type GrievanceStep string

const (
	StepFiled       GrievanceStep = "filed"
	StepInformalA   GrievanceStep = "informal_step_a"
	StepFormalA     GrievanceStep = "formal_step_a"
	StepB           GrievanceStep = "step_b"
	StepArbitration GrievanceStep = "arbitration"
	StepResolved    GrievanceStep = "resolved"
)

// GrievanceSteps lists every step value in process order.
var GrievanceSteps = []GrievanceStep{
	StepFiled,
	StepInformalA,
	StepFormalA,
	StepB,
	StepArbitration,
	StepResolved,
}

// ParseStep validates a raw step value against the step vocabulary. Any known
// step is accepted regardless of the grievance's current position; the
// workflow deliberately allows corrections backwards as well as forwards.
func ParseStep(raw string) (GrievanceStep, error) {
	step := GrievanceStep(raw)
	for _, s := range GrievanceSteps {
		if s == step {
			return step, nil
		}
	}
	return "", fmt.Errorf("unknown grievance step %q", raw)
}

// GrievanceStatus is the overall disposition of a grievance, independent of
// its current step.
type GrievanceStatus string

const (
	StatusActive    GrievanceStatus = "active"
	StatusResolved  GrievanceStatus = "resolved"
	StatusSettled   GrievanceStatus = "settled"
	StatusDenied    GrievanceStatus = "denied"
	StatusWithdrawn GrievanceStatus = "withdrawn"
)

// GrievanceStatuses lists every status value.
var GrievanceStatuses = []GrievanceStatus{
	StatusActive,
	StatusResolved,
	StatusSettled,
	StatusDenied,
	StatusWithdrawn,
}

// ParseStatus validates a raw status value.
func ParseStatus(raw string) (GrievanceStatus, error) {
	status := GrievanceStatus(raw)
	for _, s := range GrievanceStatuses {
		if s == status {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown grievance status %q", raw)
}

// Terminal reports whether the status closes the case.
func (s GrievanceStatus) Terminal() bool {
	return s == StatusResolved || s == StatusSettled || s == StatusDenied || s == StatusWithdrawn
}

// Grievance represents a filed labor dispute case.
type Grievance struct {
	ID                       string          `db:"id" json:"id"`
	CaseNumber               string          `db:"case_number" json:"case_number"`
	UserID                   string          `db:"user_id" json:"user_id"`
	GrievantName             string          `db:"grievant_name" json:"grievant_name"`
	GrievantEmployeeID       string          `db:"grievant_employee_id" json:"grievant_employee_id"`
	Facility                 string          `db:"facility" json:"facility"`
	Craft                    Craft           `db:"craft" json:"craft"`
	IncidentDate             time.Time       `db:"incident_date" json:"incident_date"`
	IncidentTime             *string         `db:"incident_time" json:"incident_time,omitempty"`
	ContractArticle          string          `db:"contract_article" json:"contract_article"`
	ViolationType            string          `db:"violation_type" json:"violation_type"`
	BriefDescription         string          `db:"brief_description" json:"brief_description"`
	DetailedDescription      string          `db:"detailed_description" json:"detailed_description"`
	ManagementRepresentative *string         `db:"management_representative" json:"management_representative,omitempty"`
	Witnesses                pq.StringArray  `db:"witnesses" json:"witnesses"`
	StewardAssigned          *string         `db:"steward_assigned" json:"steward_assigned,omitempty"`
	CurrentStep              GrievanceStep   `db:"current_step" json:"current_step"`
	Status                   GrievanceStatus `db:"status" json:"status"`
	CreatedAt                time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time       `db:"updated_at" json:"updated_at"`
}

// GrievanceSummary is a list-view row joined with user names and the
// document count.
type GrievanceSummary struct {
	Grievance
	FiledByName   string  `db:"filed_by_name" json:"filed_by_name"`
	StewardName   *string `db:"steward_name" json:"steward_name,omitempty"`
	DocumentCount int     `db:"document_count" json:"document_count"`
}

// TimelineEntry is an immutable audit record of a step transition. The
// ordered sequence of entries for a grievance is its audit trail; rows are
// never updated or deleted.
type TimelineEntry struct {
	ID          string        `db:"id" json:"id"`
	GrievanceID string        `db:"grievance_id" json:"grievance_id"`
	Step        GrievanceStep `db:"step" json:"step"`
	StepDate    time.Time     `db:"step_date" json:"step_date"`
	HandlerID   string        `db:"handler_id" json:"handler_id"`
	HandlerName *string       `db:"handler_name" json:"handler_name,omitempty"`
	Notes       string        `db:"notes" json:"notes"`
}

// GrievanceDetail bundles a grievance with its related records.
type GrievanceDetail struct {
	Grievance
	FiledByName  string          `db:"filed_by_name" json:"filed_by_name"`
	FiledByEmail string          `db:"filed_by_email" json:"filed_by_email"`
	StewardName  *string         `db:"steward_name" json:"steward_name,omitempty"`
	StewardEmail *string         `db:"steward_email" json:"steward_email,omitempty"`
	Timeline     []TimelineEntry `json:"timeline"`
	Deadlines    []Deadline      `json:"deadlines"`
	Documents    []Document      `json:"documents"`
	Notes        []Note          `json:"notes"`
}

// GrievanceFilter captures the listing criteria. Access scoping by role is
// applied on top of the explicit filters.
type GrievanceFilter struct {
	Status      string
	CurrentStep string
	Facility    string
	Page        int
	PageSize    int
}

// AccessScope restricts listings to rows the caller may see.
type AccessScope struct {
	UserID string
	Role   UserRole
}

// Statistics aggregates per-user grievance counts for the dashboard.
type Statistics struct {
	ActiveGrievances   int `db:"active_count" json:"activeGrievances"`
	ResolvedGrievances int `db:"resolved_count" json:"resolvedGrievances"`
	SettledGrievances  int `db:"settled_count" json:"settledGrievances"`
	TotalGrievances    int `db:"total_count" json:"totalGrievances"`
	FiledCount         int `db:"filed_count" json:"filedCount"`
	StepBCount         int `db:"step_b_count" json:"stepBCount"`
	PendingDeadlines   int `db:"-" json:"pendingDeadlines"`
}

// CreateGrievanceRequest is the filing payload.
type CreateGrievanceRequest struct {
	GrievantName             string   `json:"grievantName" validate:"required"`
	GrievantEmployeeID       string   `json:"grievantEmployeeId" validate:"required"`
	Facility                 string   `json:"facility" validate:"required"`
	Craft                    string   `json:"craft" validate:"required"`
	IncidentDate             string   `json:"incidentDate" validate:"required,datetime=2006-01-02"`
	IncidentTime             string   `json:"incidentTime"`
	ContractArticle          string   `json:"contractArticle" validate:"required"`
	ViolationType            string   `json:"violationType" validate:"required"`
	BriefDescription         string   `json:"briefDescription" validate:"required"`
	DetailedDescription      string   `json:"detailedDescription" validate:"required"`
	ManagementRepresentative string   `json:"managementRepresentative"`
	Witnesses                []string `json:"witnesses"`
	StewardAssigned          string   `json:"stewardAssigned"`
}

// UpdateStepRequest advances (or corrects) the current step.
type UpdateStepRequest struct {
	NewStep string `json:"newStep" validate:"required"`
	Notes   string `json:"notes"`
}

// UpdateStatusRequest changes the case disposition.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes"`
}

// AddNoteRequest appends a note to a grievance.
type AddNoteRequest struct {
	NoteText   string `json:"noteText" validate:"required"`
	IsInternal bool   `json:"isInternal"`
}
