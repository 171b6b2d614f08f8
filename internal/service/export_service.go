package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/unioncase/unioncase-api/internal/models"
	appErrors "github.com/unioncase/unioncase-api/pkg/errors"
	"github.com/unioncase/unioncase-api/pkg/export"
)

type caseFileLoader interface {
	Get(ctx context.Context, scope models.AccessScope, id string) (*models.GrievanceDetail, error)
	List(ctx context.Context, scope models.AccessScope, filter models.GrievanceFilter) ([]models.GrievanceSummary, int, error)
}

// ExportFile is a rendered export ready to stream to the client.
type ExportFile struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ExportService renders grievance case files to PDF and case lists to CSV.
type ExportService struct {
	grievances caseFileLoader
	pdf        *export.ReportExporter
	csv        *export.CSVExporter
	logger     *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(grievances caseFileLoader, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		grievances: grievances,
		pdf:        export.NewReportExporter(),
		csv:        export.NewCSVExporter(),
		logger:     logger,
	}
}

// CaseFilePDF renders the full case file for one grievance.
func (s *ExportService) CaseFilePDF(ctx context.Context, scope models.AccessScope, id string) (*ExportFile, error) {
	detail, err := s.grievances.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	report := export.Report{
		Title:    "Grievance Case File",
		Subtitle: detail.CaseNumber,
		Sections: []export.Section{
			s.caseSection(detail),
			s.incidentSection(detail),
			s.timelineSection(detail.Timeline),
			s.deadlineSection(detail.Deadlines),
			s.documentSection(detail.Documents),
			s.noteSection(detail.Notes),
		},
	}

	data, err := s.pdf.Render(report)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render case file")
	}
	return &ExportFile{
		FileName:    fmt.Sprintf("%s.pdf", detail.CaseNumber),
		ContentType: "application/pdf",
		Data:        data,
	}, nil
}

// GrievancesCSV renders the caller's visible cases as CSV.
func (s *ExportService) GrievancesCSV(ctx context.Context, scope models.AccessScope, filter models.GrievanceFilter) (*ExportFile, error) {
	filter.Page = 1
	filter.PageSize = 10000
	summaries, _, err := s.grievances.List(ctx, scope, filter)
	if err != nil {
		return nil, err
	}

	headers := []string{"Case Number", "Grievant", "Facility", "Craft", "Violation Type", "Current Step", "Status", "Incident Date", "Filed", "Documents"}
	rows := make([]map[string]string, 0, len(summaries))
	for _, g := range summaries {
		rows = append(rows, map[string]string{
			"Case Number":    g.CaseNumber,
			"Grievant":       g.GrievantName,
			"Facility":       g.Facility,
			"Craft":          models.CraftLabel(g.Craft),
			"Violation Type": g.ViolationType,
			"Current Step":   models.StepLabel(g.CurrentStep),
			"Status":         models.StatusLabel(g.Status),
			"Incident Date":  g.IncidentDate.Format("2006-01-02"),
			"Filed":          g.CreatedAt.Format("2006-01-02"),
			"Documents":      strconv.Itoa(g.DocumentCount),
		})
	}

	data, err := s.csv.Render(export.Dataset{Headers: headers, Rows: rows})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return &ExportFile{
		FileName:    fmt.Sprintf("grievances-%s.csv", time.Now().UTC().Format("20060102")),
		ContentType: "text/csv",
		Data:        data,
	}, nil
}

func (s *ExportService) caseSection(detail *models.GrievanceDetail) export.Section {
	steward := "Unassigned"
	if detail.StewardName != nil {
		steward = *detail.StewardName
	}
	union := models.UnionForCraft(detail.Craft)
	return export.Section{
		Title: "Case Information",
		Fields: []export.Field{
			{Label: "Case Number", Value: detail.CaseNumber},
			{Label: "Status", Value: models.StatusLabel(detail.Status)},
			{Label: "Current Step", Value: models.StepLabel(detail.CurrentStep)},
			{Label: "Filed By", Value: detail.FiledByName},
			{Label: "Steward", Value: steward},
			{Label: "Union", Value: strings.ToUpper(string(union))},
			{Label: "Filed On", Value: detail.CreatedAt.Format("January 2, 2006")},
		},
	}
}

func (s *ExportService) incidentSection(detail *models.GrievanceDetail) export.Section {
	fields := []export.Field{
		{Label: "Grievant", Value: detail.GrievantName},
		{Label: "Employee ID", Value: detail.GrievantEmployeeID},
		{Label: "Facility", Value: detail.Facility},
		{Label: "Craft", Value: models.CraftLabel(detail.Craft)},
		{Label: "Incident Date", Value: detail.IncidentDate.Format("January 2, 2006")},
		{Label: "Contract Article", Value: detail.ContractArticle},
		{Label: "Violation Type", Value: detail.ViolationType},
		{Label: "Brief Description", Value: detail.BriefDescription},
		{Label: "Detailed Description", Value: detail.DetailedDescription},
	}
	if detail.ManagementRepresentative != nil {
		fields = append(fields, export.Field{Label: "Management Rep", Value: *detail.ManagementRepresentative})
	}
	if len(detail.Witnesses) > 0 {
		fields = append(fields, export.Field{Label: "Witnesses", Value: strings.Join(detail.Witnesses, ", ")})
	}
	return export.Section{Title: "Incident", Fields: fields}
}

func (s *ExportService) timelineSection(timeline []models.TimelineEntry) export.Section {
	headers := []string{"Date", "Step", "Handler", "Notes"}
	rows := make([]map[string]string, 0, len(timeline))
	for _, entry := range timeline {
		handler := ""
		if entry.HandlerName != nil {
			handler = *entry.HandlerName
		}
		rows = append(rows, map[string]string{
			"Date":    entry.StepDate.Format("2006-01-02"),
			"Step":    models.StepLabel(entry.Step),
			"Handler": handler,
			"Notes":   entry.Notes,
		})
	}
	return export.Section{Title: "Timeline", Table: &export.Dataset{Headers: headers, Rows: rows}}
}

func (s *ExportService) deadlineSection(deadlines []models.Deadline) export.Section {
	headers := []string{"Type", "Due", "Completed", "Description"}
	rows := make([]map[string]string, 0, len(deadlines))
	for _, d := range deadlines {
		completed := "No"
		if d.IsCompleted {
			completed = "Yes"
		}
		rows = append(rows, map[string]string{
			"Type":        strings.ToUpper(strings.ReplaceAll(string(d.DeadlineType), "_", " ")),
			"Due":         d.DeadlineDate.Format("2006-01-02"),
			"Completed":   completed,
			"Description": d.Description,
		})
	}
	return export.Section{Title: "Deadlines", Table: &export.Dataset{Headers: headers, Rows: rows}}
}

func (s *ExportService) documentSection(documents []models.Document) export.Section {
	headers := []string{"File", "Label", "Size", "Uploaded"}
	rows := make([]map[string]string, 0, len(documents))
	for _, doc := range documents {
		rows = append(rows, map[string]string{
			"File":     doc.FileName,
			"Label":    doc.Label,
			"Size":     fmt.Sprintf("%d KB", doc.FileSize/1024),
			"Uploaded": doc.CreatedAt.Format("2006-01-02"),
		})
	}
	return export.Section{Title: "Documents", Table: &export.Dataset{Headers: headers, Rows: rows}}
}

func (s *ExportService) noteSection(notes []models.Note) export.Section {
	headers := []string{"Date", "Author", "Note"}
	rows := make([]map[string]string, 0, len(notes))
	for _, note := range notes {
		author := ""
		if note.AuthorName != nil {
			author = *note.AuthorName
		}
		rows = append(rows, map[string]string{
			"Date":   note.CreatedAt.Format("2006-01-02"),
			"Author": author,
			"Note":   note.NoteText,
		})
	}
	return export.Section{Title: "Notes", Table: &export.Dataset{Headers: headers, Rows: rows}}
}
