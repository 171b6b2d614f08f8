package service

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/unioncase/unioncase-api/internal/models"
)

// emailLayout wraps every outbound message in the shared header/footer.
var emailLayout = template.Must(template.New("layout").Parse(`<!DOCTYPE html>
<html>
<body style="margin:0;padding:0;background-color:#f4f4f4;font-family:Arial,sans-serif;">
  <table width="100%" cellpadding="0" cellspacing="0" style="max-width:600px;margin:0 auto;background-color:#ffffff;">
    <tr>
      <td style="background-color:#003366;padding:20px 30px;">
        <h1 style="color:#ffffff;margin:0;font-size:22px;">UnionCase</h1>
        {{if .CaseNumber}}<p style="color:#c9d6e3;margin:5px 0 0 0;font-size:13px;">Case {{.CaseNumber}}</p>{{end}}
      </td>
    </tr>
    <tr>
      <td style="padding:30px;">{{.Body}}</td>
    </tr>
    <tr>
      <td style="background-color:#f8f9fa;padding:15px 30px;border-top:1px solid #e0e0e0;">
        <p style="color:#999999;font-size:12px;margin:0;">This is an automated message from UnionCase. Please do not reply.</p>
      </td>
    </tr>
  </table>
</body>
</html>`))

type emailContent struct {
	CaseNumber string
	Body       template.HTML
}

func renderEmail(caseNumber string, body string) string {
	var sb strings.Builder
	if err := emailLayout.Execute(&sb, emailContent{CaseNumber: caseNumber, Body: template.HTML(body)}); err != nil {
		return body
	}
	return sb.String()
}

func esc(s string) string {
	return template.HTMLEscapeString(s)
}

func labelUpper(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, "_", " "))
}

func plainLink(url, label, color string) string {
	return fmt.Sprintf(`<div style="text-align:center;margin:30px 0;">
  <a href="%s" style="display:inline-block;background-color:%s;color:#ffffff;text-decoration:none;padding:12px 30px;border-radius:4px;font-weight:bold;">%s</a>
</div>`, esc(url), color, label)
}

func caseLink(clientURL, grievanceID, label, color string) string {
	return plainLink(clientURL+"/grievances/"+grievanceID, label, color)
}

// newGrievanceEmail notifies the assigned steward about a fresh filing.
func newGrievanceEmail(clientURL string, steward *models.User, g *models.Grievance) (string, string) {
	subject := fmt.Sprintf("New Grievance Assigned: %s", g.CaseNumber)
	body := fmt.Sprintf(`<h2 style="color:#003366;margin:0 0 20px 0;">New Grievance Assigned</h2>
<p style="color:#333;font-size:16px;">Hello %s,</p>
<p style="color:#333;font-size:16px;">A new grievance has been assigned to you.</p>
<div style="background-color:#f8f9fa;border-left:4px solid #003366;padding:15px;margin:20px 0;">
  <p style="margin:5px 0;color:#666;"><strong>Grievant:</strong> %s</p>
  <p style="margin:5px 0;color:#666;"><strong>Facility:</strong> %s</p>
  <p style="margin:5px 0;color:#666;"><strong>Violation Type:</strong> %s</p>
  <p style="margin:5px 0;color:#666;"><strong>Filed:</strong> %s</p>
</div>
<p style="color:#333;font-size:16px;"><strong>Brief Description:</strong><br>%s</p>
%s
<p style="color:#666;font-size:14px;">Please review this case and take appropriate action as soon as possible.</p>`,
		esc(steward.FirstName), esc(g.GrievantName), esc(g.Facility), esc(g.ViolationType),
		g.CreatedAt.Format("Jan 2, 2006"), esc(g.BriefDescription),
		caseLink(clientURL, g.ID, "View Grievance Details", "#003366"))
	return subject, renderEmail(g.CaseNumber, body)
}

// deadlineReminderEmail warns about an approaching deadline.
func deadlineReminderEmail(clientURL string, d models.DueDeadline, daysUntil int) (string, string) {
	var urgency, subjectUrgency string
	switch daysUntil {
	case 0:
		urgency = `<strong style="color:#dc3545;">TODAY</strong>`
		subjectUrgency = "TODAY"
	case 1:
		urgency = `<strong style="color:#ffc107;">TOMORROW</strong>`
		subjectUrgency = "TOMORROW"
	default:
		urgency = fmt.Sprintf("in <strong>%d days</strong>", daysUntil)
		subjectUrgency = fmt.Sprintf("in %d days", daysUntil)
	}
	subject := fmt.Sprintf("Deadline %s - %s", subjectUrgency, d.CaseNumber)
	body := fmt.Sprintf(`<h2 style="color:#dc3545;margin:0 0 20px 0;">Deadline Reminder</h2>
<p style="color:#333;font-size:16px;">Hello %s,</p>
<p style="color:#333;font-size:16px;">This is a reminder that a deadline for grievance <strong>%s</strong> is approaching %s.</p>
<div style="background-color:#fff3cd;border-left:4px solid #ffc107;padding:15px;margin:20px 0;">
  <p style="margin:0 0 10px 0;color:#856404;font-weight:bold;">Deadline Information:</p>
  <p style="margin:5px 0;color:#856404;"><strong>Type:</strong> %s</p>
  <p style="margin:5px 0;color:#856404;"><strong>Due Date:</strong> %s</p>
  <p style="margin:5px 0;color:#856404;"><strong>Description:</strong> %s</p>
</div>
<div style="background-color:#f8f9fa;border-left:4px solid #003366;padding:15px;margin:20px 0;">
  <p style="margin:0 0 10px 0;color:#333;font-weight:bold;">Grievance Details:</p>
  <p style="margin:5px 0;color:#666;"><strong>Grievant:</strong> %s</p>
  <p style="margin:5px 0;color:#666;"><strong>Violation Type:</strong> %s</p>
  <p style="margin:5px 0;color:#666;"><strong>Current Step:</strong> %s</p>
</div>
%s
<p style="color:#666;font-size:14px;">Please ensure all required actions are completed before the deadline.</p>`,
		esc(d.FirstName), esc(d.CaseNumber), urgency,
		labelUpper(string(d.DeadlineType)), d.DeadlineDate.Format("Jan 2, 2006"), esc(d.Description),
		esc(d.GrievantName), esc(d.ViolationType), labelUpper(string(d.CurrentStep)),
		caseLink(clientURL, d.GrievanceID, "Take Action Now", "#dc3545"))
	return subject, renderEmail(d.CaseNumber, body)
}

// deadlineOverdueEmail flags a deadline that has already passed.
func deadlineOverdueEmail(clientURL string, d models.DueDeadline) (string, string) {
	subject := fmt.Sprintf("OVERDUE: %s - Action Required", d.CaseNumber)
	body := fmt.Sprintf(`<h2 style="color:#dc3545;margin:0 0 20px 0;">Deadline Overdue</h2>
<p style="color:#333;font-size:16px;">Hello %s,</p>
<p style="color:#333;font-size:16px;"><strong style="color:#dc3545;">A deadline for grievance %s has passed.</strong></p>
<div style="background-color:#f8d7da;border-left:4px solid #dc3545;padding:15px;margin:20px 0;">
  <p style="margin:0 0 10px 0;color:#721c24;font-weight:bold;">Overdue Deadline:</p>
  <p style="margin:5px 0;color:#721c24;"><strong>Type:</strong> %s</p>
  <p style="margin:5px 0;color:#721c24;"><strong>Was Due:</strong> %s</p>
  <p style="margin:5px 0;color:#721c24;"><strong>Description:</strong> %s</p>
</div>
%s
<p style="color:#666;font-size:14px;">Please take immediate action to address this overdue item.</p>`,
		esc(d.FirstName), esc(d.CaseNumber),
		labelUpper(string(d.DeadlineType)), d.DeadlineDate.Format("Jan 2, 2006"), esc(d.Description),
		caseLink(clientURL, d.GrievanceID, "Review Grievance", "#dc3545"))
	return subject, renderEmail(d.CaseNumber, body)
}

// statusUpdateEmail informs the filer about a step change.
func statusUpdateEmail(clientURL string, user *models.User, g *models.Grievance, oldStep, newStep models.GrievanceStep) (string, string) {
	subject := fmt.Sprintf("Status Update: %s", g.CaseNumber)
	body := fmt.Sprintf(`<h2 style="color:#28a745;margin:0 0 20px 0;">Grievance Status Updated</h2>
<p style="color:#333;font-size:16px;">Hello %s,</p>
<p style="color:#333;font-size:16px;">Grievance <strong>%s</strong> has been updated to a new step in the process.</p>
<div style="background-color:#d4edda;border-left:4px solid #28a745;padding:15px;margin:20px 0;">
  <p style="margin:0 0 10px 0;color:#155724;font-weight:bold;">Status Change:</p>
  <p style="margin:5px 0;color:#155724;"><strong>Previous:</strong> %s</p>
  <p style="margin:5px 0;color:#155724;"><strong>Current:</strong> %s</p>
</div>
%s`,
		esc(user.FirstName), esc(g.CaseNumber),
		labelUpper(string(oldStep)), labelUpper(string(newStep)),
		caseLink(clientURL, g.ID, "View Grievance", "#28a745"))
	return subject, renderEmail(g.CaseNumber, body)
}

// newNoteEmail informs the counterpart that a note was added.
func newNoteEmail(clientURL string, user *models.User, g *models.Grievance, authorName, noteText string) (string, string) {
	subject := fmt.Sprintf("New Note: %s", g.CaseNumber)
	body := fmt.Sprintf(`<h2 style="color:#003366;margin:0 0 20px 0;">New Note Added</h2>
<p style="color:#333;font-size:16px;">Hello %s,</p>
<p style="color:#333;font-size:16px;"><strong>%s</strong> added a note to grievance <strong>%s</strong>.</p>
<div style="background-color:#f8f9fa;border-left:4px solid #003366;padding:15px;margin:20px 0;">
  <p style="margin:0;color:#666;font-style:italic;">%s</p>
</div>
%s`,
		esc(user.FirstName), esc(authorName), esc(g.CaseNumber), esc(noteText),
		caseLink(clientURL, g.ID, "View Grievance", "#003366"))
	return subject, renderEmail(g.CaseNumber, body)
}

// grievanceResolvedEmail congratulates the filer on a resolved case.
func grievanceResolvedEmail(clientURL string, user *models.User, g *models.Grievance) (string, string) {
	subject := fmt.Sprintf("Resolved: %s", g.CaseNumber)
	body := fmt.Sprintf(`<h2 style="color:#28a745;margin:0 0 20px 0;">Grievance Resolved</h2>
<p style="color:#333;font-size:16px;">Hello %s,</p>
<p style="color:#333;font-size:16px;">Good news: grievance <strong>%s</strong> has been marked as resolved.</p>
%s
<p style="color:#666;font-size:14px;">Thank you for using UnionCase to protect your rights.</p>`,
		esc(user.FirstName), esc(g.CaseNumber),
		caseLink(clientURL, g.ID, "View Resolution", "#28a745"))
	return subject, renderEmail(g.CaseNumber, body)
}

// trialWelcomeEmail greets a newly enrolled user.
func trialWelcomeEmail(clientURL string, user *models.User, trialEndsAt time.Time) (string, string) {
	subject := "Welcome to UnionCase - Your 30-Day Trial Starts Now"
	body := fmt.Sprintf(`<h2 style="color:#003366;margin:0 0 20px 0;">Welcome, %s!</h2>
<p style="color:#333;font-size:16px;">Your 30-day free trial of UnionCase is active. You have full access to grievance tracking, deadline reminders and document management.</p>
<div style="background-color:#f8f9fa;border-left:4px solid #003366;padding:15px;margin:20px 0;">
  <p style="margin:5px 0;color:#666;"><strong>Trial ends:</strong> %s</p>
</div>
%s`,
		esc(user.FirstName), trialEndsAt.Format("January 2, 2006"),
		plainLink(clientURL, "Get Started", "#003366"))
	return subject, renderEmail("", body)
}

// trialWarningEmail reminds a trial user that expiry is near.
func trialWarningEmail(clientURL, supportEmail string, user *models.User, daysLeft int, trialEndsAt time.Time) (string, string) {
	var subject string
	if daysLeft <= 2 {
		subject = fmt.Sprintf("URGENT: Trial Ends in %d Days - Action Required", daysLeft)
	} else {
		subject = fmt.Sprintf("Trial Ending Soon - %d Days Remaining", daysLeft)
	}
	body := fmt.Sprintf(`<h2 style="color:#ffc107;margin:0 0 20px 0;">Your Trial Ends in %d Days</h2>
<p style="color:#333;font-size:16px;">Hello %s,</p>
<p style="color:#333;font-size:16px;">Your UnionCase trial ends on <strong>%s</strong>. Subscribe now to keep uninterrupted access to your cases and deadline reminders.</p>
<p style="color:#666;font-size:14px;">Questions? Contact us at %s.</p>`,
		daysLeft, esc(user.FirstName), trialEndsAt.Format("January 2, 2006"), esc(supportEmail))
	return subject, renderEmail("", body)
}

// trialExpiredEmail tells the user their access is now read-blocked.
func trialExpiredEmail(supportEmail, supportPhone string, user *models.User) (string, string) {
	subject := "Your UnionCase Trial Has Expired"
	body := fmt.Sprintf(`<h2 style="color:#dc3545;margin:0 0 20px 0;">Trial Expired</h2>
<p style="color:#333;font-size:16px;">Hello %s,</p>
<p style="color:#333;font-size:16px;">Your 30-day trial has ended and access to your cases is paused. Your data is safe and will be restored as soon as you subscribe.</p>
<p style="color:#666;font-size:14px;">To subscribe, contact us at %s or %s.</p>`,
		esc(user.FirstName), esc(supportEmail), esc(supportPhone))
	return subject, renderEmail("", body)
}
