package email

import (
	"fmt"
	"html"
	"time"
)

const styles = `
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #10b981; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
        .content { background-color: #f9fafb; padding: 30px; border: 1px solid #e5e7eb; border-radius: 0 0 5px 5px; }
        .box { background: white; padding: 20px; border-left: 4px solid #10b981; margin: 20px 0; border-radius: 5px; }
        .button { display: inline-block; padding: 12px 30px; background-color: #10b981; color: white; text-decoration: none; border-radius: 5px; margin: 20px 0; }
        .footer { text-align: center; margin-top: 20px; color: #6b7280; font-size: 12px; }
    </style>`

func page(title, body string) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>%s</title>%s
</head>
<body>
    <div class="container">
        <div class="header"><h1>%s</h1></div>
        <div class="content">%s
        </div>
        <div class="footer"><p>&copy; CleanStreet. All rights reserved.</p></div>
    </div>
</body>
</html>
`, html.EscapeString(title), styles, html.EscapeString(title), body)
}

// Assignment describes a complaint handed to a volunteer.
type Assignment struct {
	VolunteerName  string    `json:"volunteer_name"`
	VolunteerEmail string    `json:"volunteer_email"`
	ComplaintId    string    `json:"complaint_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Address        string    `json:"address"`
	Priority       string    `json:"priority"`
	ReportedAt     time.Time `json:"reported_at"`
	DashboardURL   string    `json:"dashboard_url"`
}

func AssignmentMessage(a *Assignment) *Message {
	reported := a.ReportedAt.Format("January 2, 2006")
	text := fmt.Sprintf(`
Hello %s,

A new complaint has been assigned to you by the admin team.

Title: %s
Description: %s
Location: %s
Priority: %s
Status: Assigned
Reported on: %s

Please log in to your volunteer dashboard to view full details and update the status: %s
`, a.VolunteerName, a.Title, a.Description, a.Address, a.Priority, reported, a.DashboardURL)

	body := fmt.Sprintf(`
            <p>Hello <strong>%s</strong>,</p>
            <p>A new complaint has been assigned to you by the admin team.</p>
            <div class="box">
                <h3>Complaint Details</h3>
                <p><strong>Title:</strong> %s</p>
                <p><strong>Description:</strong> %s</p>
                <p><strong>Location:</strong> %s</p>
                <p><strong>Priority:</strong> %s</p>
                <p><strong>Status:</strong> Assigned</p>
                <p><strong>Reported on:</strong> %s</p>
            </div>
            <p style="text-align: center;"><a href="%s" class="button">Go to Dashboard</a></p>`,
		html.EscapeString(a.VolunteerName), html.EscapeString(a.Title), html.EscapeString(a.Description),
		html.EscapeString(a.Address), html.EscapeString(a.Priority), reported, html.EscapeString(a.DashboardURL))

	return &Message{
		To:      a.VolunteerEmail,
		ToName:  a.VolunteerName,
		Subject: "New Complaint Assigned to You",
		Text:    text,
		HTML:    page("New Assignment", body),
	}
}

// Approval describes a volunteer whose application was accepted.
type Approval struct {
	VolunteerName  string `json:"volunteer_name"`
	VolunteerEmail string `json:"volunteer_email"`
	LoginURL       string `json:"login_url"`
}

func ApprovalMessage(a *Approval) *Message {
	text := fmt.Sprintf(`
Hello %s,

Congratulations! Your volunteer application has been approved by the admin.
You can now log in to your volunteer dashboard: %s
`, a.VolunteerName, a.LoginURL)

	body := fmt.Sprintf(`
            <p>Hello <strong>%s</strong>,</p>
            <p>Congratulations! Your volunteer application has been approved by the admin.</p>
            <p>You can now log in to your volunteer dashboard and start helping to keep our streets clean.</p>
            <p style="text-align: center;"><a href="%s" class="button">Login Now</a></p>`,
		html.EscapeString(a.VolunteerName), html.EscapeString(a.LoginURL))

	return &Message{
		To:      a.VolunteerEmail,
		ToName:  a.VolunteerName,
		Subject: "Your Volunteer Application has been Approved",
		Text:    text,
		HTML:    page("Application Approved", body),
	}
}

// PasswordResetMessage builds the reset email. subjectPrefix distinguishes
// the admin and volunteer portals ("Admin", "Volunteer") from citizens ("").
func PasswordResetMessage(subjectPrefix, name, to, resetURL string, ttl time.Duration) *Message {
	subject := "Password Reset Request"
	if subjectPrefix != "" {
		subject = subjectPrefix + " " + subject
	}
	expires := fmt.Sprintf("%d minutes", int(ttl.Minutes()))
	if ttl >= time.Hour && ttl%time.Hour == 0 {
		expires = fmt.Sprintf("%d hour", int(ttl.Hours()))
		if ttl > time.Hour {
			expires += "s"
		}
	}

	text := fmt.Sprintf(`
Hello %s,

You have requested to reset your password. Open the following link to choose a new one:
%s

This link will expire in %s. If you did not request this, please ignore this email.
`, name, resetURL, expires)

	body := fmt.Sprintf(`
            <p>Hello <strong>%s</strong>,</p>
            <p>You have requested to reset your password. Click the button below to choose a new one:</p>
            <p style="text-align: center;"><a href="%s" class="button">Reset Password</a></p>
            <p style="word-break: break-all;">%s</p>
            <p><strong>This link will expire in %s.</strong></p>
            <p>If you did not request this, please ignore this email and your password will remain unchanged.</p>`,
		html.EscapeString(name), html.EscapeString(resetURL), html.EscapeString(resetURL), expires)

	return &Message{
		To:      to,
		ToName:  name,
		Subject: subject,
		Text:    text,
		HTML:    page("Password Reset Request", body),
	}
}
