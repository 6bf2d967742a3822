package email

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignmentMessageEscapesInput(t *testing.T) {
	msg := AssignmentMessage(&Assignment{
		VolunteerName:  "Vic",
		VolunteerEmail: "vic@example.com",
		Title:          "<script>alert(1)</script>",
		Description:    "Broken lamp",
		Address:        "1 High St",
		Priority:       "urgent",
		ReportedAt:     time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
		DashboardURL:   "http://localhost:3001/volunteer/login",
	})

	assert.Equal(t, "vic@example.com", msg.To)
	assert.Equal(t, "New Complaint Assigned to You", msg.Subject)
	assert.NotContains(t, msg.HTML, "<script>")
	assert.Contains(t, msg.HTML, "&lt;script&gt;")
	assert.Contains(t, msg.Text, "March 14, 2025")
	assert.Contains(t, msg.Text, "Priority: urgent")
}

func TestApprovalMessage(t *testing.T) {
	msg := ApprovalMessage(&Approval{VolunteerName: "Val", VolunteerEmail: "val@example.com", LoginURL: "http://x/login"})
	assert.Equal(t, "Your Volunteer Application has been Approved", msg.Subject)
	assert.Contains(t, msg.HTML, "http://x/login")
	assert.Equal(t, "Val", msg.ToName)
}

func TestPasswordResetMessage(t *testing.T) {
	testCases := []struct {
		prefix  string
		ttl     time.Duration
		subject string
		expires string
	}{
		{"", time.Hour, "Password Reset Request", "1 hour"},
		{"Admin", 10 * time.Minute, "Admin Password Reset Request", "10 minutes"},
		{"Volunteer", 2 * time.Hour, "Volunteer Password Reset Request", "2 hours"},
	}
	for _, tc := range testCases {
		msg := PasswordResetMessage(tc.prefix, "Ann", "ann@example.com", "http://x/reset/abc", tc.ttl)
		assert.Equal(t, tc.subject, msg.Subject)
		assert.True(t, strings.Contains(msg.Text, tc.expires), "expires %q missing in %q", tc.expires, msg.Text)
		assert.Contains(t, msg.HTML, "http://x/reset/abc")
	}
}

func TestSendWithoutKeySkips(t *testing.T) {
	m := NewMailer("", "CleanStreet", "noreply@example.com")
	assert.False(t, m.Configured())
	err := m.Send(context.Background(), &Message{To: "a@example.com", Subject: "hi"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestBuild(t *testing.T) {
	m := NewMailer("key", "CleanStreet", "noreply@example.com")
	sg := m.build(&Message{To: "a@example.com", Subject: "hi", Text: "plain", HTML: "<p>x</p>"})
	require.Len(t, sg.Personalizations, 1)
	require.Len(t, sg.Personalizations[0].To, 1)
	assert.Equal(t, "a@example.com", sg.Personalizations[0].To[0].Address)
	assert.Equal(t, "a@example.com", sg.Personalizations[0].To[0].Name)
	assert.Equal(t, "noreply@example.com", sg.From.Address)
	require.Len(t, sg.Content, 2)
	assert.Equal(t, "text/plain", sg.Content[0].Type)
}
