package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/apex/log"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// ErrNotConfigured is returned by Mailer.Send when no SendGrid key is set.
// Callers treat it as a skipped delivery, not a failure.
var ErrNotConfigured = errors.New("email delivery is not configured")

// Message is a single outbound email.
type Message struct {
	To      string `json:"to"`
	ToName  string `json:"to_name"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

type Mailer struct {
	apiKey    string
	fromName  string
	fromEmail string
}

func NewMailer(apiKey, fromName, fromEmail string) *Mailer {
	return &Mailer{
		apiKey:    apiKey,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (m *Mailer) Configured() bool {
	return m != nil && m.apiKey != ""
}

func (m *Mailer) build(msg *Message) *mail.SGMailV3 {
	toName := msg.ToName
	if toName == "" {
		toName = msg.To
	}

	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail(m.fromName, m.fromEmail))
	message.Subject = msg.Subject

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(toName, msg.To))
	message.AddPersonalizations(p)

	if msg.Text != "" {
		message.AddContent(mail.NewContent("text/plain", msg.Text))
	}
	if msg.HTML != "" {
		message.AddContent(mail.NewContent("text/html", msg.HTML))
	}
	return message
}

// Send delivers msg through SendGrid. A non-2xx response is an error.
func (m *Mailer) Send(ctx context.Context, msg *Message) error {
	if !m.Configured() {
		log.Infof("Email service not configured, skipping %q to %s", msg.Subject, msg.To)
		return ErrNotConfigured
	}
	if msg.To == "" {
		return errors.New("email recipient is empty")
	}

	client := sendgrid.NewSendClient(m.apiKey)
	response, err := client.SendWithContext(ctx, m.build(msg))
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid rejected email to %s: status %d: %s", msg.To, response.StatusCode, response.Body)
	}
	log.Infof("Email %q sent to %s, status %d", msg.Subject, msg.To, response.StatusCode)
	return nil
}
