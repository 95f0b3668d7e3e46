package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mailersend/mailersend-go"

	"github.com/forgo/gather/api/internal/model"
)

// Mailer sends transactional email
type Mailer interface {
	SendEventReminder(ctx context.Context, toEmail, toName string, event *model.Event) error
}

// MailerSendMailer sends mail through the MailerSend API
type MailerSendMailer struct {
	client    *mailersend.Mailersend
	fromName  string
	fromEmail string
}

// NewMailerSendMailer creates a new MailerSend-backed mailer
func NewMailerSendMailer(apiKey, fromName, fromEmail string) *MailerSendMailer {
	return &MailerSendMailer{
		client:    mailersend.NewMailersend(apiKey),
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

// SendEventReminder emails one attendee that their event is coming up
func (m *MailerSendMailer) SendEventReminder(ctx context.Context, toEmail, toName string, event *model.Event) error {
	message := m.client.Email.NewMessage()
	message.SetFrom(mailersend.From{Name: m.fromName, Email: m.fromEmail})
	message.SetRecipients([]mailersend.Recipient{{Name: toName, Email: toEmail}})
	message.SetSubject(fmt.Sprintf("Reminder: %s is coming up", event.Title))
	message.SetText(fmt.Sprintf(
		"Hi %s,\n\nThis is a reminder that %s starts at %s.\n\nSee you there!\n",
		toName, event.Title, event.Date.Local().Format(time.RFC1123),
	))

	if _, err := m.client.Email.Send(ctx, message); err != nil {
		return fmt.Errorf("failed to send reminder: %w", err)
	}
	return nil
}
