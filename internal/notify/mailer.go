package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Sender delivers a composed email. Implementations must not block on user
// interaction; failures are logged and never fail the triggering request.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender delivers mail through a plain SMTP relay.
type SMTPSender struct {
	Addr string
	From string
	Auth smtp.Auth
}

// Send submits one message to the relay.
func (s *SMTPSender) Send(_ context.Context, to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + s.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(s.Addr, s.Auth, s.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// NopSender discards messages; used when no relay is configured.
type NopSender struct{}

// Send implements Sender by doing nothing.
func (NopSender) Send(context.Context, string, string, string) error { return nil }

// Mailer composes localized notifications and hands them to a Sender.
type Mailer struct {
	translator *Translator
	sender     Sender
	logger     *slog.Logger
	locale     string
}

// NewMailer constructs a Mailer using the given default locale.
func NewMailer(translator *Translator, sender Sender, locale string, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	if sender == nil {
		sender = NopSender{}
	}
	return &Mailer{translator: translator, sender: sender, logger: logger, locale: locale}
}

// SendInvitation notifies an invited email about an event.
func (m *Mailer) SendInvitation(ctx context.Context, to, ownerName, eventTitle, eventURL string) {
	data := map[string]any{"OwnerName": ownerName, "EventTitle": eventTitle, "EventURL": eventURL}
	m.send(ctx, to,
		m.translator.T(m.locale, "InvitationSubject", data),
		m.translator.T(m.locale, "InvitationBody", data))
}

// SendUploadReceived notifies the owner that a participant uploaded a clip.
func (m *Mailer) SendUploadReceived(ctx context.Context, to, participantName, eventTitle string) {
	data := map[string]any{"ParticipantName": participantName, "EventTitle": eventTitle}
	m.send(ctx, to,
		m.translator.T(m.locale, "UploadReceivedSubject", data),
		m.translator.T(m.locale, "UploadReceivedBody", data))
}

// SendEventClosed notifies the owner that the participation window ended.
func (m *Mailer) SendEventClosed(ctx context.Context, to, eventTitle string) {
	data := map[string]any{"EventTitle": eventTitle}
	m.send(ctx, to,
		m.translator.T(m.locale, "EventClosedSubject", data),
		m.translator.T(m.locale, "EventClosedBody", data))
}

func (m *Mailer) send(ctx context.Context, to, subject, body string) {
	if strings.TrimSpace(to) == "" {
		return
	}
	if err := m.sender.Send(ctx, to, subject, body); err != nil {
		m.logger.Error("send notification", "to", to, "subject", subject, "error", err)
	}
}
