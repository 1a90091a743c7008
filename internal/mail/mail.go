package mail

import (
	"encoding/base64"
	"fmt"
	"html"
	"mime"
	"net/smtp"
	"strings"

	"github.com/REVENTOR-EU/easy-calendar-appointment-booking/internal/domain"
)

// Sender delivers one message with an optional attachment.
type Sender interface {
	Send(to, subject, htmlBody, attachmentName string, attachment []byte) error
}

// SMTPSender delivers mail through a plain SMTP endpoint.
type SMTPSender struct {
	addr string
	from string
}

func NewSMTPSender(addr, from string) *SMTPSender {
	return &SMTPSender{addr: addr, from: from}
}

func (s *SMTPSender) Send(to, subject, htmlBody, attachmentName string, attachment []byte) error {
	msg := buildMessage(s.from, to, subject, htmlBody, attachmentName, attachment)
	if err := smtp.SendMail(s.addr, nil, s.from, []string{to}, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

const boundary = "eab-attachment-boundary"

func buildMessage(from, to, subject, htmlBody, attachmentName string, attachment []byte) []byte {
	var b strings.Builder
	write := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteString("\r\n")
	}

	write("From: %s", from)
	write("To: %s", to)
	write("Subject: %s", mime.QEncoding.Encode("utf-8", subject))
	write("MIME-Version: 1.0")

	if len(attachment) == 0 {
		write("Content-Type: text/html; charset=utf-8")
		write("")
		write("%s", htmlBody)
		return []byte(b.String())
	}

	write("Content-Type: multipart/mixed; boundary=%q", boundary)
	write("")
	write("--%s", boundary)
	write("Content-Type: text/html; charset=utf-8")
	write("")
	write("%s", htmlBody)
	write("--%s", boundary)
	write("Content-Type: text/calendar; charset=utf-8; method=PUBLISH")
	write("Content-Transfer-Encoding: base64")
	write("Content-Disposition: attachment; filename=%q", attachmentName)
	write("")
	write("%s", base64.StdEncoding.EncodeToString(attachment))
	write("--%s--", boundary)

	return []byte(b.String())
}

// ConfirmationMailer renders and sends booking confirmations with the
// appointment's ICS file attached, so the client can add the event to
// their own calendar.
type ConfirmationMailer struct {
	sender   Sender
	siteName string
}

func NewConfirmationMailer(sender Sender, siteName string) *ConfirmationMailer {
	return &ConfirmationMailer{sender: sender, siteName: siteName}
}

func (m *ConfirmationMailer) SendConfirmation(appt *domain.Appointment, icsBody string) error {
	subject := fmt.Sprintf("%s - Appointment Confirmation", m.siteName)

	var b strings.Builder
	b.WriteString("<h2>" + html.EscapeString(m.siteName) + "</h2>")
	b.WriteString("<p>Hello " + html.EscapeString(appt.Name) + ", your appointment is confirmed.</p>")
	b.WriteString("<ul>")
	b.WriteString("<li><strong>Service:</strong> " + html.EscapeString(appt.Type) + "</li>")
	b.WriteString("<li><strong>Date:</strong> " + html.EscapeString(appt.Date) + "</li>")
	b.WriteString("<li><strong>Time:</strong> " + html.EscapeString(appt.Time) + "</li>")
	b.WriteString(fmt.Sprintf("<li><strong>Duration:</strong> %d minutes</li>", appt.Duration))
	b.WriteString("</ul>")
	if appt.Notes != "" {
		b.WriteString("<p><strong>Notes:</strong> " + html.EscapeString(appt.Notes) + "</p>")
	}
	if appt.MeetingURL != "" {
		u := html.EscapeString(appt.MeetingURL)
		b.WriteString(`<p><strong>Meeting link:</strong> <a href="` + u + `">` + u + `</a></p>`)
	}
	b.WriteString("<p>The attached calendar file adds this appointment to your calendar.</p>")

	return m.sender.Send(appt.Email, subject, b.String(), "appointment.ics", []byte(icsBody))
}
