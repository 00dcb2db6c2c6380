// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 accountd Contributors

package identity

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"

	"github.com/samber/oops"
)

// VerificationMailer delivers verification links. Implementations are the
// outbound email gateway; delivery failure after registration is reported
// but never rolls the account back.
type VerificationMailer interface {
	// SendVerification sends a verification email carrying link to the
	// given address.
	SendVerification(ctx context.Context, to, link string) error
}

// SMTPConfig holds configuration for the SMTP mailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// SMTPMailer sends verification emails over SMTP with a multipart
// text+HTML body.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer creates an SMTPMailer.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.Port == 0 || cfg.From == "" {
		return nil, oops.Errorf("smtp host, port, and from address are required")
	}
	return &SMTPMailer{cfg: cfg}, nil
}

var verificationTmpl = template.Must(template.New("verification").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #1e293b;">
  <p>Hello there,</p>
  <p>You have registered an account. Please click the button to verify it:</p>
  <p>
    <a href="{{.Link}}" style="background-color:#1a73e8;color:white;padding:10px 15px;text-decoration:none;border-radius:5px;display:inline-block;">Verify Account</a>
  </p>
  <p>Or open this link directly:</p>
  <p><a href="{{.Link}}">{{.Link}}</a></p>
  <p>If you did not register, you can safely ignore this email.</p>
</body>
</html>`))

// SendVerification sends the verification email.
func (m *SMTPMailer) SendVerification(_ context.Context, to, link string) error {
	var htmlBody bytes.Buffer
	if err := verificationTmpl.Execute(&htmlBody, map[string]any{"Link": link}); err != nil {
		return oops.Code("MAIL_TEMPLATE_FAILED").Wrap(err)
	}

	textBody := fmt.Sprintf("Verify your account by opening this link:\r\n\r\n%s\r\n\r\nIf you did not register, ignore this email.\r\n", link)
	msg := m.buildMIMEMessage(to, "Email Verification", textBody, htmlBody.String())

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, msg); err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("operation", "smtp send").
			Wrap(err)
	}
	return nil
}

func (m *SMTPMailer) buildMIMEMessage(to, subject, textBody, htmlBody string) []byte {
	var buf bytes.Buffer
	const boundary = "==VerifyBoundary=="

	from := m.cfg.From
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.From)
	}

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	buf.WriteString(textBody)
	buf.WriteString("\r\n")

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	buf.WriteString(htmlBody)
	buf.WriteString("\r\n")

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes()
}

// LogMailer logs verification links instead of sending them. Used in
// development and tests.
type LogMailer struct {
	Logger *slog.Logger
}

// SendVerification logs the link.
func (m *LogMailer) SendVerification(_ context.Context, to, link string) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("verification email", "to", to, "link", link)
	return nil
}

// Compile-time interface checks.
var (
	_ VerificationMailer = (*SMTPMailer)(nil)
	_ VerificationMailer = (*LogMailer)(nil)
)
