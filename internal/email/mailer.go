package email

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"

	"github.com/jordan-wright/email"
)

// Mailer dispatches transactional mail. The auth flows treat dispatch
// as best effort for registration and as a hard failure for password
// reset, so errors are always reported to the caller.
type Mailer interface {
	SendVerificationEmail(to, name, verificationURL string) error
	SendPasswordResetEmail(to, name, resetURL string) error
}

// SMTPMailer sends mail through an SMTP relay with PLAIN auth.
type SMTPMailer struct {
	host      string
	port      string
	username  string
	password  string
	fromEmail string
	fromName  string
}

func NewSMTPMailer(host, port, username, password, fromEmail, fromName string) *SMTPMailer {
	return &SMTPMailer{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (m *SMTPMailer) SendVerificationEmail(to, name, verificationURL string) error {
	return m.send(to, "Verify Your Email Address", verificationTemplate, linkData{
		Name:  name,
		URL:   verificationURL,
		Title: "Verify Your Email Address",
	}, fmt.Sprintf("Hi %s,\n\nPlease verify your email address by clicking this link: %s\n\nIf you didn't create an account, you can safely ignore this email.", name, verificationURL))
}

func (m *SMTPMailer) SendPasswordResetEmail(to, name, resetURL string) error {
	return m.send(to, "Reset Your Password", resetTemplate, linkData{
		Name:  name,
		URL:   resetURL,
		Title: "Reset Your Password",
	}, fmt.Sprintf("Hi %s,\n\nReset your password by clicking this link: %s\n\nThis link will expire in 1 hour. If you didn't request a password reset, you can safely ignore this email.", name, resetURL))
}

func (m *SMTPMailer) send(to, subject string, tmpl *template.Template, data linkData, text string) error {
	var htmlBuf bytes.Buffer
	if err := tmpl.Execute(&htmlBuf, data); err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	e := email.NewEmail()
	e.From = fmt.Sprintf("%s <%s>", m.fromName, m.fromEmail)
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(text)
	e.HTML = htmlBuf.Bytes()

	auth := smtp.PlainAuth("", m.username, m.password, m.host)
	return e.Send(m.host+":"+m.port, auth)
}

// LogMailer logs messages instead of sending them. Used in
// development so flows can be exercised without an SMTP relay.
type LogMailer struct{}

func (LogMailer) SendVerificationEmail(to, name, verificationURL string) error {
	slog.Info("verification email (not sent in development)",
		"to", to, "name", name, "url", verificationURL)
	return nil
}

func (LogMailer) SendPasswordResetEmail(to, name, resetURL string) error {
	slog.Info("password reset email (not sent in development)",
		"to", to, "name", name, "url", resetURL)
	return nil
}

type linkData struct {
	Name  string
	URL   string
	Title string
}

var verificationTemplate = template.Must(template.New("verification").Parse(`
<div style="max-width: 600px; margin: 0 auto; padding: 20px; font-family: Arial, sans-serif;">
  <h2 style="color: #333; text-align: center;">{{.Title}}</h2>
  <p>Hi {{.Name}},</p>
  <p>Thank you for signing up! Please click the button below to verify your email address:</p>
  <div style="text-align: center; margin: 30px 0;">
    <a href="{{.URL}}" style="background-color: #4f46e5; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">Verify Email Address</a>
  </div>
  <p>If the button doesn't work, you can also copy and paste this link into your browser:</p>
  <p style="word-break: break-all; color: #666;">{{.URL}}</p>
  <p style="margin-top: 30px; font-size: 14px; color: #666;">If you didn't create an account, you can safely ignore this email.</p>
</div>`))

var resetTemplate = template.Must(template.New("reset").Parse(`
<div style="max-width: 600px; margin: 0 auto; padding: 20px; font-family: Arial, sans-serif;">
  <h2 style="color: #333; text-align: center;">{{.Title}}</h2>
  <p>Hi {{.Name}},</p>
  <p>We received a request to reset your password. Click the button below to create a new password:</p>
  <div style="text-align: center; margin: 30px 0;">
    <a href="{{.URL}}" style="background-color: #dc2626; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">Reset Password</a>
  </div>
  <p>If the button doesn't work, you can also copy and paste this link into your browser:</p>
  <p style="word-break: break-all; color: #666;">{{.URL}}</p>
  <p style="margin-top: 30px; font-size: 14px; color: #666;">This link will expire in 1 hour. If you didn't request a password reset, you can safely ignore this email.</p>
</div>`))
