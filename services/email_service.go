package services

import (
	"bytes"
	"fmt"
	"html/template"

	"gopkg.in/gomail.v2"

	"github.com/teamtrack/teamtrack/config"
)

// EmailSender delivers rendered messages; split out so the digest job can be
// tested without an SMTP server.
type EmailSender interface {
	Send(to, subject, htmlBody string) error
}

type EmailService struct {
	cfg    *config.Config
	dialer *gomail.Dialer
}

func NewEmailService(cfg *config.Config) *EmailService {
	return &EmailService{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass),
	}
}

func (s *EmailService) Send(to, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.SMTPFrom)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

// RenderTemplate executes one of the embedded bodies below.
func RenderTemplate(name string, data interface{}) (string, error) {
	text, ok := emailTemplates[name]
	if !ok {
		return "", fmt.Errorf("unknown email template %q", name)
	}
	t, err := template.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %q: %w", name, err)
	}

	var body bytes.Buffer
	if err := t.Execute(&body, data); err != nil {
		return "", fmt.Errorf("failed to execute template %q: %w", name, err)
	}
	return body.String(), nil
}

var emailTemplates = map[string]string{
	"digest": `<html>
<body>
{{range .Sessions}}<h1>{{.TeamName}}</h1>
<h2>{{.TimeRange}}</h2>
<p>{{.Description}}</p>
<h3>{{len .Attending}} attending</h3>
<ul>
{{range .Attending}}<li>{{.DisplayName}} - {{.Email}} - {{.PhoneNumber}}</li>
{{end}}</ul>
{{end}}</body>
</html>`,
}
