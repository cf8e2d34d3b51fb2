package notification

import (
	"bytes"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"text/template"
	"time"

	"github.com/rs/zerolog"

	"github.com/smukkama/weather-alarms/internal/protocol"
	"github.com/smukkama/weather-alarms/pkg/config"
)

var (
	alertTemplate = template.Must(template.New("alert").Parse(`
Weather Alert
=============

Location: {{.City}} ({{printf "%.4f" .Lat}}, {{printf "%.4f" .Lon}})
Alarm ID: {{.AlarmID}}
{{- if .Condition}}
Condition: {{.Condition}}
{{- end}}
Raised At: {{.OccurredAt.Format "2006-01-02 15:04:05 MST"}}

Your weather alert is ringing. Open the app to dismiss or snooze it.

---
Weather Alarm Service
`))

	notificationTemplate = template.Must(template.New("notification").Parse(`
Weather for {{.City}}
====================

{{if .Degraded -}}
{{.Description}}. Current conditions could not be retrieved.
{{- else -}}
Now: {{printf "%.1f" .Temperature}}° (feels like {{printf "%.1f" .FeelsLike}}°), {{.Description}}
Humidity: {{printf "%.0f" .Humidity}}%
Wind: {{printf "%.1f" .WindSpeed}}
Today: high {{printf "%.1f" .TempHigh}}° / low {{printf "%.1f" .TempLow}}°
{{- end}}

Alarm ID: {{.AlarmID}}

---
Weather Alarm Service
`))

	authorizationTemplate = template.Must(template.New("authorization").Parse(`
Action Required
===============

Weather alarms cannot be scheduled until exact scheduling is authorized.
Grant authorization, then save your alarms again.

---
Weather Alarm Service
`))
)

// EmailNotifier delivers alarm events by email
type EmailNotifier struct {
	config *config.SMTPConfig
	logger zerolog.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(cfg *config.SMTPConfig, logger zerolog.Logger) *EmailNotifier {
	return &EmailNotifier{
		config: cfg,
		logger: logger.With().Str("component", "email").Logger(),
		send:   smtp.SendMail,
	}
}

// SendAlarmEvent sends an email for an alarm event
func (e *EmailNotifier) SendAlarmEvent(event *protocol.AlarmEvent) error {
	subject, body, err := e.render(event)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return e.sendEmail(subject, body)
}

func (e *EmailNotifier) render(event *protocol.AlarmEvent) (string, string, error) {
	var (
		subject string
		tmpl    *template.Template
	)

	switch event.Type {
	case protocol.EventAlertRaised:
		subject = fmt.Sprintf("Weather Alert - %s", event.City)
		tmpl = alertTemplate
	case protocol.EventNotificationPosted:
		subject = fmt.Sprintf("Weather Update - %s", event.City)
		tmpl = notificationTemplate
	case protocol.EventAuthorizationRequired:
		subject = "Weather Alarms - authorization required"
		tmpl = authorizationTemplate
	default:
		return "", "", fmt.Errorf("unknown event type: %s", event.Type)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, event); err != nil {
		return "", "", err
	}

	return subject, buf.String(), nil
}

func (e *EmailNotifier) sendEmail(subject, body string) error {
	if e.config.Username == "" || e.config.Password == "" {
		e.logger.Info().Str("subject", subject).Str("body", body).Msg("SMTP not configured, skipping email")
		return nil
	}

	message := fmt.Sprintf("From: %s\r\n", e.config.From)
	message += fmt.Sprintf("To: %s\r\n", e.config.To)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	message += "\r\n"
	message += body

	auth := smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)

	addr := net.JoinHostPort(e.config.Host, strconv.Itoa(e.config.Port))
	if err := e.send(addr, auth, e.config.From, []string{e.config.To}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	e.logger.Info().Str("subject", subject).Msg("email sent")
	return nil
}

// TestConnection tests the SMTP connection
func (e *EmailNotifier) TestConnection() error {
	if e.config.Username == "" {
		return fmt.Errorf("SMTP not configured")
	}

	addr := net.JoinHostPort(e.config.Host, strconv.Itoa(e.config.Port))
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	return nil
}
