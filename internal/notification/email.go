package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"time"

	"github.com/aquasense/waterquality-server/internal/protocol"
	"github.com/aquasense/waterquality-server/pkg/config"
)

// EmailNotifier sends email notifications
type EmailNotifier struct {
	config *config.SMTPConfig
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(cfg *config.SMTPConfig) *EmailNotifier {
	return &EmailNotifier{config: cfg}
}

// SendAlertNotification sends an email for an alert notification
func (e *EmailNotifier) SendAlertNotification(notification *protocol.AlertNotification) error {
	var subject string
	var body string
	var err error

	device := notification.DeviceName
	if device == "" {
		device = notification.DeviceID
	}

	switch notification.Type {
	case protocol.AlertTypeCreated:
		subject = fmt.Sprintf("🚨 Water Quality Alert [%s] - %s (%s)",
			notification.Severity, device, notification.Parameter)
		body, err = e.renderCreatedTemplate(notification)
	case protocol.AlertTypeEscalated:
		subject = fmt.Sprintf("⚠️ Water Quality Alert ESCALATED to %s - %s (%s)",
			notification.Severity, device, notification.Parameter)
		body, err = e.renderEscalatedTemplate(notification)
	default:
		return fmt.Errorf("unknown notification type: %s", notification.Type)
	}

	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return e.sendEmail(subject, body)
}

func (e *EmailNotifier) renderCreatedTemplate(notification *protocol.AlertNotification) (string, error) {
	tmpl := `
Water Quality Alert
===================

Device: {{.DeviceName}} ({{.DeviceID}})
Parameter: {{.Parameter}}
Severity: {{.Severity}}
Current Value: {{printf "%.2f" .Value}}
Threshold: {{printf "%.2f" .Threshold}}
Detected At: {{.Timestamp}}
Alert ID: {{.AlertID}}

Description:
{{.Message}}

Please take appropriate action.

---
Water Quality Monitoring System
`

	t, err := template.New("created").Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, notification); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (e *EmailNotifier) renderEscalatedTemplate(notification *protocol.AlertNotification) (string, error) {
	tmpl := `
Water Quality Alert Escalated
=============================

Device: {{.DeviceName}} ({{.DeviceID}})
Parameter: {{.Parameter}}
New Severity: {{.Severity}}
Current Value: {{printf "%.2f" .Value}}
Threshold: {{printf "%.2f" .Threshold}}
Occurrences: {{.OccurrenceCount}}
Alert ID: {{.AlertID}}

Description:
{{.Message}}

The condition has worsened since the alert was first raised.

---
Water Quality Monitoring System
`

	t, err := template.New("escalated").Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, notification); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (e *EmailNotifier) sendEmail(subject, body string) error {
	// Skip sending if SMTP is not configured
	if e.config.Username == "" || e.config.Password == "" {
		fmt.Printf("SMTP not configured, skipping email:\nSubject: %s\n%s\n", subject, body)
		return nil
	}

	// Construct message
	message := fmt.Sprintf("From: %s\r\n", e.config.From)
	message += fmt.Sprintf("To: %s\r\n", e.config.To)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	message += "\r\n"
	message += body

	// Setup authentication
	auth := smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)

	// Send email
	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	err := smtp.SendMail(addr, auth, e.config.From, []string{e.config.To}, []byte(message))
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	fmt.Printf("Email sent successfully: %s\n", subject)
	return nil
}

// TestConnection tests the SMTP connection
func (e *EmailNotifier) TestConnection() error {
	if e.config.Username == "" {
		return fmt.Errorf("SMTP not configured")
	}

	// Try to connect
	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	fmt.Println("SMTP connection test successful")
	return nil
}
