package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"sort"
	"strings"
)

// smtpServer is the host:port of the SMTP server used to send emails.
var smtpServer string

// auth holds the PLAIN credentials of the sender account.
var auth smtp.Auth

// fromEmail is the "From" address of every email.
var fromEmail string

// sendMail is smtp.SendMail, swapped out in tests.
var sendMail = smtp.SendMail

// ErrNotConfigured is returned by SendEmail before InitEmailService has run.
var ErrNotConfigured = errors.New("email service is not configured")

// InitEmailService configures the SMTP server and sender account.
//
// It accepts three arguments:
// - server: host:port of the SMTP server, e.g. smtp.gmail.com:587.
// - sender: the email address of the sender, also used as the SMTP username.
// - password: the password of the sender's account.
//
// It does not dial the server; use Ping to check connectivity.
func InitEmailService(server, sender, password string) error {
	host, _, err := net.SplitHostPort(server)
	if err != nil {
		return fmt.Errorf("invalid SMTP server %q: %w", server, err)
	}
	smtpServer = server
	fromEmail = sender
	auth = smtp.PlainAuth("", sender, password, host)
	return nil
}

// Ping dials the configured SMTP server and closes the connection.
func Ping() error {
	if smtpServer == "" {
		return ErrNotConfigured
	}
	c, err := smtp.Dial(smtpServer)
	if err != nil {
		return fmt.Errorf("cannot connect to the SMTP server: %w", err)
	}
	return c.Close()
}

// SendEmail sends an HTML email to a single recipient.
func SendEmail(to, subject, htmlBody string) error {
	if smtpServer == "" {
		return ErrNotConfigured
	}

	headers := map[string]string{
		"From":         fromEmail,
		"To":           to,
		"Subject":      subject,
		"MIME-version": "1.0",
		"Content-Type": "text/html; charset=\"UTF-8\"",
	}
	names := make([]string, 0, len(headers))
	for k := range headers {
		names = append(names, k)
	}
	sort.Strings(names)

	var message strings.Builder
	for _, k := range names {
		fmt.Fprintf(&message, "%s: %s\r\n", k, headers[k])
	}
	message.WriteString("\r\n" + htmlBody)

	if err := sendMail(smtpServer, auth, fromEmail, []string{to}, []byte(message.String())); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

var layout = template.Must(template.New("layout").Parse(`<html>
	<head>
		<style>
			body { font-family: 'Lato', sans-serif; margin: 0; padding: 0; }
			.container { max-width: 600px; margin: 0 auto; padding: 10px; border-radius: 4px; }
			p { line-height: 1.6; }
			code { padding: 2px 4px; border-radius: 3px; font-family: monospace; }
		</style>
	</head>
	<body>
		<div class="container">{{block "content" .}}{{end}}</div>
	</body>
</html>`))

var confirmTmpl = template.Must(template.Must(layout.Clone()).Parse(`{{define "content"}}
			<h1>Welcome to Gainz Factory!</h1>
			<p>Your confirmation code is <strong>{{.Code}}</strong>.</p>
			<p>Enter it in the app, or run the <code>confirm</code> command in the shell. It expires in 24 hours.</p>
{{end}}`))

var achievementTmpl = template.Must(template.Must(layout.Clone()).Parse(`{{define "content"}}
			<h1>Achievement unlocked: {{.Name}}</h1>
			<p>{{.Description}}</p>
			{{if .XP}}<p>You earned <strong>{{.XP}} XP</strong>.</p>{{end}}
{{end}}`))

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ConfirmationBody renders the email carrying a confirmation code.
func ConfirmationBody(code string) (string, error) {
	return render(confirmTmpl, struct{ Code string }{code})
}

// AchievementBody renders the email announcing an unlocked achievement.
func AchievementBody(name, description string, xp int) (string, error) {
	return render(achievementTmpl, struct {
		Name, Description string
		XP                int
	}{name, description, xp})
}
