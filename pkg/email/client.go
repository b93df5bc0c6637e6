package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"time"
)

// Sender is implemented by Client and by test fakes.
type Sender interface {
	SendEmail(opts EmailOptions) error
}

// Client sends mail through an SMTP relay.
type Client struct {
	host     string
	port     string
	username string
	password string
	from     string
	secure   bool
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewClient creates a new email client.
func NewClient(host, port, username, password, from string, secure bool) *Client {
	return &Client{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		secure:   secure,
		send:     smtp.SendMail,
	}
}

// EmailOptions represents the options for sending an email.
type EmailOptions struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// SendEmail sends a multipart email wrapped in the standard layout.
func (c *Client) SendEmail(opts EmailOptions) error {
	if strings.TrimSpace(opts.To) == "" {
		return fmt.Errorf("email recipient is required")
	}

	message := c.buildMessage(opts.To, opts.Subject, wrapHTML(opts.HTML), opts.Text)

	var auth smtp.Auth
	if c.username != "" {
		auth = smtp.PlainAuth("", c.username, c.password, c.host)
	}
	addr := fmt.Sprintf("%s:%s", c.host, c.port)

	if err := c.send(addr, auth, c.from, []string{opts.To}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

var layout = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="margin:0;padding:32px;font-family:Arial,sans-serif;background:#f6f7f9;">
  <div style="max-width:600px;margin:auto;background:#fff;border-radius:8px;padding:32px;">
    <div style="font-size:16px;color:#333;">{{.Content}}</div>
    <div style="margin-top:32px;text-align:center;color:#999;font-size:12px;">&copy; {{.Year}}</div>
  </div>
</body>
</html>`))

func wrapHTML(content string) string {
	var buf bytes.Buffer
	data := map[string]interface{}{
		"Content": template.HTML(content),
		"Year":    time.Now().Year(),
	}
	if err := layout.Execute(&buf, data); err != nil {
		return content
	}
	return buf.String()
}

func (c *Client) buildMessage(to, subject, html, text string) string {
	from := c.from
	if from == "" {
		from = "noreply@example.com"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: multipart/alternative; boundary=\"lms-boundary\"\r\n\r\n")

	if text != "" {
		b.WriteString("--lms-boundary\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
		b.WriteString(text + "\r\n")
	}

	b.WriteString("--lms-boundary\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(html + "\r\n")
	b.WriteString("--lms-boundary--\r\n")

	return b.String()
}

// LessonsUnlocked tells a learner that new drip lessons are available.
func LessonsUnlocked(to, learnerName, courseTitle string, unlocked, total int, courseURL string) EmailOptions {
	html := fmt.Sprintf(`
		<p>Hello %s,</p>
		<p>New lessons are available in <strong>%s</strong>. You now have access to %d of %d lessons.</p>
		<p style="text-align:center;margin:24px 0;">
			<a href="%s" style="background:#2a7ae2;color:#fff;padding:12px 24px;text-decoration:none;border-radius:4px;">Continue learning</a>
		</p>`,
		template.HTMLEscapeString(learnerName), template.HTMLEscapeString(courseTitle), unlocked, total, courseURL)

	return EmailOptions{
		To:      to,
		Subject: fmt.Sprintf("New lessons unlocked in %s", courseTitle),
		HTML:    html,
		Text:    fmt.Sprintf("Hello %s, %d of %d lessons in %s are now available: %s", learnerName, unlocked, total, courseTitle, courseURL),
	}
}

// CourseCompleted congratulates a learner on finishing a course.
func CourseCompleted(to, learnerName, courseTitle string) EmailOptions {
	html := fmt.Sprintf(`
		<p>Hello %s,</p>
		<p>Congratulations on completing <strong>%s</strong>! The final exam is now unlocked.</p>`,
		template.HTMLEscapeString(learnerName), template.HTMLEscapeString(courseTitle))

	return EmailOptions{
		To:      to,
		Subject: fmt.Sprintf("You completed %s", courseTitle),
		HTML:    html,
		Text:    fmt.Sprintf("Hello %s, you completed %s. The final exam is now unlocked.", learnerName, courseTitle),
	}
}
