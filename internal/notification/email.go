package notification

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"regexp"
	"text/template"
	"time"
)

// templateVarRegex matches ${var} syntax in alert message templates, the
// same delimiter rule evaluation already converts to Go template syntax.
var templateVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// convertTemplateDelimiters rewrites ${var} to {{.var}}.
func convertTemplateDelimiters(s string) string {
	return templateVarRegex.ReplaceAllString(s, "{{.$1}}")
}

// emailSubjectTemplates prefixes the subject with a severity tag. Tenants
// supply the message body itself; it is sent unchanged.
var emailSubjectTemplates = map[string]string{
	"critical": "[CRITICAL] ${subject}",
	"high":     "[HIGH] ${subject}",
	"medium":   "[Medium] ${subject}",
	"low":      "[Low] ${subject}",
	"info":     "[Info] ${subject}",
}

// Attachment is an optional file to include on an email notification.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// EmailSender sends alert notifications via SMTP with STARTTLS.
type EmailSender struct {
	host        string
	port        int
	username    string
	password    string
	from        string
	attachments func(Notification) []Attachment
}

// NewEmailSender creates an EmailSender. attachments may be nil if no
// notification ever carries an attachment.
func NewEmailSender(host string, port int, username, password, from string, attachments func(Notification) []Attachment) *EmailSender {
	return &EmailSender{host: host, port: port, username: username, password: password, from: from, attachments: attachments}
}

// Send delivers n as a MIME email, optionally multipart if attachments are
// present, via SMTP with STARTTLS negotiated before AUTH.
func (e *EmailSender) Send(ctx context.Context, n Notification) error {
	subject, err := e.renderSubject(n)
	if err != nil {
		return fmt.Errorf("render email subject: %w", err)
	}

	var attachments []Attachment
	if e.attachments != nil {
		attachments = e.attachments(n)
	}

	msg, err := e.buildMessage(n.Target, subject, n.Body, attachments)
	if err != nil {
		return fmt.Errorf("build email message: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	auth := smtp.PlainAuth("", e.username, e.password, e.host)
	return e.sendWithTLS(ctx, addr, auth, []string{n.Target}, msg)
}

func (e *EmailSender) renderSubject(n Notification) (string, error) {
	tmplStr, ok := emailSubjectTemplates[string(n.Severity)]
	if !ok {
		tmplStr = "${subject}"
	}
	tmpl, err := template.New("subject").Parse(convertTemplateDelimiters(tmplStr))
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]string{"subject": n.Subject}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (e *EmailSender) buildMessage(to, subject, body string, attachments []Attachment) ([]byte, error) {
	var buf bytes.Buffer
	if len(attachments) == 0 {
		fmt.Fprintf(&buf, "From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", e.from, to, subject, body)
		return buf.Bytes(), nil
	}

	fmt.Fprintf(&buf, "From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\n", e.from, to, subject)
	w := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", w.Boundary())

	bodyPart, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=utf-8"}})
	if err != nil {
		return nil, err
	}
	if _, err := bodyPart.Write([]byte(body)); err != nil {
		return nil, err
	}

	for _, a := range attachments {
		header := textproto.MIMEHeader{
			"Content-Type":              {a.ContentType},
			"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", a.Filename)},
			"Content-Transfer-Encoding": {"base64"},
		}
		part, err := w.CreatePart(header)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(a.Data); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *EmailSender) sendWithTLS(ctx context.Context, addr string, auth smtp.Auth, to []string, msg []byte) error {
	d := net.Dialer{Timeout: 10 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	client, err := smtp.NewClient(conn, e.host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer client.Quit()

	tlsConfig := &tls.Config{ServerName: e.host, MinVersion: tls.VersionTLS12}
	if err := client.StartTLS(tlsConfig); err != nil {
		return err
	}
	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(e.from); err != nil {
		return err
	}
	for _, recipient := range to {
		if err := client.Rcpt(recipient); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}
