// Package notify delivers digest emails over SMTP.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/gomail.v2"
)

// Attachment is a file sent with a message.
type Attachment struct {
	Filename string
	Data     []byte
	MIMEType string
}

// Message is one outbound email.
type Message struct {
	To          string
	Subject     string
	HTMLBody    string
	TextBody    string
	Attachments []Attachment
}

// SMTPNotifier sends messages through an SMTP relay.
type SMTPNotifier struct {
	dialer *gomail.Dialer
	from   string
	logger *slog.Logger
}

// NewSMTPNotifier creates a notifier. An empty host yields a notifier whose Send always fails.
func NewSMTPNotifier(host string, port int, user, password, from string, logger *slog.Logger) *SMTPNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	var dialer *gomail.Dialer
	if host != "" {
		dialer = gomail.NewDialer(host, port, user, password)
	}
	if from == "" {
		from = user
	}
	return &SMTPNotifier{
		dialer: dialer,
		from:   from,
		logger: logger.With("component", "notify"),
	}
}

// Send delivers msg. gomail takes no context, so the exchange runs in its own
// goroutine and Send returns ctx.Err() once ctx is done, leaving that goroutine to
// finish when the relay answers or drops the connection.
func (n *SMTPNotifier) Send(ctx context.Context, msg Message) error {
	if n.dialer == nil {
		return errors.New("smtp host not configured")
	}
	if msg.To == "" {
		return errors.New("message has no recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := buildMessage(n.from, msg)
	done := make(chan error, 1)
	go func() {
		done <- n.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
		}
	case <-ctx.Done():
		n.logger.Warn("email send abandoned", "to", msg.To, "error", ctx.Err())
		return fmt.Errorf("failed to send email to %s: %w", msg.To, ctx.Err())
	}

	n.logger.Info("email sent", "to", msg.To, "subject", msg.Subject, "attachments", len(msg.Attachments))
	return nil
}

func buildMessage(from string, msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.TextBody)
	if msg.HTMLBody != "" {
		m.AddAlternative("text/html", msg.HTMLBody)
	}

	for _, a := range msg.Attachments {
		data := a.Data
		m.Attach(a.Filename,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
			gomail.SetHeader(map[string][]string{"Content-Type": {a.MIMEType}}),
		)
	}
	return m
}
