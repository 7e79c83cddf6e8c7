package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	mail "github.com/go-mail/mail/v2"

	"soutenance/pkg/domain"
)

// MailConfig holds SMTP settings. Port defaults to 587 with mandatory STARTTLS.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Sender is the part of *mail.Dialer the publisher needs.
type Sender interface {
	DialAndSend(m ...*mail.Message) error
}

// MailPublisher emails the recipient of each notification.
type MailPublisher struct {
	sender Sender
	from   string
}

// NewMailPublisher builds a publisher backed by an SMTP dialer.
func NewMailPublisher(cfg MailConfig) (*MailPublisher, error) {
	host := strings.TrimSpace(cfg.Host)
	from := strings.TrimSpace(cfg.From)
	if host == "" || from == "" {
		return nil, errors.New("smtp host and from address required")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	d := mail.NewDialer(host, port, cfg.Username, cfg.Password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	d.Timeout = 10 * time.Second
	return newMailPublisher(d, from), nil
}

func newMailPublisher(sender Sender, from string) *MailPublisher {
	return &MailPublisher{sender: sender, from: from}
}

// Publish sends a plain-text email. Recipients without an address are skipped.
// The SMTP exchange cannot be interrupted, so when ctx ends first Publish
// returns ctx.Err() and the send finishes in the background.
func (p *MailPublisher) Publish(ctx context.Context, n domain.Notification, recipient domain.User) error {
	to := strings.TrimSpace(recipient.Email)
	if to == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := p.message(n, recipient)
	done := make(chan error, 1)
	go func() { done <- p.sender.DialAndSend(msg) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send notification %s: %w", n.ID, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send notification %s: %w", n.ID, ctx.Err())
	}
}

func (p *MailPublisher) message(n domain.Notification, recipient domain.User) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", p.from)
	m.SetAddressHeader("To", recipient.Email, recipient.FullName())
	m.SetHeader("Subject", n.Title)
	greeting := "Hello"
	if name := recipient.FullName(); name != "" {
		greeting += " " + name
	}
	m.SetBody("text/plain", greeting+",\n\n"+n.Message+"\n")
	return m
}
