package notify

import (
	"context"
	"crypto/tls"
	"errors"

	"gopkg.in/gomail.v2"
)

// Sender sends composed mail. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPConfig configures the e-mail channel.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailChannel delivers vendor-facing notifications over SMTP.
type EmailChannel struct {
	from   string
	sender Sender
}

// NewEmailChannel builds an SMTP channel from cfg.
func NewEmailChannel(cfg SMTPConfig) (*EmailChannel, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, errors.New("email channel: host and from are required")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	dialer := gomail.NewDialer(cfg.Host, port, cfg.Username, cfg.Password)
	dialer.TLSConfig = &tls.Config{ServerName: cfg.Host}
	return NewEmailChannelWithSender(cfg.From, dialer)
}

// NewEmailChannelWithSender builds a channel on an existing sender.
func NewEmailChannelWithSender(from string, sender Sender) (*EmailChannel, error) {
	if from == "" {
		return nil, errors.New("email channel: empty from")
	}
	if sender == nil {
		return nil, errors.New("email channel: nil sender")
	}
	return &EmailChannel{from: from, sender: sender}, nil
}

// Name implements Channel.
func (e *EmailChannel) Name() string { return "email" }

// Accepts implements Channel.
func (e *EmailChannel) Accepts(audience Audience) bool { return audience == AudienceVendor }

// Send mails msg to its recipients.
func (e *EmailChannel) Send(ctx context.Context, msg Message) error {
	if len(msg.Recipients) == 0 {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", msg.Recipients...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	return e.sender.DialAndSend(m)
}
