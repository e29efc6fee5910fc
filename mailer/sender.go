// Package mailer sends the statistics report email through Resend or a
// plain SMTP relay.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	ProviderResend = "resend"
	ProviderSMTP   = "smtp"
	ProviderNone   = "none"
)

// DefaultFrom is the sender used when none is configured.
const DefaultFrom = "MFDS 대시보드 <onboarding@resend.dev>"

var (
	ErrMissingCredential = errors.New("mail provider credential is not configured")
	ErrUnknownProvider   = errors.New("unknown mail provider")
)

type Attachment struct {
	Filename string
	Content  []byte
}

type Message struct {
	From        string
	To          []string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Sender delivers one message and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

type Config struct {
	Provider     string
	ResendAPIKey string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
}

// NewSender builds the sender for cfg.Provider. ProviderNone returns a nil
// sender, meaning email dispatch is disabled.
func NewSender(cfg Config) (Sender, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderResend:
		return NewResendSender(cfg.ResendAPIKey)
	case ProviderSMTP:
		return NewSMTPSender(SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		})
	case ProviderNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
