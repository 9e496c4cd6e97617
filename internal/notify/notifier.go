package notify

import (
	"context"
	"errors"
)

// Audience selects which channels receive a message.
type Audience string

const (
	AudienceAdmin  Audience = "admin"
	AudienceVendor Audience = "vendor"
)

// Message is a rendered notification.
type Message struct {
	Kind       string            `json:"kind"`
	Audience   Audience          `json:"audience"`
	Subject    string            `json:"subject"`
	Body       string            `json:"body"`
	Recipients []string          `json:"recipients,omitempty"`
	Meta       map[string]string `json:"meta,omitempty"`
}

// Notifier delivers messages.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Channel is one delivery mechanism.
type Channel interface {
	Name() string
	Accepts(audience Audience) bool
	Send(ctx context.Context, msg Message) error
}

// ErrNoRecipients is returned by channels that need an address.
var ErrNoRecipients = errors.New("notify: no recipients")
