package notify

import (
	"context"
	"errors"

	"fleetwatch/internal/model"
)

// ErrChannelDisabled is returned by Send on a channel that lacks credentials.
var ErrChannelDisabled = errors.New("notification channel disabled")

// Channel is one outbound notification target.
type Channel interface {
	Name() string
	// Enabled reports whether the channel has everything it needs to send.
	// It is fixed at construction.
	Enabled() bool
	// Accepts reports whether the channel announces events of this kind.
	Accepts(kind model.EventKind) bool
	Send(ctx context.Context, ev model.Event) error
}

// Status is the outcome of one channel for one event.
type Status string

const (
	StatusSent     Status = "sent"
	StatusFailed   Status = "failed"
	StatusDisabled Status = "disabled"
)

// Delivery records what happened to one event on one channel.
type Delivery struct {
	Channel string
	Kind    model.EventKind
	Subject string
	Status  Status
	Err     error
}
