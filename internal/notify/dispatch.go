package notify

import (
	"context"
	"time"

	"fleetwatch/internal/model"
	logx "fleetwatch/pkg/logx"
)

// Dispatcher fans events out to channels in registration order.
type Dispatcher struct {
	log      logx.Logger
	channels []Channel
}

// NewDispatcher registers channels in send order.
func NewDispatcher(log logx.Logger, channels ...Channel) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{log: log, channels: channels}
}

// Channels returns the registered channels.
func (d *Dispatcher) Channels() []Channel {
	return append([]Channel(nil), d.channels...)
}

// Dispatch sends ev to every channel that accepts its kind, at most once per
// channel. Send errors are logged and recorded, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, ev model.Event) []Delivery {
	out := make([]Delivery, 0, len(d.channels))
	for _, ch := range d.channels {
		if !ch.Accepts(ev.Kind) {
			continue
		}
		del := Delivery{Channel: ch.Name(), Kind: ev.Kind, Subject: ev.Subject()}
		if !ch.Enabled() {
			del.Status = StatusDisabled
			out = append(out, del)
			continue
		}
		start := time.Now()
		if err := ch.Send(ctx, ev); err != nil {
			del.Status, del.Err = StatusFailed, err
			d.log.Warn("notification failed",
				logx.String("channel", del.Channel),
				logx.String("kind", string(ev.Kind)),
				logx.String("subject", del.Subject),
				logx.Err(err),
			)
		} else {
			del.Status = StatusSent
			d.log.Info("notification sent",
				logx.String("channel", del.Channel),
				logx.String("kind", string(ev.Kind)),
				logx.String("subject", del.Subject),
				logx.Duration("took", time.Since(start)),
			)
		}
		out = append(out, del)
	}
	return out
}

// DispatchAll dispatches events in order.
func (d *Dispatcher) DispatchAll(ctx context.Context, events []model.Event) []Delivery {
	var out []Delivery
	for _, ev := range events {
		out = append(out, d.Dispatch(ctx, ev)...)
	}
	return out
}
