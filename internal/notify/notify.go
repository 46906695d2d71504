// Package notify delivers short human readable notes about classified replies
// to a chat or mailbox.
package notify

import (
	"context"
	"errors"
	"fmt"
)

type Notifier interface {
	Notify(ctx context.Context, text string) error
	Name() string
}

// NotifyError reports a failed delivery. Nothing is retried.
type NotifyError struct {
	Channel string
	Err     error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("notify via %s: %v", e.Channel, e.Err)
}

func (e *NotifyError) Unwrap() error {
	return e.Err
}

// Multi fans a note out to every notifier. Delivery continues past failures.
type Multi []Notifier

func (m Multi) Name() string {
	return "multi"
}

func (m Multi) Notify(ctx context.Context, text string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Compose returns nil for no notifiers, the notifier itself for one and a
// Multi otherwise.
func Compose(notifiers ...Notifier) Notifier {
	var active Multi
	for _, n := range notifiers {
		if n != nil {
			active = append(active, n)
		}
	}

	switch len(active) {
	case 0:
		return nil
	case 1:
		return active[0]
	default:
		return active
	}
}
