// Package notify delivers sentiment alerts to chats, a Kafka topic and the
// alert history.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/web3-frozen/token-insight/internal/monitor"
)

// Multi fans an alert out to every notifier. All are attempted; the
// failures are joined.
type Multi []monitor.Notifier

func (m Multi) Notify(ctx context.Context, a monitor.Alert) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AlertSaver persists alerts.
type AlertSaver interface {
	SaveAlert(ctx context.Context, a monitor.Alert) error
}

// History records every alert.
type History struct {
	Saver AlertSaver
}

func (h History) Notify(ctx context.Context, a monitor.Alert) error {
	if err := h.Saver.SaveAlert(ctx, a); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	return nil
}
