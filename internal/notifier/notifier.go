package notifier

import (
	"context"
	"errors"

	"github.com/chitechevents/eventsync/internal/reconcile"
)

// Notifier defines the interface for sending a digest of rows
type Notifier interface {
	// Notify sends a digest for the given rows
	Notify(ctx context.Context, rows []reconcile.Row) error
}

// Multi sends the digest through every notifier and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, rows []reconcile.Row) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, rows); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
