package notifier

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chitechevents/eventsync/internal/reconcile"
)

// DryRunNotifier prints what would be sent without actually sending it
type DryRunNotifier struct {
	out      io.Writer
	heading  string
	location *time.Location
}

// NewDryRunNotifier creates a new dry-run notifier writing to out, or
// stdout when out is nil.
func NewDryRunNotifier(out io.Writer, heading string, loc *time.Location) *DryRunNotifier {
	if out == nil {
		out = os.Stdout
	}
	return &DryRunNotifier{out: out, heading: heading, location: loc}
}

// Notify prints the digest that would be sent
func (n *DryRunNotifier) Notify(_ context.Context, rows []reconcile.Row) error {
	digest := FormatDigest(rows, n.heading, n.location)
	if _, err := fmt.Fprintf(n.out, "--- Digest: %s ---\n", FormatDigestSummary(rows)); err != nil {
		return err
	}
	_, err := fmt.Fprintf(n.out, "%s\n(Length: %d characters)\n", digest, len(digest))
	return err
}
