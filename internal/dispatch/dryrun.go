package dispatch

import (
	"context"
	"fmt"
	"io"

	"github.com/mfarias/salon-events/internal/record"
)

// DryRunDispatcher prints what would be delivered without touching any
// store.
type DryRunDispatcher struct {
	out io.Writer
}

// NewDryRunDispatcher creates a dry-run dispatcher writing to out.
func NewDryRunDispatcher(out io.Writer) *DryRunDispatcher {
	return &DryRunDispatcher{out: out}
}

// Upsert prints the intended action and reports the outcome the real store
// would produce for each classification.
func (d *DryRunDispatcher) Upsert(_ context.Context, rec *record.Record, res record.ClassificationResult) (Outcome, error) {
	switch res.Classification {
	case record.New:
		fmt.Fprintf(d.out, "would create event %s (%s, %s)\n", rec.EventCode, rec.ClientName, rec.EventDate)
		return Created, nil
	case record.ModifiedData:
		fmt.Fprintf(d.out, "would update event %s (data changed)\n", rec.EventCode)
		return Updated, nil
	case record.ModifiedIdentity:
		fmt.Fprintf(d.out, "would flag event %s for review (identity changed)\n", rec.EventCode)
		return Skipped, nil
	default:
		return Skipped, nil
	}
}
