package dispatch

import (
	"context"

	"github.com/mfarias/salon-events/internal/record"
)

// Outcome is the store's verdict for one delivered record.
type Outcome string

const (
	Created Outcome = "created"
	Updated Outcome = "updated"
	Skipped Outcome = "skipped"
)

// Dispatcher applies create/update/skip semantics for one classified record.
type Dispatcher interface {
	Upsert(ctx context.Context, rec *record.Record, res record.ClassificationResult) (Outcome, error)
}
