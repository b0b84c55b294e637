// Package pipeline sequences one full scan pass: authenticate, filter,
// discover dates, enumerate codes, extract, classify and dispatch.
//
// The pass is strictly sequential: the automation surface is an exclusively
// owned resource, so there is no parallelism across event references. The
// known-records index is frozen at the start of the pass and updated only
// after dispatching finishes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mfarias/salon-events/internal/calendar"
	"github.com/mfarias/salon-events/internal/config"
	"github.com/mfarias/salon-events/internal/dispatch"
	"github.com/mfarias/salon-events/internal/extract"
	"github.com/mfarias/salon-events/internal/logger"
	"github.com/mfarias/salon-events/internal/record"
	"github.com/mfarias/salon-events/internal/session"
)

// Skip reports one unit of work the pass abandoned and why. Skips are never
// aggregated away: the operator sees exactly which filters, dates and codes
// were not processed.
type Skip struct {
	Unit   string `json:"unit"` // "filter", "date" or "event"
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Report summarizes a completed pass. Runs always report totals and reasons,
// never a bare success boolean.
type Report struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	DatesScanned int `json:"dates_scanned"`
	// Discovered counts event references found across all dates.
	Discovered int `json:"discovered"`
	// Extracted counts references that produced a record.
	Extracted int `json:"extracted"`

	Skips      []Skip                                 `json:"skips"`
	Classified map[record.Classification]int          `json:"classified"`
	Outcomes   map[dispatch.Outcome]int               `json:"outcomes"`
	Results    map[string]record.ClassificationResult `json:"-"`

	Records []*record.Record `json:"records,omitempty"`
}

// IndexStore abstracts the known-index snapshot persistence.
type IndexStore interface {
	LoadIndex() (*record.KnownIndex, error)
	SaveIndex(*record.KnownIndex) error
}

// Pipeline wires the components of one scan pass together.
type Pipeline struct {
	Sessions   *session.Manager
	Navigator  *calendar.Navigator
	Extractor  *extract.Extractor
	Dispatcher dispatch.Dispatcher
	Store      IndexStore
	Criteria   config.FilterCriteria
}

// Run executes one pass and returns its report. Only authentication failures
// abort the run; content-discovery failures degrade to per-unit skips.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		StartedAt:  time.Now().UTC(),
		Classified: make(map[record.Classification]int),
		Outcomes:   make(map[dispatch.Outcome]int),
		Results:    make(map[string]record.ClassificationResult),
	}
	defer func() { report.FinishedAt = time.Now().UTC() }()

	index, err := p.Store.LoadIndex()
	if err != nil {
		return report, fmt.Errorf("loading known index: %w", err)
	}

	sess, err := p.Sessions.Login(ctx)
	if err != nil {
		return report, err
	}

	missing, err := p.Navigator.ApplyFilters(ctx, p.Criteria)
	if err != nil {
		return report, fmt.Errorf("applying filters: %w", err)
	}
	for _, m := range missing {
		report.Skips = append(report.Skips, Skip{Unit: "filter", Key: m.Filter, Reason: m.Error()})
	}

	sess, err = p.Sessions.EnsureValid(ctx, sess)
	if err != nil {
		return report, err
	}

	cells, err := p.Navigator.ScanActiveDates(ctx)
	if err != nil {
		if errors.Is(err, calendar.ErrNoActiveDates) {
			// Valid empty result; the report says zero dates.
			logger.Info("scan found no active dates", nil)
			return p.finish(report, index)
		}
		return report, fmt.Errorf("scanning active dates: %w", err)
	}
	report.DatesScanned = len(cells)

	// Classification runs against the index as loaded at pass start;
	// updates are buffered and applied after the pass. Only delivered
	// records enter the index: a record the store never accepted must
	// re-classify and re-dispatch on the next pass, and an identity
	// conflict keeps its stored entry until the review is resolved.
	var extracted []*record.Record
	var delivered []*record.Record

	for _, cell := range cells {
		sess, err = p.Sessions.EnsureValid(ctx, sess)
		if err != nil {
			return report, err
		}

		refs, err := p.Navigator.EnumerateEventCodes(ctx, cell)
		if err != nil {
			if errors.Is(err, calendar.ErrNoEventCodes) {
				report.Skips = append(report.Skips, Skip{Unit: "date", Key: cell.Label, Reason: err.Error()})
				logger.Warn("date skipped", logger.Fields{"date": cell.Label, "reason": err.Error()})
				continue
			}
			return report, fmt.Errorf("enumerating date %q: %w", cell.Label, err)
		}
		report.Discovered += len(refs)

		for _, ref := range refs {
			rec, newSess, err := p.extractOne(ctx, sess, ref)
			sess = newSess
			if err != nil {
				var unreachable *extract.DetailPageUnreachable
				if errors.As(err, &unreachable) {
					report.Skips = append(report.Skips, Skip{Unit: "event", Key: ref.EventCode, Reason: err.Error()})
					logger.Warn("event skipped", logger.Fields{"event_code": ref.EventCode, "reason": err.Error()})
					continue
				}
				return report, err
			}
			report.Extracted++
			extracted = append(extracted, rec)

			res := record.Classify(rec, index)
			report.Classified[res.Classification]++
			report.Results[rec.EventCode] = res

			outcome, err := p.Dispatcher.Upsert(ctx, rec, res)
			if err != nil {
				report.Skips = append(report.Skips, Skip{Unit: "event", Key: rec.EventCode, Reason: fmt.Sprintf("dispatch failed: %v", err)})
				logger.Error("dispatch failed", logger.Fields{"event_code": rec.EventCode}, err)
				continue
			}
			report.Outcomes[outcome]++
			if res.Classification != record.ModifiedIdentity {
				delivered = append(delivered, rec)
			}
		}
	}

	report.Records = extracted
	for _, rec := range delivered {
		index.Put(rec)
	}
	return p.finish(report, index)
}

func (p *Pipeline) finish(report *Report, index *record.KnownIndex) (*Report, error) {
	if err := p.Store.SaveIndex(index); err != nil {
		return report, fmt.Errorf("saving known index: %w", err)
	}
	logger.Info("pass complete", logger.Fields{
		"dates":      report.DatesScanned,
		"discovered": report.Discovered,
		"extracted":  report.Extracted,
		"skipped":    len(report.Skips),
	})
	return report, nil
}

func (p *Pipeline) extractOne(ctx context.Context, sess session.Session, ref calendar.EventReference) (*record.Record, session.Session, error) {
	start := time.Now()
	rec, sess, err := p.Extractor.Extract(ctx, sess, ref)
	logger.RecordTiming("extract.detail_page", time.Since(start))
	if err != nil {
		logger.IncrCounter("extract.skipped")
		return nil, sess, err
	}
	logger.IncrCounter("extract.ok")
	return rec, sess, nil
}
