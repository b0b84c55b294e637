// Package calendar navigates the filtered booking calendar: it applies the
// venue/region/year filters, scans for event-bearing date cells, and
// enumerates the event codes each date carries.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/mfarias/salon-events/internal/browser"
	"github.com/mfarias/salon-events/internal/config"
	"github.com/mfarias/salon-events/internal/logger"
)

// eventCodePattern is the event-code grammar: exactly five consecutive
// digits, bounded so longer digit runs do not match.
var eventCodePattern = regexp.MustCompile(`\b(\d{5})\b`)

// Terminal-but-not-erroneous discovery outcomes.
var (
	// ErrNoActiveDates means the scan found zero event-bearing cells.
	// A valid empty result, not a failure.
	ErrNoActiveDates = errors.New("no active dates found")
	// ErrNoEventCodes means a highlighted date expanded to a popover with
	// no resolvable codes. The date is skipped.
	ErrNoEventCodes = errors.New("no event codes found")
)

// FilterNotFoundError reports that one filter criterion's visible option
// text could not be located. Non-fatal: remaining filters still apply, since
// some deployments omit certain filters.
type FilterNotFoundError struct {
	Filter string
	Value  string
}

func (e *FilterNotFoundError) Error() string {
	return fmt.Sprintf("filter %q: option %q not found", e.Filter, e.Value)
}

// DateCell is a calendar day cell flagged as event-bearing. Transient: it is
// not retained after event-code enumeration.
type DateCell struct {
	Label     string
	RawMarker string
	Ref       browser.ElementRef
}

// EventReference is the unit of work handed to the extractor: one event code
// discovered on one date.
type EventReference struct {
	DateLabel string `json:"date_label"`
	EventCode string `json:"event_code"`
	DetailURL string `json:"detail_url"`
}

// Navigator drives calendar discovery against the automation surface.
type Navigator struct {
	surface browser.Surface
	sel     config.Selectors
	timeout time.Duration
}

// NewNavigator creates a Navigator using the configured selector strategies.
// timeout bounds the popover-render wait.
func NewNavigator(surface browser.Surface, sel config.Selectors, timeout time.Duration) *Navigator {
	return &Navigator{surface: surface, sel: sel, timeout: timeout}
}

// ApplyFilters selects each non-empty criterion by visible option label,
// never by positional index, because option ordering differs between
// deployments. Criteria whose option text cannot be found are returned as
// FilterNotFoundError values and the rest are still applied.
func (n *Navigator) ApplyFilters(ctx context.Context, criteria config.FilterCriteria) ([]*FilterNotFoundError, error) {
	var missing []*FilterNotFoundError

	for _, f := range []struct{ name, value string }{
		{"venue", criteria.Venue},
		{"region", criteria.Region},
		{"year", criteria.Year},
	} {
		if f.value == "" {
			continue
		}
		found, err := n.selectOption(ctx, f.value)
		if err != nil {
			return missing, err
		}
		if !found {
			logger.Warn("filter option not found, skipping criterion", logger.Fields{
				"filter": f.name,
				"value":  f.value,
			})
			missing = append(missing, &FilterNotFoundError{Filter: f.name, Value: f.value})
		}
	}

	if err := n.submitFilters(ctx); err != nil {
		return missing, err
	}
	return missing, nil
}

// selectOption clicks the first <option> whose visible text equals value.
func (n *Navigator) selectOption(ctx context.Context, value string) (bool, error) {
	opts, err := n.surface.FindAll(ctx, "select option")
	if err != nil {
		return false, err
	}
	want := strings.TrimSpace(value)
	for _, opt := range opts {
		text, err := n.surface.Text(ctx, opt)
		if err != nil {
			return false, err
		}
		if strings.EqualFold(strings.TrimSpace(text), want) {
			if err := n.surface.Click(ctx, opt); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// submitFilters clicks the filter form's submit control if one exists. Some
// deployments auto-submit on option change; absence is not an error.
func (n *Navigator) submitFilters(ctx context.Context) error {
	for _, sel := range []string{`form button[type="submit"]`, `input[type="submit"]`, `button.buscar`} {
		refs, err := n.surface.FindAll(ctx, sel)
		if err != nil {
			return err
		}
		if len(refs) > 0 {
			return n.surface.Click(ctx, refs[0])
		}
	}
	return nil
}

// ScanActiveDates locates event-bearing date cells. The primary selectors
// (precise highlight markers) are tried first, in order; only when every
// primary selector yields zero cells is the secondary heuristic applied,
// exactly once. The two tiers never contribute to the same result set. Cells
// are returned in document order, which for well-formed pages is
// chronological order.
func (n *Navigator) ScanActiveDates(ctx context.Context) ([]DateCell, error) {
	cells, err := n.scanTier(ctx, n.sel.ActiveDatePrimary, false)
	if err != nil {
		return nil, err
	}
	if len(cells) == 0 {
		logger.Info("primary active-date selectors empty, using fallback heuristic", nil)
		cells, err = n.scanTier(ctx, n.sel.ActiveDateFallback, true)
		if err != nil {
			return nil, err
		}
	}
	if len(cells) == 0 {
		return nil, ErrNoActiveDates
	}
	return cells, nil
}

// scanTier collects cells from the first selector in the list that yields
// any. With heuristic set, candidates are additionally required to carry a
// numeric label and a style attribute encoding a non-default background.
func (n *Navigator) scanTier(ctx context.Context, selectors []string, heuristic bool) ([]DateCell, error) {
	for _, sel := range selectors {
		refs, err := n.surface.FindAll(ctx, sel)
		if err != nil {
			return nil, err
		}
		var cells []DateCell
		for _, ref := range refs {
			text, err := n.surface.Text(ctx, ref)
			if err != nil {
				return nil, err
			}
			label := strings.TrimSpace(text)
			style, _, err := n.surface.Attribute(ctx, ref, "style")
			if err != nil {
				return nil, err
			}
			if heuristic && !activeByHeuristic(label, style) {
				continue
			}
			marker := style
			if marker == "" {
				marker = sel
			}
			cells = append(cells, DateCell{Label: label, RawMarker: marker, Ref: ref})
		}
		if len(cells) > 0 {
			return cells, nil
		}
	}
	return nil, nil
}

// activeByHeuristic recognizes an event-bearing cell when the precise marker
// is absent: a numeric day label plus an inline style that sets some
// non-default background.
func activeByHeuristic(label, style string) bool {
	if label == "" {
		return false
	}
	for _, r := range label {
		if r < '0' || r > '9' {
			return false
		}
	}
	s := strings.ToLower(style)
	if !strings.Contains(s, "background") {
		return false
	}
	for _, def := range []string{"transparent", "#fff", "#ffffff", "white", "none"} {
		if strings.Contains(s, def) {
			return false
		}
	}
	return true
}

// EnumerateEventCodes expands the cell's popover and scans the revealed
// subtree for event codes, deduplicating by code value: the popover markup
// may repeat the same code across duplicate nodes. Returns ErrNoEventCodes
// when a highlighted date resolves to zero codes.
func (n *Navigator) EnumerateEventCodes(ctx context.Context, cell DateCell) ([]EventReference, error) {
	if err := n.surface.Click(ctx, cell.Ref); err != nil {
		return nil, fmt.Errorf("expanding date %q: %w", cell.Label, err)
	}

	// Wait for any configured popover container to appear.
	_, err := n.surface.WaitUntil(ctx, func(ctx context.Context) (bool, error) {
		for _, sel := range n.sel.Popover {
			refs, err := n.surface.FindAll(ctx, sel)
			if err != nil {
				return false, err
			}
			if len(refs) > 0 {
				return true, nil
			}
		}
		return false, nil
	}, n.timeout)
	if err != nil {
		return nil, err
	}

	markup, err := n.surface.PageMarkup(ctx)
	if err != nil {
		return nil, err
	}
	base, err := n.surface.CurrentURL(ctx)
	if err != nil {
		return nil, err
	}

	refs, err := referencesFromPopover(markup, n.sel, cell.Label, base)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("date %q: %w", cell.Label, ErrNoEventCodes)
	}
	return refs, nil
}

// referencesFromPopover parses the page markup, isolates the popover subtree
// and mines it for event codes and their detail links.
func referencesFromPopover(markup string, selectors config.Selectors, dateLabel, baseURL string) ([]EventReference, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parsing page markup: %w", err)
	}

	var popover *goquery.Selection
	for _, sel := range selectors.Popover {
		s := doc.Find(sel)
		if s.Length() > 0 {
			popover = s
			break
		}
	}
	if popover == nil {
		return nil, nil
	}

	// Anchor hrefs inside the popover, keyed by the code they mention.
	hrefByCode := make(map[string]string)
	popover.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		for _, m := range eventCodePattern.FindAllString(a.Text()+" "+href, -1) {
			if _, ok := hrefByCode[m]; !ok {
				hrefByCode[m] = href
			}
		}
	})

	subtree, err := popover.Html()
	if err != nil {
		return nil, fmt.Errorf("serializing popover: %w", err)
	}

	seen := make(map[string]bool)
	var refs []EventReference
	for _, m := range eventCodePattern.FindAllString(subtree, -1) {
		if seen[m] {
			continue
		}
		seen[m] = true
		refs = append(refs, EventReference{
			DateLabel: dateLabel,
			EventCode: m,
			DetailURL: resolveDetailURL(baseURL, hrefByCode[m], selectors.DetailURLPattern, m),
		})
	}
	return refs, nil
}

// resolveDetailURL resolves the popover's anchor href against the current
// page, falling back to the conventional detail path when the popover
// carried no link for the code.
func resolveDetailURL(baseURL, href, detailPath, code string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		base = &url.URL{}
	}
	if href != "" {
		if u, err := url.Parse(href); err == nil {
			return base.ResolveReference(u).String()
		}
	}
	fallback := &url.URL{Path: detailPath, RawQuery: "codigo=" + code}
	return base.ResolveReference(fallback).String()
}
