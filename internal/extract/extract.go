package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/mfarias/salon-events/internal/browser"
	"github.com/mfarias/salon-events/internal/calendar"
	"github.com/mfarias/salon-events/internal/config"
	"github.com/mfarias/salon-events/internal/logger"
	"github.com/mfarias/salon-events/internal/record"
	"github.com/mfarias/salon-events/internal/session"
)

// labelKeywords maps each record field to the label fragments that precede
// its value on the detail page. Matching is case- and accent-insensitive.
var labelKeywords = map[string][]string{
	"event_type":   {"tipo de evento"},
	"venue":        {"salon"},
	"client_name":  {"cliente"},
	"honoree_name": {"agasajado", "homenajeado"},
	"event_date":   {"fecha del evento", "fecha"},
	"pack_type":    {"pack"},
}

// dataBearingTags are the tags a field value may live in. Guards against
// picking up decorative nodes adjacent to a label.
var dataBearingTags = map[string]bool{
	"td": true,
	"th": true,
}

// clientRevealKeywords identify the clickable element that expands the
// contact panel when the extracted client name itself is not clickable.
var clientRevealKeywords = []string{"cliente", "contacto"}

// DetailPageUnreachable reports a detail page that never loaded or never
// landed on the expected detail-view URL. Recoverable: the pipeline skips
// the reference and continues.
type DetailPageUnreachable struct {
	Ref   calendar.EventReference
	Cause error
}

func (e *DetailPageUnreachable) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("detail page for event %s unreachable: %v", e.Ref.EventCode, e.Cause)
	}
	return fmt.Sprintf("detail page for event %s unreachable: navigation timed out", e.Ref.EventCode)
}

func (e *DetailPageUnreachable) Unwrap() error { return e.Cause }

// textNode is one visible text-bearing node, tagged with its rendered tag.
type textNode struct {
	tag  string
	text string
}

// Extractor produces Records from detail pages.
type Extractor struct {
	surface    browser.Surface
	sessions   *session.Manager
	sel        config.Selectors
	navTimeout time.Duration
	panelDelay time.Duration
}

// NewExtractor creates an Extractor.
func NewExtractor(surface browser.Surface, sessions *session.Manager, sel config.Selectors, navTimeout, panelDelay time.Duration) *Extractor {
	return &Extractor{
		surface:    surface,
		sessions:   sessions,
		sel:        sel,
		navTimeout: navTimeout,
		panelDelay: panelDelay,
	}
}

// Extract opens ref's detail view and produces a Record. The session is
// revalidated before and after navigation because expiry can occur
// mid-operation. Returns *DetailPageUnreachable when the detail view never
// loads.
func (e *Extractor) Extract(ctx context.Context, sess session.Session, ref calendar.EventReference) (*record.Record, session.Session, error) {
	sess, err := e.sessions.EnsureValid(ctx, sess)
	if err != nil {
		return nil, sess, err
	}

	if err := e.openDetail(ctx, ref); err != nil {
		return nil, sess, err
	}

	sess, err = e.sessions.EnsureValid(ctx, sess)
	if err != nil {
		return nil, sess, err
	}

	sourceURL, err := e.surface.CurrentURL(ctx)
	if err != nil {
		return nil, sess, err
	}
	// Re-login navigates away from the detail view; reopen it before
	// reading anything, or the record would carry another page's fields.
	if !strings.Contains(sourceURL, e.sel.DetailURLPattern) {
		if err := e.openDetail(ctx, ref); err != nil {
			return nil, sess, err
		}
		sourceURL, err = e.surface.CurrentURL(ctx)
		if err != nil {
			return nil, sess, err
		}
	}
	markup, err := e.surface.PageMarkup(ctx)
	if err != nil {
		return nil, sess, err
	}

	rec := &record.Record{EventCode: ref.EventCode, SourceURL: sourceURL}
	fields, err := fieldsFromMarkup(markup)
	if err != nil {
		return nil, sess, err
	}
	rec.EventType = fields["event_type"]
	rec.Venue = fields["venue"]
	rec.ClientName = fields["client_name"]
	rec.HonoreeName = fields["honoree_name"]
	rec.EventDate = NormalizeDate(fields["event_date"])
	rec.PackType = fields["pack_type"]

	primary, secondary, err := e.minePhones(ctx, rec.ClientName)
	if err != nil {
		// Phones are optional like every other field; a failed reveal
		// interaction must not abort the record.
		logger.Warn("phone extraction failed", logger.Fields{
			"event_code": ref.EventCode,
		})
	} else {
		rec.PhonePrimary = primary
		rec.PhoneSecondary = secondary
	}

	return rec, sess, nil
}

// openDetail navigates to the reference's detail view and blocks until the
// URL matches the detail pattern. Timeout or navigation failure reports the
// page unreachable.
func (e *Extractor) openDetail(ctx context.Context, ref calendar.EventReference) error {
	if err := e.surface.Navigate(ctx, ref.DetailURL); err != nil {
		return &DetailPageUnreachable{Ref: ref, Cause: err}
	}

	ok, err := e.surface.WaitUntil(ctx, func(ctx context.Context) (bool, error) {
		url, err := e.surface.CurrentURL(ctx)
		if err != nil {
			return false, err
		}
		return strings.Contains(url, e.sel.DetailURLPattern), nil
	}, e.navTimeout)
	if err != nil {
		return &DetailPageUnreachable{Ref: ref, Cause: err}
	}
	if !ok {
		return &DetailPageUnreachable{Ref: ref}
	}
	return nil
}

// fieldsFromMarkup runs the label-adjacency heuristic over the serialized
// page: first label match wins per field, and the value node must be
// data-bearing.
func fieldsFromMarkup(markup string) (map[string]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parsing detail page: %w", err)
	}
	nodes := collectTextNodes(doc)

	fields := make(map[string]string, len(labelKeywords))
	for field, keywords := range labelKeywords {
		fields[field] = findAdjacent(nodes, keywords)
	}
	return fields, nil
}

// collectTextNodes gathers every element's own text, in document order,
// tagged with the element name.
func collectTextNodes(doc *goquery.Document) []textNode {
	var nodes []textNode
	doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(ownText(s))
		if text == "" {
			return
		}
		nodes = append(nodes, textNode{tag: goquery.NodeName(s), text: text})
	})
	return nodes
}

// ownText returns only the text directly inside s, excluding descendants, so
// container elements do not swallow their children's labels.
func ownText(s *goquery.Selection) string {
	var b strings.Builder
	for _, n := range s.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
	}
	return b.String()
}

// findAdjacent scans the ordered node list for the first node containing any
// keyword and returns the next node's text, provided that next node is a
// data-bearing tag.
func findAdjacent(nodes []textNode, keywords []string) string {
	for i, n := range nodes {
		if !containsKeyword(n.text, keywords) {
			continue
		}
		if i+1 >= len(nodes) {
			continue
		}
		next := nodes[i+1]
		if !dataBearingTags[next.tag] {
			continue
		}
		return next.text
	}
	return ""
}

func containsKeyword(text string, keywords []string) bool {
	folded := foldText(text)
	for _, kw := range keywords {
		if strings.Contains(folded, foldText(kw)) {
			return true
		}
	}
	return false
}

var accentFolder = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n", "ü", "u",
	"Á", "a", "É", "e", "Í", "i", "Ó", "o", "Ú", "u", "Ñ", "n", "Ü", "u",
)

// foldText lowercases and strips Spanish accents so "Salón" matches "salon".
func foldText(s string) string {
	return strings.ToLower(accentFolder.Replace(s))
}
