package extract

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/mfarias/salon-events/internal/browser"
	"github.com/mfarias/salon-events/internal/calendar"
	"github.com/mfarias/salon-events/internal/config"
	"github.com/mfarias/salon-events/internal/session"
)

func loadFixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("../../testdata/fixtures/detail_page.html")
	if err != nil {
		t.Fatalf("failed to load test fixture: %v", err)
	}
	return string(data)
}

func TestFieldsFromMarkup(t *testing.T) {
	fields, err := fieldsFromMarkup(loadFixture(t))
	if err != nil {
		t.Fatalf("fieldsFromMarkup failed: %v", err)
	}

	want := map[string]string{
		"event_type":   "15 años",
		"event_date":   "12/09/2026",
		"venue":        "53 - DOT",
		"client_name":  "María López",
		"honoree_name": "Sofía López",
		"pack_type":    "Pack Premium",
	}
	for field, expected := range want {
		if fields[field] != expected {
			t.Errorf("field %s = %q, expected %q", field, fields[field], expected)
		}
	}
}

func TestFieldsFromMarkupValueMustBeDataBearing(t *testing.T) {
	// The node after the label is a span, not a table cell: the heuristic
	// must not pick up decorative label-adjacent nodes.
	markup := `<html><body>
		<div>Salón</div><span>decoración</span>
		<table><tr><td>Salon</td><td>53 - DOT</td></tr></table>
	</body></html>`

	fields, err := fieldsFromMarkup(markup)
	if err != nil {
		t.Fatalf("fieldsFromMarkup failed: %v", err)
	}
	if fields["venue"] != "53 - DOT" {
		t.Errorf("expected the table-cell value, got %q", fields["venue"])
	}
}

func TestFieldsFromMarkupFirstMatchWins(t *testing.T) {
	markup := `<html><body><table>
		<tr><td>Cliente</td><td>Primera Aparición</td></tr>
		<tr><td>Cliente</td><td>Segunda Aparición</td></tr>
	</table></body></html>`

	fields, err := fieldsFromMarkup(markup)
	if err != nil {
		t.Fatalf("fieldsFromMarkup failed: %v", err)
	}
	if fields["client_name"] != "Primera Aparición" {
		t.Errorf("expected first match to win, got %q", fields["client_name"])
	}
}

func TestFieldsFromMarkupMissingFieldsAreEmpty(t *testing.T) {
	markup := `<html><body><table>
		<tr><td>Salón</td><td>53 - DOT</td></tr>
	</table></body></html>`

	fields, err := fieldsFromMarkup(markup)
	if err != nil {
		t.Fatalf("fieldsFromMarkup failed: %v", err)
	}
	if fields["venue"] != "53 - DOT" {
		t.Errorf("venue = %q, expected %q", fields["venue"], "53 - DOT")
	}
	for _, field := range []string{"client_name", "pack_type", "event_type"} {
		if fields[field] != "" {
			t.Errorf("expected %s to be empty, got %q", field, fields[field])
		}
	}
}

func testConfig() config.Selectors {
	sel := config.DefaultConfig().Selectors
	sel.ExpirySignals = []string{"sesion expirada"}
	return sel
}

func newTestExtractor(fake *browser.Fake) *Extractor {
	sel := testConfig()
	creds := config.Credentials{OriginURL: "https://example.com/login", Username: "u", Password: "p"}
	sessions := session.NewManager(fake, creds, sel, time.Second)
	return NewExtractor(fake, sessions, sel, time.Second, time.Millisecond)
}

func TestExtractFullDetailPage(t *testing.T) {
	fake := browser.NewFake()
	detailURL := "https://example.com/evento?codigo=33069"

	fake.AddPage(detailURL, &browser.FakePage{
		Markup: loadFixture(t),
		Elements: map[string][]*browser.FakeElement{
			"a, button": {
				{
					TextContent: "María López",
					OnClick: func(f *browser.Fake) {
						f.SetMarkup(loadFixture(t) +
							`<div id="contacto">Tel: 54 11 5555 1234 / Alt: 54 11 4444 0000</div>`)
					},
				},
			},
		},
	})

	e := newTestExtractor(fake)
	ref := calendar.EventReference{DateLabel: "12", EventCode: "33069", DetailURL: detailURL}

	rec, _, err := e.Extract(context.Background(), session.Session{Authenticated: true}, ref)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if rec.EventCode != "33069" {
		t.Errorf("event code = %q", rec.EventCode)
	}
	if rec.Venue != "53 - DOT" {
		t.Errorf("venue = %q, expected %q", rec.Venue, "53 - DOT")
	}
	if rec.EventType != "15 años" {
		t.Errorf("event type = %q", rec.EventType)
	}
	if rec.ClientName != "María López" {
		t.Errorf("client name = %q", rec.ClientName)
	}
	if rec.EventDate != "12/09/2026" {
		t.Errorf("event date = %q", rec.EventDate)
	}
	if rec.PhonePrimary != "541155551234" {
		t.Errorf("phone primary = %q", rec.PhonePrimary)
	}
	if rec.PhoneSecondary != "541144440000" {
		t.Errorf("phone secondary = %q", rec.PhoneSecondary)
	}
	if rec.SourceURL != detailURL {
		t.Errorf("source url = %q", rec.SourceURL)
	}
}

func TestExtractDetailPageUnreachable(t *testing.T) {
	fake := browser.NewFake()
	// The detail URL redirects somewhere that never matches the detail
	// pattern.
	badURL := "https://example.com/inicio"
	fake.AddPage(badURL, &browser.FakePage{Markup: "<html><body></body></html>"})

	e := newTestExtractor(fake)
	ref := calendar.EventReference{EventCode: "33069", DetailURL: badURL}

	_, _, err := e.Extract(context.Background(), session.Session{Authenticated: true}, ref)
	var unreachable *DetailPageUnreachable
	if !errors.As(err, &unreachable) {
		t.Fatalf("expected DetailPageUnreachable, got %v", err)
	}
	if unreachable.Ref.EventCode != "33069" {
		t.Errorf("error should carry the reference, got %q", unreachable.Ref.EventCode)
	}
}

func TestExtractReopensDetailAfterMidExtractionRelogin(t *testing.T) {
	fake := browser.NewFake()
	loginURL := "https://example.com/login"
	panelURL := "https://example.com/panel"
	detailURL := "https://example.com/evento?codigo=33069"

	staleDetail := `<html><body><div class="aviso">sesion expirada</div>
		<table><tr><td>Salón</td><td>53 - DOT</td></tr></table></body></html>`
	freshDetail := `<html><body>
		<table><tr><td>Salón</td><td>53 - DOT</td></tr></table></body></html>`

	user := &browser.FakeElement{}
	pass := &browser.FakeElement{}
	submit := &browser.FakeElement{
		OnClick: func(f *browser.Fake) {
			// A fresh session serves the detail page without the
			// expiry banner.
			f.Pages[detailURL].Markup = freshDetail
			f.SetURL(panelURL)
		},
	}
	fake.AddPage(loginURL, &browser.FakePage{
		Markup: "<html><body>Acceso</body></html>",
		Elements: map[string][]*browser.FakeElement{
			`input[name="username"]`: {user},
			`input[name="password"]`: {pass},
			`button[type="submit"]`:  {submit},
		},
	})
	// The page the re-login lands on carries different field values; none
	// of them may leak into the record.
	fake.AddPage(panelURL, &browser.FakePage{
		Markup: `<html><body><table><tr><td>Salón</td><td>WRONG PAGE</td></tr></table></body></html>`,
	})
	fake.AddPage(detailURL, &browser.FakePage{Markup: staleDetail})

	e := newTestExtractor(fake)
	ref := calendar.EventReference{DateLabel: "12", EventCode: "33069", DetailURL: detailURL}

	rec, sess, err := e.Extract(context.Background(), session.Session{Authenticated: true}, ref)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !sess.Authenticated {
		t.Error("expected a fresh authenticated session")
	}
	if rec.SourceURL != detailURL {
		t.Errorf("source url = %q, expected the detail view, not the post-login page", rec.SourceURL)
	}
	if rec.Venue != "53 - DOT" {
		t.Errorf("venue = %q, expected the detail page value", rec.Venue)
	}
}

func TestExtractWithoutContactPanelLeavesPhonesEmpty(t *testing.T) {
	fake := browser.NewFake()
	detailURL := "https://example.com/evento?codigo=41002"
	fake.AddPage(detailURL, &browser.FakePage{
		Markup: `<html><body><table><tr><td>Salón</td><td>12 - Norte</td></tr></table></body></html>`,
	})

	e := newTestExtractor(fake)
	ref := calendar.EventReference{EventCode: "41002", DetailURL: detailURL}

	rec, _, err := e.Extract(context.Background(), session.Session{Authenticated: true}, ref)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if rec.Venue != "12 - Norte" {
		t.Errorf("venue = %q", rec.Venue)
	}
	if rec.PhonePrimary != "" || rec.PhoneSecondary != "" {
		t.Errorf("expected empty phones, got %q / %q", rec.PhonePrimary, rec.PhoneSecondary)
	}
}
