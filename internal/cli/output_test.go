package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mfarias/salon-events/internal/dispatch"
	"github.com/mfarias/salon-events/internal/pipeline"
	"github.com/mfarias/salon-events/internal/record"
)

func sampleReport() *pipeline.Report {
	rec := &record.Record{
		EventCode:  "33069",
		EventType:  "15 años",
		EventDate:  "12/09/2026",
		Venue:      "53 - DOT",
		ClientName: "María López",
	}
	return &pipeline.Report{
		StartedAt:    time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
		FinishedAt:   time.Date(2026, 8, 29, 10, 0, 3, 0, time.UTC),
		DatesScanned: 2,
		Discovered:   2,
		Extracted:    1,
		Skips: []pipeline.Skip{
			{Unit: "filter", Key: "region", Reason: `filter "region": option "Norte" not found`},
			{Unit: "date", Key: "19", Reason: "no event codes found"},
		},
		Classified: map[record.Classification]int{record.New: 1},
		Outcomes:   map[dispatch.Outcome]int{dispatch.Created: 1},
		Results:    map[string]record.ClassificationResult{"33069": {Classification: record.New}},
		Records:    []*record.Record{rec},
	}
}

func TestWriteReportText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, sampleReport(), FormatText, false); err != nil {
		t.Fatalf("WriteReport failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"dates scanned: 2",
		"discovered:    2",
		"extracted:     1",
		"skipped:       2",
		"new:",
		"[filter] region:",
		"[date] 19: no event codes found",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}

	// Records only print in verbose mode.
	if strings.Contains(out, "33069") {
		t.Errorf("non-verbose output must not list records:\n%s", out)
	}
}

func TestWriteReportTextVerbose(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, sampleReport(), FormatText, true); err != nil {
		t.Fatalf("WriteReport failed: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "33069") || !strings.Contains(out, "53 - DOT") {
		t.Errorf("verbose output missing record line:\n%s", out)
	}
}

func TestWriteReportJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, sampleReport(), FormatJSON, false); err != nil {
		t.Fatalf("WriteReport failed: %v", err)
	}

	var decoded struct {
		DatesScanned int             `json:"dates_scanned"`
		Skips        []pipeline.Skip `json:"skips"`
		Classified   map[string]int  `json:"classified"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.DatesScanned != 2 {
		t.Errorf("dates_scanned = %d, expected 2", decoded.DatesScanned)
	}
	if len(decoded.Skips) != 2 {
		t.Errorf("expected 2 skips in JSON, got %+v", decoded.Skips)
	}
	if decoded.Classified["new"] != 1 {
		t.Errorf("classified.new = %d, expected 1", decoded.Classified["new"])
	}
}

func TestWriteReportUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReport(&buf, sampleReport(), OutputFormat("xml"), false); err == nil {
		t.Fatal("expected an error for an unknown format")
	}
}
