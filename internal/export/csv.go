// Package export writes audit dumps of extracted records: a CSV table with
// one row per record, and per-record iCalendar entries.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/mfarias/salon-events/internal/record"
)

// csvHeader lists the columns in record-schema order.
var csvHeader = []string{
	"event_code",
	"honoree_name",
	"event_type",
	"event_date",
	"venue",
	"client_name",
	"phone_primary",
	"phone_secondary",
	"pack_type",
	"source_url",
}

// WriteCSV writes all records as a tabular dump, columns matching the record
// schema exactly, for audit and manual reconciliation.
func WriteCSV(w io.Writer, records []*record.Record) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			rec.EventCode,
			rec.HonoreeName,
			rec.EventType,
			rec.EventDate,
			rec.Venue,
			rec.ClientName,
			rec.PhonePrimary,
			rec.PhoneSecondary,
			rec.PackType,
			rec.SourceURL,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing record %s: %w", rec.EventCode, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
