package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/mfarias/salon-events/internal/extract"
	"github.com/mfarias/salon-events/internal/record"
)

// GenerateICS renders one booking record as an iCalendar (.ics) entry so an
// operator can drop extracted bookings into their own calendar.
func GenerateICS(rec *record.Record) string {
	var ics strings.Builder

	ics.WriteString("BEGIN:VCALENDAR\r\n")
	ics.WriteString("VERSION:2.0\r\n")
	ics.WriteString("PRODID:-//Salon Events//salon-events//EN\r\n")
	ics.WriteString("CALSCALE:GREGORIAN\r\n")
	ics.WriteString("METHOD:PUBLISH\r\n")
	ics.WriteString("BEGIN:VEVENT\r\n")

	ics.WriteString(fmt.Sprintf("UID:%s@salon-events\r\n", rec.EventCode))
	ics.WriteString(fmt.Sprintf("DTSTAMP:%s\r\n", formatICSTime(time.Now().UTC())))

	eventDate := extract.ParseDate(rec.EventDate)
	if eventDate.IsZero() {
		// Unparseable date: place the entry a week out rather than drop it.
		eventDate = time.Now().AddDate(0, 0, 7)
	}

	// Bookings run evenings; block out 8 PM to 2 AM.
	startTime := time.Date(eventDate.Year(), eventDate.Month(), eventDate.Day(), 20, 0, 0, 0, time.UTC)
	endTime := startTime.Add(6 * time.Hour)

	ics.WriteString(fmt.Sprintf("DTSTART:%s\r\n", formatICSTime(startTime)))
	ics.WriteString(fmt.Sprintf("DTEND:%s\r\n", formatICSTime(endTime)))

	summary := fmt.Sprintf("Evento %s", rec.EventCode)
	if rec.EventType != "" {
		summary = fmt.Sprintf("%s - %s", rec.EventType, rec.EventCode)
	}
	if rec.HonoreeName != "" {
		summary += fmt.Sprintf(" (%s)", rec.HonoreeName)
	}
	ics.WriteString(fmt.Sprintf("SUMMARY:%s\r\n", escapeICS(summary)))

	var desc []string
	if rec.ClientName != "" {
		desc = append(desc, "Cliente: "+rec.ClientName)
	}
	if rec.PhonePrimary != "" {
		desc = append(desc, "Tel: "+rec.PhonePrimary)
	}
	if rec.PackType != "" {
		desc = append(desc, "Pack: "+rec.PackType)
	}
	desc = append(desc, rec.SourceURL)
	ics.WriteString(fmt.Sprintf("DESCRIPTION:%s\r\n", escapeICS(strings.Join(desc, "\n"))))

	if rec.Venue != "" {
		ics.WriteString(fmt.Sprintf("LOCATION:%s\r\n", escapeICS(rec.Venue)))
	}
	if rec.SourceURL != "" {
		ics.WriteString(fmt.Sprintf("URL:%s\r\n", rec.SourceURL))
	}

	ics.WriteString("STATUS:CONFIRMED\r\n")
	ics.WriteString("SEQUENCE:0\r\n")
	ics.WriteString("TRANSP:OPAQUE\r\n")
	ics.WriteString("END:VEVENT\r\n")
	ics.WriteString("END:VCALENDAR\r\n")

	return ics.String()
}

// formatICSTime formats a time.Time as an iCalendar UTC datetime string.
func formatICSTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// escapeICS escapes the characters the iCalendar text grammar reserves.
func escapeICS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
