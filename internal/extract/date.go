package extract

import (
	"strings"
	"time"
)

// dateLayouts are the formats the legacy site has been seen rendering event
// dates in, tried in order.
var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"2006-01-02",
	"02/01/06",
}

// CanonicalDateLayout is the normalized representation stored on records.
const CanonicalDateLayout = "02/01/2006"

// ParseDate attempts to parse an extracted date string. Returns the zero
// time when no known layout matches.
func ParseDate(text string) time.Time {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t
		}
	}
	return time.Time{}
}

// NormalizeDate canonicalizes an extracted date to dd/mm/yyyy. Unparseable
// text is returned as-is: extraction is best-effort and a raw value beats a
// discarded one.
func NormalizeDate(text string) string {
	t := ParseDate(text)
	if t.IsZero() {
		return strings.TrimSpace(text)
	}
	return t.Format(CanonicalDateLayout)
}
