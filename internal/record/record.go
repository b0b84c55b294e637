package record

import (
	"crypto/sha1"
	"fmt"
	"regexp"
	"strings"
)

// codePattern is the event-code grammar: exactly five digits.
var codePattern = regexp.MustCompile(`^\d{5}$`)

// nullSentinel replaces absent field values before hashing so that "not
// found" and "empty" hash identically across runs.
const nullSentinel = "<missing>"

// Record is one extracted booking. EventCode is always populated; every
// other field is best-effort and an empty string means the field was not
// found on the detail page.
type Record struct {
	EventCode      string `json:"event_code"`
	HonoreeName    string `json:"honoree_name,omitempty"`
	EventType      string `json:"event_type,omitempty"`
	EventDate      string `json:"event_date,omitempty"`
	Venue          string `json:"venue,omitempty"`
	ClientName     string `json:"client_name,omitempty"`
	PhonePrimary   string `json:"phone_primary,omitempty"`
	PhoneSecondary string `json:"phone_secondary,omitempty"`
	PackType       string `json:"pack_type,omitempty"`
	SourceURL      string `json:"source_url"`
}

// ValidCode reports whether code matches the five-digit event-code grammar.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

// Fingerprint is the pair of content hashes used to classify change type.
type Fingerprint struct {
	IdentityHash string `json:"identity_hash"`
	DataHash     string `json:"data_hash"`
}

// IdentityHash hashes the fields that define which booking this record
// represents.
func (r *Record) IdentityHash() string {
	return hashFields(r.EventCode, r.ClientName, r.HonoreeName, r.EventDate, r.Venue)
}

// DataHash hashes the fields expected to mutate over a booking's lifetime
// without changing its identity.
func (r *Record) DataHash() string {
	return hashFields(r.PhonePrimary, r.PhoneSecondary, r.PackType, r.EventType)
}

// Fingerprint computes both content hashes.
func (r *Record) Fingerprint() Fingerprint {
	return Fingerprint{
		IdentityHash: r.IdentityHash(),
		DataHash:     r.DataHash(),
	}
}

// hashFields produces a deterministic hex digest over the normalized field
// values, joined with a separator that cannot occur in the values themselves
// after trimming.
func hashFields(fields ...string) string {
	normalized := make([]string, len(fields))
	for i, f := range fields {
		normalized[i] = normalizeField(f)
	}
	h := sha1.New()
	h.Write([]byte(strings.Join(normalized, "|")))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// normalizeField maps every null-like value to a single sentinel so
// representation drift between runs never shows up as a modification.
func normalizeField(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nullSentinel
	}
	return v
}
