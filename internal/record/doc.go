// Package record defines the canonical booking record extracted from the
// source calendar, its content fingerprints, and the change classifier that
// compares incoming records against the known-records index.
//
// Each record carries two independent SHA1 fingerprints: an identity hash
// over the fields that name the booking (code, client, honoree, date, venue)
// and a data hash over the mutable contact and package fields. Comparing the
// pair against the stored fingerprints yields one of four classifications:
// new, modified identity, modified data, or unchanged.
package record
