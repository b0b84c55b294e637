package record

import "time"

// Classification labels an incoming record relative to the known index.
type Classification string

const (
	// New means no stored record shares the event code.
	New Classification = "new"
	// ModifiedIdentity means the code matched but the identity fields
	// changed; suspicious, surfaced for manual review.
	ModifiedIdentity Classification = "modified_identity"
	// ModifiedData means only mutable data fields changed; safe to apply.
	ModifiedData Classification = "modified_data"
	// Unchanged means both hashes match the stored record.
	Unchanged Classification = "unchanged"
)

// ClassificationResult pairs the label with the stored record it was
// compared against, when one exists.
type ClassificationResult struct {
	Classification Classification `json:"classification"`
	Previous       *Record        `json:"previous,omitempty"`
}

// StoredRecord is an index entry: the record as last synchronized plus the
// fingerprints it carried then. The stored hashes are authoritative for
// comparison even if the hashing of older snapshot fields drifts.
type StoredRecord struct {
	Record       *Record `json:"record"`
	IdentityHash string  `json:"identity_hash"`
	DataHash     string  `json:"data_hash"`
}

// KnownIndex is the set of previously synchronized records keyed by event
// code. It is read-only during classification; the pipeline applies updates
// only after a pass completes.
type KnownIndex struct {
	Records   map[string]*StoredRecord `json:"records"`
	UpdatedAt string                   `json:"updated_at"`
}

// NewKnownIndex creates an empty index.
func NewKnownIndex() *KnownIndex {
	return &KnownIndex{
		Records: make(map[string]*StoredRecord),
	}
}

// Len returns the number of indexed records.
func (idx *KnownIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.Records)
}

// Get returns the stored entry for the event code, if any.
func (idx *KnownIndex) Get(code string) (*StoredRecord, bool) {
	if idx == nil || idx.Records == nil {
		return nil, false
	}
	s, ok := idx.Records[code]
	return s, ok
}

// Put stores rec under its event code, recomputing its fingerprints.
func (idx *KnownIndex) Put(rec *Record) {
	if idx.Records == nil {
		idx.Records = make(map[string]*StoredRecord)
	}
	fp := rec.Fingerprint()
	idx.Records[rec.EventCode] = &StoredRecord{
		Record:       rec,
		IdentityHash: fp.IdentityHash,
		DataHash:     fp.DataHash,
	}
	idx.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}

// Classify compares rec against the known index. Lookup is by event code,
// the natural key: codes are stable even when names are later corrected.
// The function is pure; classifying the same record twice against an
// unchanged index yields the same result.
func Classify(rec *Record, idx *KnownIndex) ClassificationResult {
	prev, ok := idx.Get(rec.EventCode)
	if !ok {
		return ClassificationResult{Classification: New}
	}

	fp := rec.Fingerprint()
	if fp.IdentityHash != prev.IdentityHash {
		return ClassificationResult{Classification: ModifiedIdentity, Previous: prev.Record}
	}
	if fp.DataHash != prev.DataHash {
		return ClassificationResult{Classification: ModifiedData, Previous: prev.Record}
	}
	return ClassificationResult{Classification: Unchanged, Previous: prev.Record}
}
