package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mfarias/salon-events/internal/record"
)

func testRecord() *record.Record {
	return &record.Record{
		EventCode:    "33069",
		ClientName:   "María López",
		PhonePrimary: "541155551234",
	}
}

func TestHTTPDispatcherDeliversAndDecodesVerdict(t *testing.T) {
	var received upsertPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
		json.NewEncoder(w).Encode(upsertVerdict{Outcome: Created})
	}))
	defer srv.Close()

	d := NewHTTPDispatcher(srv.URL)
	outcome, err := d.Upsert(context.Background(), testRecord(),
		record.ClassificationResult{Classification: record.New})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if outcome != Created {
		t.Errorf("expected Created, got %s", outcome)
	}
	if received.Record.EventCode != "33069" {
		t.Errorf("payload record code = %q", received.Record.EventCode)
	}
	if received.Classification != record.New {
		t.Errorf("payload classification = %s", received.Classification)
	}
	if received.DataHash == "" || received.IdentityHash == "" {
		t.Error("payload must carry both fingerprint hashes")
	}
	if received.NeedsReview {
		t.Error("new records must not be flagged for review")
	}
}

func TestHTTPDispatcherSkipsUnchangedWithoutNetworkCall(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(upsertVerdict{Outcome: Updated})
	}))
	defer srv.Close()

	d := NewHTTPDispatcher(srv.URL)
	outcome, err := d.Upsert(context.Background(), testRecord(),
		record.ClassificationResult{Classification: record.Unchanged})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if outcome != Skipped {
		t.Errorf("expected Skipped, got %s", outcome)
	}
	if calls != 0 {
		t.Errorf("unchanged records must not hit the store, got %d calls", calls)
	}
}

func TestHTTPDispatcherFlagsIdentityConflictsForReview(t *testing.T) {
	var received upsertPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		json.NewEncoder(w).Encode(upsertVerdict{Outcome: Skipped})
	}))
	defer srv.Close()

	d := NewHTTPDispatcher(srv.URL)
	_, err := d.Upsert(context.Background(), testRecord(),
		record.ClassificationResult{Classification: record.ModifiedIdentity})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if !received.NeedsReview {
		t.Error("identity conflicts must be delivered flagged for review")
	}
}

func TestHTTPDispatcherRejectionIsNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	d := NewHTTPDispatcher(srv.URL)
	_, err := d.Upsert(context.Background(), testRecord(),
		record.ClassificationResult{Classification: record.New})
	if err == nil {
		t.Fatal("expected an error for a rejected upsert")
	}
	if calls != 1 {
		t.Errorf("4xx responses must not be retried, got %d calls", calls)
	}
}

func TestHTTPDispatcherRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(upsertVerdict{Outcome: Created})
	}))
	defer srv.Close()

	d := NewHTTPDispatcher(srv.URL)
	outcome, err := d.Upsert(context.Background(), testRecord(),
		record.ClassificationResult{Classification: record.New})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if outcome != Created {
		t.Errorf("expected Created after retry, got %s", outcome)
	}
	if calls != 2 {
		t.Errorf("expected exactly one retry, got %d calls", calls)
	}
}
