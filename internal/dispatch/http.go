package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mfarias/salon-events/internal/record"
)

const (
	httpTimeout      = 30 * time.Second
	maxUpsertRetries = 3
	userAgent        = "salon-events/1.0 (github.com/mfarias/salon-events)"
)

// upsertPayload is the wire schema of one delivery.
type upsertPayload struct {
	Record         *record.Record        `json:"record"`
	Classification record.Classification `json:"classification"`
	IdentityHash   string                `json:"identity_hash"`
	DataHash       string                `json:"data_hash"`
	// NeedsReview marks identity conflicts for manual reconciliation.
	NeedsReview bool `json:"needs_review,omitempty"`
}

// upsertVerdict is the store's response body.
type upsertVerdict struct {
	Outcome Outcome `json:"outcome"`
}

// HTTPDispatcher posts records to the coordination store's upsert endpoint.
type HTTPDispatcher struct {
	client *http.Client
	url    string
}

// NewHTTPDispatcher creates a dispatcher targeting the given upsert URL.
func NewHTTPDispatcher(url string) *HTTPDispatcher {
	return &HTTPDispatcher{
		client: &http.Client{Timeout: httpTimeout},
		url:    url,
	}
}

// Upsert delivers one classified record. Unchanged records are skipped
// without a network call; transient failures are retried with exponential
// backoff.
func (d *HTTPDispatcher) Upsert(ctx context.Context, rec *record.Record, res record.ClassificationResult) (Outcome, error) {
	if res.Classification == record.Unchanged {
		return Skipped, nil
	}

	fp := rec.Fingerprint()
	payload := upsertPayload{
		Record:         rec,
		Classification: res.Classification,
		IdentityHash:   fp.IdentityHash,
		DataHash:       fp.DataHash,
		NeedsReview:    res.Classification == record.ModifiedIdentity,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Skipped, fmt.Errorf("encoding upsert payload: %w", err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxUpsertRetries), ctx)

	var outcome Outcome
	err = backoff.Retry(func() error {
		o, err := d.post(ctx, body)
		if err != nil {
			return err
		}
		outcome = o
		return nil
	}, policy)
	if err != nil {
		return Skipped, fmt.Errorf("upserting event %s: %w", rec.EventCode, err)
	}
	return outcome, nil
}

func (d *HTTPDispatcher) post(ctx context.Context, body []byte) (Outcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return Skipped, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return Skipped, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		// Transient; retried by the backoff policy.
		return Skipped, fmt.Errorf("store returned %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return Skipped, backoff.Permanent(fmt.Errorf("store rejected upsert: %d", resp.StatusCode))
	}

	var verdict upsertVerdict
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return Skipped, backoff.Permanent(fmt.Errorf("decoding store verdict: %w", err))
	}
	switch verdict.Outcome {
	case Created, Updated, Skipped:
		return verdict.Outcome, nil
	default:
		return Skipped, backoff.Permanent(fmt.Errorf("unknown verdict %q", verdict.Outcome))
	}
}
