package dispatch

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mfarias/salon-events/internal/record"
)

// SQLiteDispatcher applies upserts to a local sqlite database instead of the
// remote coordination store. Used for offline reconciliation and for
// deployments where the store API is not reachable from the scan host.
type SQLiteDispatcher struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS bookings (
	event_code    TEXT PRIMARY KEY,
	payload       TEXT NOT NULL,
	identity_hash TEXT NOT NULL,
	data_hash     TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS review_queue (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	event_code    TEXT NOT NULL,
	payload       TEXT NOT NULL,
	identity_hash TEXT NOT NULL,
	reason        TEXT NOT NULL,
	queued_at     TEXT NOT NULL
);
`

// NewSQLiteDispatcher opens (creating if needed) the local store at path.
func NewSQLiteDispatcher(path string) (*SQLiteDispatcher, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening local store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing local store: %w", err)
	}
	return &SQLiteDispatcher{db: db}, nil
}

// Close releases the underlying database handle.
func (d *SQLiteDispatcher) Close() error {
	return d.db.Close()
}

// Upsert applies create/update/skip semantics keyed by event code.
// Idempotent: re-delivering a record whose data hash already matches the
// stored row is a no-op Skipped. Identity conflicts go to the review queue
// and leave the stored row untouched.
func (d *SQLiteDispatcher) Upsert(ctx context.Context, rec *record.Record, res record.ClassificationResult) (Outcome, error) {
	if res.Classification == record.Unchanged {
		return Skipped, nil
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return Skipped, fmt.Errorf("encoding record: %w", err)
	}
	fp := rec.Fingerprint()
	now := time.Now().UTC().Format(time.RFC3339)

	var storedIdentity, storedData string
	err = d.db.QueryRowContext(ctx,
		`SELECT identity_hash, data_hash FROM bookings WHERE event_code = ?`,
		rec.EventCode).Scan(&storedIdentity, &storedData)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = d.db.ExecContext(ctx,
			`INSERT INTO bookings (event_code, payload, identity_hash, data_hash, updated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			rec.EventCode, string(payload), fp.IdentityHash, fp.DataHash, now)
		if err != nil {
			return Skipped, fmt.Errorf("inserting event %s: %w", rec.EventCode, err)
		}
		return Created, nil
	case err != nil:
		return Skipped, fmt.Errorf("looking up event %s: %w", rec.EventCode, err)
	}

	if storedIdentity != fp.IdentityHash {
		// Same code, different person/venue/date. Queue for a human,
		// do not overwrite.
		_, err = d.db.ExecContext(ctx,
			`INSERT INTO review_queue (event_code, payload, identity_hash, reason, queued_at)
			 VALUES (?, ?, ?, ?, ?)`,
			rec.EventCode, string(payload), fp.IdentityHash, "identity conflict", now)
		if err != nil {
			return Skipped, fmt.Errorf("queueing event %s for review: %w", rec.EventCode, err)
		}
		return Skipped, nil
	}

	if storedData == fp.DataHash {
		return Skipped, nil
	}

	_, err = d.db.ExecContext(ctx,
		`UPDATE bookings SET payload = ?, data_hash = ?, updated_at = ? WHERE event_code = ?`,
		string(payload), fp.DataHash, now, rec.EventCode)
	if err != nil {
		return Skipped, fmt.Errorf("updating event %s: %w", rec.EventCode, err)
	}
	return Updated, nil
}
