// Package storage persists the known-records index between scan passes as a
// JSON snapshot on disk.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mfarias/salon-events/internal/record"
)

const indexFile = "known_index.json"

// Storage handles persistence of the known-records index
type Storage struct {
	dataDir string
}

// New creates a new Storage instance rooted at dataDir, creating the
// directory if needed. A leading "~/" is expanded to the home directory.
func New(dataDir string) (*Storage, error) {
	if strings.HasPrefix(dataDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, dataDir[2:])
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &Storage{dataDir: dataDir}, nil
}

func (s *Storage) indexPath() string {
	return filepath.Join(s.dataDir, indexFile)
}

// LoadIndex loads the known-records index from disk. A missing file yields
// an empty index, not an error: the first pass of a fresh deployment
// classifies everything as new.
func (s *Storage) LoadIndex() (*record.KnownIndex, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return record.NewKnownIndex(), nil
		}
		return nil, fmt.Errorf("reading index: %w", err)
	}

	var idx record.KnownIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parsing index: %w", err)
	}
	if idx.Records == nil {
		idx.Records = make(map[string]*record.StoredRecord)
	}
	return &idx, nil
}

// SaveIndex writes the index to disk, stamping UpdatedAt.
func (s *Storage) SaveIndex(idx *record.KnownIndex) error {
	idx.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}
	if err := os.WriteFile(s.indexPath(), data, 0644); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	return nil
}
