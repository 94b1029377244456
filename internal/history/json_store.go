package history

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	schemaVersion = "1.0"
	lockTimeout   = 5 * time.Second

	// DefaultMaxRecords bounds the history file when no limit is configured.
	DefaultMaxRecords = 200
)

// JSONStore keeps run records in a single JSON file.
//
// Every call takes the file lock and reloads from disk, so several reelsync
// processes can share one history file without losing records.
type JSONStore struct {
	path       string
	maxRecords int
	lock       *fileLock
}

type storeData struct {
	Version   string    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	Runs      []*Record `json:"runs"`
}

// NewJSONStore returns a store backed by path. The file is created on the
// first Append. maxRecords <= 0 means DefaultMaxRecords.
func NewJSONStore(path string, maxRecords int) *JSONStore {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	return &JSONStore{
		path:       path,
		maxRecords: maxRecords,
		lock:       newFileLock(path),
	}
}

// Path returns the backing file.
func (s *JSONStore) Path() string { return s.path }

// Append stores rec, assigning an ID if it has none, and drops the oldest
// records beyond the configured maximum.
func (s *JSONStore) Append(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return &Error{Op: "write", Err: err}
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	unlock, err := s.lock.lock(lockTimeout)
	if err != nil {
		return err
	}
	defer unlock()

	data, err := s.load()
	if err != nil {
		return err
	}

	data.Runs = append(data.Runs, rec)
	if over := len(data.Runs) - s.maxRecords; over > 0 {
		data.Runs = data.Runs[over:]
	}

	return s.save(data)
}

// List returns up to limit records, newest first. limit <= 0 returns all.
func (s *JSONStore) List(ctx context.Context, limit int) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: "read", Err: err}
	}

	unlock, err := s.lock.lock(lockTimeout)
	if err != nil {
		return nil, err
	}
	defer unlock()

	data, err := s.load()
	if err != nil {
		return nil, err
	}

	runs := data.Runs
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Get returns the record with the given run ID.
func (s *JSONStore) Get(ctx context.Context, id string) (*Record, error) {
	runs, err := s.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	for _, r := range runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, &Error{Op: "get", ID: id, Err: ErrNotFound}
}

// load must be called with the file lock held. A missing file is an empty
// history.
func (s *JSONStore) load() (*storeData, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &storeData{Version: schemaVersion}, nil
		}
		return nil, &Error{Op: "read", ID: s.path, Err: err}
	}

	data := &storeData{}
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, &Error{Op: "read", ID: s.path, Err: ErrCorrupt}
	}
	return data, nil
}

// save must be called with the file lock held.
func (s *JSONStore) save(data *storeData) error {
	data.Version = schemaVersion
	data.UpdatedAt = time.Now()

	w, err := newAtomicWriter(s.path)
	if err != nil {
		return &Error{Op: "write", ID: s.path, Err: err}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		w.abort()
		return &Error{Op: "write", ID: s.path, Err: err}
	}

	if err := w.commit(); err != nil {
		return &Error{Op: "write", ID: s.path, Err: err}
	}
	return nil
}
