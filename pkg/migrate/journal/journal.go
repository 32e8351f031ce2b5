// Package journal persists migration history in an embedded Badger
// store, so cycle outcomes survive restarts and the ops API can report
// the last run without re-deriving it.
package journal

import (
	"encoding/json"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

const (
	cyclePrefix = "cycle/"
	taskPrefix  = "task/"
)

// TaskRecord is the persisted form of one settled transfer task.
type TaskRecord struct {
	ID         string    `json:"id"`
	CycleID    string    `json:"cycle_id"`
	SourcePath string    `json:"source_path"`
	RemotePath string    `json:"remote_path"`
	State      string    `json:"state"`
	Attempts   int       `json:"attempts"`
	Size       uint64    `json:"size"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// CycleSummary is the persisted outcome of one migration cycle.
type CycleSummary struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Transferred int       `json:"transferred"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	PrunedDirs  int       `json:"pruned_dirs"`
	BytesMoved  uint64    `json:"bytes_moved"`
}

// Journal is a Badger-backed migration history store.
type Journal struct {
	db *badger.DB
}

// Open opens (or creates) the journal at path.
func Open(path string) (*Journal, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open migration journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// RecordTask persists one settled task.
func (j *Journal) RecordTask(rec TaskRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode task record: %w", err)
	}

	key := fmt.Sprintf("%s%s/%s", taskPrefix, rec.CycleID, rec.ID)
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// RecordCycle persists one cycle summary. Keys embed the start time in
// RFC 3339 form, so iteration order is chronological.
func (j *Journal) RecordCycle(sum CycleSummary) error {
	data, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("failed to encode cycle summary: %w", err)
	}

	key := fmt.Sprintf("%s%s/%s", cyclePrefix, sum.StartedAt.UTC().Format(time.RFC3339Nano), sum.ID)
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// LastCycle returns the most recent cycle summary, or ok=false when the
// journal is empty.
func (j *Journal) LastCycle() (CycleSummary, bool, error) {
	var sum CycleSummary
	found := false

	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration from just past the cycle keyspace lands on
		// the newest cycle first.
		seek := append([]byte(cyclePrefix), 0xFF)
		for it.Seek(seek); it.ValidForPrefix([]byte(cyclePrefix)); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &sum)
			})
			if err != nil {
				return err
			}
			found = true
			return nil
		}
		return nil
	})
	if err != nil {
		return CycleSummary{}, false, err
	}
	return sum, found, nil
}

// CycleTasks returns the settled tasks recorded for a cycle.
func (j *Journal) CycleTasks(cycleID string) ([]TaskRecord, error) {
	prefix := []byte(taskPrefix + cycleID + "/")

	var records []TaskRecord
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec TaskRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Close closes the underlying store.
func (j *Journal) Close() error {
	return j.db.Close()
}
