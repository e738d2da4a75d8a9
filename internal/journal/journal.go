// Package journal keeps entries whose on-chain transactions confirmed but
// whose off-chain write failed, so persistence alone can be retried later.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const keyPrefix = "dangling/"

// Entry is a confirmed raffle entry missing from the guess store.
type Entry struct {
	SessionID    string    `json:"session_id"`
	Timestamp    int64     `json:"timestamp"`
	UserAddress  string    `json:"user_address"`
	FID          int64     `json:"fid"`
	ReadableTime string    `json:"readable_time"`
	ApprovalTx   string    `json:"approval_tx"`
	EntryTx      string    `json:"entry_tx"`
	Reason       string    `json:"reason"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// Journal is a badger-backed set of Entry keyed by entry transaction hash.
type Journal struct {
	db *badger.DB
}

// Open opens (or creates) the journal at path. An empty path keeps the
// journal in memory.
func Open(path string) (*Journal, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func key(entryTx string) []byte {
	return []byte(keyPrefix + strings.ToLower(entryTx))
}

// Save stores e, replacing any entry with the same entry transaction.
func (j *Journal) Save(e Entry) error {
	if e.EntryTx == "" {
		return errors.New("journal entry without entry tx")
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	val, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(e.EntryTx), val)
	})
}

// List returns every pending entry.
func (j *Journal) List() ([]Entry, error) {
	var out []Entry
	err := j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(keyPrefix), PrefetchValues: true, PrefetchSize: 16})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// Delete removes the entry for entryTx. Missing entries are not an error.
func (j *Journal) Delete(entryTx string) error {
	return j.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(key(entryTx))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}
