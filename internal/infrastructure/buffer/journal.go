// Package buffer persists assignment repairs in a local BoltDB file so they
// survive restarts and store outages.
package buffer

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	entriesBucket = []byte("repairs")
	byTaskBucket  = []byte("repairs_by_task")
)

// ErrMissingTask is returned when an item without a task id is enqueued.
var ErrMissingTask = errors.New("buffer: repair item has no task id")

// Journal is a FIFO of repair items ordered by a monotonic sequence. A task has
// at most one pending item: recording a newer repair for the same task
// replaces the older one, since only the latest target can still be correct.
type Journal struct {
	db  *bolt.DB
	now func() time.Time
}

// Open creates the journal file and its buckets if needed.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("buffer: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{entriesBucket, byTaskBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db, now: time.Now}, nil
}

// Enqueue appends item, superseding any pending item for the same task.
func (j *Journal) Enqueue(item Item) error {
	if j == nil || j.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	if item.TaskID == "" {
		return ErrMissingTask
	}
	item.normalize(j.now())
	return j.db.Update(func(tx *bolt.Tx) error {
		return put(tx, &item)
	})
}

// GetBatch returns up to limit items, oldest first, without removing them.
// Entries that no longer decode are skipped.
func (j *Journal) GetBatch(limit int) ([]Item, error) {
	if j == nil || j.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	if limit <= 0 {
		limit = 50
	}

	var items []Item
	err := j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(entriesBucket).Cursor()
		for k, v := c.First(); k != nil && len(items) < limit; k, v = c.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			item.seq = binary.BigEndian.Uint64(k)
			items = append(items, item)
		}
		return nil
	})
	return items, err
}

// Remove deletes item. Removing an item that is gone or was superseded is a no-op.
func (j *Journal) Remove(item Item) error {
	if j == nil || j.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		return remove(tx, item)
	})
}

// Requeue moves item to the back of the journal with its updated retry state.
// An item superseded since it was read is dropped instead.
func (j *Journal) Requeue(item Item) error {
	if j == nil || j.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	item.AttemptAt = j.now()
	return j.db.Update(func(tx *bolt.Tx) error {
		if !current(tx, item) {
			return nil
		}
		if err := remove(tx, item); err != nil {
			return err
		}
		return put(tx, &item)
	})
}

// Size returns the number of pending items.
func (j *Journal) Size() (int, error) {
	if j == nil || j.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := j.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(entriesBucket).Stats().KeyN
		return nil
	})
	return count, err
}

// Cleanup drops items last attempted before olderThan, plus undecodable
// entries, and reports how many were removed.
func (j *Journal) Cleanup(olderThan time.Time) (int, error) {
	if j == nil || j.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var removed int
	err := j.db.Update(func(tx *bolt.Tx) error {
		var stale []Item
		var corrupt [][]byte
		if err := tx.Bucket(entriesBucket).ForEach(func(k, v []byte) error {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				corrupt = append(corrupt, append([]byte(nil), k...))
				return nil
			}
			if item.AttemptAt.Before(olderThan) {
				item.seq = binary.BigEndian.Uint64(k)
				stale = append(stale, item)
			}
			return nil
		}); err != nil {
			return err
		}
		for _, item := range stale {
			if err := remove(tx, item); err != nil {
				return err
			}
		}
		for _, k := range corrupt {
			if err := tx.Bucket(entriesBucket).Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale) + len(corrupt)
		return nil
	})
	return removed, err
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func put(tx *bolt.Tx, item *Item) error {
	entries := tx.Bucket(entriesBucket)
	index := tx.Bucket(byTaskBucket)

	if prev := index.Get([]byte(item.TaskID)); prev != nil {
		if err := entries.Delete(prev); err != nil {
			return err
		}
	}
	seq, err := entries.NextSequence()
	if err != nil {
		return err
	}
	item.seq = seq
	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}
	key := seqKey(seq)
	if err := entries.Put(key, payload); err != nil {
		return err
	}
	return index.Put([]byte(item.TaskID), key)
}

func remove(tx *bolt.Tx, item Item) error {
	if item.seq == 0 {
		return removeByID(tx, item.ID)
	}
	key := seqKey(item.seq)
	if err := tx.Bucket(entriesBucket).Delete(key); err != nil {
		return err
	}
	index := tx.Bucket(byTaskBucket)
	if pointer := index.Get([]byte(item.TaskID)); pointer != nil && string(pointer) == string(key) {
		return index.Delete([]byte(item.TaskID))
	}
	return nil
}

func removeByID(tx *bolt.Tx, id string) error {
	if id == "" {
		return nil
	}
	c := tx.Bucket(entriesBucket).Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var item Item
		if err := json.Unmarshal(v, &item); err != nil || item.ID != id {
			continue
		}
		item.seq = binary.BigEndian.Uint64(k)
		return remove(tx, item)
	}
	return nil
}

// current reports whether item is still the pending entry for its task.
func current(tx *bolt.Tx, item Item) bool {
	if item.seq == 0 {
		return false
	}
	pointer := tx.Bucket(byTaskBucket).Get([]byte(item.TaskID))
	return pointer != nil && binary.BigEndian.Uint64(pointer) == item.seq
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
