// Package history journals watcher events in a BoltDB file.
//
// Events live in a single bucket keyed by "<domain>/<sequence>", the sequence
// being the bucket's big-endian NextSequence value, so a cursor seek on the
// domain prefix returns that domain's events in the order they were recorded.
package history

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/jbweber/kiln/internal/naming"
	"github.com/jbweber/kiln/internal/watch"
)

var bucketEvents = []byte("events")

// Store is a BoltDB-backed event journal. It implements watch.Sink.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the journal at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketEvents); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketEvents, err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append records ev.
func (s *Store) Append(ev watch.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEvents)
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}
		return b.Put(eventKey(ev.Name, seq), data)
	})
}

// Emit implements watch.Sink.
func (s *Store) Emit(_ context.Context, ev watch.Event) error {
	return s.Append(ev)
}

// List returns the events recorded for domain, oldest first. A positive
// limit keeps only the most recent limit events.
func (s *Store) List(domain string, limit int) ([]watch.Event, error) {
	prefix := naming.HistoryKey(domain)
	events := []watch.Event{}

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var ev watch.Event
			if err := json.Unmarshal(v, &ev); err != nil {
				return fmt.Errorf("failed to decode event %q: %w", k, err)
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}

	return events, nil
}

func eventKey(domain string, seq uint64) []byte {
	prefix := naming.HistoryKey(domain)
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], seq)
	return key
}
