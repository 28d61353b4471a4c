package transferlog

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

var boltDBBucket = []byte("transfers")

type boltDBStore struct {
	db *bbolt.DB
}

// BoltDBStore implements Store on top of BoltDB. Entries are keyed by the
// binary session ID.
func BoltDBStore(path string) (Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(boltDBBucket); err != nil {
			return errors.Wrap(err, "failed to create bucket")
		}
		return nil
	})
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.WithError(closeErr).Warn("Failed to close BoltDB")
		}
		return nil, err
	}

	return &boltDBStore{db: db}, nil
}

func (s *boltDBStore) Entry(id uuid.UUID) (*Entry, error) {
	var entry *Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(boltDBBucket).Get(id[:])
		if raw == nil {
			return ErrNotFound
		}
		entry = &Entry{}
		return json.Unmarshal(raw, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *boltDBStore) Record(id uuid.UUID, entry *Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltDBBucket).Put(id[:], raw)
	})
}

func (s *boltDBStore) Entries() ([]*Entry, error) {
	var out []*Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltDBBucket).ForEach(func(k, v []byte) error {
			entry := &Entry{}
			if err := json.Unmarshal(v, entry); err != nil {
				log.WithError(err).Warnf("Skipping malformed entry %x", k)
				return nil
			}
			out = append(out, entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return sortEntries(out), nil
}

func (s *boltDBStore) Close() error {
	return s.db.Close()
}
