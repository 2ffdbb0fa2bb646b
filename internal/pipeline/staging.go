package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/quarkcity/meal-ledger/internal/extraction"
)

const stagingBucketName = "staged_extractions"

// ErrAlreadyStaged is returned when a second write is attempted for an
// image path that already has a staged record.
var ErrAlreadyStaged = errors.New("image already staged")

// Staging defines the interface for the staging store that holds raw
// extractions between the scheduler and the reconciler. Writes are
// at-most-once per image path.
type Staging interface {
	// Put stages a record under its image path
	Put(rec *extraction.RawExtraction) error

	// List returns all staged records
	List() ([]*extraction.RawExtraction, error)

	// Reset drops all staged records before a new run
	Reset() error

	// Close closes the store
	Close() error
}

// BoltStaging implements the Staging interface using BoltDB.
type BoltStaging struct {
	db *bbolt.DB
}

// NewBoltStaging creates a new BoltStaging instance.
func NewBoltStaging(path string) (*BoltStaging, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(stagingBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltStaging{db: db}, nil
}

// Put stages a record keyed by image path. A record staged for the same
// path is rejected with ErrAlreadyStaged, never overwritten.
func (b *BoltStaging) Put(rec *extraction.RawExtraction) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(stagingBucketName))
		if bucket.Get([]byte(rec.ImagePath)) != nil {
			return fmt.Errorf("%w: %s", ErrAlreadyStaged, rec.ImagePath)
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshaling extraction: %w", err)
		}
		return bucket.Put([]byte(rec.ImagePath), data)
	})
}

// List returns all staged records.
func (b *BoltStaging) List() ([]*extraction.RawExtraction, error) {
	records := make([]*extraction.RawExtraction, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(stagingBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var rec extraction.RawExtraction
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshaling extraction: %w", err)
			}
			records = append(records, &rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Reset drops all staged records.
func (b *BoltStaging) Reset() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(stagingBucketName)); err != nil {
			return fmt.Errorf("dropping bucket: %w", err)
		}
		_, err := tx.CreateBucket([]byte(stagingBucketName))
		return err
	})
}

// Close closes the store.
func (b *BoltStaging) Close() error {
	return b.db.Close()
}
