package gifticon

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	bucketName      = "gifticons"
	trashBucketName = "trash"
)

var (
	// ErrNotFound is returned when a gifticon does not exist in the requested bucket
	ErrNotFound = errors.New("gifticon not found")
	// ErrAlreadyExists is returned when creating a gifticon whose ID is taken
	ErrAlreadyExists = errors.New("gifticon already exists")
	// ErrInvalid is returned for gifticons or queries that fail validation
	ErrInvalid = errors.New("invalid gifticon")
)

// DB defines the interface for database operations
type DB interface {
	// SaveGifticon inserts or replaces a gifticon
	SaveGifticon(gifticon *Gifticon) error

	// GetGifticon retrieves a gifticon by ID; trashed gifticons are not returned
	GetGifticon(id string) (*Gifticon, error)

	// ListGifticons returns all gifticons that are not in the trash
	ListGifticons() ([]*Gifticon, error)

	// DeleteGifticon removes a gifticon from the database
	DeleteGifticon(id string) error

	// TrashGifticon moves a gifticon into the trash
	TrashGifticon(id string, trashedAt time.Time) (*Gifticon, error)

	// RestoreGifticon moves a gifticon out of the trash
	RestoreGifticon(id string, restoredAt time.Time) (*Gifticon, error)

	// GetTrashed retrieves a trashed gifticon by ID
	GetTrashed(id string) (*Gifticon, error)

	// ListTrash returns all trashed gifticons
	ListTrash() ([]*Gifticon, error)

	// DeleteTrashed removes a gifticon from the trash for good
	DeleteTrashed(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	// Create buckets if they don't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketName, trashBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

func put(bucket *bbolt.Bucket, gifticon *Gifticon) error {
	data, err := json.Marshal(gifticon)
	if err != nil {
		return fmt.Errorf("marshaling gifticon: %w", err)
	}
	return bucket.Put([]byte(gifticon.ID), data)
}

func get(bucket *bbolt.Bucket, id string) (*Gifticon, error) {
	data := bucket.Get([]byte(id))
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var gifticon Gifticon
	if err := json.Unmarshal(data, &gifticon); err != nil {
		return nil, fmt.Errorf("unmarshaling gifticon: %w", err)
	}
	return &gifticon, nil
}

func list(bucket *bbolt.Bucket) ([]*Gifticon, error) {
	gifticons := make([]*Gifticon, 0)
	err := bucket.ForEach(func(k, v []byte) error {
		var gifticon Gifticon
		if err := json.Unmarshal(v, &gifticon); err != nil {
			return fmt.Errorf("unmarshaling gifticon: %w", err)
		}
		gifticons = append(gifticons, &gifticon)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return gifticons, nil
}

// SaveGifticon saves a gifticon to the database
func (b *BoltDB) SaveGifticon(gifticon *Gifticon) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return put(tx.Bucket([]byte(bucketName)), gifticon)
	})
}

// GetGifticon retrieves a gifticon by ID
func (b *BoltDB) GetGifticon(id string) (*Gifticon, error) {
	var gifticon *Gifticon
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		gifticon, err = get(tx.Bucket([]byte(bucketName)), id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return gifticon, nil
}

// ListGifticons returns all gifticons outside the trash
func (b *BoltDB) ListGifticons() ([]*Gifticon, error) {
	var gifticons []*Gifticon
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		gifticons, err = list(tx.Bucket([]byte(bucketName)))
		return err
	})
	if err != nil {
		return nil, err
	}
	return gifticons, nil
}

// DeleteGifticon removes a gifticon from the database
func (b *BoltDB) DeleteGifticon(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(id))
	})
}

// move relocates a gifticon between buckets inside one transaction
func (b *BoltDB) move(id, from, to string, update func(*Gifticon)) (*Gifticon, error) {
	var gifticon *Gifticon
	err := b.db.Update(func(tx *bbolt.Tx) error {
		src := tx.Bucket([]byte(from))
		var err error
		gifticon, err = get(src, id)
		if err != nil {
			return err
		}
		dst := tx.Bucket([]byte(to))
		if dst.Get([]byte(id)) != nil {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, id)
		}
		update(gifticon)
		if err := put(dst, gifticon); err != nil {
			return err
		}
		return src.Delete([]byte(id))
	})
	if err != nil {
		return nil, err
	}
	return gifticon, nil
}

// TrashGifticon moves a gifticon into the trash bucket
func (b *BoltDB) TrashGifticon(id string, trashedAt time.Time) (*Gifticon, error) {
	return b.move(id, bucketName, trashBucketName, func(g *Gifticon) {
		g.TrashedAt = &trashedAt
		g.UpdatedAt = trashedAt
	})
}

// RestoreGifticon moves a gifticon from the trash back to the wallet
func (b *BoltDB) RestoreGifticon(id string, restoredAt time.Time) (*Gifticon, error) {
	return b.move(id, trashBucketName, bucketName, func(g *Gifticon) {
		g.TrashedAt = nil
		g.UpdatedAt = restoredAt
	})
}

// GetTrashed retrieves a trashed gifticon by ID
func (b *BoltDB) GetTrashed(id string) (*Gifticon, error) {
	var gifticon *Gifticon
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		gifticon, err = get(tx.Bucket([]byte(trashBucketName)), id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return gifticon, nil
}

// ListTrash returns all trashed gifticons
func (b *BoltDB) ListTrash() ([]*Gifticon, error) {
	var gifticons []*Gifticon
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		gifticons, err = list(tx.Bucket([]byte(trashBucketName)))
		return err
	})
	if err != nil {
		return nil, err
	}
	return gifticons, nil
}

// DeleteTrashed removes a gifticon from the trash bucket
func (b *BoltDB) DeleteTrashed(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(trashBucketName)).Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
