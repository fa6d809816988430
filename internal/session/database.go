package session

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "sessions"

// BoltStore implements Store using BoltDB. Sessions are stored as JSON, so
// participant ids and item indices become object keys.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the database at path
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func putSession(bucket *bbolt.Bucket, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	return bucket.Put([]byte(sess.Key), data)
}

func getSession(bucket *bbolt.Bucket, key string) (*Session, error) {
	data := bucket.Get([]byte(key))
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshaling session %s: %w", key, err)
	}
	return &sess, nil
}

// Put saves a session
func (b *BoltStore) Put(sess *Session) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return putSession(tx.Bucket([]byte(bucketName)), sess)
	})
}

// Get retrieves a session by key
func (b *BoltStore) Get(key string) (*Session, error) {
	var sess *Session
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		sess, err = getSession(tx.Bucket([]byte(bucketName)), key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Update runs fn inside one write transaction
func (b *BoltStore) Update(key string, fn func(*Session) error) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		sess, err := getSession(bucket, key)
		if err != nil {
			return err
		}
		if err := fn(sess); err != nil {
			return err
		}
		return putSession(bucket, sess)
	})
}

// Delete removes a session
func (b *BoltStore) Delete(key string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(key))
	})
}

// DeleteWhere removes matching sessions in one write transaction
func (b *BoltStore) DeleteWhere(match func(*Session) bool) ([]string, error) {
	var deleted []string
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		// bbolt forbids mutating a bucket during ForEach
		err := bucket.ForEach(func(k, v []byte) error {
			var sess Session
			if err := json.Unmarshal(v, &sess); err != nil {
				return fmt.Errorf("unmarshaling session %s: %w", k, err)
			}
			if match(&sess) {
				deleted = append(deleted, string(k))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, key := range deleted {
			if err := bucket.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// Close closes the database connection
func (b *BoltStore) Close() error {
	return b.db.Close()
}
