package memstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketKV = []byte("kv")

// record is the on-disk envelope wrapping a value with its expiry, so a
// single bucket can serve both TTL-less and TTL'd entries.
type record struct {
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (r *record) expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// BoltBackend is the embedded/dev implementation of Backend, grounded on
// storage.BoltStore's bucket-per-namespace bbolt usage: a single "kv" bucket
// holds every namespaced key, since memstore keys are already
// self-describing path strings rather than needing per-type buckets.
type BoltBackend struct {
	db *bolt.DB
}

// NewBoltBackend opens (creating if necessary) a bbolt database rooted at
// dataDir/memstore.db.
func NewBoltBackend(dataDir string) (*BoltBackend, error) {
	dbPath := filepath.Join(dataDir, "memstore.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open memstore database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketKV)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create memstore bucket: %w", err)
	}

	return &BoltBackend{db: db}, nil
}

func (b *BoltBackend) Close() error {
	return b.db.Close()
}

func (b *BoltBackend) Get(_ context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	var rec record
	found := false

	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketKV).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("memstore get %q: %w", key, err)
	}
	if !found || rec.expired(time.Now()) {
		return nil, ErrNotFound
	}
	return rec.Value, nil
}

func (b *BoltBackend) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	rec := record{Value: value}
	if ttl > 0 {
		rec.ExpiresAt = time.Now().Add(ttl)
	}

	data, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("memstore encode %q: %w", key, err)
	}

	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKV).Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("memstore put %q: %w", key, err)
	}
	return nil
}

func (b *BoltBackend) Delete(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKV).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("memstore delete %q: %w", key, err)
	}
	return nil
}

// Search returns every non-expired key with the given prefix, using bbolt's
// cursor Seek for an ordered scan instead of a full bucket walk.
func (b *BoltBackend) Search(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	now := time.Now()
	prefixBytes := []byte(prefix)

	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketKV).Cursor()
		for k, v := c.Seek(prefixBytes); k != nil && bytes.HasPrefix(k, prefixBytes); k, v = c.Next() {
			var rec record
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			if rec.expired(now) {
				continue
			}
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("memstore search %q: %w", prefix, err)
	}
	return keys, nil
}

// CompareAndSwap atomically applies fn to the current value at key (nil if
// absent) within a single bbolt read-write transaction, storing fn's result
// unless fn returns an error, which rolls the transaction back and is
// returned unchanged. It is the primitive the bbolt-backed
// Ticket Store Adapter builds its atomic assignment on top of.
func (b *BoltBackend) CompareAndSwap(key string, fn func(current []byte, exists bool) (next []byte, err error)) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketKV)
		var rec record
		exists := false

		if data := bucket.Get([]byte(key)); data != nil {
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("memstore cas decode %q: %w", key, err)
			}
			exists = !rec.expired(time.Now())
		}

		var current []byte
		if exists {
			current = rec.Value
		}

		next, err := fn(current, exists)
		if err != nil {
			return err
		}

		newRec := record{Value: next, ExpiresAt: rec.ExpiresAt}
		data, err := json.Marshal(&newRec)
		if err != nil {
			return fmt.Errorf("memstore cas encode %q: %w", key, err)
		}
		return bucket.Put([]byte(key), data)
	})
}
