package rawcache

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	pageBucket       = "pages"
	expiryValueBytes = 8
)

// boltCache implements a Cache backed by BoltDB. Each value carries an
// 8-byte big-endian expiry prefix followed by the raw page body.
type boltCache struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	pageTTL         time.Duration
	cleanupInterval time.Duration
}

// openBolt initializes a BoltDB-backed Cache.
func openBolt(path string, opts Options) (Cache, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(pageBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	cache := &boltCache{
		db:              db,
		pageTTL:         opts.PageTTL,
		cleanupInterval: opts.CleanupInterval,
	}
	cache.lastCleanup.Store(time.Now().Unix())
	return cache, nil
}

// Close closes the BoltDB cache.
func (b *boltCache) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// SavePage stores the raw listing body for a round and page.
func (b *boltCache) SavePage(round, page int, body []byte) error {
	if b == nil || b.db == nil {
		return nil
	}

	now := time.Now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(pageBucket))
		if bucket == nil {
			return fmt.Errorf("page bucket missing")
		}
		value := make([]byte, expiryValueBytes+len(body))
		binary.BigEndian.PutUint64(value, uint64(now.Add(b.pageTTL).Unix()))
		copy(value[expiryValueBytes:], body)
		return bucket.Put(pageKey(round, page), value)
	})
}

// LoadPage returns the cached body, deleting it when expired.
func (b *boltCache) LoadPage(round, page int) ([]byte, error) {
	if b == nil || b.db == nil {
		return nil, nil
	}

	if err := b.maybeCleanupExpired(time.Now()); err != nil {
		return nil, err
	}

	var body []byte
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(pageBucket))
		if bucket == nil {
			return fmt.Errorf("page bucket missing")
		}

		key := pageKey(round, page)
		value := bucket.Get(key)
		if value == nil {
			return nil
		}

		expiry, ok := decodeExpiry(value)
		if !ok || !expiry.After(time.Now()) {
			return bucket.Delete(key)
		}

		body = append([]byte(nil), value[expiryValueBytes:]...)
		return nil
	})
	return body, err
}

// maybeCleanupExpired removes expired snapshots on a fixed cadence to avoid unbounded growth.
func (b *boltCache) maybeCleanupExpired(now time.Time) error {
	if b == nil || b.db == nil {
		return nil
	}

	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(pageBucket))
		if bucket == nil {
			return fmt.Errorf("page bucket missing")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			expiry, ok := decodeExpiry(v)
			if !ok || !expiry.After(now) {
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

func pageKey(round, page int) []byte {
	return []byte(fmt.Sprintf("%06d/%03d", round, page))
}

// decodeExpiry decodes the expiry time from the stored value prefix.
func decodeExpiry(value []byte) (time.Time, bool) {
	if len(value) < expiryValueBytes {
		return time.Time{}, false
	}
	unix := int64(binary.BigEndian.Uint64(value[:expiryValueBytes]))
	if unix <= 0 {
		return time.Time{}, false
	}
	return time.Unix(unix, 0), true
}
