package audit

import (
	"time"

	bolt "go.etcd.io/bbolt"
)

var idempotencyBucket = []byte("idempotency_index")

// DurableIndex strengthens the Idempotency testable property (§8) across process
// restarts: the in-memory cache alone forgets every key on redeploy, silently reopening
// a window where a replayed transport webhook or offline-queue drain could double-apply
// a side effect before the KB-backed check_dedupe call resolves. Grounded on the
// teacher's bbolt-backed peer cache as the pack's only durable-KV precedent.
type DurableIndex struct {
	db *bolt.DB
}

// OpenDurableIndex opens (creating if absent) a bbolt database at path.
func OpenDurableIndex(path string) (*DurableIndex, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(idempotencyBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &DurableIndex{db: db}, nil
}

// Close releases the underlying bbolt file lock.
func (d *DurableIndex) Close() error { return d.db.Close() }

// Lookup returns the log id recorded for key, if any.
func (d *DurableIndex) Lookup(key string) (string, bool, error) {
	var id string
	var found bool
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(idempotencyBucket).Get([]byte(key))
		if v != nil {
			id = string(v)
			found = true
		}
		return nil
	})
	return id, found, err
}

// Record durably associates key with logID.
func (d *DurableIndex) Record(key, logID string) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(idempotencyBucket).Put([]byte(key), []byte(logID))
	})
}
