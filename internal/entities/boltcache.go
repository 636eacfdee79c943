package entities

import (
	"time"

	bolt "go.etcd.io/bbolt"
)

var enrichmentBucket = []byte("place_enrichment")

// BoltEnrichmentCache persists the at-most-once enrichment marker across restarts,
// grounded on the teacher's bbolt-backed peer cache (the only durable-KV pattern in the
// pack); a process-memory map would lose the invariant on every redeploy.
type BoltEnrichmentCache struct {
	db *bolt.DB
}

// OpenBoltEnrichmentCache opens (creating if absent) a bbolt database at path.
func OpenBoltEnrichmentCache(path string) (*BoltEnrichmentCache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(enrichmentBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltEnrichmentCache{db: db}, nil
}

// Close releases the underlying bbolt file lock.
func (c *BoltEnrichmentCache) Close() error { return c.db.Close() }

// WasEnriched reports whether placeID has a recorded enrichment marker.
func (c *BoltEnrichmentCache) WasEnriched(placeID string) (bool, error) {
	var found bool
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(enrichmentBucket).Get([]byte(placeID))
		found = v != nil
		return nil
	})
	return found, err
}

// MarkEnriched records placeID as enriched.
func (c *BoltEnrichmentCache) MarkEnriched(placeID string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(enrichmentBucket).Put([]byte(placeID), []byte(time.Now().UTC().Format(time.RFC3339)))
	})
}

var _ EnrichmentCache = (*BoltEnrichmentCache)(nil)
