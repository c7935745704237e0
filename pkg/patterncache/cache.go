// Package patterncache memoizes translated queries keyed by
// fingerprint.Of(source, schema, configTag), backed by BadgerDB. Grounded
// on internal/storage/badger.go's badger.DefaultOptions/Open pattern,
// simplified to badger's own View/Update transactions since the cache
// has no need for the teacher's table-prefixing Storage abstraction.
package patterncache

import (
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/sentinelgraph/cyquel/internal/fingerprint"
	"github.com/sentinelgraph/cyquel/internal/optimizer"
)

// Entry is the cached shape of a pkg/cyquel.Result, decoupled from that
// package to avoid a patterncache -> cyquel -> patterncache import cycle
// for callers that wire both together.
type Entry struct {
	KQL       string
	RuleLog   []optimizer.RuleApplication
	PlanNodes int
}

// Cache is a BadgerDB-backed store of translated queries.
type Cache struct {
	db *badger.DB
}

// Open opens (or creates) a cache at path.
func Open(path string) (*Cache, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("patterncache: failed to open badger db: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get looks up a previously stored Entry by fingerprint.
func (c *Cache) Get(fp fingerprint.Fingerprint) (Entry, bool, error) {
	var entry Entry
	found := false
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(fp[:])
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &entry); err != nil {
				return err
			}
			found = true
			return nil
		})
	})
	if err != nil {
		return Entry{}, false, fmt.Errorf("patterncache: get: %w", err)
	}
	return entry, found, nil
}

// Put stores an Entry under fingerprint, overwriting any prior value.
func (c *Cache) Put(fp fingerprint.Fingerprint, entry Entry) error {
	val, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("patterncache: marshal: %w", err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(fp[:], val)
	})
	if err != nil {
		return fmt.Errorf("patterncache: put: %w", err)
	}
	return nil
}

// Delete removes a cached entry, if present.
func (c *Cache) Delete(fp fingerprint.Fingerprint) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(fp[:])
	})
	if err != nil {
		return fmt.Errorf("patterncache: delete: %w", err)
	}
	return nil
}
