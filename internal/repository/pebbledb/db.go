// Package pebbledb implements the persona and thread stores on top of a
// single Pebble key-value database. Values are JSON blobs; keys use the
// following namespaces:
//
//	persona:<id>        persona record
//	thread:meta:<id>    thread metadata
//	thread:msgs:<id>    whole message tree for one thread
package pebbledb

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/cockroachdb/pebble"
)

// DB wraps a pebble handle shared by the stores in this package.
type DB struct {
	pdb    *pebble.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at the given path.
func Open(path string, logger *slog.Logger) (*DB, error) {
	pdb, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble db at %s: %w", path, err)
	}
	logger.Info("pebble opened", "path", path)
	return &DB{pdb: pdb, logger: logger}, nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.pdb.Close()
}

// get reads a value by key. Returns (nil, nil) when the key is absent.
func (d *DB) get(key string) ([]byte, error) {
	val, closer, err := d.pdb.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer closer.Close()
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

// set writes a value with a durable sync.
func (d *DB) set(key string, val []byte) error {
	if err := d.pdb.Set([]byte(key), val, pebble.Sync); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// delete removes a key; deleting an absent key is not an error.
func (d *DB) delete(key string) error {
	if err := d.pdb.Delete([]byte(key), pebble.Sync); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// scanPrefix visits every value stored under the prefix in key order.
func (d *DB) scanPrefix(prefix string, visit func(key string, val []byte) error) error {
	upper := append([]byte(prefix), 0xff)
	iter, err := d.pdb.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: upper,
	})
	if err != nil {
		return fmt.Errorf("iterate %s: %w", prefix, err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		val := make([]byte, len(iter.Value()))
		copy(val, iter.Value())
		if err := visit(string(iter.Key()), val); err != nil {
			return err
		}
	}
	return iter.Error()
}
