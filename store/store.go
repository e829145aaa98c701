// Package store persists registry entries across restarts.
//
// Backends implement KV, a flat string map keyed by "<chain>:<address>".
// Persister layers the walletsession.Persister contract on top of any KV,
// encoding each wallet as a base64 JSON record with an insertion sequence.
// Only (chain, address, label, signerRef) is stored; never key material.
package store

import (
	"context"
	"fmt"

	"github.com/0xWizop/incubator-sub002/store/sqlite"
	"github.com/0xWizop/incubator-sub002/store/toml"
)

// Supported drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverTOML   = "toml"
)

// KV is the storage contract every backend implements.
type KV interface {
	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// All returns every stored key/value pair.
	All(ctx context.Context) (map[string]string, error)

	// Clear removes every key.
	Clear(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

// Open opens the backend named by driver at path.
func Open(driver, path string) (KV, error) {
	switch driver {
	case DriverMemory, "":
		return NewMemory(), nil
	case DriverSQLite:
		return sqlite.Open(path)
	case DriverTOML:
		return toml.Open(path)
	default:
		return nil, fmt.Errorf("unknown store driver %q (want %s, %s or %s)", driver, DriverSQLite, DriverTOML, DriverMemory)
	}
}
