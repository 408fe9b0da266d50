/*
	Package storage provides the key-value interface used to persist metadata and
	data instances, independent of the underlying database engine.
*/
package storage

import (
	"fmt"

	"github.com/blang/semver"
)

// Engine describes a storage engine implementation.
type Engine struct {
	Name        string
	Description string
	SemVer      semver.Version
}

func (e Engine) String() string {
	return fmt.Sprintf("%s [%s]", e.Name, e.SemVer)
}

// KeyValueGetter provides ways to read values by key.
type KeyValueGetter interface {
	// Get returns a value given a key.  A nil value and nil error means the key wasn't found.
	Get(ctx Context, tk TKey) ([]byte, error)

	// Exists returns true if the key has a value.
	Exists(ctx Context, tk TKey) (bool, error)

	// KeysInRange returns the type-specific keys in the inclusive range (begTKey, endTKey).
	// A nil endTKey continues to the end of the context's key space.
	KeysInRange(ctx Context, begTKey, endTKey TKey) ([]TKey, error)

	// GetRange returns the key-value pairs in the inclusive range (begTKey, endTKey).
	// A nil endTKey continues to the end of the context's key space.
	GetRange(ctx Context, begTKey, endTKey TKey) ([]*TKeyValue, error)
}

// KeyValueSetter provides ways to write and delete values.
type KeyValueSetter interface {
	Put(ctx Context, tk TKey, v []byte) error

	// PutRange writes many key-value pairs in one transaction.
	PutRange(ctx Context, kvs []TKeyValue) error

	Delete(ctx Context, tk TKey) error

	// DeleteAll removes all key-value pairs in the context's key space.
	DeleteAll(ctx Context) error
}

// OrderedKeyValueDB is a key-value database whose keys are sorted lexicographically.
type OrderedKeyValueDB interface {
	KeyValueGetter
	KeyValueSetter

	Engine() Engine
	Close() error
	String() string
}
