// Package storage provides the key-value abstraction backing the
// record database.
package storage

// DB is the interface for key-value storage. Records are only ever
// written and read, so the interface carries no delete.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix.
	// The callback receives a copy of the key and value.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}
