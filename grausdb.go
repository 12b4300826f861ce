package grausdb

import "grausdb/internal/engine"

// Error values returned by DB methods. They alias the engine's own
// sentinels so callers can use errors.Is regardless of which layer
// produced the error.
var (
	// ErrKeyNotFound is returned by Remove and UpdateIf when the target
	// key is absent from the store.
	ErrKeyNotFound = engine.ErrKeyNotFound

	// ErrCorruptLog is returned when the on-disk log cannot be decoded:
	// at open, during a Get, or during Compaction. The store remains
	// usable for keys unaffected by the damage.
	ErrCorruptLog = engine.ErrCorruptLog

	// ErrPredicateNotSatisfied is returned by UpdateIf when the caller's
	// predicate evaluates to false. No mutation is performed.
	ErrPredicateNotSatisfied = engine.ErrPredicateNotSatisfied
)

// Stats is a point-in-time snapshot of store state.
type Stats = engine.Stats

// DB is a handle onto a GrausDb store. Clone it to share the same store
// across goroutines; Close any one handle's underlying store state only
// once all handles are done with it, since closing stops the writer
// that every clone shares.
type DB struct {
	e *engine.Engine
}

// Open opens (or creates) a store rooted at dir.
func Open(dir string, opts ...Option) (*DB, error) {
	var cfg engine.Config
	for _, opt := range opts {
		opt(&cfg)
	}

	e, err := engine.Open(dir, cfg)
	if err != nil {
		return nil, err
	}
	return &DB{e: e}, nil
}

// Get returns the value currently mapped to key. found is false if the
// key is absent, distinguishing that case from a stored empty value.
func (db *DB) Get(key []byte) (value []byte, found bool, err error) {
	return db.e.Get(key)
}

// Set maps key to value, overwriting any previous mapping.
func (db *DB) Set(key, value []byte) error {
	return db.e.Set(key, value)
}

// Remove deletes key. It returns ErrKeyNotFound if key is absent.
func (db *DB) Remove(key []byte) error {
	return db.e.Remove(key)
}

// UpdateIf atomically reads key's current value, optionally checks a
// predicate against predicateKey's current value (predicateKey defaults
// to key when nil), and if the predicate holds (or none was given)
// applies mutate to a private copy of the value and stores the result.
// The whole sequence is linearizable with respect to every other
// mutating operation.
//
// mutate and predicate must be pure functions of their input bytes:
// they run while DB's single writer lock is held and must not call back
// into the store.
func (db *DB) UpdateIf(key []byte, mutate func(current []byte) (next []byte), predicateKey []byte, predicate func(value []byte) bool) error {
	return db.e.UpdateIf(key, mutate, predicateKey, predicate)
}

// Clone returns a new handle sharing this DB's index, writer lock, and
// directory. The clone may be handed to a different goroutine.
func (db *DB) Clone() *DB {
	return &DB{e: db.e.Clone()}
}

// Stats returns a snapshot of current store state.
func (db *DB) Stats() Stats {
	return db.e.Stats()
}

// Close flushes and closes the store. It is safe to call from more than
// one clone.
func (db *DB) Close() error {
	return db.e.Close()
}
