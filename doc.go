// Package grausdb is an embedded, thread-safe, persistent key-value
// store for byte-string keys and values. It offers durable writes, fast
// concurrent point reads, atomic read-modify-write on a single key, and
// a bounded on-disk footprint through compaction, which runs
// synchronously on the write that pushes the amount of stale log data
// past a threshold.
//
// Key/value pairs are persisted to append-only log files named after
// monotonically increasing generation numbers. An in-memory ordered
// index maps each live key to the location of the record that defines
// it, for fast lookup without scanning the log.
//
// A DB is thread-safe and can be cloned to share the same underlying
// store across goroutines:
//
//	db, err := grausdb.Open("/var/lib/mystore")
//	if err != nil {
//		// handle err
//	}
//	defer db.Close()
//
//	if err := db.Set([]byte("key"), []byte("value")); err != nil {
//		// handle err
//	}
//	val, found, err := db.Get([]byte("key"))
//
// This package is the public facade over the storage engine in
// internal/engine; it adapts the engine's API to a small, stable
// surface and carries no storage logic of its own.
package grausdb
