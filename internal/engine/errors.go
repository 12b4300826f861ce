package engine

import "errors"

var (
	// ErrKeyNotFound is returned by Remove and UpdateIf when the target
	// key is absent from the index.
	ErrKeyNotFound = errors.New("grausdb: key not found")

	// ErrCorruptLog is returned when a record cannot be decoded at a
	// non-tail position, or when a location in the index does not decode
	// to a Set of the expected key. Files in the store directory whose
	// names are not of the form "<gen>.log" are ignored, not reported.
	// The store remains usable for other keys, but the caller should
	// treat it as damaged.
	ErrCorruptLog = errors.New("grausdb: corrupt log")

	// ErrPredicateNotSatisfied is returned by UpdateIf when the supplied
	// predicate evaluates to false. No mutation is performed.
	ErrPredicateNotSatisfied = errors.New("grausdb: predicate not satisfied")

	// errShortRead signals that a buffer ended before a record's framing
	// could be completed. It never escapes this package: during replay it
	// means "stop at the last well-formed record", and it is never a
	// legitimate outcome of decoding a record at a known location.
	errShortRead = errors.New("grausdb: short read")
)
