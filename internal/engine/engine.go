// Package engine implements the GrausDb storage engine: the append-only
// log format, the in-memory key index, the lock-free concurrent read
// path, the serialized write path with atomic single-key update, and
// the compaction algorithm that reclaims space. It has no knowledge of
// the public library facade, logging configuration beyond what it is
// handed, or the CLI; those live one layer up, in package grausdb.
package engine

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Config configures Open. A zero Config is valid: every field falls
// back to a sensible default.
type Config struct {
	// Logger receives structured log entries for non-fatal background
	// events, currently only Compaction's segment-deletion failures
	// (§7: "logged but not fatal"). A nil Logger discards everything.
	Logger logrus.FieldLogger

	// CompactionThreshold overrides the default 1 MiB uncompacted-bytes
	// trigger from §6. Zero or negative selects the default.
	CompactionThreshold int64

	// MaxReaderHandles bounds how many open segment file handles each
	// goroutine's reader context keeps before evicting the
	// least-recently-used one. Zero or negative selects the default.
	MaxReaderHandles int
}

// root holds the state every clone of an Engine shares: the index, the
// writer (and therefore its lock), the reader pool, and the directory.
// Engine itself is the lightweight per-use handle description note §9
// calls for; cloning an Engine just copies the pointer to root.
type root struct {
	dir        string
	idx        *index
	readerPool *ReaderPool
	writer     *Writer
	safeGen    *atomic.Uint64
	logger     logrus.FieldLogger
}

// Engine is a handle onto a GrausDb store. The zero value is not usable;
// construct one with Open or by cloning an existing Engine.
type Engine struct {
	r *root
}

// Open replays the log directory at dir (creating it if necessary) and
// returns a ready-to-use Engine. Replay errors surface as ErrCorruptLog
// or the underlying I/O error, unwrapped.
func Open(dir string, cfg Config) (*Engine, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}

	threshold := cfg.CompactionThreshold
	if threshold <= 0 {
		threshold = defaultCompactionThreshold
	}

	idx := newIndex()
	replay, err := replayAll(dir, idx)
	if err != nil {
		return nil, err
	}

	safeGen := &atomic.Uint64{}
	readerPool := newReaderPool(dir, cfg.MaxReaderHandles, idx, safeGen)

	writer, err := newWriter(dir, idx, readerPool, safeGen, threshold, logger, replay)
	if err != nil {
		return nil, err
	}

	return &Engine{r: &root{
		dir:        dir,
		idx:        idx,
		readerPool: readerPool,
		writer:     writer,
		safeGen:    safeGen,
		logger:     logger,
	}}, nil
}

// Get performs the lock-free read path of §4.4: an index lookup
// followed by a reader-pool fetch. It takes no engine-level lock.
func (e *Engine) Get(key []byte) (value []byte, found bool, err error) {
	loc, ok := e.r.idx.Get(key)
	if !ok {
		return nil, false, nil
	}
	v, err := e.r.readerPool.readValue(key, loc)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Set implements §4.5's set(k, v).
func (e *Engine) Set(key, value []byte) error {
	return e.r.writer.Set(key, value)
}

// Remove implements §4.5's remove(k).
func (e *Engine) Remove(key []byte) error {
	return e.r.writer.Remove(key)
}

// UpdateIf implements §4.5's update_if. predicateKey may be nil, which
// defaults it to key; predicate may be nil to skip the predicate check
// entirely.
func (e *Engine) UpdateIf(key []byte, mutate func([]byte) []byte, predicateKey []byte, predicate func([]byte) bool) error {
	return e.r.writer.UpdateIf(key, mutate, predicateKey, predicate)
}

// Clone returns a new handle sharing this Engine's index, writer lock,
// reader pool, and directory, per §6. The clone may be used from a
// different goroutine; it gets its own reader-pool entry lazily, on
// first use.
func (e *Engine) Clone() *Engine {
	return &Engine{r: e.r}
}

// Close flushes and closes the active segment and releases every
// cached reader file handle. It is safe to call from more than one
// clone; later calls are no-ops.
func (e *Engine) Close() error {
	err := e.r.writer.Close()
	e.r.readerPool.Close()
	return err
}

// Stats is a point-in-time snapshot of engine state, exposed for
// observability; it derives entirely from existing engine counters.
type Stats struct {
	KeyCount         int
	UncompactedBytes int64
	ActiveGeneration uint64
	SegmentCount     int
}

// Stats reports the current snapshot.
func (e *Engine) Stats() Stats {
	activeGen, uncompacted := e.r.writer.Stats()
	segmentCount := 0
	if gens, err := listGenerations(e.r.dir); err == nil {
		segmentCount = len(gens)
	}
	return Stats{
		KeyCount:         e.r.idx.Len(),
		UncompactedBytes: uncompacted,
		ActiveGeneration: activeGen,
		SegmentCount:     segmentCount,
	}
}
