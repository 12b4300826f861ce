package engine

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// defaultCompactionThreshold is the fixed 1 MiB uncompacted-bytes limit
// from §6: crossing it on a successful mutation triggers Compaction.
const defaultCompactionThreshold = 1 << 20

// Writer serializes every mutating operation through mu: append to the
// active segment, flush it to stable storage, and publish the index
// update all happen before mu is released, which is what gives Set,
// Remove, and UpdateIf their durability and linearizability guarantees.
type Writer struct {
	mu sync.Mutex

	dir        string
	idx        *index
	readerPool *ReaderPool
	safeGen    *atomic.Uint64
	logger     logrus.FieldLogger

	compactionThreshold int64

	activeGen        uint64
	activeFile       *os.File
	writeOffset      int64
	uncompactedBytes int64
}

func newWriter(dir string, idx *index, pool *ReaderPool, safeGen *atomic.Uint64, threshold int64, logger logrus.FieldLogger, replay replayResult) (*Writer, error) {
	f, err := os.OpenFile(segmentPath(dir, replay.activeGeneration), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	// Drop any tail bytes past the last well-formed record so the next
	// append truly overwrites nothing meaningful: §4.2's "append offset
	// is set there" guarantee.
	if err := f.Truncate(replay.appendOffset); err != nil {
		_ = f.Close()
		return nil, err
	}

	return &Writer{
		dir:                 dir,
		idx:                 idx,
		readerPool:          pool,
		safeGen:             safeGen,
		logger:              logger,
		compactionThreshold: threshold,
		activeGen:           replay.activeGeneration,
		activeFile:          f,
		writeOffset:         replay.appendOffset,
		uncompactedBytes:    replay.uncompactedBytes,
	}, nil
}

// Set implements §4.5's set(k, v).
func (w *Writer) Set(key, value []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.setLocked(key, value)
}

func (w *Writer) setLocked(key, value []byte) error {
	buf := setRecord(key, value).encode()
	off := w.writeOffset
	if err := w.appendLocked(buf); err != nil {
		return err
	}

	loc := location{generation: w.activeGen, offset: off, length: int64(len(buf))}
	if old, hadOld := w.idx.Insert(key, loc); hadOld {
		w.uncompactedBytes += old.length
	}

	return w.maybeCompactLocked()
}

// Remove implements §4.5's remove(k).
func (w *Writer) Remove(key []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.idx.Get(key); !ok {
		return ErrKeyNotFound
	}

	buf := removeRecord(key).encode()
	if err := w.appendLocked(buf); err != nil {
		return err
	}
	w.uncompactedBytes += int64(len(buf))

	if old, hadOld := w.idx.Remove(key); hadOld {
		w.uncompactedBytes += old.length
	}

	return w.maybeCompactLocked()
}

// UpdateIf implements §4.5's update_if: the read of key (and, if a
// predicate is supplied, of predicateKey), the predicate evaluation,
// the mutation, and the write all happen while mu is held, making the
// whole operation linearizable.
func (w *Writer) UpdateIf(key []byte, mutate func([]byte) []byte, predicateKey []byte, predicate func([]byte) bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	current, err := w.readLocked(key)
	if err != nil {
		return err
	}

	if predicate != nil {
		pk := predicateKey
		if pk == nil {
			pk = key
		}
		predicateValue, err := w.readLocked(pk)
		if err != nil {
			return err
		}
		if !predicate(predicateValue) {
			return ErrPredicateNotSatisfied
		}
	}

	mutated := append([]byte(nil), current...)
	next := mutate(mutated)
	return w.setLocked(key, next)
}

// readLocked is the reader path (§4.4) invoked from inside the writer
// critical section. It takes no additional lock of its own: the index
// and reader pool are already safe to read from any goroutine.
func (w *Writer) readLocked(key []byte) ([]byte, error) {
	loc, ok := w.idx.Get(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	return w.readerPool.readValue(key, loc)
}

func (w *Writer) appendLocked(buf []byte) error {
	if _, err := w.activeFile.WriteAt(buf, w.writeOffset); err != nil {
		return err
	}
	if err := w.activeFile.Sync(); err != nil {
		return err
	}
	w.writeOffset += int64(len(buf))
	return nil
}

func (w *Writer) maybeCompactLocked() error {
	if w.uncompactedBytes <= w.compactionThreshold {
		return nil
	}
	return w.compactLocked()
}

// Stats reports a point-in-time snapshot of writer-owned counters.
func (w *Writer) Stats() (activeGen uint64, uncompactedBytes int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.activeGen, w.uncompactedBytes
}

// Close flushes and closes the active segment. It does not touch the
// reader pool; callers close that separately.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.activeFile == nil {
		return nil
	}
	err := w.activeFile.Close()
	w.activeFile = nil
	return err
}
