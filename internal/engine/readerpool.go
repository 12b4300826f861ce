package engine

import (
	"bytes"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
)

// defaultMaxReaderHandles bounds how many open segment file handles a
// single reader context keeps cached before evicting the
// least-recently-used one.
const defaultMaxReaderHandles = 64

// readerHandle is one goroutine's private cache of open read-only
// segment file handles, keyed by generation. It is never shared: the
// ReaderPool vends one from a sync.Pool per concurrent caller, which is
// the idiomatic stand-in in Go for the "per-thread" handle cache the
// engine's design calls for, since goroutines (not OS threads) are the
// unit of concurrency here.
type readerHandle struct {
	dir   string
	cache *lru.Cache
}

func newReaderHandle(dir string, maxHandles int) *readerHandle {
	rh := &readerHandle{dir: dir}
	rh.cache, _ = lru.NewWithEvict(maxHandles, func(_ interface{}, value interface{}) {
		if f, ok := value.(*os.File); ok {
			_ = f.Close()
		}
	})
	return rh
}

func (rh *readerHandle) fileFor(gen uint64) (*os.File, error) {
	if v, ok := rh.cache.Get(gen); ok {
		return v.(*os.File), nil
	}
	f, err := openSegmentForRead(rh.dir, gen)
	if err != nil {
		return nil, err
	}
	rh.cache.Add(gen, f)
	return f, nil
}

// pruneBelow closes and drops every cached handle whose generation is
// below safe. It implements the safe-point mechanism from §4.4: once
// Compaction advances the safe generation past a retired segment, every
// reader closes its handle to that segment on its own schedule, lazily,
// the next time it serves a lookup.
func (rh *readerHandle) pruneBelow(safe uint64) {
	for _, k := range rh.cache.Keys() {
		gen := k.(uint64)
		if gen < safe {
			rh.cache.Remove(gen)
		}
	}
}

// ReaderPool hands out per-goroutine reader handles and tracks every
// handle it has ever vended so Close can reclaim file descriptors
// deterministically instead of waiting on the garbage collector.
type ReaderPool struct {
	dir        string
	maxHandles int
	idx        *index
	safeGen    *atomic.Uint64

	pool sync.Pool

	mu      sync.Mutex
	handles []*readerHandle
}

func newReaderPool(dir string, maxHandles int, idx *index, safeGen *atomic.Uint64) *ReaderPool {
	if maxHandles <= 0 {
		maxHandles = defaultMaxReaderHandles
	}
	rp := &ReaderPool{dir: dir, maxHandles: maxHandles, idx: idx, safeGen: safeGen}
	rp.pool.New = func() interface{} {
		rh := newReaderHandle(rp.dir, rp.maxHandles)
		rp.mu.Lock()
		rp.handles = append(rp.handles, rh)
		rp.mu.Unlock()
		return rh
	}
	return rp
}

// readValue performs the four-step read path from §4.4: look up a
// handle for loc's generation, seek and read exactly loc.length bytes,
// decode one record, and validate it is the Set the caller expects.
//
// A caller can hand in a location for a segment that Compaction retires
// and deletes concurrently, between the index lookup that produced loc
// and this call's open of that generation's file. When that race opens
// as ENOENT, re-reading the key's current index location picks up the
// rewritten copy Compaction just produced instead of surfacing a
// transient, spurious error; if the key moved again, the retry loop
// follows it. If the key is no longer in the index, or its location is
// unchanged, the ENOENT error is returned.
func (rp *ReaderPool) readValue(key []byte, loc location) ([]byte, error) {
	for {
		v := rp.pool.Get()
		rh := v.(*readerHandle)

		rh.pruneBelow(rp.safeGen.Load())

		f, err := rh.fileFor(loc.generation)
		if err != nil {
			rp.pool.Put(rh)
			if os.IsNotExist(err) {
				if current, ok := rp.idx.Get(key); ok && current != loc {
					loc = current
					continue
				}
			}
			return nil, err
		}

		buf := make([]byte, loc.length)
		if _, err := f.ReadAt(buf, loc.offset); err != nil {
			rp.pool.Put(rh)
			return nil, err
		}

		rec, err := decodeRecord(buf)
		if err != nil {
			rp.pool.Put(rh)
			return nil, err
		}
		if !rec.isSet || !bytes.Equal(rec.Key, key) {
			rp.pool.Put(rh)
			return nil, fmt.Errorf("%w: index entry for %q does not decode to a matching Set", ErrCorruptLog, key)
		}
		rp.pool.Put(rh)
		return rec.Value, nil
	}
}

// Close closes every file handle this pool has ever cached, across all
// goroutines that used it. It is safe to call once the engine itself is
// being closed; there is no expectation of further reads afterward.
func (rp *ReaderPool) Close() {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	for _, rh := range rp.handles {
		rh.cache.Purge()
	}
	rp.handles = nil
}
