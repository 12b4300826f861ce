package engine

import "os"

// compactLocked implements §4.6. The caller must hold w.mu. It rewrites
// every live record into a fresh segment, retires everything older,
// and resets uncompactedBytes to zero. Because it runs under the same
// mutex that serializes Set/Remove/UpdateIf, no concurrent mutation can
// observe or interfere with an in-progress compaction; readers are
// unaffected until the safe generation advances.
func (w *Writer) compactLocked() error {
	compactionGen := w.activeGen + 1
	newActiveGen := w.activeGen + 2

	// Not O_APPEND: every write below is an explicit offset-tracked
	// WriteAt, which Go rejects on an append-mode file.
	compactFile, err := os.OpenFile(segmentPath(w.dir, compactionGen), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	var keys [][]byte
	var locs []location
	w.idx.ForEach(func(key []byte, loc location) bool {
		keys = append(keys, append([]byte(nil), key...))
		locs = append(locs, loc)
		return true
	})

	var writeOff int64
	for i, key := range keys {
		oldLoc := locs[i]
		value, err := w.readerPool.readValue(key, oldLoc)
		if err != nil {
			_ = compactFile.Close()
			return err
		}

		buf := setRecord(key, value).encode()
		if _, err := compactFile.WriteAt(buf, writeOff); err != nil {
			_ = compactFile.Close()
			return err
		}

		newLoc := location{generation: compactionGen, offset: writeOff, length: int64(len(buf))}
		w.idx.CompareAndSwap(key, oldLoc, newLoc)
		writeOff += int64(len(buf))
	}

	if err := compactFile.Sync(); err != nil {
		_ = compactFile.Close()
		return err
	}
	if err := compactFile.Close(); err != nil {
		return err
	}

	newActiveFile, err := os.OpenFile(segmentPath(w.dir, newActiveGen), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}

	// Every segment strictly below compactionGen is now unreachable from
	// the index: advance the safe generation before deleting anything so
	// readers start dropping stale handles immediately.
	w.safeGen.Store(compactionGen)

	retired, err := listGenerations(w.dir)
	if err == nil {
		for _, gen := range retired {
			if gen >= compactionGen {
				continue
			}
			if err := os.Remove(segmentPath(w.dir, gen)); err != nil && w.logger != nil {
				w.logger.WithError(err).WithField("generation", gen).
					Warn("grausdb: failed to delete retired segment, next compaction will retry")
			}
		}
	}

	if w.activeFile != nil {
		_ = w.activeFile.Close()
	}

	w.activeGen = newActiveGen
	w.activeFile = newActiveFile
	w.writeOffset = 0
	w.uncompactedBytes = 0

	return nil
}
