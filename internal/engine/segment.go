package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const segmentExt = ".log"

// location identifies the exact byte range of a record within a segment.
type location struct {
	generation uint64
	offset     int64
	length     int64
}

func segmentPath(dir string, gen uint64) string {
	return filepath.Join(dir, strconv.FormatUint(gen, 10)+segmentExt)
}

// parseGeneration extracts the generation number from a segment file
// name of the form "<gen>.log". It returns false for anything else found
// in the store directory, which open() simply ignores.
func parseGeneration(name string) (uint64, bool) {
	if !strings.HasSuffix(name, segmentExt) {
		return 0, false
	}
	base := strings.TrimSuffix(name, segmentExt)
	if base == "" {
		return 0, false
	}
	gen, err := strconv.ParseUint(base, 10, 64)
	if err != nil {
		return 0, false
	}
	return gen, true
}

// listGenerations scans dir for "<gen>.log" files and returns the
// generations found, sorted ascending.
func listGenerations(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var gens []uint64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		gen, ok := parseGeneration(e.Name())
		if !ok {
			continue
		}
		gens = append(gens, gen)
	}
	sort.Slice(gens, func(i, j int) bool { return gens[i] < gens[j] })
	return gens, nil
}

func openSegmentForRead(dir string, gen uint64) (*os.File, error) {
	return os.Open(segmentPath(dir, gen))
}

// replayResult summarizes a full directory replay: where the Writer
// should resume appending, and how many bytes across all live segments
// are already dead weight (shadowed or removed).
type replayResult struct {
	activeGeneration uint64
	appendOffset     int64
	uncompactedBytes int64
}

// replayAll scans dir, replays every segment in generation order into
// idx, and reports where the active (highest-generation) segment's
// well-formed content ends.
//
// If dir is empty, generation 1 is reported as active with a zero
// append offset; newWriter creates that file when it opens the active
// segment.
func replayAll(dir string, idx *index) (replayResult, error) {
	gens, err := listGenerations(dir)
	if err != nil {
		return replayResult{}, err
	}
	if len(gens) == 0 {
		return replayResult{activeGeneration: 1}, nil
	}

	var uncompacted int64
	var tailEnd int64
	for i, gen := range gens {
		isTail := i == len(gens)-1
		end, err := replaySegment(dir, gen, idx, &uncompacted, isTail)
		if err != nil {
			return replayResult{}, err
		}
		if isTail {
			tailEnd = end
		}
	}

	return replayResult{
		activeGeneration: gens[len(gens)-1],
		appendOffset:     tailEnd,
		uncompactedBytes: uncompacted,
	}, nil
}

// replaySegment sequentially decodes every record in generation gen,
// applying Sets and Removes to idx and accumulating the bytes of
// records that no longer define the current index into *uncompacted.
// It returns the offset at which well-formed content ends.
//
// When isTail is true, a record whose framing cannot be completed
// because the file ends mid-record is tolerated: replay stops cleanly
// at the last well-formed boundary. When isTail is false the same
// condition is a fatal ErrCorruptLog, since only the active segment may
// have been left mid-write by a crash.
func replaySegment(dir string, gen uint64, idx *index, uncompacted *int64, isTail bool) (int64, error) {
	f, err := os.Open(segmentPath(dir, gen))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return 0, err
	}

	var offset int64
	total := int64(len(data))
	for offset < total {
		rec, n, err := decodeRecordPrefix(data[offset:])
		if err != nil {
			if errors.Is(err, errShortRead) {
				if isTail {
					break
				}
				return 0, fmt.Errorf("%w: truncated record in segment %d at offset %d", ErrCorruptLog, gen, offset)
			}
			return 0, err
		}

		length := int64(n)
		loc := location{generation: gen, offset: offset, length: length}
		if rec.isSet {
			old, hadOld := idx.Insert(rec.Key, loc)
			if hadOld {
				*uncompacted += old.length
			}
		} else {
			old, hadOld := idx.Remove(rec.Key)
			*uncompacted += length
			if hadOld {
				*uncompacted += old.length
			}
		}
		offset += length
	}

	return offset, nil
}
