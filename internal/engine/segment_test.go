package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGeneration(t *testing.T) {
	gen, ok := parseGeneration("42.log")
	require.True(t, ok)
	assert.Equal(t, uint64(42), gen)

	_, ok = parseGeneration("bitcask.hint")
	assert.False(t, ok)

	_, ok = parseGeneration(".log")
	assert.False(t, ok)
}

func TestListGenerationsSortedAscending(t *testing.T) {
	dir := t.TempDir()
	for _, gen := range []uint64{3, 1, 2} {
		require.NoError(t, os.WriteFile(segmentPath(dir, gen), nil, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))

	gens, err := listGenerations(dir)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, gens)
}

func writeRaw(t *testing.T, dir string, gen uint64, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(segmentPath(dir, gen), data, 0o644))
}

func TestReplayAllEmptyDirectoryStartsAtGenerationOne(t *testing.T) {
	dir := t.TempDir()
	idx := newIndex()

	result, err := replayAll(dir, idx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.activeGeneration)
	assert.EqualValues(t, 0, result.appendOffset)
	assert.EqualValues(t, 0, result.uncompactedBytes)
	assert.Equal(t, 0, idx.Len())
}

func TestReplayAllAppliesSetsAndRemoves(t *testing.T) {
	dir := t.TempDir()
	var buf []byte
	buf = append(buf, setRecord([]byte("a"), []byte("1")).encode()...)
	setBOffset := len(buf)
	buf = append(buf, setRecord([]byte("b"), []byte("2")).encode()...)
	buf = append(buf, setRecord([]byte("a"), []byte("11")).encode()...) // shadows first "a"
	buf = append(buf, removeRecord([]byte("b")).encode()...)
	writeRaw(t, dir, 1, buf)

	idx := newIndex()
	result, err := replayAll(dir, idx)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), result.activeGeneration)
	assert.EqualValues(t, len(buf), result.appendOffset)

	loc, ok := idx.Get([]byte("a"))
	require.True(t, ok)
	assert.EqualValues(t, 1, loc.generation)

	_, ok = idx.Get([]byte("b"))
	assert.False(t, ok)

	// Uncompacted: the shadowed first "a" Set, the "b" Set, and the "b"
	// Remove record itself are all dead weight.
	shadowedA := int64(setBOffset) // length of the first "a" record equals setBOffset
	bSetLen := int64(len(setRecord([]byte("b"), []byte("2")).encode()))
	bRemoveLen := int64(len(removeRecord([]byte("b")).encode()))
	assert.Equal(t, shadowedA+bSetLen+bRemoveLen, result.uncompactedBytes)
}

func TestReplayAllToleratesTailTruncation(t *testing.T) {
	dir := t.TempDir()
	full := setRecord([]byte("key"), []byte("value")).encode()
	truncated := full[:len(full)-2]
	writeRaw(t, dir, 1, truncated)

	idx := newIndex()
	result, err := replayAll(dir, idx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, result.appendOffset)
	assert.Equal(t, 0, idx.Len())
}

func TestReplayAllFatalOnMidFileCorruptionInFrozenSegment(t *testing.T) {
	dir := t.TempDir()
	full := setRecord([]byte("key"), []byte("value")).encode()
	writeRaw(t, dir, 1, full[:len(full)-2]) // frozen: not the highest generation
	writeRaw(t, dir, 2, setRecord([]byte("k2"), []byte("v2")).encode())

	idx := newIndex()
	_, err := replayAll(dir, idx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorruptLog))
}

func TestReplayAllFatalOnUnknownTag(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir, 1, []byte{0xFF, 0, 0, 0, 0})

	idx := newIndex()
	_, err := replayAll(dir, idx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorruptLog))
}
