package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompactLockedReclaimsObsoleteSegments(t *testing.T) {
	dir := t.TempDir()
	w, idx, pool := newTestWriter(t, dir, defaultCompactionThreshold)
	defer pool.Close()
	defer w.Close()

	require.NoError(t, w.Set([]byte("a"), []byte("1")))
	require.NoError(t, w.Set([]byte("b"), []byte("2")))
	require.NoError(t, w.Set([]byte("a"), []byte("11"))) // shadow
	require.NoError(t, w.Remove([]byte("b")))

	generationsBefore, err := listGenerations(dir)
	require.NoError(t, err)
	require.Len(t, generationsBefore, 1)

	w.mu.Lock()
	err = w.compactLocked()
	w.mu.Unlock()
	require.NoError(t, err)

	assert.Zero(t, w.uncompactedBytes)

	loc, ok := idx.Get([]byte("a"))
	require.True(t, ok)
	assert.EqualValues(t, w.activeGen-1, loc.generation)

	value, err := pool.readValue([]byte("a"), loc)
	require.NoError(t, err)
	assert.Equal(t, []byte("11"), value)

	_, ok = idx.Get([]byte("b"))
	assert.False(t, ok)

	generationsAfter, err := listGenerations(dir)
	require.NoError(t, err)
	assert.Equal(t, []uint64{w.activeGen - 1, w.activeGen}, generationsAfter)
}

func TestCompactLockedPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	w, _, pool := newTestWriter(t, dir, defaultCompactionThreshold)

	require.NoError(t, w.Set([]byte("k"), []byte("v")))
	require.NoError(t, w.Set([]byte("k"), []byte("v2")))

	w.mu.Lock()
	require.NoError(t, w.compactLocked())
	w.mu.Unlock()

	require.NoError(t, w.Close())
	pool.Close()

	idx2 := newIndex()
	replay, err := replayAll(dir, idx2)
	require.NoError(t, err)

	loc, ok := idx2.Get([]byte("k"))
	require.True(t, ok)
	assert.Equal(t, replay.activeGeneration-1, loc.generation)
}

func TestWriterCompactionTriggeredByThresholdReclaimsSpace(t *testing.T) {
	dir := t.TempDir()
	w, _, pool := newTestWriter(t, dir, 32)
	defer pool.Close()
	defer w.Close()

	for i := 0; i < 50; i++ {
		require.NoError(t, w.Set([]byte("churn"), []byte("some-repeated-value")))
	}

	gens, err := listGenerations(dir)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(gens), 2, "compaction should keep the segment count bounded")
}
