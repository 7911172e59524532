package vectorindex

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitVec(vals ...float32) []float32 {
	var sum float64
	for _, v := range vals {
		sum += float64(v) * float64(v)
	}
	mag := math.Sqrt(sum)
	out := make([]float32, len(vals))
	for i, v := range vals {
		out[i] = float32(float64(v) / mag)
	}
	return out
}

func TestUpsert_RejectsFailedAndEmptyVectors(t *testing.T) {
	idx := New()
	skipped, err := idx.Upsert([]UpsertInput{
		{WorkItem: WorkItemSnapshot{ID: 1}, Success: false},
		{WorkItem: WorkItemSnapshot{ID: 2}, Success: true, Embedding: nil},
		{WorkItem: WorkItemSnapshot{ID: 3}, Success: true, Embedding: unitVec(1, 0, 0)},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2}, skipped)
	assert.True(t, idx.Exists(3))
	assert.False(t, idx.Exists(1))
}

func TestUpsert_ReplacesExistingID(t *testing.T) {
	idx := New()
	_, err := idx.Upsert([]UpsertInput{{WorkItem: WorkItemSnapshot{ID: 1}, Success: true, Embedding: unitVec(1, 0)}})
	require.NoError(t, err)
	_, err = idx.Upsert([]UpsertInput{{WorkItem: WorkItemSnapshot{ID: 1}, Success: true, Embedding: unitVec(0, 1)}})
	require.NoError(t, err)

	assert.Equal(t, 1, idx.Stats().Count)
	rec, ok := idx.Get(1)
	require.True(t, ok)
	assert.InDelta(t, 0, rec.Embedding[0], 1e-6)
	assert.InDelta(t, 1, rec.Embedding[1], 1e-6)
}

func TestUpsert_SkipsDimensionMismatch(t *testing.T) {
	idx := New()
	_, err := idx.Upsert([]UpsertInput{{WorkItem: WorkItemSnapshot{ID: 1}, Success: true, Embedding: unitVec(1, 0, 0)}})
	require.NoError(t, err)

	skipped, err := idx.Upsert([]UpsertInput{{WorkItem: WorkItemSnapshot{ID: 2}, Success: true, Embedding: unitVec(1, 0)}})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, skipped)
	assert.False(t, idx.Exists(2))
}

func TestUpsert_DefensivelyNormalizes(t *testing.T) {
	idx := New()
	_, err := idx.Upsert([]UpsertInput{{WorkItem: WorkItemSnapshot{ID: 1}, Success: true, Embedding: []float32{3, 4}}})
	require.NoError(t, err)
	rec, ok := idx.Get(1)
	require.True(t, ok)
	var sumSquares float64
	for _, v := range rec.Embedding {
		sumSquares += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sumSquares, 1e-5)
}

func TestSearch_ReturnsDescendingByInnerProduct(t *testing.T) {
	idx := New()
	_, err := idx.Upsert([]UpsertInput{
		{WorkItem: WorkItemSnapshot{ID: 1}, Success: true, Embedding: unitVec(1, 0)},
		{WorkItem: WorkItemSnapshot{ID: 2}, Success: true, Embedding: unitVec(0.9, 0.1)},
		{WorkItem: WorkItemSnapshot{ID: 3}, Success: true, Embedding: unitVec(0, 1)},
	})
	require.NoError(t, err)

	results, err := idx.Search(unitVec(1, 0), 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].WorkItemID)
	assert.Equal(t, 2, results[1].WorkItemID)
	assert.GreaterOrEqual(t, results[0].InnerProduct, results[1].InnerProduct)
}

func TestSearch_DimensionMismatchIsInternalError(t *testing.T) {
	idx := New()
	_, err := idx.Upsert([]UpsertInput{{WorkItem: WorkItemSnapshot{ID: 1}, Success: true, Embedding: unitVec(1, 0, 0)}})
	require.NoError(t, err)

	_, err = idx.Search(unitVec(1, 0), 1)
	require.Error(t, err)
}

func TestClear_RemovesAllRecords(t *testing.T) {
	idx := New()
	_, err := idx.Upsert([]UpsertInput{{WorkItem: WorkItemSnapshot{ID: 1}, Success: true, Embedding: unitVec(1, 0)}})
	require.NoError(t, err)
	idx.Clear()
	assert.Equal(t, 0, idx.Stats().Count)
	assert.False(t, idx.Exists(1))
}

func TestReconcile_DetectsOrphanedRecord(t *testing.T) {
	idx := New()
	_, err := idx.Upsert([]UpsertInput{{WorkItem: WorkItemSnapshot{ID: 1}, Success: true, Embedding: unitVec(1, 0)}})
	require.NoError(t, err)

	idx.mu.Lock()
	idx.ids = nil // simulate a crash-recovered mismatch
	idx.mu.Unlock()

	report := idx.Reconcile()
	assert.False(t, report.Clean)
	assert.Contains(t, report.OrphanedIDs, 1)
}

func TestSaveAndLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	idx := New()
	_, err := idx.Upsert([]UpsertInput{
		{WorkItem: WorkItemSnapshot{ID: 1, Title: "alpha"}, Success: true, Embedding: unitVec(1, 0)},
		{WorkItem: WorkItemSnapshot{ID: 2, Title: "bravo"}, Success: true, Embedding: unitVec(0, 1)},
	})
	require.NoError(t, err)

	store := NewStore(dir)
	require.NoError(t, store.Save(idx))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Stats().Count)
	rec, ok := loaded.Get(1)
	require.True(t, ok)
	assert.Equal(t, "alpha", rec.WorkItem.Title)
}

func TestLoad_MissingFilesYieldsEmptyIndex(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	idx, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Stats().Count)
}

func TestLoad_CorruptVectorsFileIsIndexCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, vectorsFileName), []byte("not a valid vectors file"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, metadataFileName), []byte(`{}`), 0o644))

	store := NewStore(dir)
	_, err := store.Load()
	require.Error(t, err)
}

func TestExportImport_RoundTrips(t *testing.T) {
	idx := New()
	_, err := idx.Upsert([]UpsertInput{{WorkItem: WorkItemSnapshot{ID: 5, Title: "charlie"}, Success: true, Embedding: unitVec(1, 1)}})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, idx.Export(path))

	fresh := New()
	require.NoError(t, fresh.Import(path))
	rec, ok := fresh.Get(5)
	require.True(t, ok)
	assert.Equal(t, "charlie", rec.WorkItem.Title)
}
