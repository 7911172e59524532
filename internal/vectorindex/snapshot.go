package vectorindex

import (
	"encoding/json"
	"os"
	"time"
)

// ReconcileReport describes a mismatch found between the vector array and
// the id list after a load, a supplemented diagnostic grounded on
// vector_db.py's remove_duplicates (SPEC_FULL.md section 5). It is a
// warning, not a hard failure: the caller decides whether to clear and
// repopulate.
type ReconcileReport struct {
	OrphanedIDs    []int // present in records but missing a vector slot
	DuplicateIDs   []int // appear more than once in the id list
	Clean          bool
}

// Reconcile inspects idx for the alignment problems a crash-recovered
// load could leave behind and reports them without mutating the index.
func (idx *Index) Reconcile() ReconcileReport {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	seen := make(map[int]int, len(idx.ids))
	var duplicates []int
	for _, id := range idx.ids {
		seen[id]++
		if seen[id] == 2 {
			duplicates = append(duplicates, id)
		}
	}

	var orphaned []int
	for id := range idx.records {
		if seen[id] == 0 {
			orphaned = append(orphaned, id)
		}
	}

	return ReconcileReport{
		OrphanedIDs:  orphaned,
		DuplicateIDs: duplicates,
		Clean:        len(orphaned) == 0 && len(duplicates) == 0,
	}
}

// snapshotDocument is the single-file JSON form produced by Export,
// grounded on vector_db.py's export_data/import_data: an offline
// inspection format additive to the binary persistence layout, never
// used on the hot path (SPEC_FULL.md section 5).
type snapshotDocument struct {
	Dimension   int                  `json:"dimension"`
	LastUpdated time.Time            `json:"last_updated"`
	Records     []snapshotRecordJSON `json:"records"`
}

type snapshotRecordJSON struct {
	WorkItemID      int                 `json:"work_item_id"`
	Embedding       []float32           `json:"embedding"`
	WorkItem        WorkItemSnapshot    `json:"work_item"`
	EmbeddingSource EmbeddingSourceInfo `json:"embedding_source"`
	InsertedAt      time.Time           `json:"inserted_at"`
}

// Export serializes the full index to a single JSON document at path.
func (idx *Index) Export(path string) error {
	idx.mu.RLock()
	doc := snapshotDocument{Dimension: idx.dimension, LastUpdated: currentTime()}
	for _, id := range idx.ids {
		r := idx.records[id]
		doc.Records = append(doc.Records, snapshotRecordJSON{
			WorkItemID:      r.WorkItemID,
			Embedding:       r.Embedding,
			WorkItem:        r.WorkItem,
			EmbeddingSource: r.EmbeddingSource,
			InsertedAt:      r.InsertedAt,
		})
	}
	idx.mu.RUnlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Import replaces idx's contents with the snapshot at path.
func (idx *Index) Import(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc snapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.dimension = doc.Dimension
	idx.ids = idx.ids[:0]
	idx.vectors = idx.vectors[:0]
	idx.records = make(map[int]Record, len(doc.Records))
	for _, r := range doc.Records {
		idx.ids = append(idx.ids, r.WorkItemID)
		idx.vectors = append(idx.vectors, r.Embedding)
		idx.records[r.WorkItemID] = Record{
			WorkItemID:      r.WorkItemID,
			Embedding:       r.Embedding,
			WorkItem:        r.WorkItem,
			EmbeddingSource: r.EmbeddingSource,
			InsertedAt:      r.InsertedAt,
		}
	}
	return nil
}
