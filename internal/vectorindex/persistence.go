package vectorindex

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	coreerrors "github.com/Aman-CERP/relatedness-core/internal/errors"
)

const (
	vectorsFileName  = "vectors.bin"
	metadataFileName = "metadata.json"
	lockFileName     = ".index.lock"
	vectorsMagic     = uint32(0x56494458) // "VIDX"
)

// Store persists an Index to a directory as a vectors.bin/metadata.json
// pair, protecting the pair with a gofrs/flock file lock: readers take a
// shared lock, writers (Save) take an exclusive lock, matching spec
// section 5's shared-resource policy.
type Store struct {
	dir string
}

// NewStore targets dir for persistence; Save creates dir if it is absent.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

type metadataFile struct {
	Dimension    int                     `json:"dimension"`
	WorkItemIDs  []int                   `json:"work_item_ids"`
	Records      map[string]metaRecord   `json:"records"`
	LastUpdated  time.Time               `json:"last_updated"`
}

type metaRecord struct {
	WorkItem        WorkItemSnapshot    `json:"work_item"`
	EmbeddingSource EmbeddingSourceInfo `json:"embedding_source"`
	InsertedAt      time.Time           `json:"inserted_at"`
}

func (s *Store) lock() *flock.Flock {
	return flock.New(filepath.Join(s.dir, lockFileName))
}

// Save writes idx's current state atomically: both files are written to
// temp paths and renamed into place only after both succeed, so a crash
// mid-write leaves the prior valid pair intact (spec section 4.4's
// upsert/clear persistence contract).
func (s *Store) Save(idx *Index) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return coreerrors.Internal("failed to create index directory", err)
	}

	fl := s.lock()
	if err := fl.Lock(); err != nil {
		return coreerrors.Internal("failed to acquire index write lock", err)
	}
	defer fl.Unlock()

	idx.mu.RLock()
	ids := append([]int(nil), idx.ids...)
	vectors := make([][]float32, len(idx.vectors))
	copy(vectors, idx.vectors)
	dimension := idx.dimension
	records := make(map[int]Record, len(idx.records))
	for k, v := range idx.records {
		records[k] = v
	}
	idx.mu.RUnlock()

	vectorsPath := filepath.Join(s.dir, vectorsFileName)
	metadataPath := filepath.Join(s.dir, metadataFileName)
	vectorsTmp := vectorsPath + ".tmp"
	metadataTmp := metadataPath + ".tmp"

	if err := writeVectorsFile(vectorsTmp, dimension, ids, vectors); err != nil {
		return coreerrors.Internal("failed to write vectors file", err)
	}
	if err := writeMetadataFile(metadataTmp, dimension, ids, records); err != nil {
		_ = os.Remove(vectorsTmp)
		return coreerrors.Internal("failed to write metadata file", err)
	}
	if err := os.Rename(vectorsTmp, vectorsPath); err != nil {
		return coreerrors.Internal("failed to install vectors file", err)
	}
	if err := os.Rename(metadataTmp, metadataPath); err != nil {
		return coreerrors.Internal("failed to install metadata file", err)
	}
	return nil
}

// Load reads the persisted pair back into a fresh Index. A missing pair
// (first run) yields an empty index, not an error. Integrity failures —
// a metadata id list that doesn't match the vectors file, or a corrupt
// binary header — surface as IndexCorrupt (spec section 7), recoverable
// by the caller clearing and re-populating the index.
func (s *Store) Load() (*Index, error) {
	vectorsPath := filepath.Join(s.dir, vectorsFileName)
	metadataPath := filepath.Join(s.dir, metadataFileName)

	if _, err := os.Stat(vectorsPath); os.IsNotExist(err) {
		return New(), nil
	}

	fl := s.lock()
	if err := fl.RLock(); err != nil {
		return nil, coreerrors.Internal("failed to acquire index read lock", err)
	}
	defer fl.Unlock()

	dimension, ids, vectors, err := readVectorsFile(vectorsPath)
	if err != nil {
		return nil, coreerrors.IndexCorrupt("vectors file failed integrity check", err)
	}

	meta, err := readMetadataFile(metadataPath)
	if err != nil {
		return nil, coreerrors.IndexCorrupt("metadata file failed integrity check", err)
	}
	if meta.Dimension != dimension || len(meta.WorkItemIDs) != len(ids) {
		return nil, coreerrors.IndexCorrupt("metadata/vectors id alignment mismatch", nil)
	}
	for i, id := range ids {
		if meta.WorkItemIDs[i] != id {
			return nil, coreerrors.IndexCorrupt("metadata/vectors id ordering mismatch", nil)
		}
	}

	idx := New()
	idx.dimension = dimension
	idx.ids = ids
	idx.vectors = vectors
	idx.records = make(map[int]Record, len(ids))
	for i, id := range ids {
		mr, ok := meta.Records[fmt.Sprint(id)]
		if !ok {
			return nil, coreerrors.IndexCorrupt(fmt.Sprintf("metadata missing record for id %d", id), nil)
		}
		idx.records[id] = Record{
			WorkItemID:      id,
			Embedding:       vectors[i],
			WorkItem:        mr.WorkItem,
			EmbeddingSource: mr.EmbeddingSource,
			InsertedAt:      mr.InsertedAt,
		}
	}
	return idx, nil
}

func writeVectorsFile(path string, dimension int, ids []int, vectors [][]float32) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer os.Remove(tmp) // no-op once renamed

	if err := binary.Write(f, binary.LittleEndian, vectorsMagic); err != nil {
		f.Close()
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(dimension)); err != nil {
		f.Close()
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(ids))); err != nil {
		f.Close()
		return err
	}
	for i, id := range ids {
		if err := binary.Write(f, binary.LittleEndian, int64(id)); err != nil {
			f.Close()
			return err
		}
		if err := binary.Write(f, binary.LittleEndian, vectors[i]); err != nil {
			f.Close()
			return err
		}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readVectorsFile(path string) (dimension int, ids []int, vectors [][]float32, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, nil, err
	}
	defer f.Close()

	var magic, dim32, count32 uint32
	if err := binary.Read(f, binary.LittleEndian, &magic); err != nil {
		return 0, nil, nil, err
	}
	if magic != vectorsMagic {
		return 0, nil, nil, fmt.Errorf("bad vectors file magic")
	}
	if err := binary.Read(f, binary.LittleEndian, &dim32); err != nil {
		return 0, nil, nil, err
	}
	if err := binary.Read(f, binary.LittleEndian, &count32); err != nil {
		return 0, nil, nil, err
	}

	dimension = int(dim32)
	ids = make([]int, count32)
	vectors = make([][]float32, count32)
	for i := range ids {
		var id int64
		if err := binary.Read(f, binary.LittleEndian, &id); err != nil {
			return 0, nil, nil, err
		}
		ids[i] = int(id)
		vec := make([]float32, dimension)
		if err := binary.Read(f, binary.LittleEndian, &vec); err != nil {
			return 0, nil, nil, err
		}
		vectors[i] = vec
	}
	return dimension, ids, vectors, nil
}

func writeMetadataFile(path string, dimension int, ids []int, records map[int]Record) error {
	recs := make(map[string]metaRecord, len(records))
	for id, r := range records {
		recs[fmt.Sprint(id)] = metaRecord{
			WorkItem:        r.WorkItem,
			EmbeddingSource: r.EmbeddingSource,
			InsertedAt:      r.InsertedAt,
		}
	}
	m := metadataFile{
		Dimension:   dimension,
		WorkItemIDs: ids,
		Records:     recs,
		LastUpdated: currentTime(),
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readMetadataFile(path string) (metadataFile, error) {
	var m metadataFile
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, err
	}
	return m, nil
}
