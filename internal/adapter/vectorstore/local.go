package vectorstore

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"raglite/internal/domain"
	"raglite/internal/port"
)

const (
	indexFileName = "vectors.gob"
	metaFileName  = "meta.json"
)

// Local is the persisted-local vector store variant: the in-memory flat
// index plus two co-located durable artifacts, an opaque vector blob and a
// JSON metadata file. Both are replaced atomically (temp file + rename),
// so a crash at any point leaves either the previous or the new state on
// disk, never a partial one.
type Local struct {
	mu  sync.Mutex // serializes mutation + persist
	mem *Memory
	dir string
	log zerolog.Logger
}

var _ port.VectorStore = (*Local)(nil)

// persistedIndex is the on-disk form of the similarity index blob.
type persistedIndex struct {
	Dim     int
	IDs     []int64
	Vectors [][]float32
}

type metaRecord struct {
	ID        int64  `json:"_id"`
	DocID     string `json:"doc_id"`
	Text      string `json:"text"`
	Source    string `json:"source,omitempty"`
	Timestamp *int64 `json:"ts,omitempty"`
}

type metaFile struct {
	NextID int64        `json:"next_id"`
	Meta   []metaRecord `json:"meta"`
}

// NewLocal opens (or creates) a persisted store under dir. Existing state
// is loaded; unreadable state is logged and recovered as empty rather than
// failing startup.
func NewLocal(dim int, dir string, log zerolog.Logger) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &Local{
		mem: NewMemory(dim),
		dir: dir,
		log: log,
	}
	s.load()
	return s, nil
}

func (s *Local) indexPath() string { return filepath.Join(s.dir, indexFileName) }
func (s *Local) metaPath() string  { return filepath.Join(s.dir, metaFileName) }

// Add appends the batch in memory, then persists index and metadata. The
// mutex also guarantees a second Add waits for the prior persist to
// finish, preserving the atomic-replace guarantee.
func (s *Local) Add(docID string, chunks []string, embeddings [][]float32, meta domain.ChunkMeta) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mem.mu.RLock()
	prevLen, prevNext := len(s.mem.chunks), s.mem.nextID
	s.mem.mu.RUnlock()

	ids, err := s.mem.Add(docID, chunks, embeddings, meta)
	if err != nil {
		return nil, err
	}
	if err := s.persist(); err != nil {
		// Memory must keep matching durable state, so the batch is
		// discarded; its ids were never returned to the caller.
		s.mem.truncate(prevLen, prevNext)
		return nil, fmt.Errorf("persist: %w", err)
	}
	return ids, nil
}

// Search delegates to the in-memory index.
func (s *Local) Search(query []float32, topK int, filter *domain.Filter) ([]domain.Hit, error) {
	return s.mem.Search(query, topK, filter)
}

// Reset clears memory and removes both persisted artifacts.
func (s *Local) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mem.Reset(); err != nil {
		return err
	}
	for _, path := range []string{s.indexPath(), s.metaPath()} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}
	return nil
}

// Count returns the number of stored vectors.
func (s *Local) Count() int {
	return s.mem.Count()
}

func (s *Local) persist() error {
	s.mem.mu.RLock()
	idx := persistedIndex{
		Dim:     s.mem.dim,
		IDs:     make([]int64, len(s.mem.chunks)),
		Vectors: s.mem.vectors,
	}
	mf := metaFile{
		NextID: s.mem.nextID,
		Meta:   make([]metaRecord, len(s.mem.chunks)),
	}
	for i, c := range s.mem.chunks {
		idx.IDs[i] = c.ID
		mf.Meta[i] = metaRecord{
			ID:        c.ID,
			DocID:     c.DocID,
			Text:      c.Text,
			Source:    c.Meta.Source,
			Timestamp: c.Meta.Timestamp,
		}
	}
	s.mem.mu.RUnlock()

	if err := writeAtomic(s.indexPath(), func(f *os.File) error {
		return gob.NewEncoder(f).Encode(idx)
	}); err != nil {
		return err
	}
	return writeAtomic(s.metaPath(), func(f *os.File) error {
		return json.NewEncoder(f).Encode(mf)
	})
}

// load restores state from disk if both artifacts exist. Any read or
// decode failure falls back to an empty index; the previous files stay in
// place until the next successful persist or reset.
func (s *Local) load() {
	if _, err := os.Stat(s.indexPath()); err != nil {
		return
	}
	if _, err := os.Stat(s.metaPath()); err != nil {
		return
	}

	var idx persistedIndex
	f, err := os.Open(s.indexPath())
	if err == nil {
		err = gob.NewDecoder(f).Decode(&idx)
		f.Close()
	}
	if err != nil || idx.Dim != s.mem.dim {
		s.log.Warn().Err(err).Str("path", s.indexPath()).
			Msg("unreadable vector index, starting empty")
		return
	}

	var mf metaFile
	data, err := os.ReadFile(s.metaPath())
	if err == nil {
		err = json.Unmarshal(data, &mf)
	}
	if err != nil {
		s.log.Warn().Err(fmt.Errorf("%w: %v", domain.ErrCorruptState, err)).
			Str("path", s.metaPath()).Msg("unreadable index metadata, starting empty")
		return
	}

	byID := make(map[int64][]float32, len(idx.IDs))
	for i, id := range idx.IDs {
		if i < len(idx.Vectors) {
			byID[id] = idx.Vectors[i]
		}
	}

	maxID := int64(-1)
	for _, rec := range mf.Meta {
		vec, ok := byID[rec.ID]
		if !ok {
			continue
		}
		s.mem.vectors = append(s.mem.vectors, vec)
		s.mem.chunks = append(s.mem.chunks, domain.Chunk{
			ID:    rec.ID,
			DocID: rec.DocID,
			Text:  rec.Text,
			Meta:  domain.ChunkMeta{Source: rec.Source, Timestamp: rec.Timestamp},
		})
		if rec.ID > maxID {
			maxID = rec.ID
		}
	}

	// Never trust a stored counter smaller than the ids actually present:
	// ids are assigned once and must keep increasing across reloads.
	s.mem.nextID = mf.NextID
	if s.mem.nextID <= maxID {
		s.mem.nextID = maxID + 1
	}
}

// writeAtomic writes via a temp file in the same directory, fsyncs, then
// renames over the destination.
func writeAtomic(path string, write func(*os.File) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
