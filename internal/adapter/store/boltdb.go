package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"raglite/internal/domain"
)

var bucketChunks = []byte("chunks")

// BoltStore keeps the raw chunk corpus durable so the lexical index can be
// rebuilt after a restart. Keys are big-endian chunk ids, which makes bolt
// iteration order equal insertion order.
type BoltStore struct {
	db *bbolt.DB
}

type chunkMeta struct {
	DocID     string `json:"doc_id"`
	Text      string `json:"text"`
	Source    string `json:"source,omitempty"`
	Timestamp *int64 `json:"ts,omitempty"`
}

// NewBoltStore opens (or creates) the chunk database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketChunks)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// PutChunks stores one batch of chunks in a single transaction.
func (s *BoltStore) PutChunks(chunks []domain.Chunk) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		for _, c := range chunks {
			meta := chunkMeta{
				DocID:     c.DocID,
				Text:      c.Text,
				Source:    c.Meta.Source,
				Timestamp: c.Meta.Timestamp,
			}
			data, err := json.Marshal(meta)
			if err != nil {
				return err
			}
			if err := b.Put(idKey(c.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// All returns every stored chunk in insertion order.
func (s *BoltStore) All() ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketChunks).ForEach(func(k, v []byte) error {
			var meta chunkMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return fmt.Errorf("%w: chunk %d: %v", domain.ErrCorruptState, keyID(k), err)
			}
			chunks = append(chunks, domain.Chunk{
				ID:    keyID(k),
				DocID: meta.DocID,
				Text:  meta.Text,
				Meta:  domain.ChunkMeta{Source: meta.Source, Timestamp: meta.Timestamp},
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// Count returns the number of stored chunks.
func (s *BoltStore) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketChunks).Stats().KeyN
		return nil
	})
	return n, err
}

// Clear drops all stored chunks.
func (s *BoltStore) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketChunks); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketChunks)
		return err
	})
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func idKey(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

func keyID(key []byte) int64 {
	return int64(binary.BigEndian.Uint64(key))
}
