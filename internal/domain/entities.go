package domain

// ChunkMeta carries the optional attributes shared by every chunk of one
// ingest batch. An empty Source means no label; a nil Timestamp means the
// document carries no time information (never encoded as a sentinel).
type ChunkMeta struct {
	Source    string
	Timestamp *int64
}

// Chunk is the atomic retrievable unit. ID is process-unique and
// monotonically increasing; DocID, Text and the embedding behind it are
// write-once and removed only by a full reset.
type Chunk struct {
	ID    int64
	DocID string
	Text  string
	Meta  ChunkMeta
}

// Hit is one ranked search result from either retrieval path.
type Hit struct {
	ID        int64
	DocID     string
	Text      string
	Score     float64
	Source    string
	Timestamp *int64
}

// Answer is a composed response built from ranked hits.
type Answer struct {
	Text      string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

// Citation points back at the chunk a piece of the answer came from.
type Citation struct {
	DocID string  `json:"doc_id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}
