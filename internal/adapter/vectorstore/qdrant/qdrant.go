package qdrant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"sync"
	"time"

	"raglite/internal/domain"
	"raglite/internal/port"
)

// Store is the remote-service vector store variant: a minimal REST client
// for a Qdrant collection with cosine distance. Metadata filters are
// pushed down as native payload conditions, which is equivalent to the
// local post-filter strategy because Qdrant filters before truncation.
type Store struct {
	mu         sync.Mutex
	url        string
	apiKey     string
	collection string
	dim        int
	nextID     int64
	client     *http.Client
}

var _ port.VectorStore = (*Store)(nil)

// Config holds connection settings for a Qdrant instance.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// New connects to Qdrant, creating the collection if missing, and resumes
// id assignment from the number of stored points. Ids are contiguous from
// zero because the only mutations are append and full reset, so the point
// count equals the next free id.
func New(cfg Config, dim int) (*Store, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	s := &Store{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dim:        dim,
		client:     &http.Client{Timeout: timeout},
	}

	if err := s.ensureCollection(); err != nil {
		return nil, err
	}
	count, err := s.pointCount()
	if err != nil {
		return nil, err
	}
	s.nextID = count
	return s, nil
}

func (s *Store) ensureCollection() error {
	exists, err := s.collectionExists()
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dim,
			"distance": "Cosine",
		},
	}
	return s.putJSON(fmt.Sprintf("%s/collections/%s", s.url, s.collection), body)
}

func (s *Store) collectionExists() (bool, error) {
	url := fmt.Sprintf("%s/collections/%s", s.url, s.collection)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	s.auth(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("qdrant GET %s failed: %s", url, resp.Status)
	}
}

func (s *Store) pointCount() (int64, error) {
	var resp struct {
		Result struct {
			Count int64 `json:"count"`
		} `json:"result"`
	}
	err := s.postJSON(fmt.Sprintf("%s/collections/%s/points/count", s.url, s.collection),
		map[string]any{"exact": true}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// Add normalizes the batch client-side and upserts it with server-visible
// ids and payload. A point with no timestamp simply omits the ts payload
// key; no sentinel value is ever written.
func (s *Store) Add(docID string, chunks []string, embeddings [][]float32, meta domain.ChunkMeta) ([]int64, error) {
	if len(chunks) != len(embeddings) {
		return nil, fmt.Errorf("add: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}
	for _, emb := range embeddings {
		if len(emb) != s.dim {
			return nil, &domain.DimensionMismatchError{Expected: s.dim, Actual: len(emb)}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, len(chunks))
	points := make([]map[string]any, len(chunks))
	for i := range chunks {
		ids[i] = s.nextID + int64(i)

		payload := map[string]any{
			"doc_id": docID,
			"text":   chunks[i],
		}
		if meta.Source != "" {
			payload["source"] = meta.Source
		}
		if meta.Timestamp != nil {
			payload["ts"] = *meta.Timestamp
		}

		points[i] = map[string]any{
			"id":      ids[i],
			"vector":  normalized(embeddings[i]),
			"payload": payload,
		}
	}

	err := s.putJSON(fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection),
		map[string]any{"points": points})
	if err != nil {
		return nil, err
	}

	s.nextID += int64(len(chunks))
	return ids, nil
}

// Search queries the collection with the filter pushed down as native
// payload conditions and re-sorts ties by ascending id for deterministic
// output.
func (s *Store) Search(query []float32, topK int, filter *domain.Filter) ([]domain.Hit, error) {
	if len(query) != s.dim {
		return nil, &domain.DimensionMismatchError{Expected: s.dim, Actual: len(query)}
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	req := map[string]any{
		"vector":       normalized(query),
		"limit":        topK,
		"with_payload": true,
	}
	if cond := filterConditions(filter); cond != nil {
		req["filter"] = map[string]any{"must": cond}
	}

	var resp struct {
		Result []struct {
			ID      int64          `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	err := s.postJSON(fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), req, &resp)
	if err != nil {
		return nil, err
	}

	hits := make([]domain.Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hit := domain.Hit{ID: r.ID, Score: r.Score}
		if v, ok := r.Payload["doc_id"].(string); ok {
			hit.DocID = v
		}
		if v, ok := r.Payload["text"].(string); ok {
			hit.Text = v
		}
		if v, ok := r.Payload["source"].(string); ok {
			hit.Source = v
		}
		if v, ok := r.Payload["ts"].(float64); ok {
			ts := int64(v)
			hit.Timestamp = &ts
		}
		hits = append(hits, hit)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	return hits, nil
}

// filterConditions translates a Filter into Qdrant must-conditions. A
// range condition on ts naturally excludes points without the key, which
// matches the rule that hits lacking a timestamp fail any date filter.
func filterConditions(f *domain.Filter) []map[string]any {
	if f.IsZero() {
		return nil
	}
	var must []map[string]any
	if f.DocID != "" {
		must = append(must, map[string]any{"key": "doc_id", "match": map[string]any{"value": f.DocID}})
	}
	if f.Source != "" {
		must = append(must, map[string]any{"key": "source", "match": map[string]any{"value": f.Source}})
	}
	if f.DateFrom != nil || f.DateTo != nil {
		rng := map[string]any{}
		if f.DateFrom != nil {
			rng["gte"] = *f.DateFrom
		}
		if f.DateTo != nil {
			rng["lte"] = *f.DateTo
		}
		must = append(must, map[string]any{"key": "ts", "range": rng})
	}
	return must
}

// Reset drops and recreates the collection.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	url := fmt.Sprintf("%s/collections/%s", s.url, s.collection)
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	s.auth(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	// A missing collection is already the state Reset wants.
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("qdrant DELETE %s failed: %s", url, resp.Status)
	}

	if err := s.ensureCollection(); err != nil {
		return err
	}
	s.nextID = 0
	return nil
}

// Count returns the exact number of stored points, or 0 if the service
// cannot be reached.
func (s *Store) Count() int {
	count, err := s.pointCount()
	if err != nil {
		return 0
	}
	return int(count)
}

func normalized(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	out := make([]float32, len(vec))
	if sum == 0 {
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, v := range vec {
		out[i] = float32(float64(v) * inv)
	}
	return out
}

func (s *Store) auth(req *http.Request) {
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
}

func (s *Store) putJSON(url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	s.auth(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant PUT %s failed: %s", url, resp.Status)
	}
	return nil
}

func (s *Store) postJSON(url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	s.auth(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
