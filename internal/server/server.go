package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"raglite/internal/adapter/cache"
	"raglite/internal/domain"
	"raglite/internal/port"
	"raglite/internal/usecase"
)

// Server is the thin HTTP layer over the retrieval facade. It owns the
// embedder, the splitter and the response cache; everything index-shaped
// lives behind the facade.
type Server struct {
	retrieval      *usecase.Retrieval
	embedder       port.Embedder
	splitter       port.Splitter
	cache          *cache.QueryCache
	topK           int
	alpha          float64
	answerMaxChars int
	log            zerolog.Logger
}

// Options configures a Server.
type Options struct {
	TopK           int
	Alpha          float64
	AnswerMaxChars int
	CacheSize      int
	CacheTTL       time.Duration
}

// New creates a Server.
func New(retrieval *usecase.Retrieval, embedder port.Embedder, splitter port.Splitter, opts Options, log zerolog.Logger) *Server {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.Alpha <= 0 || opts.Alpha > 1 {
		opts.Alpha = 0.6
	}
	return &Server{
		retrieval:      retrieval,
		embedder:       embedder,
		splitter:       splitter,
		cache:          cache.NewQueryCache(opts.CacheSize, opts.CacheTTL),
		topK:           opts.TopK,
		alpha:          opts.Alpha,
		answerMaxChars: opts.AnswerMaxChars,
		log:            log,
	}
}

// Handler returns the HTTP handler with request logging attached.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /ingest", s.handleIngest)
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("POST /answer", s.handleAnswer)
	mux.HandleFunc("POST /reset", s.handleReset)
	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

type ingestRequest struct {
	DocID     string `json:"doc_id"`
	Text      string `json:"text"`
	Source    string `json:"source,omitempty"`
	Timestamp *int64 `json:"ts,omitempty"`
}

type hitJSON struct {
	ID        int64   `json:"_id"`
	DocID     string  `json:"doc_id"`
	Text      string  `json:"text"`
	Score     float64 `json:"score"`
	Source    string  `json:"source,omitempty"`
	Timestamp *int64  `json:"ts,omitempty"`
}

func toJSON(hits []domain.Hit) []hitJSON {
	out := make([]hitJSON, len(hits))
	for i, h := range hits {
		out[i] = hitJSON{
			ID:        h.ID,
			DocID:     h.DocID,
			Text:      h.Text,
			Score:     h.Score,
			Source:    h.Source,
			Timestamp: h.Timestamp,
		}
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"embedder": s.embedder.ModelName(),
		"dim":      s.embedder.Dimension(),
		"chunks":   s.retrieval.Count(),
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	if req.DocID == "" {
		writeError(w, http.StatusBadRequest, errors.New("empty doc_id"))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, errors.New("empty text"))
		return
	}

	chunks := s.splitter.Split(req.Text)
	if len(chunks) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("no chunks produced"))
		return
	}

	embeddings, err := s.embedder.Embed(chunks)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Errorf("embedding failed: %w", err))
		return
	}

	meta := domain.ChunkMeta{Source: req.Source, Timestamp: req.Timestamp}
	n, err := s.retrieval.Add(req.DocID, chunks, embeddings, meta)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.cache.Invalidate()

	writeJSON(w, http.StatusOK, map[string]any{
		"doc_id":  req.DocID,
		"chunks":  len(chunks),
		"indexed": n,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		writeError(w, http.StatusBadRequest, errors.New("empty query"))
		return
	}

	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = "hybrid"
	}

	topK := s.topK
	if v := r.URL.Query().Get("k"); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil || k <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("invalid k"))
			return
		}
		topK = k
	}

	alpha := s.alpha
	if v := r.URL.Query().Get("alpha"); v != "" {
		a, err := strconv.ParseFloat(v, 64)
		if err != nil || a < 0 || a > 1 {
			writeError(w, http.StatusBadRequest, errors.New("invalid alpha"))
			return
		}
		alpha = a
	}

	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	key := cache.Key(q, mode, strconv.Itoa(topK), strconv.FormatFloat(alpha, 'g', -1, 64), filterKey(filter))
	if hits, ok := s.cache.Get(key); ok {
		writeJSON(w, http.StatusOK, map[string]any{"results": toJSON(hits)})
		return
	}

	hits, err := s.search(q, mode, topK, alpha, filter)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.cache.Put(key, hits)

	writeJSON(w, http.StatusOK, map[string]any{"results": toJSON(hits)})
}

func (s *Server) search(q, mode string, topK int, alpha float64, filter *domain.Filter) ([]domain.Hit, error) {
	switch mode {
	case "lexical":
		return s.retrieval.SearchLexical(q, topK, filter)
	case "vector":
		emb, err := s.embedQuery(q)
		if err != nil {
			return nil, err
		}
		return s.retrieval.SearchVector(emb, topK, filter)
	case "hybrid":
		emb, err := s.embedQuery(q)
		if err != nil {
			return nil, err
		}
		return s.retrieval.SearchHybrid(q, emb, topK, alpha, filter)
	default:
		return nil, fmt.Errorf("unknown search mode: %s", mode)
	}
}

func (s *Server) embedQuery(q string) ([]float32, error) {
	embs, err := s.embedder.Embed([]string{q})
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if len(embs) == 0 {
		return nil, errors.New("embedder returned no vectors")
	}
	return embs[0], nil
}

type answerRequest struct {
	Query    string  `json:"query"`
	TopK     int     `json:"k,omitempty"`
	Alpha    float64 `json:"alpha,omitempty"`
	MaxChars int     `json:"max_chars,omitempty"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, errors.New("empty query"))
		return
	}
	if req.TopK <= 0 {
		req.TopK = s.topK
	}
	if req.Alpha <= 0 || req.Alpha > 1 {
		req.Alpha = s.alpha
	}
	if req.MaxChars <= 0 {
		req.MaxChars = s.answerMaxChars
	}

	emb, err := s.embedQuery(req.Query)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	hits, err := s.retrieval.SearchHybrid(req.Query, emb, req.TopK, req.Alpha, nil)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, usecase.BuildAnswer(hits, req.MaxChars))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.retrieval.Reset(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.cache.Invalidate()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func parseFilter(r *http.Request) (*domain.Filter, error) {
	q := r.URL.Query()
	f := &domain.Filter{
		DocID:  q.Get("doc_id"),
		Source: q.Get("source"),
	}

	for _, bound := range []struct {
		param string
		dst   **int64
	}{
		{"date_from", &f.DateFrom},
		{"date_to", &f.DateTo},
	} {
		if v := q.Get(bound.param); v != "" {
			ts, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %q", bound.param, v)
			}
			*bound.dst = &ts
		}
	}

	if f.IsZero() {
		return nil, nil
	}
	return f, f.Validate()
}

func filterKey(f *domain.Filter) string {
	if f.IsZero() {
		return ""
	}
	var b strings.Builder
	b.WriteString(f.DocID)
	b.WriteByte(0)
	b.WriteString(f.Source)
	b.WriteByte(0)
	if f.DateFrom != nil {
		b.WriteString(strconv.FormatInt(*f.DateFrom, 10))
	}
	b.WriteByte(0)
	if f.DateTo != nil {
		b.WriteString(strconv.FormatInt(*f.DateTo, 10))
	}
	return b.String()
}

func statusFor(err error) int {
	var dimErr *domain.DimensionMismatchError
	switch {
	case errors.Is(err, domain.ErrInvalidFilterRange), errors.As(err, &dimErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
