package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raglite/internal/adapter/analyzer"
	"raglite/internal/adapter/chunker"
	"raglite/internal/adapter/embedding"
	"raglite/internal/adapter/lexical"
	"raglite/internal/adapter/store"
	"raglite/internal/adapter/vectorstore"
	"raglite/internal/domain"
	"raglite/internal/usecase"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	embedder := embedding.NewMockEmbedder(64)
	chunks, err := store.NewBoltStore(filepath.Join(t.TempDir(), "chunks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { chunks.Close() })

	retrieval := usecase.NewRetrieval(
		vectorstore.NewMemory(embedder.Dimension()),
		lexical.New(analyzer.NewTokenizer(), lexical.DefaultK1, lexical.DefaultB),
		chunks,
		zerolog.Nop(),
	)

	srv := New(retrieval, embedder, chunker.NewParagraphChunker(200, 20), Options{
		TopK:           5,
		Alpha:          0.6,
		AnswerMaxChars: 600,
		CacheSize:      16,
	}, zerolog.Nop())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func ingestDoc(t *testing.T, ts *httptest.Server, docID, text string) {
	t.Helper()
	body, err := json.Marshal(map[string]any{"doc_id": docID, "text": text})
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+"/ingest", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "ok", out["status"])
	assert.EqualValues(t, 64, out["dim"])
	assert.EqualValues(t, 0, out["chunks"])
}

func TestIngestAndSearch(t *testing.T) {
	ts := newTestServer(t)

	ingestDoc(t, ts, "doc-1", "the quick brown fox jumps over the lazy dog")
	ingestDoc(t, ts, "doc-2", "a slow green turtle crawls under the bridge")

	for _, mode := range []string{"vector", "lexical", "hybrid"} {
		t.Run(mode, func(t *testing.T) {
			resp, err := http.Get(ts.URL + "/search?q=quick+fox&mode=" + mode)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var out struct {
				Results []hitJSON `json:"results"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
			require.NotEmpty(t, out.Results)
			assert.Equal(t, "doc-1", out.Results[0].DocID)
		})
	}
}

func TestIngestRejectsEmpty(t *testing.T) {
	ts := newTestServer(t)

	for name, body := range map[string]string{
		"missing doc_id": `{"text":"hello"}`,
		"missing text":   `{"doc_id":"d1"}`,
		"blank text":     `{"doc_id":"d1","text":"   "}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/ingest", "application/json", bytes.NewBufferString(body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestSearchFilter(t *testing.T) {
	ts := newTestServer(t)

	body, err := json.Marshal(map[string]any{
		"doc_id": "doc-a", "text": "alpha beta gamma", "source": "wiki", "ts": 100,
	})
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+"/ingest", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ingestDoc(t, ts, "doc-b", "alpha delta epsilon")

	resp, err = http.Get(ts.URL + "/search?q=alpha&mode=hybrid&source=wiki")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Results []hitJSON `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.Results)
	for _, h := range out.Results {
		assert.Equal(t, "doc-a", h.DocID)
		assert.Equal(t, "wiki", h.Source)
	}
}

func TestSearchInvalidDateRange(t *testing.T) {
	ts := newTestServer(t)
	ingestDoc(t, ts, "doc-1", "some indexed text")

	resp, err := http.Get(ts.URL + "/search?q=text&date_from=200&date_to=100")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchParamValidation(t *testing.T) {
	ts := newTestServer(t)

	for name, url := range map[string]string{
		"empty query":   "/search?q=",
		"bad k":         "/search?q=x&k=zero",
		"negative k":    "/search?q=x&k=-1",
		"alpha too big": "/search?q=x&alpha=1.5",
		"bad date":      "/search?q=x&date_from=yesterday",
		"unknown mode":  "/search?q=x&mode=fuzzy",
	} {
		t.Run(name, func(t *testing.T) {
			resp, err := http.Get(ts.URL + url)
			require.NoError(t, err)
			defer resp.Body.Close()
			if name == "unknown mode" {
				assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
			} else {
				assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			}
		})
	}
}

func TestAnswer(t *testing.T) {
	ts := newTestServer(t)
	ingestDoc(t, ts, "doc-1", "the moon orbits the earth")

	body := bytes.NewBufferString(`{"query":"moon orbit"}`)
	resp, err := http.Post(ts.URL+"/answer", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out domain.Answer
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.NotEmpty(t, out.Text)
	require.NotEmpty(t, out.Citations)
	assert.Equal(t, "doc-1", out.Citations[0].DocID)
}

func TestResetClearsIndex(t *testing.T) {
	ts := newTestServer(t)
	ingestDoc(t, ts, "doc-1", "ephemeral content")

	resp, err := http.Post(ts.URL+"/reset", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/search?q=ephemeral")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Results []hitJSON `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Empty(t, out.Results)
}

func TestSearchCacheInvalidatedByIngest(t *testing.T) {
	ts := newTestServer(t)
	ingestDoc(t, ts, "doc-1", "shared token apple")

	fetch := func() int {
		resp, err := http.Get(ts.URL + "/search?q=apple&mode=lexical")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out struct {
			Results []hitJSON `json:"results"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return len(out.Results)
	}

	require.Equal(t, 1, fetch())
	// warm cache, then mutate; the stale entry must not be served
	ingestDoc(t, ts, "doc-2", "another mention of apple")
	assert.Equal(t, 2, fetch())
}

func TestAnswerDedupAcrossChunks(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 3; i++ {
		ingestDoc(t, ts, fmt.Sprintf("doc-%d", i), "identical passage about comets")
	}

	body := bytes.NewBufferString(`{"query":"comets","k":3}`)
	resp, err := http.Post(ts.URL+"/answer", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out domain.Answer
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "identical passage about comets", out.Text)
}
