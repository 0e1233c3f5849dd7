package qdrant

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raglite/internal/domain"
)

func i64(v int64) *int64 { return &v }

// fakeQdrant records requests against the handful of point endpoints the
// store uses.
type fakeQdrant struct {
	mux          *http.ServeMux
	exists       bool
	count        int64
	creates      int
	deleteStatus int
	upserts      []map[string]any
	searches     []map[string]any
	result       []map[string]any
}

func newFakeQdrant(t *testing.T) (*fakeQdrant, *httptest.Server) {
	t.Helper()
	f := &fakeQdrant{mux: http.NewServeMux()}

	f.mux.HandleFunc("GET /collections/test", func(w http.ResponseWriter, r *http.Request) {
		if !f.exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"result":{},"status":"ok"}`))
	})
	f.mux.HandleFunc("PUT /collections/test", func(w http.ResponseWriter, r *http.Request) {
		if f.exists {
			w.WriteHeader(http.StatusConflict)
			return
		}
		f.exists = true
		f.creates++
		w.Write([]byte(`{"result":true,"status":"ok"}`))
	})
	f.mux.HandleFunc("POST /collections/test/points/count", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"count": f.count}})
	})
	f.mux.HandleFunc("PUT /collections/test/points", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.upserts = append(f.upserts, body)
		w.Write([]byte(`{"result":{},"status":"ok"}`))
	})
	f.mux.HandleFunc("POST /collections/test/points/search", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.searches = append(f.searches, body)
		json.NewEncoder(w).Encode(map[string]any{"result": f.result})
	})
	f.mux.HandleFunc("DELETE /collections/test", func(w http.ResponseWriter, r *http.Request) {
		if f.deleteStatus != 0 {
			w.WriteHeader(f.deleteStatus)
			return
		}
		f.exists = false
		f.count = 0
		w.Write([]byte(`{"result":true,"status":"ok"}`))
	})

	ts := httptest.NewServer(f.mux)
	t.Cleanup(ts.Close)
	return f, ts
}

func newTestStore(t *testing.T, f *fakeQdrant, ts *httptest.Server) *Store {
	t.Helper()
	s, err := New(Config{URL: ts.URL, Collection: "test"}, 2)
	require.NoError(t, err)
	return s
}

func TestNewResumesIDFromPointCount(t *testing.T) {
	f, ts := newFakeQdrant(t)
	f.exists = true
	f.count = 7
	s := newTestStore(t, f, ts)

	ids, err := s.Add("doc-1", []string{"a", "b"}, [][]float32{{1, 0}, {0, 1}}, domain.ChunkMeta{})
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 8}, ids)
}

func TestNewReusesExistingCollection(t *testing.T) {
	f, ts := newFakeQdrant(t)
	f.exists = true
	f.count = 3

	s := newTestStore(t, f, ts)

	// No create request against a collection that is already there.
	assert.Equal(t, 0, f.creates)
	ids, err := s.Add("doc-1", []string{"a"}, [][]float32{{1, 0}}, domain.ChunkMeta{})
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids)
}

func TestResetFailsOnDeleteError(t *testing.T) {
	f, ts := newFakeQdrant(t)
	s := newTestStore(t, f, ts)

	f.deleteStatus = http.StatusInternalServerError
	err := s.Reset()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DELETE")
}

func TestAddPayloadOmitsMissingFields(t *testing.T) {
	f, ts := newFakeQdrant(t)
	s := newTestStore(t, f, ts)

	_, err := s.Add("doc-1", []string{"a"}, [][]float32{{3, 4}}, domain.ChunkMeta{})
	require.NoError(t, err)
	_, err = s.Add("doc-2", []string{"b"}, [][]float32{{1, 0}}, domain.ChunkMeta{Source: "wiki", Timestamp: i64(100)})
	require.NoError(t, err)

	require.Len(t, f.upserts, 2)

	first := f.upserts[0]["points"].([]any)[0].(map[string]any)
	payload := first["payload"].(map[string]any)
	assert.NotContains(t, payload, "source")
	assert.NotContains(t, payload, "ts")

	// vectors are normalized before upload
	vec := first["vector"].([]any)
	assert.InDelta(t, 0.6, vec[0].(float64), 1e-6)
	assert.InDelta(t, 0.8, vec[1].(float64), 1e-6)

	second := f.upserts[1]["points"].([]any)[0].(map[string]any)
	payload = second["payload"].(map[string]any)
	assert.Equal(t, "wiki", payload["source"])
	assert.EqualValues(t, 100, payload["ts"])
}

func TestAddDimensionMismatch(t *testing.T) {
	f, ts := newFakeQdrant(t)
	s := newTestStore(t, f, ts)

	_, err := s.Add("doc-1", []string{"a"}, [][]float32{{1, 2, 3}}, domain.ChunkMeta{})
	var dimErr *domain.DimensionMismatchError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 2, dimErr.Expected)
	assert.Equal(t, 3, dimErr.Actual)
	assert.Empty(t, f.upserts)
}

func TestSearchPushesFilterDown(t *testing.T) {
	f, ts := newFakeQdrant(t)
	s := newTestStore(t, f, ts)

	_, err := s.Search([]float32{1, 0}, 3, &domain.Filter{
		DocID:    "doc-1",
		Source:   "wiki",
		DateFrom: i64(100),
		DateTo:   i64(200),
	})
	require.NoError(t, err)

	require.Len(t, f.searches, 1)
	filter := f.searches[0]["filter"].(map[string]any)
	must := filter["must"].([]any)
	require.Len(t, must, 3)

	byKey := map[string]map[string]any{}
	for _, c := range must {
		cond := c.(map[string]any)
		byKey[cond["key"].(string)] = cond
	}
	assert.Equal(t, "doc-1", byKey["doc_id"]["match"].(map[string]any)["value"])
	assert.Equal(t, "wiki", byKey["source"]["match"].(map[string]any)["value"])
	rng := byKey["ts"]["range"].(map[string]any)
	assert.EqualValues(t, 100, rng["gte"])
	assert.EqualValues(t, 200, rng["lte"])
}

func TestSearchNoFilterOmitsCondition(t *testing.T) {
	f, ts := newFakeQdrant(t)
	s := newTestStore(t, f, ts)

	_, err := s.Search([]float32{1, 0}, 3, nil)
	require.NoError(t, err)
	require.Len(t, f.searches, 1)
	assert.NotContains(t, f.searches[0], "filter")
}

func TestSearchInvalidRangeRejectedBeforeRequest(t *testing.T) {
	f, ts := newFakeQdrant(t)
	s := newTestStore(t, f, ts)

	_, err := s.Search([]float32{1, 0}, 3, &domain.Filter{DateFrom: i64(200), DateTo: i64(100)})
	require.ErrorIs(t, err, domain.ErrInvalidFilterRange)
	assert.Empty(t, f.searches)
}

func TestSearchTieBreakByID(t *testing.T) {
	f, ts := newFakeQdrant(t)
	s := newTestStore(t, f, ts)

	f.result = []map[string]any{
		{"id": 5, "score": 0.9, "payload": map[string]any{"doc_id": "b", "text": "tie"}},
		{"id": 2, "score": 0.9, "payload": map[string]any{"doc_id": "a", "text": "tie", "ts": 42}},
	}

	hits, err := s.Search([]float32{1, 0}, 3, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(2), hits[0].ID)
	assert.Equal(t, int64(5), hits[1].ID)
	require.NotNil(t, hits[0].Timestamp)
	assert.EqualValues(t, 42, *hits[0].Timestamp)
	assert.Nil(t, hits[1].Timestamp)
}

func TestResetRestartsIDs(t *testing.T) {
	f, ts := newFakeQdrant(t)
	f.count = 4
	s := newTestStore(t, f, ts)

	require.NoError(t, s.Reset())

	ids, err := s.Add("doc-1", []string{"a"}, [][]float32{{1, 0}}, domain.ChunkMeta{})
	require.NoError(t, err)
	assert.Equal(t, []int64{0}, ids)
}
