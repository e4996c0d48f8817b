package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dikastis/cylaw/internal/models"
	"github.com/dikastis/cylaw/server"
)

type fakeEmbedder struct {
	fail bool
}

func (f *fakeEmbedder) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	if f.fail {
		return nil, errors.New("backend down")
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type fakeSearcher struct {
	gotOpts models.SearchOptions
	results []models.SearchResult
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, _ []float32, opts models.SearchOptions) ([]models.SearchResult, error) {
	f.gotOpts = opts
	return f.results, f.err
}

type fakeChatter struct {
	tokens []string
	err    error
}

func (f *fakeChatter) ChatStream(_ context.Context, _ string, _ []models.SearchResult, fn func(token string)) error {
	if f.err != nil {
		return f.err
	}
	for _, tok := range f.tokens {
		fn(tok)
	}
	return nil
}

func sampleResults() []models.SearchResult {
	return []models.SearchResult{
		{
			DocID:      "supreme/2005/a.md",
			Title:      "Γεωργίου ν. Δημοκρατίας",
			Court:      "supreme",
			Year:       "2005",
			ChunkIndex: 2,
			Text:       "Το δικαστήριο αποφάσισε.",
			Score:      87.5,
		},
	}
}

func newTestServer(t *testing.T, config server.Config, embedder *fakeEmbedder, searcher *fakeSearcher, chatter *fakeChatter) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(server.New(config, embedder, searcher, chatter).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestSearch(t *testing.T) {
	searcher := &fakeSearcher{results: sampleResults()}
	srv := newTestServer(t, server.Config{}, &fakeEmbedder{}, searcher, &fakeChatter{})

	req, err := http.NewRequest(http.MethodGet,
		srv.URL+"/search?query=%CE%B1%CF%80%CE%AC%CF%84%CE%B7&court=supreme&year_from=2000&year_to=2010&n_results=5", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))

	var hits []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&hits))
	require.Len(t, hits, 1)
	assert.Equal(t, "supreme/2005/a.md", hits[0]["doc_id"])
	assert.Equal(t, "Γεωργίου ν. Δημοκρατίας", hits[0]["title"])
	assert.Equal(t, float64(2), hits[0]["chunk_index"])
	assert.Equal(t, 87.5, hits[0]["score"])

	assert.Equal(t, models.SearchOptions{Court: "supreme", YearFrom: 2000, YearTo: 2010, Limit: 5}, searcher.gotOpts)
}

func TestSearch_DefaultLimit(t *testing.T) {
	searcher := &fakeSearcher{}
	srv := newTestServer(t, server.Config{SearchLimit: 7}, &fakeEmbedder{}, searcher, &fakeChatter{})

	resp, err := http.Get(srv.URL + "/search?query=test")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 7, searcher.gotOpts.Limit)

	// No hits still marshals as an array.
	body := new(strings.Builder)
	_, err = io.Copy(body, resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", body.String())
}

func TestSearch_BadRequests(t *testing.T) {
	srv := newTestServer(t, server.Config{}, &fakeEmbedder{}, &fakeSearcher{}, &fakeChatter{})

	for _, path := range []string{
		"/search",
		"/search?query=",
		"/search?query=x&year_from=abc",
		"/search?query=x&year_to=abc",
		"/search?query=x&n_results=0",
	} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
	}
}

func TestSearch_EmbedderDown(t *testing.T) {
	srv := newTestServer(t, server.Config{}, &fakeEmbedder{fail: true}, &fakeSearcher{}, &fakeChatter{})

	resp, err := http.Get(srv.URL + "/search?query=test")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, server.Config{}, &fakeEmbedder{}, &fakeSearcher{}, &fakeChatter{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := new(strings.Builder)
	_, err = io.Copy(body, resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK", body.String())
}

func TestDoc(t *testing.T) {
	casesDir := t.TempDir()
	docPath := filepath.Join(casesDir, "supreme", "2020", "a.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(docPath), 0o755))
	require.NoError(t, os.WriteFile(docPath, []byte("# Υπόθεση 1/2020\n\nΚείμενο.\n"), 0o644))

	srv := newTestServer(t, server.Config{CasesDir: casesDir}, &fakeEmbedder{}, &fakeSearcher{}, &fakeChatter{})

	resp, err := http.Get(srv.URL + "/doc?doc_id=supreme/2020/a.md")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, "supreme/2020/a.md", doc["doc_id"])
	assert.Equal(t, "Υπόθεση 1/2020", doc["title"])
	assert.Contains(t, doc["markdown"], "Κείμενο.")
}

func TestDoc_Traversal(t *testing.T) {
	srv := newTestServer(t, server.Config{CasesDir: t.TempDir()}, &fakeEmbedder{}, &fakeSearcher{}, &fakeChatter{})

	for _, docID := range []string{"../../etc/passwd", "..", "/etc/passwd"} {
		resp, err := http.Get(srv.URL + "/doc?doc_id=" + docID)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, docID)
	}
}

func TestDoc_NotFound(t *testing.T) {
	srv := newTestServer(t, server.Config{CasesDir: t.TempDir()}, &fakeEmbedder{}, &fakeSearcher{}, &fakeChatter{})

	resp, err := http.Get(srv.URL + "/doc?doc_id=missing.md")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, server.Config{}, &fakeEmbedder{}, &fakeSearcher{}, &fakeChatter{})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/search", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3001")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3001", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	srv := newTestServer(t, server.Config{}, &fakeEmbedder{}, &fakeSearcher{}, &fakeChatter{})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://evil.example")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketChat(t *testing.T) {
	searcher := &fakeSearcher{results: sampleResults()}
	chatter := &fakeChatter{tokens: []string{"Η ", "απάντηση."}}
	srv := newTestServer(t, server.Config{}, &fakeEmbedder{}, searcher, chatter)

	conn := dialWS(t, srv)
	require.NoError(t, conn.WriteJSON(server.Message{Type: "chat", Content: "ερώτημα"}))

	var types []string
	var streamed strings.Builder
	var sources any
	for {
		var msg server.Message
		require.NoError(t, conn.ReadJSON(&msg))
		types = append(types, msg.Type)
		switch msg.Type {
		case "stream":
			streamed.WriteString(msg.Content)
		case "sources":
			sources = msg.Data
		}
		if msg.Type == "done" || msg.Type == "error" {
			break
		}
	}

	require.GreaterOrEqual(t, len(types), 4)
	assert.Equal(t, "status", types[0])
	assert.Equal(t, "sources", types[1])
	assert.Equal(t, "done", types[len(types)-1])
	assert.Equal(t, "Η απάντηση.", streamed.String())

	hits, ok := sources.([]any)
	require.True(t, ok)
	require.Len(t, hits, 1)
	hit, ok := hits[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "supreme/2005/a.md", hit["doc_id"])
}

func TestWebSocketChat_UnknownType(t *testing.T) {
	srv := newTestServer(t, server.Config{}, &fakeEmbedder{}, &fakeSearcher{}, &fakeChatter{})

	conn := dialWS(t, srv)
	require.NoError(t, conn.WriteJSON(server.Message{Type: "ping"}))

	var msg server.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Content, "unknown message type")
}

func TestWebSocketChat_ChatFailure(t *testing.T) {
	searcher := &fakeSearcher{results: sampleResults()}
	chatter := &fakeChatter{err: errors.New("model offline")}
	srv := newTestServer(t, server.Config{}, &fakeEmbedder{}, searcher, chatter)

	conn := dialWS(t, srv)
	require.NoError(t, conn.WriteJSON(server.Message{Type: "chat", Content: "ερώτημα"}))

	var last server.Message
	for {
		require.NoError(t, conn.ReadJSON(&last))
		if last.Type == "done" || last.Type == "error" {
			break
		}
	}
	assert.Equal(t, "error", last.Type)
	assert.Contains(t, last.Content, "model offline")
}
