// Package server exposes the corpus over HTTP: a JSON similarity-search
// endpoint for the frontend, a document viewer, a health check and a
// websocket chat that retrieves matching case excerpts before answering.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/dikastis/cylaw/internal/models"
)

// Embedder turns the user's query into a vector.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher serves filtered similarity search over stored chunks.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, opts models.SearchOptions) ([]models.SearchResult, error)
}

// Chatter answers a query grounded on retrieved excerpts, streaming tokens.
type Chatter interface {
	ChatStream(ctx context.Context, query string, results []models.SearchResult, fn func(token string)) error
}

// Message is the websocket frame in both directions. Clients send
// {type:"chat", content:query}; the server answers with status, sources,
// stream, done and error frames.
type Message struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Data    any    `json:"data,omitempty"`
}

type Config struct {
	Port           int
	AllowedOrigins []string
	CasesDir       string
	SearchLimit    int
}

type Server struct {
	config   Config
	embedder Embedder
	store    Searcher
	chat     Chatter
	upgrader websocket.Upgrader
}

func New(config Config, embedder Embedder, store Searcher, chat Chatter) *Server {
	if config.Port == 0 {
		config.Port = 8100
	}
	if config.SearchLimit == 0 {
		config.SearchLimit = 10
	}
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = []string{
			"http://localhost:3000",
			"http://localhost:3001",
			"http://localhost:3002",
			"http://localhost:3003",
		}
	}

	s := &Server{
		config:   config,
		embedder: embedder,
		store:    store,
		chat:     chat,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Non-browser clients send no Origin header.
			origin := r.Header.Get("Origin")
			return origin == "" || s.originAllowed(origin)
		},
	}
	return s
}

// Handler builds the route table. Split from Run so tests can mount it on
// an httptest server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", s.handleSearch)
	mux.HandleFunc("/doc", s.handleDoc)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return s.withCORS(mux)
}

func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("starting server on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// searchHit is the wire shape of one search result.
type searchHit struct {
	DocID      string  `json:"doc_id"`
	Title      string  `json:"title"`
	Court      string  `json:"court"`
	Year       string  `json:"year"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

func toHits(results []models.SearchResult) []searchHit {
	hits := make([]searchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, searchHit{
			DocID:      r.DocID,
			Title:      r.Title,
			Court:      r.Court,
			Year:       r.Year,
			ChunkIndex: r.ChunkIndex,
			Text:       r.Text,
			Score:      r.Score,
		})
	}
	return hits
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	params := r.URL.Query()
	query := strings.TrimSpace(params.Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter required")
		return
	}

	opts := models.SearchOptions{
		Court: params.Get("court"),
		Limit: s.config.SearchLimit,
	}

	var err error
	if opts.YearFrom, err = yearParam(params.Get("year_from")); err != nil {
		writeError(w, http.StatusBadRequest, "year_from must be a year")
		return
	}
	if opts.YearTo, err = yearParam(params.Get("year_to")); err != nil {
		writeError(w, http.StatusBadRequest, "year_to must be a year")
		return
	}
	if raw := params.Get("n_results"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "n_results must be a positive integer")
			return
		}
		opts.Limit = n
	}

	embeddings, err := s.embedder.CreateEmbedding(r.Context(), []string{query})
	if err != nil {
		log.Printf("embedding query: %v", err)
		writeError(w, http.StatusBadGateway, "failed to embed query")
		return
	}
	if len(embeddings) == 0 {
		writeError(w, http.StatusBadGateway, "failed to embed query")
		return
	}

	results, err := s.store.Search(r.Context(), embeddings[0], opts)
	if err != nil {
		log.Printf("searching: %v", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	writeJSON(w, http.StatusOK, toHits(results))
}

// handleDoc serves one parsed decision as raw Markdown. doc_id is the
// corpus-relative path; anything escaping the cases directory is rejected.
func (s *Server) handleDoc(w http.ResponseWriter, r *http.Request) {
	if s.config.CasesDir == "" {
		writeError(w, http.StatusNotFound, "document viewer disabled")
		return
	}

	docID := r.URL.Query().Get("doc_id")
	if docID == "" {
		writeError(w, http.StatusBadRequest, "doc_id parameter required")
		return
	}

	clean := filepath.Clean(filepath.FromSlash(docID))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}

	data, err := os.ReadFile(filepath.Join(s.config.CasesDir, clean))
	if os.IsNotExist(err) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		log.Printf("reading document %s: %v", docID, err)
		writeError(w, http.StatusInternalServerError, "failed to read document")
		return
	}

	text := string(data)
	writeJSON(w, http.StatusOK, map[string]string{
		"doc_id":   docID,
		"title":    docTitle(text),
		"markdown": text,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Messages are handled one at a time: the connection has a single
	// writer, and a chat answer should finish streaming before the next
	// question starts.
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket read: %v", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.sendMessage(conn, "error", "invalid message")
			continue
		}

		switch msg.Type {
		case "chat":
			s.handleChatMessage(r.Context(), conn, msg)
		default:
			s.sendMessage(conn, "error", fmt.Sprintf("unknown message type: %s", msg.Type))
		}
	}
}

func (s *Server) handleChatMessage(ctx context.Context, conn *websocket.Conn, msg Message) {
	query := strings.TrimSpace(msg.Content)
	if query == "" {
		s.sendMessage(conn, "error", "empty query")
		return
	}

	s.sendMessage(conn, "status", "Searching case law...")

	embeddings, err := s.embedder.CreateEmbedding(ctx, []string{query})
	if err != nil {
		s.sendMessage(conn, "error", fmt.Sprintf("failed to embed query: %v", err))
		return
	}
	if len(embeddings) == 0 {
		s.sendMessage(conn, "error", "failed to embed query")
		return
	}

	results, err := s.store.Search(ctx, embeddings[0], models.SearchOptions{Limit: s.config.SearchLimit})
	if err != nil {
		s.sendMessage(conn, "error", fmt.Sprintf("search failed: %v", err))
		return
	}

	s.send(conn, Message{Type: "sources", Data: toHits(results)})

	err = s.chat.ChatStream(ctx, query, results, func(token string) {
		s.sendMessage(conn, "stream", token)
	})
	if err != nil {
		s.sendMessage(conn, "error", fmt.Sprintf("chat failed: %v", err))
		return
	}

	s.sendMessage(conn, "done", "")
}

func (s *Server) sendMessage(conn *websocket.Conn, msgType string, content string) {
	s.send(conn, Message{Type: msgType, Content: content})
}

func (s *Server) send(conn *websocket.Conn, msg Message) {
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("sending message: %v", err)
	}
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST")
			w.Header().Set("Access-Control-Allow-Headers", "*")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.config.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

func yearParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// docTitle takes the first line of a parsed decision, minus the heading
// marker, capped the way titles are stored.
func docTitle(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	title := strings.TrimSpace(strings.TrimPrefix(line, "# "))
	if utf8.RuneCountInString(title) > 200 {
		title = string([]rune(title)[:200])
	}
	return title
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
