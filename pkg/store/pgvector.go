// Package store persists chunk and document embeddings in PostgreSQL with
// the pgvector extension and serves cosine-similarity search over them.
package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/dikastis/cylaw/internal/models"
)

// maxTitleRunes caps stored titles. Some decisions carry their whole first
// paragraph as the title.
const maxTitleRunes = 500

type VectorStoreConfig struct {
	ConnString     string
	ChunksTable    string
	DocumentsTable string
	VectorDim      int
	BatchSize      int
	SearchLimit    int
}

type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(config VectorStoreConfig) (*VectorStore, error) {
	if config.ChunksTable == "" {
		config.ChunksTable = "cylaw_chunks"
	}
	if config.DocumentsTable == "" {
		config.DocumentsTable = "cylaw_documents"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768 // nomic-embed-text
	}
	if config.BatchSize == 0 {
		config.BatchSize = 500
	}
	if config.SearchLimit == 0 {
		config.SearchLimit = 10
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize() error {
	ctx := context.Background()

	// Enable pgvector extension
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createChunks := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			doc_id TEXT NOT NULL,
			title TEXT,
			court TEXT,
			year TEXT,
			chunk_index INTEGER,
			court_level TEXT,
			subcourt TEXT,
			jurisdiction TEXT,
			cross_refs TEXT[],
			content TEXT,
			embedding vector(%d)
		)`, vs.config.ChunksTable, vs.config.VectorDim)

	if _, err := vs.pool.Exec(ctx, createChunks); err != nil {
		return fmt.Errorf("failed to create chunks table: %w", err)
	}

	createDocuments := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			doc_id TEXT PRIMARY KEY,
			title TEXT,
			court TEXT,
			year TEXT,
			court_level TEXT,
			subcourt TEXT,
			jurisdiction TEXT,
			content TEXT,
			embedding vector(%d)
		)`, vs.config.DocumentsTable, vs.config.VectorDim)

	if _, err := vs.pool.Exec(ctx, createDocuments); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}

	indexes := []string{
		fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s_embedding_idx
			ON %s
			USING ivfflat (embedding vector_cosine_ops)
			WITH (lists = 100)`,
			vs.config.ChunksTable, vs.config.ChunksTable),
		fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s_court_year_idx
			ON %s (court, year)`,
			vs.config.ChunksTable, vs.config.ChunksTable),
		fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s_embedding_idx
			ON %s
			USING ivfflat (embedding vector_cosine_ops)
			WITH (lists = 100)`,
			vs.config.DocumentsTable, vs.config.DocumentsTable),
	}

	for _, stmt := range indexes {
		if _, err := vs.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// Store upserts chunk rows with their embeddings. chunks[i] pairs with
// embeddings[i]. Rows commit in batches, so a mid-run failure loses at most
// one batch and re-running upserts the rest.
func (vs *VectorStore) Store(ctx context.Context, chunks []models.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunk/embedding count mismatch: %d vs %d", len(chunks), len(embeddings))
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, doc_id, title, court, year, chunk_index,
			court_level, subcourt, jurisdiction, cross_refs, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			cross_refs = EXCLUDED.cross_refs,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding`,
		vs.config.ChunksTable)

	for start := 0; start < len(chunks); start += vs.config.BatchSize {
		end := start + vs.config.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := vs.storeChunkBatch(ctx, stmt, chunks[start:end], embeddings[start:end]); err != nil {
			return err
		}
	}

	return nil
}

func (vs *VectorStore) storeChunkBatch(ctx context.Context, stmt string, chunks []models.Chunk, embeddings [][]float32) error {
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, chunk := range chunks {
		_, err := tx.Exec(ctx, stmt,
			chunk.ID(),
			chunk.DocID,
			truncateTitle(sanitizeUTF8(chunk.Title)),
			chunk.Court,
			chunk.Year,
			chunk.ChunkIndex,
			chunk.CourtLevel,
			chunk.Subcourt,
			chunk.Jurisdiction,
			chunk.CrossRefs,
			sanitizeUTF8(chunk.Text),
			pgvector.NewVector(embeddings[i]),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", chunk.ID(), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// StoreDocuments upserts whole-document rows, one embedding per decision.
func (vs *VectorStore) StoreDocuments(ctx context.Context, docs []models.DocumentRecord, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("document/embedding count mismatch: %d vs %d", len(docs), len(embeddings))
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (doc_id, title, court, year, court_level,
			subcourt, jurisdiction, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (doc_id) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding`,
		vs.config.DocumentsTable)

	for start := 0; start < len(docs); start += vs.config.BatchSize {
		end := start + vs.config.BatchSize
		if end > len(docs) {
			end = len(docs)
		}
		if err := vs.storeDocumentBatch(ctx, stmt, docs[start:end], embeddings[start:end]); err != nil {
			return err
		}
	}

	return nil
}

func (vs *VectorStore) storeDocumentBatch(ctx context.Context, stmt string, docs []models.DocumentRecord, embeddings [][]float32) error {
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, doc := range docs {
		_, err := tx.Exec(ctx, stmt,
			doc.DocID,
			truncateTitle(sanitizeUTF8(doc.Title)),
			doc.Court,
			doc.Year,
			doc.CourtLevel,
			doc.Subcourt,
			doc.Jurisdiction,
			sanitizeUTF8(doc.Content),
			pgvector.NewVector(embeddings[i]),
		)
		if err != nil {
			return fmt.Errorf("failed to insert document %s: %w", doc.DocID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Search returns the chunks nearest to the query embedding under cosine
// distance, optionally narrowed by court and year range. The year column is
// TEXT ("" when detection failed), so range filters cast through NULLIF and
// rows without a year drop out of filtered queries.
func (vs *VectorStore) Search(ctx context.Context, embedding []float32, opts models.SearchOptions) ([]models.SearchResult, error) {
	whereClause, args := buildFilter(embedding, opts)

	limit := opts.Limit
	if limit == 0 {
		limit = vs.config.SearchLimit
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT doc_id, title, court, year, chunk_index, jurisdiction, content,
			embedding <=> $1 AS distance
		FROM %s
		%s
		ORDER BY embedding <=> $1
		LIMIT $%d`,
		vs.config.ChunksTable, whereClause, len(args))

	rows, err := vs.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		err := rows.Scan(
			&r.DocID,
			&r.Title,
			&r.Court,
			&r.Year,
			&r.ChunkIndex,
			&r.Jurisdiction,
			&r.Text,
			&r.Distance,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.Score = scoreFromDistance(r.Distance)
		results = append(results, r)
	}

	return results, rows.Err()
}

// SearchDocuments is the document-level variant of Search, querying one
// embedding per decision instead of per chunk.
func (vs *VectorStore) SearchDocuments(ctx context.Context, embedding []float32, opts models.SearchOptions) ([]models.SearchResult, error) {
	whereClause, args := buildFilter(embedding, opts)

	limit := opts.Limit
	if limit == 0 {
		limit = vs.config.SearchLimit
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT doc_id, title, court, year, jurisdiction, content,
			embedding <=> $1 AS distance
		FROM %s
		%s
		ORDER BY embedding <=> $1
		LIMIT $%d`,
		vs.config.DocumentsTable, whereClause, len(args))

	rows, err := vs.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		err := rows.Scan(
			&r.DocID,
			&r.Title,
			&r.Court,
			&r.Year,
			&r.Jurisdiction,
			&r.Text,
			&r.Distance,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.Score = scoreFromDistance(r.Distance)
		results = append(results, r)
	}

	return results, rows.Err()
}

// buildFilter assembles the WHERE clause for a filtered similarity query.
// $1 is always the query vector; filter parameters follow it.
func buildFilter(embedding []float32, opts models.SearchOptions) (string, []any) {
	args := []any{pgvector.NewVector(embedding)}
	var conds []string

	if opts.Court != "" {
		args = append(args, opts.Court)
		conds = append(conds, fmt.Sprintf("court = $%d", len(args)))
	}
	if opts.YearFrom > 0 {
		args = append(args, opts.YearFrom)
		conds = append(conds, fmt.Sprintf("NULLIF(year, '')::int >= $%d", len(args)))
	}
	if opts.YearTo > 0 {
		args = append(args, opts.YearTo)
		conds = append(conds, fmt.Sprintf("NULLIF(year, '')::int <= $%d", len(args)))
	}

	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// GroupResults folds chunk hits into one group per document, ranked by the
// best chunk score. maxDocs caps the number of groups; 0 means no cap.
func GroupResults(results []models.SearchResult, maxDocs int) []models.GroupedResult {
	groups := make(map[string]*models.GroupedResult)
	var order []string

	for _, r := range results {
		g, ok := groups[r.DocID]
		if !ok {
			groups[r.DocID] = &models.GroupedResult{
				DocID:     r.DocID,
				Title:     r.Title,
				Court:     r.Court,
				Year:      r.Year,
				BestScore: r.Score,
				Chunks:    []models.SearchResult{r},
			}
			order = append(order, r.DocID)
			continue
		}
		g.Chunks = append(g.Chunks, r)
		if r.Score > g.BestScore {
			g.BestScore = r.Score
		}
	}

	grouped := make([]models.GroupedResult, 0, len(order))
	for _, id := range order {
		grouped = append(grouped, *groups[id])
	}
	sort.SliceStable(grouped, func(i, j int) bool {
		return grouped[i].BestScore > grouped[j].BestScore
	})

	if maxDocs > 0 && len(grouped) > maxDocs {
		grouped = grouped[:maxDocs]
	}
	return grouped
}

// CountChunks reports the number of stored chunk rows.
func (vs *VectorStore) CountChunks(ctx context.Context) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", vs.config.ChunksTable)
	if err := vs.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// CountDocuments reports the number of stored document rows.
func (vs *VectorStore) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", vs.config.DocumentsTable)
	if err := vs.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// Analyze refreshes planner statistics after a bulk load.
func (vs *VectorStore) Analyze(ctx context.Context) error {
	for _, table := range []string{vs.config.ChunksTable, vs.config.DocumentsTable} {
		if _, err := vs.pool.Exec(ctx, "ANALYZE "+table); err != nil {
			return fmt.Errorf("failed to analyze %s: %w", table, err)
		}
	}
	return nil
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

// scoreFromDistance maps cosine distance onto a 0-100 relevance scale,
// clamped below at zero and rounded to one decimal.
func scoreFromDistance(distance float64) float64 {
	score := (1 - distance) * 100
	if score < 0 {
		score = 0
	}
	return math.Round(score*10) / 10
}

func truncateTitle(s string) string {
	if utf8.RuneCountInString(s) <= maxTitleRunes {
		return s
	}
	return string([]rune(s)[:maxTitleRunes])
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
