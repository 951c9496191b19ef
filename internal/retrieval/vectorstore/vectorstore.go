// Package vectorstore implements the default VectorStoreCapability:
// a sqlite-vec backed store (github.com/asg017/sqlite-vec-go-bindings +
// github.com/mattn/go-sqlite3) using a vec0 virtual table queried with
// vec_distance_cosine, grounded on the teacher pack's
// theRebelliousNerd-codenerd internal/store (init_vec.go's extension
// registration, vector_store.go's cosine-similarity ranking). Embeddings
// for AddDocuments are produced via google.golang.org/genai, mirroring the
// teacher's internal/semantic.Embedder.
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	vec.Auto()
}

// Hit is one result returned by Search, matching spec.md §6's vector
// store capability shape (distance is cosine, in [0,2]).
type Hit struct {
	ID       string
	Content  string
	Metadata map[string]string
	Distance float64
}

// Embedder produces embeddings for documents and queries. The default
// implementation wraps google.golang.org/genai's Models.EmbedContent; it
// is injected so tests and alternate deployments can substitute a stub.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher is the capability EvidenceRetriever depends on for vector
// queries; Store additionally exposes AddDocuments for ingestion.
type Searcher interface {
	Search(ctx context.Context, queryText string, k int) ([]Hit, error)
}

// Store is the default Searcher implementation.
type Store struct {
	db       *sql.DB
	embedder Embedder
	dims     int
}

// Config configures Store construction.
type Config struct {
	DBPath     string // persistence directory/file; ":memory:" for ephemeral stores
	Dimensions int    // embedding vector width, e.g. 768 for text-embedding-004
}

// Open creates (if absent) the backing sqlite database and its vec0
// virtual table, then returns a ready Store.
func Open(cfg Config, embedder Embedder) (*Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = ":memory:"
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 768
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: open %s: %w", cfg.DBPath, err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		rowid INTEGER PRIMARY KEY,
		doc_id TEXT UNIQUE NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("vectorstore: create documents table: %w", err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vec_documents USING vec0(embedding float[%d])`,
		cfg.Dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("vectorstore: create vec0 table: %w", err)
	}

	return &Store{db: db, embedder: embedder, dims: cfg.Dimensions}, nil
}

// Close releases the backing database handle.
func (s *Store) Close() error { return s.db.Close() }

// AddDocuments embeds and persists texts under ids, with accompanying
// metadata, per spec.md §6's add_documents(ids, texts, metadatas).
func (s *Store) AddDocuments(ctx context.Context, ids, texts []string, metadatas []map[string]string) error {
	if len(ids) != len(texts) {
		return fmt.Errorf("vectorstore: ids and texts length mismatch (%d vs %d)", len(ids), len(texts))
	}

	embeddings, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("vectorstore: embed documents: %w", err)
	}
	if len(embeddings) != len(texts) {
		return fmt.Errorf("vectorstore: embedder returned %d vectors for %d texts", len(embeddings), len(texts))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vectorstore: begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, id := range ids {
		var metaJSON string
		if i < len(metadatas) {
			metaJSON = encodeMetadata(metadatas[i])
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO documents(doc_id, content, metadata) VALUES (?, ?, ?)
			 ON CONFLICT(doc_id) DO UPDATE SET content = excluded.content, metadata = excluded.metadata`,
			id, texts[i], metaJSON,
		)
		if err != nil {
			return fmt.Errorf("vectorstore: insert document %q: %w", id, err)
		}
		rowID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("vectorstore: resolve rowid for %q: %w", id, err)
		}

		blob := encodeVector(embeddings[i])
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vec_documents(rowid, embedding) VALUES (?, ?)
			 ON CONFLICT(rowid) DO UPDATE SET embedding = excluded.embedding`,
			rowID, blob,
		); err != nil {
			return fmt.Errorf("vectorstore: insert embedding for %q: %w", id, err)
		}
	}

	return tx.Commit()
}

// Search implements Searcher: embeds queryText, ranks by
// vec_distance_cosine ascending, and returns the top k hits.
func (s *Store) Search(ctx context.Context, queryText string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 5
	}

	embeddings, err := s.embedder.Embed(ctx, []string{queryText})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("vectorstore: embedder returned no vector for query")
	}
	queryBlob := encodeVector(embeddings[0])

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.doc_id, d.content, d.metadata, vec_distance_cosine(v.embedding, ?) AS distance
		FROM vec_documents v
		JOIN documents d ON d.rowid = v.rowid
		ORDER BY distance ASC
		LIMIT ?
	`, queryBlob, k)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search query: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var id, content string
		var metaJSON sql.NullString
		var distance float64
		if err := rows.Scan(&id, &content, &metaJSON, &distance); err != nil {
			return nil, fmt.Errorf("vectorstore: scan result row: %w", err)
		}
		hits = append(hits, Hit{
			ID:       id,
			Content:  content,
			Metadata: decodeMetadata(metaJSON.String),
			Distance: distance,
		})
	}
	return hits, rows.Err()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func encodeMetadata(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}

func decodeMetadata(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	var m map[string]string
	// Best-effort; metadata is diagnostic and never required for ranking.
	_ = json.Unmarshal([]byte(raw), &m)
	return m
}
