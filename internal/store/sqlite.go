package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/katakuxiko/agrochat/internal/model"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	page INTEGER NOT NULL DEFAULT 0,
	chunk_index INTEGER NOT NULL DEFAULT 0,
	text TEXT NOT NULL,
	embedding BLOB NOT NULL
)`

// SQLiteStore is a local single-file index. Embeddings are stored as
// little-endian float32 blobs and ranked by brute-force cosine similarity.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlite: create dir: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one connection: keeps :memory: databases alive and serialises writers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := checkChunks(chunks, 0); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, source, page, chunk_index, text, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			page = excluded.page,
			chunk_index = excluded.chunk_index,
			text = excluded.text,
			embedding = excluded.embedding`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, c.Source, c.Page, c.Index, c.Text, EncodeEmbedding(c.Embedding)); err != nil {
			return fmt.Errorf("sqlite: upsert %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Query(ctx context.Context, vector []float32, k int) ([]model.Match, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, source, page, chunk_index, text, embedding FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rows.Close()

	var res []model.Match
	for rows.Next() {
		var c model.Chunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.Source, &c.Page, &c.Index, &c.Text, &blob); err != nil {
			return nil, err
		}
		emb, err := DecodeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("sqlite: chunk %s: %w", c.ID, err)
		}
		score, err := CosineSimilarity(vector, emb)
		if err != nil {
			if errors.Is(err, ErrDimensionMismatch) {
				return nil, fmt.Errorf("sqlite: chunk %s: %w", c.ID, err)
			}
			continue
		}
		res = append(res, model.Match{
			ID:       c.ID,
			Score:    score,
			Text:     c.Text,
			Source:   c.Source,
			Metadata: metadataOf(c),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(res, func(i, j int) bool { return res[i].Score > res[j].Score })
	if len(res) > k {
		res = res[:k]
	}
	return res, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func EncodeEmbedding(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

// CosineSimilarity fails on length mismatch and on zero-magnitude vectors.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, errors.New("cosine similarity with zero-magnitude vector")
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
