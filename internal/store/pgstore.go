package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/katakuxiko/agrochat/internal/model"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// PgStore keeps chunks in a postgres table with a pgvector column.
type PgStore struct {
	db        *sql.DB
	dimension int
}

func NewPgStore(conn string, dimension int) (*PgStore, error) {
	db, err := sql.Open("postgres", conn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pgvector: connect: %w", err)
	}
	if err := ensureSchema(db, dimension); err != nil {
		db.Close()
		return nil, err
	}
	return &PgStore{db: db, dimension: dimension}, nil
}

func (s *PgStore) Upsert(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := checkChunks(chunks, s.dimension); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgvector: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, source, page, chunk_index, text, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			source = EXCLUDED.source,
			page = EXCLUDED.page,
			chunk_index = EXCLUDED.chunk_index,
			text = EXCLUDED.text,
			embedding = EXCLUDED.embedding,
			updated_at = NOW()
	`)
	if err != nil {
		return fmt.Errorf("pgvector: prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, c.Source, c.Page, c.Index, c.Text, pgvector.NewVector(c.Embedding)); err != nil {
			return fmt.Errorf("pgvector: upsert %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// Query ranks by cosine distance; Score is cosine similarity.
func (s *PgStore) Query(ctx context.Context, vector []float32, k int) ([]model.Match, error) {
	if k <= 0 {
		return nil, nil
	}
	if s.dimension > 0 && len(vector) != s.dimension {
		return nil, fmt.Errorf("pgvector: %w (got %d want %d)", ErrDimensionMismatch, len(vector), s.dimension)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, page, chunk_index, text, 1 - (embedding <=> $1) AS score
		FROM chunks
		ORDER BY embedding <=> $1
		LIMIT $2
	`, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("pgvector: query: %w", err)
	}
	defer rows.Close()

	var res []model.Match
	for rows.Next() {
		var c model.Chunk
		var score float64
		if err := rows.Scan(&c.ID, &c.Source, &c.Page, &c.Index, &c.Text, &score); err != nil {
			return nil, err
		}
		res = append(res, model.Match{
			ID:       c.ID,
			Score:    score,
			Text:     c.Text,
			Source:   c.Source,
			Metadata: metadataOf(c),
		})
	}
	return res, rows.Err()
}

func (s *PgStore) Close() error {
	return s.db.Close()
}
