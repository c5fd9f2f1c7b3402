package store

import (
	"database/sql"
	"fmt"
)

// ensureSchema создаёт расширение, таблицу и индексы для pgvector
func ensureSchema(db *sql.DB, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("pgvector schema: %w (dimension %d)", ErrDimensionMismatch, dimension)
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			page INTEGER NOT NULL DEFAULT 0,
			chunk_index INTEGER NOT NULL DEFAULT 0,
			text TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, dimension),
		`CREATE INDEX IF NOT EXISTS chunks_source_idx ON chunks (source)`,
		`CREATE INDEX IF NOT EXISTS chunks_embedding_hnsw_idx ON chunks USING hnsw (embedding vector_cosine_ops)`,
	}

	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("pgvector schema: %w", err)
		}
	}

	// ANALYZE для актуальной статистики планировщика
	_, _ = db.Exec(`ANALYZE chunks`)
	return nil
}
