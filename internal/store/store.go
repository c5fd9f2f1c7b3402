package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/katakuxiko/agrochat/internal/config"
	"github.com/katakuxiko/agrochat/internal/model"
)

var (
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrEmptyEmbedding    = errors.New("chunk has no embedding")
)

// Metadata keys written next to every vector.
const (
	MetaText       = "text"
	MetaSource     = "source"
	MetaPage       = "page"
	MetaChunkIndex = "chunk_index"
)

// VectorIndex is the vector database contract shared by ingestion and chat.
// Upsert is keyed by Chunk.ID; Query returns up to k matches ordered by
// decreasing similarity with their text and source filled in.
type VectorIndex interface {
	Upsert(ctx context.Context, chunks []model.Chunk) error
	Query(ctx context.Context, vector []float32, k int) ([]model.Match, error)
	Close() error
}

// New opens the index selected by cfg.VectorProvider.
func New(ctx context.Context, cfg *config.Config) (VectorIndex, error) {
	switch cfg.VectorProvider {
	case config.ProviderPinecone:
		return NewPineconeStore(ctx, PineconeConfig{
			APIKey:     cfg.PineconeAPIKey,
			IndexName:  cfg.PineconeIndexName,
			Host:       cfg.PineconeIndexHost,
			Namespace:  cfg.PineconeNamespace,
			ControlURL: cfg.PineconeControlURL,
			Timeout:    cfg.RequestTimeout,
		})
	case config.ProviderPGVector:
		return NewPgStore(cfg.PgConn, cfg.EmbedDimension)
	case config.ProviderSQLite:
		return NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("store: provider %q is not supported", cfg.VectorProvider)
	}
}

func checkChunks(chunks []model.Chunk, dimension int) error {
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %s: %w", c.ID, ErrEmptyEmbedding)
		}
		if dimension > 0 && len(c.Embedding) != dimension {
			return fmt.Errorf("chunk %s: %w (got %d want %d)", c.ID, ErrDimensionMismatch, len(c.Embedding), dimension)
		}
	}
	return nil
}

func metadataOf(c model.Chunk) map[string]any {
	return map[string]any{
		MetaText:       c.Text,
		MetaSource:     c.Source,
		MetaPage:       c.Page,
		MetaChunkIndex: c.Index,
	}
}

// matchFromMetadata fills Text and Source from a metadata payload.
func matchFromMetadata(id string, score float64, meta map[string]any) model.Match {
	m := model.Match{ID: id, Score: score, Metadata: meta}
	if v, ok := meta[MetaText].(string); ok {
		m.Text = v
	}
	if v, ok := meta[MetaSource].(string); ok {
		m.Source = v
	}
	return m
}
