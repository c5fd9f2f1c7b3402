package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/katakuxiko/agrochat/internal/chunk"
	"github.com/katakuxiko/agrochat/internal/memory"
	"github.com/katakuxiko/agrochat/internal/model"
	"github.com/katakuxiko/agrochat/internal/pdf"
	"github.com/katakuxiko/agrochat/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeline_IngestThenChat(t *testing.T) {
	ctx := context.Background()
	const sentence = "Rice requires standing water during the vegetative stage."

	path := filepath.Join(t.TempDir(), "rice.txt")
	require.NoError(t, os.WriteFile(path, []byte(sentence+"\n"), 0o644))

	index, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer index.Close()

	embedder := &fakeEmbedder{}
	splitter, err := chunk.NewSplitter(chunk.DefaultSize, chunk.DefaultOverlap)
	require.NoError(t, err)
	in, err := NewIngestor(pdf.NewLoader(), renameSource{splitter, "rice.pdf"}, embedder, index, 2)
	require.NoError(t, err)
	defer in.Release()

	res, err := in.Ingest(ctx, []string{path})
	require.NoError(t, err)
	require.Equal(t, 1, res.Stored)

	llm := &fakeChat{
		answer: func(system, question string) (string, error) {
			if strings.Contains(system, "standing water") {
				return "Keep the paddy field flooded: rice needs standing water through the vegetative stage.", nil
			}
			return "I could not find that in the knowledge base.", nil
		},
	}
	svc := NewRAGService(embedder, index, llm, memory.NewLRUStore(10, time.Minute), NewGuard(nil), RAGOptions{
		TopK:    10,
		Persona: "You are a Kerala Agriculture Expert.",
	})

	out, err := svc.Chat(ctx, "farmer", "How much water does rice need?")
	require.NoError(t, err)
	assert.Contains(t, out.Context, sentence)
	assert.NotEqual(t, NoContext, out.Context)
	require.Len(t, out.Matches, 1)
	assert.Equal(t, "rice.pdf", out.Matches[0].Source)
	assert.Contains(t, out.Answer, "water")
	assert.Contains(t, out.Answer, "flooded")
}

// renameSource tags chunks with a fixed source name.
type renameSource struct {
	*chunk.Splitter
	source string
}

func (r renameSource) Split(pages []model.Page) ([]model.Chunk, error) {
	for i := range pages {
		pages[i].Source = r.source
	}
	return r.Splitter.Split(pages)
}
