// Package chunk splits extracted pages into overlapping, source-tagged chunks.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/katakuxiko/agrochat/internal/model"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// Splitter applies a recursive character split (paragraph, line, word, rune)
// with a fixed size and overlap measured in runes.
type Splitter struct {
	size     int
	overlap  int
	splitter textsplitter.RecursiveCharacter
}

func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, errors.New("chunk: size must be greater than zero")
	}
	if overlap < 0 {
		return nil, errors.New("chunk: overlap cannot be negative")
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk: overlap %d must be smaller than size %d", overlap, size)
	}
	return &Splitter{
		size:    size,
		overlap: overlap,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
		),
	}, nil
}

// Split chunks the pages of one document in page order. Chunk.Index counts
// across the whole document so IDs stay unique per source.
func (s *Splitter) Split(pages []model.Page) ([]model.Chunk, error) {
	var chunks []model.Chunk
	idx := 0
	for _, p := range pages {
		parts, err := s.splitter.SplitText(p.Text)
		if err != nil {
			return nil, fmt.Errorf("chunk: split %s page %d: %w", p.Source, p.Number, err)
		}
		for _, part := range parts {
			text := strings.TrimSpace(part)
			if text == "" {
				continue
			}
			chunks = append(chunks, model.Chunk{
				ID:     ID(p.Source, p.Number, idx, text),
				Text:   text,
				Source: p.Source,
				Page:   p.Number,
				Index:  idx,
			})
			idx++
		}
	}
	return chunks, nil
}

// ID is the stable identity of a chunk; re-ingesting the same document yields
// the same IDs, so stores overwrite instead of duplicating.
func ID(source string, page, index int, text string) string {
	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(page)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(index)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
