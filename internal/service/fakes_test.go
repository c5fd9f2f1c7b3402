package service

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"github.com/katakuxiko/agrochat/internal/model"
)

var errBoom = errors.New("boom")

// fakeEmbedder hashes words into a small bag-of-words vector so texts that
// share words end up close to each other.
type fakeEmbedder struct {
	mu     sync.Mutex
	calls  int
	inputs []string
	err    error
	failOn string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.inputs = append(f.inputs, text)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, errBoom
	}
	return bagOfWords(text), nil
}

func (f *fakeEmbedder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func bagOfWords(text string) []float32 {
	vec := make([]float32, 64)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%64]++
	}
	vec[63] += 0.01
	return vec
}

type chatCall struct {
	System string
	Turns  []model.Turn
}

// fakeChat answers rewrite and answer prompts through separate hooks.
type fakeChat struct {
	mu         sync.Mutex
	calls      []chatCall
	rewrite    func(question string) (string, error)
	answer     func(system, question string) (string, error)
	rewriteHit int
	answerHit  int
}

func (f *fakeChat) Complete(_ context.Context, system string, turns []model.Turn) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, chatCall{System: system, Turns: append([]model.Turn(nil), turns...)})
	f.mu.Unlock()

	last := turns[len(turns)-1].Content
	if system == rewriteInstruction {
		f.mu.Lock()
		f.rewriteHit++
		f.mu.Unlock()
		if f.rewrite != nil {
			return f.rewrite(last)
		}
		return last, nil
	}
	f.mu.Lock()
	f.answerHit++
	f.mu.Unlock()
	if f.answer != nil {
		return f.answer(system, last)
	}
	return "answer to: " + last, nil
}

func (f *fakeChat) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeIndex keeps upserted chunks and returns them all on query.
type fakeIndex struct {
	mu       sync.Mutex
	chunks   map[string]model.Chunk
	queries  int
	matches  []model.Match
	queryErr error
	failOn   string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{chunks: map[string]model.Chunk{}}
}

func (f *fakeIndex) Upsert(_ context.Context, chunks []model.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range chunks {
		if f.failOn != "" && strings.Contains(c.Text, f.failOn) {
			return errBoom
		}
		f.chunks[c.ID] = c
	}
	return nil
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, k int) ([]model.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if len(f.matches) > k {
		return f.matches[:k], nil
	}
	return f.matches, nil
}

func (f *fakeIndex) Close() error { return nil }

func (f *fakeIndex) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chunks)
}

func (f *fakeIndex) Queries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

// fakeLoader serves pages from memory.
type fakeLoader struct {
	docs map[string][]model.Page
}

func (f *fakeLoader) Load(_ context.Context, path string) ([]model.Page, error) {
	pages, ok := f.docs[path]
	if !ok {
		return nil, errors.New("no such document")
	}
	return pages, nil
}
