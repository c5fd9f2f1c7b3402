package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/katakuxiko/agrochat/internal/logger"
	"github.com/katakuxiko/agrochat/internal/metrics"
	"github.com/katakuxiko/agrochat/internal/model"
	"github.com/katakuxiko/agrochat/internal/store"
	"github.com/panjf2000/ants/v2"
)

type DocumentLoader interface {
	Load(ctx context.Context, path string) ([]model.Page, error)
}

type ChunkSplitter interface {
	Split(pages []model.Page) ([]model.Chunk, error)
}

type Stage string

const (
	StageStarted   Stage = "started"
	StageChunked   Stage = "chunked"
	StageStored    Stage = "stored"
	StageCompleted Stage = "completed"
)

type ProgressEvent struct {
	Stage  Stage
	Path   string
	Chunks int
	Result IngestResult
}

type IngestResult struct {
	Documents int
	Chunks    int
	Stored    int
}

// Ingestor loads, splits, embeds and stores documents one at a time. Chunks
// of a document are embedded and upserted concurrently on a bounded pool.
type Ingestor struct {
	loader   DocumentLoader
	splitter ChunkSplitter
	embedder Embedder
	index    store.VectorIndex
	pool     *ants.Pool
	progress func(ProgressEvent)
	metrics  *metrics.Metrics
}

type IngestOption func(*Ingestor)

func WithProgress(fn func(ProgressEvent)) IngestOption {
	return func(in *Ingestor) { in.progress = fn }
}

func WithIngestMetrics(m *metrics.Metrics) IngestOption {
	return func(in *Ingestor) { in.metrics = m }
}

func NewIngestor(
	loader DocumentLoader,
	splitter ChunkSplitter,
	embedder Embedder,
	index store.VectorIndex,
	concurrency int,
	opts ...IngestOption,
) (*Ingestor, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return nil, fmt.Errorf("ingest pool: %w", err)
	}
	in := &Ingestor{
		loader:   loader,
		splitter: splitter,
		embedder: embedder,
		index:    index,
		pool:     pool,
	}
	for _, o := range opts {
		o(in)
	}
	return in, nil
}

// Release stops the worker pool.
func (in *Ingestor) Release() {
	in.pool.Release()
}

// Ingest processes paths in order. The first failing document aborts the run;
// chunks stored before the failure stay in the index.
func (in *Ingestor) Ingest(ctx context.Context, paths []string) (IngestResult, error) {
	log := logger.FromContext(ctx)
	var res IngestResult
	if len(paths) == 0 {
		return res, ErrNoDocuments
	}
	start := time.Now()

	for _, path := range paths {
		log.Info("processing document", "path", path)
		in.emit(ProgressEvent{Stage: StageStarted, Path: path, Result: res})

		pages, err := in.loader.Load(ctx, path)
		if err != nil {
			return res, fmt.Errorf("%s: load: %w", path, err)
		}
		chunks, err := in.splitter.Split(pages)
		if err != nil {
			return res, fmt.Errorf("%s: %w", path, err)
		}
		res.Chunks += len(chunks)
		log.Info("chunking completed", "path", path, "pages", len(pages), "chunks", len(chunks))
		in.emit(ProgressEvent{Stage: StageChunked, Path: path, Chunks: len(chunks), Result: res})

		stored, err := in.store(ctx, chunks)
		res.Stored += stored
		in.metrics.AddChunks(stored)
		if err != nil {
			return res, fmt.Errorf("%s: %w", path, err)
		}
		res.Documents++
		in.metrics.IncDocuments()
		log.Info("stored successfully", "path", path, "chunks", stored)
		in.emit(ProgressEvent{Stage: StageStored, Path: path, Chunks: stored, Result: res})
	}

	log.Info("all documents processed and stored",
		"documents", res.Documents,
		"chunks", res.Stored,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	in.emit(ProgressEvent{Stage: StageCompleted, Result: res})
	return res, nil
}

// store embeds and upserts chunks on the pool and waits for all of them.
// The first error cancels the remaining work.
func (in *Ingestor) store(ctx context.Context, chunks []model.Chunk) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
		stored   atomic.Int64
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i := range chunks {
		c := chunks[i]
		wg.Add(1)
		err := in.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			vec, err := in.embedder.Embed(ctx, c.Text)
			if err != nil {
				fail(fmt.Errorf("embedding error: chunk %d: %w", c.Index, err))
				return
			}
			c.Embedding = vec
			if err := in.index.Upsert(ctx, []model.Chunk{c}); err != nil {
				fail(fmt.Errorf("upsert error: chunk %d: %w", c.Index, err))
				return
			}
			stored.Add(1)
		})
		if err != nil {
			wg.Done()
			fail(fmt.Errorf("submit chunk %d: %w", c.Index, err))
			break
		}
	}
	wg.Wait()

	if firstErr == nil && ctx.Err() != nil {
		firstErr = ctx.Err()
	}
	return int(stored.Load()), firstErr
}

func (in *Ingestor) emit(ev ProgressEvent) {
	if in.progress != nil {
		in.progress(ev)
	}
}
