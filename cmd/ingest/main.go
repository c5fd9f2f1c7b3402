package main

import (
	"fmt"
	"os"

	"github.com/katakuxiko/agrochat/internal/chunk"
	"github.com/katakuxiko/agrochat/internal/config"
	"github.com/katakuxiko/agrochat/internal/logger"
	"github.com/katakuxiko/agrochat/internal/pdf"
	"github.com/katakuxiko/agrochat/internal/service"
	"github.com/katakuxiko/agrochat/internal/store"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ingest:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "ingest",
		Usage:     "Load documents, embed their chunks and store them in the vector index",
		ArgsUsage: "[files...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Aliases: []string{"c"},
				Usage:   "Chunks embedded and stored in parallel",
			},
			&cli.IntFlag{
				Name:  "chunk-size",
				Usage: "Maximum chunk length in characters",
			},
			&cli.IntFlag{
				Name:  "chunk-overlap",
				Usage: "Characters shared by consecutive chunks",
			},
		},
		Action: ingestCommand,
	}
}

func ingestCommand(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("concurrency") {
		cfg.IngestConcurrency = c.Int("concurrency")
	}
	if c.IsSet("chunk-size") {
		cfg.ChunkSize = c.Int("chunk-size")
	}
	if c.IsSet("chunk-overlap") {
		cfg.ChunkOverlap = c.Int("chunk-overlap")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	files := cfg.IngestFiles
	if c.Args().Present() {
		files = c.Args().Slice()
	}
	if len(files) == 0 {
		return fmt.Errorf("%w: pass files as arguments or set INGEST_FILES", service.ErrNoDocuments)
	}

	log := logger.NewLogger(&logger.Config{
		Level:  logger.LogLevel(cfg.LogLevel),
		Output: os.Stderr,
		JSON:   cfg.LogJSON,
	})
	logger.SetDefault(log)
	ctx := logger.ContextWithLogger(c.Context, log)

	index, err := store.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("vector index: %w", err)
	}
	defer index.Close()
	log.Info("vector index configured", "provider", cfg.VectorProvider)

	llm, err := service.NewLLMClient(cfg)
	if err != nil {
		return err
	}
	splitter, err := chunk.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return err
	}

	out := c.App.Writer
	in, err := service.NewIngestor(pdf.NewLoader(), splitter, llm, index, cfg.IngestConcurrency,
		service.WithProgress(func(ev service.ProgressEvent) {
			switch ev.Stage {
			case service.StageStarted:
				fmt.Fprintf(out, "Processing %s ...\n", ev.Path)
			case service.StageChunked:
				fmt.Fprintf(out, "Chunking completed for %s (%d chunks)\n", ev.Path, ev.Chunks)
			case service.StageStored:
				fmt.Fprintf(out, "Stored successfully: %s\n", ev.Path)
			case service.StageCompleted:
				fmt.Fprintf(out, "All %d documents processed, %d chunks stored\n", ev.Result.Documents, ev.Result.Stored)
			}
		}),
	)
	if err != nil {
		return err
	}
	defer in.Release()

	_, err = in.Ingest(ctx, files)
	return err
}
