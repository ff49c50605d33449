package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/testweave/testweave/internal/config"
	"github.com/testweave/testweave/internal/corpus"
	"github.com/testweave/testweave/internal/domain"
	"github.com/testweave/testweave/internal/embeddings"
	"github.com/testweave/testweave/internal/repository/redis"
	"github.com/testweave/testweave/internal/vectorstore"
)

var (
	green  = color.New(color.FgGreen, color.Bold)
	red    = color.New(color.FgRed, color.Bold)
	yellow = color.New(color.FgYellow, color.Bold)
)

// Document extensions accepted into the knowledge base.
var docExtensions = map[string]bool{".md": true, ".txt": true, ".json": true}

func main() {
	godotenv.Load()

	docsDir := flag.String("docs", "", "Documentation directory (default: CORPUS_DOCS_DIR)")
	batchSize := flag.Int("batch", 16, "Embedding batch size")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		red.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	dir := *docsDir
	if dir == "" {
		dir = cfg.Corpus.DocsDir
	}
	if dir == "" {
		fmt.Println("Error: -docs flag or CORPUS_DOCS_DIR is required")
		os.Exit(1)
	}

	logger := newLogger(*verbose)
	defer logger.Sync()

	embedder := embeddings.NewService(cfg.Embeddings, nil, logger)
	store := vectorstore.NewClient(cfg.Qdrant, logger)
	stats := corpus.NewStatsStore(cfg.Corpus.StatsPath, logger)
	chunker := corpus.NewChunker(cfg.Corpus.ChunkSize, cfg.Corpus.ChunkOverlap)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	chunks, files, err := chunkDirectory(chunker, dir)
	if err != nil {
		red.Printf("reading documents: %v\n", err)
		os.Exit(1)
	}
	if len(chunks) == 0 {
		yellow.Printf("no documents found under %s\n", dir)
		os.Exit(0)
	}
	fmt.Printf("Chunked %d documents into %d chunks\n", files, len(chunks))

	if err := store.EnsureCollection(ctx); err != nil {
		red.Printf("preparing collection: %v\n", err)
		os.Exit(1)
	}

	bar := progressbar.Default(int64(len(chunks)), "embedding")
	for start := 0; start < len(chunks); start += *batchSize {
		end := start + *batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}
		vectors, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			red.Printf("\nembedding batch: %v\n", err)
			os.Exit(1)
		}
		for i := range batch {
			batch[i].Embedding = vectors[i]
		}

		if err := store.UpsertChunks(ctx, batch); err != nil {
			red.Printf("\nupserting chunks: %v\n", err)
			os.Exit(1)
		}
		bar.Add(len(batch))
	}

	if _, err := stats.Build(chunks); err != nil {
		red.Printf("building corpus statistics: %v\n", err)
		os.Exit(1)
	}

	// Stale retrieval results must not outlive the corpus they came from
	if cache, err := redis.New(cfg.Redis); err == nil {
		defer cache.Close()
		if err := cache.InvalidateRetrievals(ctx); err != nil {
			yellow.Printf("invalidating retrieval cache: %v\n", err)
		}
	}

	count, err := store.Count(ctx)
	if err == nil {
		fmt.Printf("Collection %s now holds %d points\n", cfg.Qdrant.Collection, count)
	}
	green.Println("Knowledge base ready")
}

func chunkDirectory(chunker *corpus.Chunker, dir string) ([]domain.Chunk, int, error) {
	var chunks []domain.Chunk
	files := 0

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !docExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = filepath.Base(path)
		}

		chunks = append(chunks, chunker.SplitDocument(string(data), rel)...)
		files++
		return nil
	})
	return chunks, files, err
}

func newLogger(verbose bool) *zap.Logger {
	if verbose {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	logger, _ := zap.NewProduction()
	return logger
}
