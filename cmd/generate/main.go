package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/testweave/testweave/internal/config"
	"github.com/testweave/testweave/internal/corpus"
	"github.com/testweave/testweave/internal/domain"
	"github.com/testweave/testweave/internal/embeddings"
	"github.com/testweave/testweave/internal/genlog"
	"github.com/testweave/testweave/internal/jsonrepair"
	"github.com/testweave/testweave/internal/llm"
	"github.com/testweave/testweave/internal/observability"
	"github.com/testweave/testweave/internal/pipeline"
	"github.com/testweave/testweave/internal/ranking"
	"github.com/testweave/testweave/internal/repository/postgres"
	"github.com/testweave/testweave/internal/repository/redis"
	"github.com/testweave/testweave/internal/semantic"
	"github.com/testweave/testweave/internal/validation"
	"github.com/testweave/testweave/internal/vectorstore"
)

var (
	green  = color.New(color.FgGreen, color.Bold)
	red    = color.New(color.FgRed, color.Bold)
	yellow = color.New(color.FgYellow, color.Bold)
	cyan   = color.New(color.FgCyan, color.Bold)
)

func main() {
	godotenv.Load()

	prompt := flag.String("prompt", "", "Generation request, e.g. \"Generate 3 test cases for the checkout form\"")
	htmlPath := flag.String("html", "", "Optional HTML page under test")
	outPath := flag.String("out", "", "Write accepted test cases as JSON to this path (default: stdout)")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address while running (e.g. :9090)")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	if *prompt == "" {
		fmt.Println("Error: -prompt flag is required")
		fmt.Println("Usage: generate -prompt \"Generate 3 test cases for the checkout form\" [-html page.html] [-out cases.json]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		red.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(*verbose)
	defer logger.Sync()

	var html string
	if *htmlPath != "" {
		data, err := os.ReadFile(*htmlPath)
		if err != nil {
			red.Printf("reading HTML page: %v\n", err)
			os.Exit(1)
		}
		html = string(data)
	}

	metrics := observability.NewMetrics("testweave")
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		go http.ListenAndServe(*metricsAddr, mux)
	}

	var redisClient *goredis.Client
	cache, err := redis.New(cfg.Redis)
	if err != nil {
		yellow.Printf("redis unavailable, caching disabled: %v\n", err)
		cache = nil
	} else {
		defer cache.Close()
		redisClient = cache.Client()
	}

	embedder := embeddings.NewService(cfg.Embeddings, redisClient, logger)
	embedder.OnCacheLookup(metrics.RecordEmbeddingCache)

	store := vectorstore.NewClient(cfg.Qdrant, logger)
	matcher := semantic.NewMatcher(embedder, logger)

	stats := corpus.NewStatsStore(cfg.Corpus.StatsPath, logger)
	if err := stats.Load(); err != nil {
		yellow.Printf("corpus statistics not loaded, BM25 disabled: %v\n", err)
	}

	backend, model := newBackend(cfg, logger)

	audit, err := genlog.NewLogger(genlog.LoggerConfig{Path: cfg.Generation.LogPath}, logger)
	if err != nil {
		yellow.Printf("generation log disabled: %v\n", err)
		audit = nil
	} else {
		defer audit.Close()
	}

	var repos *postgres.Repositories
	if cfg.Database.Enabled {
		db, err := postgres.New(cfg.Database)
		if err != nil {
			red.Printf("database unavailable: %v\n", err)
			os.Exit(1)
		}
		defer db.Close()
		repos = postgres.NewRepositories(db.DB)
		dbStats := db.Stats()
		metrics.SetDBStats(dbStats.InUse, dbStats.Idle)
	}

	p := pipeline.New(*cfg, pipeline.Deps{
		Embedder:  embedder,
		Store:     store,
		Ranker:    ranking.NewRanker(stats, matcher, logger),
		Backend:   backend,
		Recoverer: jsonrepair.NewRecoverer(logger),
		Validator: validation.NewPipeline(cfg.Generation, matcher, logger),
		Matcher:   matcher,
		Cache:     cache,
		Audit:     audit,
		Metrics:   metrics,
		Repos:     repos,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	cyan.Printf("Generating with %s (%s)\n", backend.Name(), model)
	start := time.Now()

	result, err := p.Generate(ctx, pipeline.Request{Prompt: *prompt, HTML: html})
	if err != nil {
		red.Printf("generation failed: %v\n", err)
		os.Exit(1)
	}

	printSummary(result, time.Since(start))

	if len(result.Cases) > 0 {
		if err := writeCases(*outPath, result.Cases); err != nil {
			red.Printf("writing output: %v\n", err)
			os.Exit(1)
		}
	}
}

func newLogger(verbose bool) *zap.Logger {
	if verbose {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	logger, _ := zap.NewProduction()
	return logger
}

func newBackend(cfg *config.Config, logger *zap.Logger) (llm.Backend, string) {
	if cfg.Generation.Backend == "groq" {
		client, err := llm.NewGroqClient(cfg.Groq, logger)
		if err != nil {
			red.Printf("groq backend: %v\n", err)
			os.Exit(1)
		}
		return client, cfg.Groq.Model
	}
	return llm.NewOllamaClient(cfg.Ollama, logger), cfg.Ollama.Model
}

func printSummary(result *pipeline.Result, elapsed time.Duration) {
	switch result.Outcome {
	case domain.RunStatusAborted:
		yellow.Println("Generation aborted by strategy gate")
		fmt.Printf("  %s\n", result.Strategy.Recommendation)
		return
	case domain.RunStatusFallback:
		yellow.Println("Model output unparseable, synthesized a fallback case flagged for review")
	default:
		green.Println("Generation complete")
	}

	fmt.Printf("  Accepted:     %d\n", len(result.Cases))
	fmt.Printf("  Dropped:      %d\n", len(result.Dropped))
	fmt.Printf("  Needs review: %d\n", result.NeedsReview)
	fmt.Printf("  Chunks used:  %d\n", result.ChunksUsed)
	fmt.Printf("  Elapsed:      %s\n", elapsed.Round(time.Millisecond))

	for _, d := range result.Dropped {
		fmt.Printf("  dropped %s: %s\n", d.TestID, d.Reason)
	}
}

func writeCases(path string, cases []domain.TestCase) error {
	data, err := json.MarshalIndent(cases, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
