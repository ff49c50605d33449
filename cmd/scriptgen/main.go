package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/testweave/testweave/internal/config"
	"github.com/testweave/testweave/internal/domain"
	"github.com/testweave/testweave/internal/embeddings"
	"github.com/testweave/testweave/internal/pagemodel"
	"github.com/testweave/testweave/internal/repository/redis"
	"github.com/testweave/testweave/internal/scriptgen"
	"github.com/testweave/testweave/internal/semantic"
	"github.com/testweave/testweave/internal/stepmapper"
	"github.com/testweave/testweave/internal/supportdocs"
)

var (
	green  = color.New(color.FgGreen, color.Bold)
	red    = color.New(color.FgRed, color.Bold)
	yellow = color.New(color.FgYellow, color.Bold)
	cyan   = color.New(color.FgCyan, color.Bold)
)

func main() {
	godotenv.Load()

	casesFile := flag.String("cases", "", "Path to test cases JSON file (from generate)")
	htmlFile := flag.String("html", "", "Path to the target page HTML (required)")
	framework := flag.String("framework", "", "Output framework: pytest or unittest (default: SCRIPT_STYLE)")
	browser := flag.String("browser", "chrome", "Browser the script drives")
	pageURL := flag.String("url", "", "URL the script opens (default: a file:// placeholder)")
	outFile := flag.String("out", "", "Output path for the script (default: stdout)")
	seed := flag.Int64("seed", 0, "Seed for deterministic value synthesis")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	if *htmlFile == "" {
		fmt.Println("Error: -html flag is required")
		fmt.Println("Usage: scriptgen -cases cases.json -html page.html -out test_page.py")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		red.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}
	style := *framework
	if style == "" {
		style = cfg.Generation.ScriptStyle
	}

	logger := newLogger(*verbose)
	defer logger.Sync()

	html, err := os.ReadFile(*htmlFile)
	if err != nil {
		red.Printf("reading page HTML: %v\n", err)
		os.Exit(1)
	}
	page, err := pagemodel.Parse(string(html))
	if err != nil {
		red.Printf("parsing page HTML: %v\n", err)
		os.Exit(1)
	}

	var cases []domain.TestCase
	if *casesFile != "" {
		data, err := os.ReadFile(*casesFile)
		if err != nil {
			red.Printf("reading test cases: %v\n", err)
			os.Exit(1)
		}
		if err := json.Unmarshal(data, &cases); err != nil {
			red.Printf("parsing test cases: %v\n", err)
			os.Exit(1)
		}
	}

	var redisClient *goredis.Client
	if cache, err := redis.New(cfg.Redis); err == nil {
		defer cache.Close()
		redisClient = cache.Client()
	}
	embedder := embeddings.NewService(cfg.Embeddings, redisClient, logger)
	matcher := semantic.NewMatcher(embedder, logger)

	var docs *supportdocs.Store
	if cfg.Corpus.SupportDir != "" {
		docs = supportdocs.NewStoreFromDir(cfg.Corpus.SupportDir, logger)
	}

	mapper := stepmapper.NewMapper(matcher, embedder, docs, nil, *seed, logger)
	generator := scriptgen.NewGenerator(mapper, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	result, err := generator.Generate(ctx, page, cases, scriptgen.Options{
		Framework: style,
		Browser:   *browser,
		PageURL:   *pageURL,
	})
	if err != nil {
		red.Printf("rendering script: %v\n", err)
		os.Exit(1)
	}

	if *outFile == "" {
		fmt.Print(result.Script)
	} else if err := os.WriteFile(*outFile, []byte(result.Script), 0o644); err != nil {
		red.Printf("writing script: %v\n", err)
		os.Exit(1)
	}

	cyan.Printf("\nScript for %q (%s, %s)\n", result.PageTitle, result.Framework, result.Browser)
	fmt.Printf("├── Test cases covered: %d\n", result.TestCasesCovered)
	fmt.Printf("├── Elements mapped:    %d\n", result.ElementsMapped)
	fmt.Printf("└── Rendered in:        %s\n", time.Since(start).Round(time.Millisecond))
	if len(cases) == 0 {
		yellow.Println("No test cases supplied, emitted a smoke test only")
	}
	if *outFile != "" {
		green.Printf("Wrote %s\n", *outFile)
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
