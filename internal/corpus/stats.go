package corpus

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/testweave/testweave/internal/domain"
)

// BM25 parameters.
const (
	bm25K1        = 1.5
	bm25B         = 0.75
	bm25AvgDocLen = 500.0
)

var wordPattern = regexp.MustCompile(`\w+`)

// Stats holds corpus-wide document frequencies for BM25 scoring.
type Stats struct {
	TotalDocs   int            `json:"total_docs"`
	DFMap       map[string]int `json:"df_map"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// StatsStore keeps the active corpus statistics behind an atomic pointer.
// Readers always see a complete snapshot; rebuilds swap it in one step.
type StatsStore struct {
	path    string
	logger  *zap.Logger
	current atomic.Pointer[Stats]
}

// NewStatsStore creates a stats store persisting to path.
func NewStatsStore(path string, logger *zap.Logger) *StatsStore {
	s := &StatsStore{path: path, logger: logger}
	s.current.Store(&Stats{DFMap: map[string]int{}})
	return s
}

// Build computes document frequencies over the chunks, swaps the snapshot
// and persists it.
func (s *StatsStore) Build(chunks []domain.Chunk) (*Stats, error) {
	dfMap := make(map[string]int)
	for _, chunk := range chunks {
		seen := make(map[string]struct{})
		for _, term := range Tokenize(chunk.Text) {
			seen[term] = struct{}{}
		}
		for term := range seen {
			dfMap[term]++
		}
	}

	stats := &Stats{
		TotalDocs:   len(chunks),
		DFMap:       dfMap,
		GeneratedAt: time.Now(),
	}
	s.current.Store(stats)

	if err := s.save(stats); err != nil {
		return stats, err
	}

	s.logger.Info("built corpus statistics",
		zap.Int("chunks", stats.TotalDocs),
		zap.Int("unique_terms", len(dfMap)),
	)
	return stats, nil
}

// Load reads persisted statistics and swaps them in. A missing file leaves
// the current snapshot untouched.
func (s *StatsStore) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug("no corpus statistics on disk", zap.String("path", s.path))
			return nil
		}
		return fmt.Errorf("reading corpus stats: %w", err)
	}

	var stats Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		return fmt.Errorf("parsing corpus stats: %w", err)
	}
	if stats.DFMap == nil {
		stats.DFMap = map[string]int{}
	}
	s.current.Store(&stats)

	s.logger.Info("loaded corpus statistics",
		zap.Int("docs", stats.TotalDocs),
		zap.Int("unique_terms", len(stats.DFMap)),
	)
	return nil
}

// Snapshot returns the active statistics. Never nil.
func (s *StatsStore) Snapshot() *Stats {
	return s.current.Load()
}

func (s *StatsStore) save(stats *Stats) error {
	if s.path == "" {
		return nil
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating stats dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}

	// Write then rename so a crash never leaves a torn file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing corpus stats: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing corpus stats: %w", err)
	}
	return nil
}

// Tokenize lowercases and splits text into word tokens.
func Tokenize(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

// BM25Score computes an Okapi BM25 score for a document against query terms
// using the snapshot's document frequencies. Unknown corpora still score
// through the idf floor.
func (st *Stats) BM25Score(query, document string) float64 {
	queryTerms := make(map[string]struct{})
	for _, t := range Tokenize(query) {
		queryTerms[t] = struct{}{}
	}

	docTerms := Tokenize(document)
	docLength := float64(len(docTerms))

	termFreq := make(map[string]int, len(docTerms))
	for _, t := range docTerms {
		termFreq[t]++
	}

	totalDocs := st.TotalDocs
	if totalDocs < 1 {
		totalDocs = 1
	}

	var score float64
	for term := range queryTerms {
		tf := float64(termFreq[term])
		if tf == 0 {
			continue
		}
		df := float64(st.DFMap[term])
		idf := math.Log((1+float64(totalDocs))/(1+df)) + 1.0

		numerator := tf * (bm25K1 + 1)
		denominator := tf + bm25K1*(1-bm25B+bm25B*(docLength/bm25AvgDocLen))
		score += idf * (numerator / denominator)
	}

	return score
}
