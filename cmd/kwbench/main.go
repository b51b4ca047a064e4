// Command kwbench times repeated clustering runs over a keyword file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dshills/semcluster/internal/clusterer"
	"github.com/dshills/semcluster/internal/config"
	"github.com/dshills/semcluster/internal/embedder"
	"github.com/dshills/semcluster/internal/exporter"
)

func main() {
	input := flag.String("input", "", "Keyword file (.json or .csv)")
	category := flag.String("category", "benchmark", "Category label")
	domain := flag.String("domain", "benchmark", "Domain label")
	runs := flag.Int("runs", 5, "Number of runs")
	parallel := flag.Bool("parallel", false, "Use parallel cluster assembly")
	verbose := flag.Bool("v", false, "Log every run")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if *input == "" {
		fmt.Fprintln(os.Stderr, "usage: kwbench -input keywords.json [-runs 5] [-parallel]")
		os.Exit(2)
	}

	if err := run(*input, *category, *domain, *runs, *parallel); err != nil {
		log.Fatal().Err(err).Msg("Benchmark failed")
	}
}

func run(input, category, domain string, runs int, parallel bool) error {
	if err := config.LoadEnv(); err != nil {
		log.Warn().Err(err).Msg("Failed to load .env file")
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	keywords, err := exporter.ReadKeywordsFile(input)
	if err != nil {
		return fmt.Errorf("load keywords: %w", err)
	}

	emb, err := embedder.New(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}

	cfg.Clustering.Parallel = parallel
	clust, err := clusterer.New(cfg.Clustering, clusterer.WithEmbedder(emb))
	if err != nil {
		_ = emb.Close()
		return err
	}
	defer clust.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info().
		Int("keywords", len(keywords)).
		Int("runs", runs).
		Bool("parallel", parallel).
		Str("provider", cfg.Embedding.Provider).
		Msg("Starting benchmark")

	stats, err := clust.Benchmark(ctx, keywords, category, domain, runs)
	if err != nil {
		return err
	}

	out := stats.ToMap()
	out["runs"] = stats.Runs
	cache := clust.CacheStats()
	out["cache_hits"] = cache.Hits
	out["cache_misses"] = cache.Misses

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
