// Command pipelined runs the document ingestion, indexing, and
// metadata-extraction pipeline: one HTTP API process plus its three
// background worker pools (ingestion, indexing, extraction).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"docpipeline/internal/blobstore"
	"docpipeline/internal/cache"
	"docpipeline/internal/chunker"
	"docpipeline/internal/config"
	"docpipeline/internal/embedder"
	"docpipeline/internal/extraction"
	"docpipeline/internal/httpapi"
	"docpipeline/internal/indexing"
	"docpipeline/internal/ingestion"
	"docpipeline/internal/llm"
	"docpipeline/internal/llm/anthropic"
	"docpipeline/internal/llm/openai"
	"docpipeline/internal/metadata"
	"docpipeline/internal/observability"
	"docpipeline/internal/outbox"
	"docpipeline/internal/retry"
	"docpipeline/internal/store"
	"docpipeline/internal/summarizer"
	"docpipeline/internal/vectorindex"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogFile, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTel.Enabled {
		shutdownOTel, err := observability.InitOTel(ctx, cfg.OTel)
		if err != nil {
			log.Fatal().Err(err).Msg("otel init failed")
		}
		defer func() {
			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownOTel(shCtx)
		}()
	}

	pool, err := store.OpenPool(ctx, cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open database pool failed")
	}
	defer pool.Close()
	st := store.New(pool)

	index, err := newVectorIndex(ctx, cfg.VectorStore, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("vector index init failed")
	}

	httpClient := observability.NewHTTPClient(nil)
	local := blobstore.NewLocalStore(cfg.BlobStore.BaseDir, cfg.BlobStore.CacheDir)
	blobs := blobstore.NewRouter(local, blobstore.NewHTTPStore(httpClient), nil)

	completer := newCompleter(cfg.Completions, httpClient)
	emb := embedder.NewHTTP(cfg.Embeddings, httpClient)
	ch := chunker.New(cfg.Chunker)
	retryCfg := retry.Config{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
	}
	summ := summarizer.New(completer, emb, retryCfg, cfg.Ingestion.SummarizerWorkers)

	ingestionPool := ingestion.New(st, blobs, ch, summ, cfg.Ingestion.MaxWorkers, cfg.Ingestion.PhaseTimeout)
	go ingestionPool.Run(ctx)

	idxCoordinator := indexing.New(st, cfg.VectorStore.Dimensions, cfg.VectorStore.Metric)
	idxWorker := indexing.NewWorker(st, index, emb, cfg.VectorStore.Dimensions, cfg.VectorStore.Metric, idxCoordinator.Notifications())
	go idxWorker.Run(ctx)

	extractedCache, err := cache.New(cfg.Cache)
	if err != nil {
		log.Fatal().Err(err).Msg("extracted value cache init failed")
	}
	defer extractedCache.Close()

	extractionRetryCfg := retry.Config{MaxAttempts: 4, BaseDelay: 2 * time.Second, MaxDelay: 8 * time.Second}
	executor := extraction.NewExecutor(st, index, emb, completer, extractionRetryCfg).WithCache(extractedCache)
	extCoordinator := extraction.New(st, executor)

	metaManager := metadata.New(st)

	notifier := outbox.New(cfg.Outbox)
	defer notifier.Close()

	server := httpapi.NewServer(st, local, idxCoordinator, extCoordinator, metaManager, notifier)
	e := server.Echo()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	go func() {
		log.Info().Str("addr", addr).Msg("pipelined listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
}

func newVectorIndex(ctx context.Context, cfg config.VectorStoreConfig, pool *pgxpool.Pool) (vectorindex.VectorIndex, error) {
	if cfg.Backend == "postgres" {
		return vectorindex.NewPostgresIndex(ctx, pool)
	}
	return vectorindex.NewQdrantIndex(cfg.DSN)
}

func newCompleter(cfg config.CompletionsConfig, httpClient *http.Client) llm.Completer {
	if cfg.Backend == "openai" {
		return openai.New(cfg, httpClient)
	}
	return anthropic.New(cfg, httpClient)
}
