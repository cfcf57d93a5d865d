// Package config loads the service's YAML configuration into a typed struct.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// DatabaseConfig holds the relational store connection settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// VectorStoreConfig selects and configures the vector index backend.
type VectorStoreConfig struct {
	// Backend is "qdrant" or "postgres".
	Backend    string `yaml:"backend"`
	DSN        string `yaml:"dsn"`
	Dimensions int    `yaml:"dimensions"`
	Metric     string `yaml:"metric"` // cosine, euclid, dot, manhattan
}

// BlobStoreConfig configures the adapter that fetches raw document bytes.
type BlobStoreConfig struct {
	// BaseDir resolves local://, uploads/-relative, and absolute paths.
	BaseDir  string `yaml:"base_dir"`
	CacheDir string `yaml:"cache_dir"`
}

// CompletionsConfig configures the LLM-backed Completer used for
// summarization, query rewriting, and extraction.
type CompletionsConfig struct {
	Backend     string  `yaml:"backend"` // "anthropic" or "openai"
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
}

// EmbeddingsConfig configures the Embedder used by the summarizer.
type EmbeddingsConfig struct {
	Host       string `yaml:"host"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// ChunkerConfig controls document segmentation.
type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// IngestionConfig sizes the ingestion worker pool.
type IngestionConfig struct {
	MaxWorkers        int           `yaml:"max_workers"`
	SummarizerWorkers int           `yaml:"summarizer_workers"`
	PhaseTimeout      time.Duration `yaml:"phase_timeout"`
}

// IndexingConfig holds indexing worker settings. The indexing worker does
// not read these fields: it runs as one goroutine with its own fixed
// phase timeout.
type IndexingConfig struct {
	MaxWorkers   int           `yaml:"max_workers"`
	PhaseTimeout time.Duration `yaml:"phase_timeout"`
}

// ExtractionConfig holds extraction pacing settings. The extraction
// coordinator and executor do not read these fields: they use their own
// fixed delays and retrieval size.
type ExtractionConfig struct {
	TopK             int           `yaml:"top_k"`
	InterCallDelay   time.Duration `yaml:"inter_call_delay"`
	ErrorDelay       time.Duration `yaml:"error_delay"`
	CallTimeout      time.Duration `yaml:"call_timeout"`
}

// RetryConfig carries the default backoff policy applied across upstream
// collaborators; components may override individual fields.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// CacheConfig configures the optional Redis cache of extracted values,
// keyed exactly by document, configuration and prompt version. The cache
// reads Enabled, RedisAddr and TTL; SimilarityThreshold and MaxSize are
// not read.
type CacheConfig struct {
	Enabled             bool          `yaml:"enabled"`
	RedisAddr           string        `yaml:"redis_addr"`
	SimilarityThreshold float64       `yaml:"similarity_threshold"`
	TTL                 time.Duration `yaml:"ttl"`
	MaxSize             int           `yaml:"max_size"`
}

// OutboxConfig configures the optional external pub/sub delivery mechanism
// for job-start notifications. Per design, never load-bearing for
// correctness — the relational store claim is always authoritative.
type OutboxConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	IndexTopic   string   `yaml:"index_topic"`
	ExtractTopic string   `yaml:"extract_topic"`
}

// Config is the top-level process configuration.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file,omitempty"`

	Database    DatabaseConfig    `yaml:"database"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	BlobStore   BlobStoreConfig   `yaml:"blob_store"`
	Completions CompletionsConfig `yaml:"completions"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Ingestion   IngestionConfig   `yaml:"ingestion"`
	Indexing    IndexingConfig    `yaml:"indexing"`
	Extraction  ExtractionConfig  `yaml:"extraction"`
	Retry       RetryConfig       `yaml:"retry"`
	OTel        TelemetryConfig   `yaml:"otel"`
	Cache       CacheConfig       `yaml:"cache,omitempty"`
	Outbox      OutboxConfig      `yaml:"outbox,omitempty"`
}

// LoadConfig reads the configuration from a YAML file and applies defaults
// for anything left unset.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	log.Info().Str("host", cfg.Host).Int("port", cfg.Port).Msg("configuration loaded")
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.VectorStore.Backend == "" {
		cfg.VectorStore.Backend = "qdrant"
	}
	if cfg.VectorStore.Dimensions <= 0 {
		cfg.VectorStore.Dimensions = 768
	}
	if cfg.VectorStore.Metric == "" {
		cfg.VectorStore.Metric = "cosine"
	}
	if cfg.Embeddings.Dimensions <= 0 {
		cfg.Embeddings.Dimensions = cfg.VectorStore.Dimensions
	}
	if cfg.Chunker.ChunkSize <= 0 {
		cfg.Chunker.ChunkSize = 1500
	}
	if cfg.Chunker.ChunkOverlap <= 0 {
		cfg.Chunker.ChunkOverlap = 200
	}
	if cfg.Ingestion.MaxWorkers <= 0 {
		cfg.Ingestion.MaxWorkers = 3
	}
	if cfg.Ingestion.SummarizerWorkers <= 0 {
		cfg.Ingestion.SummarizerWorkers = 8
	}
	if cfg.Ingestion.PhaseTimeout <= 0 {
		cfg.Ingestion.PhaseTimeout = 5 * time.Minute
	}
	if cfg.Indexing.MaxWorkers <= 0 {
		cfg.Indexing.MaxWorkers = 3
	}
	if cfg.Indexing.PhaseTimeout <= 0 {
		cfg.Indexing.PhaseTimeout = 5 * time.Minute
	}
	if cfg.Extraction.TopK <= 0 {
		cfg.Extraction.TopK = 25
	}
	if cfg.Extraction.InterCallDelay <= 0 {
		cfg.Extraction.InterCallDelay = time.Second
	}
	if cfg.Extraction.ErrorDelay <= 0 {
		cfg.Extraction.ErrorDelay = 2 * time.Second
	}
	if cfg.Extraction.CallTimeout <= 0 {
		cfg.Extraction.CallTimeout = 120 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BaseDelay <= 0 {
		cfg.Retry.BaseDelay = time.Second
	}
	if cfg.Retry.MaxDelay <= 0 {
		cfg.Retry.MaxDelay = 30 * time.Second
	}
	if cfg.OTel.ServiceName == "" {
		cfg.OTel.ServiceName = "docpipeline"
	}
	if cfg.Cache.SimilarityThreshold <= 0 {
		cfg.Cache.SimilarityThreshold = 0.95
	}
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = time.Hour
	}
	if cfg.Cache.MaxSize <= 0 {
		cfg.Cache.MaxSize = 10000
	}
}
