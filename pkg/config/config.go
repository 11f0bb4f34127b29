// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Corpus, Artifacts, Search, Redis, Kafka, Postgres, etc.).
//
// A Config is loaded once at process start and treated as immutable
// afterwards; components receive the sections they need by value.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Corpus      CorpusConfig      `yaml:"corpus"`
	Artifacts   ArtifactsConfig   `yaml:"artifacts"`
	Search      SearchConfig      `yaml:"search"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Redis       RedisConfig       `yaml:"redis"`
	ObjectStore ObjectStoreConfig `yaml:"objectStore"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	AllowOrigins    []string      `yaml:"allowOrigins"`
}

// Source kinds accepted by CorpusConfig.Source.
const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

// CorpusConfig describes where rows come from and how they are tokenized.
type CorpusConfig struct {
	Source        string   `yaml:"source"`
	CSVPath       string   `yaml:"csvPath"`
	Query         string   `yaml:"query"`
	TextColumns   []string `yaml:"textColumns"`
	Stopwords     []string `yaml:"stopwords"`
	StopwordsFile string   `yaml:"stopwordsFile"`
	// DefaultStopwords adds the built-in English stop-word list to Stopwords.
	DefaultStopwords bool `yaml:"defaultStopwords"`
	ChunkSize        int  `yaml:"chunkSize"`
	TrieBatchSize    int  `yaml:"trieBatchSize"`
}

// ArtifactsConfig names the four persisted artifacts. Relative file names
// are resolved against DataDir.
type ArtifactsConfig struct {
	DataDir   string `yaml:"dataDir"`
	IndexFile string `yaml:"indexFile"`
	TrieFile  string `yaml:"trieFile"`
	VocabFile string `yaml:"vocabFile"`
	RowsFile  string `yaml:"rowsFile"`
}

// IndexPath returns the resolved inverted index path.
func (a ArtifactsConfig) IndexPath() string { return a.resolve(a.IndexFile) }

// TriePath returns the resolved trie path.
func (a ArtifactsConfig) TriePath() string { return a.resolve(a.TrieFile) }

// VocabPath returns the resolved vocabulary snapshot path.
func (a ArtifactsConfig) VocabPath() string { return a.resolve(a.VocabFile) }

// RowsPath returns the resolved row log path.
func (a ArtifactsConfig) RowsPath() string { return a.resolve(a.RowsFile) }

func (a ArtifactsConfig) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(a.DataDir, name)
}

// SearchConfig controls query execution and the public HTTP limits.
type SearchConfig struct {
	ScanChunkSize         int     `yaml:"scanChunkSize"`
	MaxFrameSize          int     `yaml:"maxFrameSize"`
	MaxTermLength         int     `yaml:"maxTermLength"`
	AutocompleteLimit     int     `yaml:"autocompleteLimit"`
	MaxAutocompleteLimit  int     `yaml:"maxAutocompleteLimit"`
	RateLimitPerSecond    float64 `yaml:"rateLimitPerSecond"`
	RateLimitBurst        int     `yaml:"rateLimitBurst"`
	FetchArtifactsOnStart bool    `yaml:"fetchArtifactsOnStart"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Brokers        []string `yaml:"brokers"`
	ConsumerGroup  string   `yaml:"consumerGroup"`
	AnalyticsTopic string   `yaml:"analyticsTopic"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// ObjectStoreConfig points at an S3-compatible bucket used to publish and
// fetch built artifacts.
type ObjectStoreConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"useSSL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values, or an error if the result is invalid.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with defaults suitable for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            9001,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  10 * time.Second,
			AllowOrigins:    []string{"*"},
		},
		Corpus: CorpusConfig{
			Source:  SourceCSV,
			CSVPath: "data/jobs.csv",
			TextColumns: []string{
				"title", "company_name", "location", "via", "description",
				"extensions", "job_id", "thumbnail", "posted_at",
				"schedule_type", "search_location", "description_tokens",
			},
			DefaultStopwords: true,
			ChunkSize:        1000,
			TrieBatchSize:    10000,
		},
		Artifacts: ArtifactsConfig{
			DataDir:   "indexes",
			IndexFile: "inverted-index.bin",
			TrieFile:  "trie.bin",
			VocabFile: "vocab.bin",
			RowsFile:  "data.bin",
		},
		Search: SearchConfig{
			ScanChunkSize:        64 * 1024,
			MaxFrameSize:         16 * 1024 * 1024,
			MaxTermLength:        1024,
			AutocompleteLimit:    10,
			MaxAutocompleteLimit: 100,
			RateLimitPerSecond:   50,
			RateLimitBurst:       100,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "jobsearch",
			User:            "jobsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:        []string{"localhost:9092"},
			ConsumerGroup:  "jobsearch-analytics",
			AnalyticsTopic: "search-analytics",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint: "localhost:9000",
			Bucket:   "jobsearch-artifacts",
			Prefix:   "indexes",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate reports configuration that would make a job or the server
// misbehave rather than fail fast.
func (c *Config) Validate() error {
	switch c.Corpus.Source {
	case SourceCSV, SourcePostgres:
	default:
		return fmt.Errorf("corpus.source must be %q or %q, got %q", SourceCSV, SourcePostgres, c.Corpus.Source)
	}
	if c.Corpus.Source == SourcePostgres && strings.TrimSpace(c.Corpus.Query) == "" {
		return fmt.Errorf("corpus.query is required when corpus.source is %q", SourcePostgres)
	}
	if len(c.Corpus.TextColumns) == 0 {
		return fmt.Errorf("corpus.textColumns must not be empty")
	}
	if c.Corpus.ChunkSize <= 0 {
		return fmt.Errorf("corpus.chunkSize must be positive, got %d", c.Corpus.ChunkSize)
	}
	if c.Corpus.TrieBatchSize <= 0 {
		return fmt.Errorf("corpus.trieBatchSize must be positive, got %d", c.Corpus.TrieBatchSize)
	}
	if c.Search.ScanChunkSize <= 0 {
		return fmt.Errorf("search.scanChunkSize must be positive, got %d", c.Search.ScanChunkSize)
	}
	if c.Search.MaxFrameSize <= 0 {
		return fmt.Errorf("search.maxFrameSize must be positive, got %d", c.Search.MaxFrameSize)
	}
	if c.Search.AutocompleteLimit <= 0 || c.Search.AutocompleteLimit > c.Search.MaxAutocompleteLimit {
		return fmt.Errorf("search.autocompleteLimit must be in [1, %d], got %d", c.Search.MaxAutocompleteLimit, c.Search.AutocompleteLimit)
	}
	if c.ObjectStore.Enabled && c.ObjectStore.Bucket == "" {
		return fmt.Errorf("objectStore.bucket is required when the object store is enabled")
	}
	return nil
}

// applyEnvOverrides reads JS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("JS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("JS_SERVER_ALLOW_ORIGINS"); v != "" {
		cfg.Server.AllowOrigins = splitList(v)
	}
	if v := os.Getenv("JS_CORPUS_SOURCE"); v != "" {
		cfg.Corpus.Source = v
	}
	if v := os.Getenv("JS_CORPUS_CSV_PATH"); v != "" {
		cfg.Corpus.CSVPath = v
	}
	if v := os.Getenv("JS_CORPUS_TEXT_COLUMNS"); v != "" {
		cfg.Corpus.TextColumns = splitList(v)
	}
	if v := os.Getenv("JS_CORPUS_STOPWORDS_FILE"); v != "" {
		cfg.Corpus.StopwordsFile = v
	}
	if v := os.Getenv("JS_ARTIFACTS_DATA_DIR"); v != "" {
		cfg.Artifacts.DataDir = v
	}
	if v := os.Getenv("JS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("JS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("JS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("JS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("JS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("JS_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = parseBool(v, cfg.Kafka.Enabled)
	}
	if v := os.Getenv("JS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("JS_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = parseBool(v, cfg.Redis.Enabled)
	}
	if v := os.Getenv("JS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("JS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("JS_OBJECT_STORE_ENABLED"); v != "" {
		cfg.ObjectStore.Enabled = parseBool(v, cfg.ObjectStore.Enabled)
	}
	if v := os.Getenv("JS_OBJECT_STORE_ENDPOINT"); v != "" {
		cfg.ObjectStore.Endpoint = v
	}
	if v := os.Getenv("JS_OBJECT_STORE_ACCESS_KEY"); v != "" {
		cfg.ObjectStore.AccessKey = v
	}
	if v := os.Getenv("JS_OBJECT_STORE_SECRET_KEY"); v != "" {
		cfg.ObjectStore.SecretKey = v
	}
	if v := os.Getenv("JS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("JS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
