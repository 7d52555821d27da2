package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Qdrant    QdrantConfig    `mapstructure:"qdrant"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Extract   ExtractConfig   `mapstructure:"extract"`
	Search    SearchConfig    `mapstructure:"search"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	Path            string        `mapstructure:"path"`   // sqlite file path
	DSN             string        `mapstructure:"dsn"`    // postgres connection string
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
}

type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"`
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Dimensions int    `mapstructure:"dimensions"`
}

type ChatConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// IngestConfig controls the background worker and its retry policy.
type IngestConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
}

// ExtractConfig controls the extraction strategy chain.
type ExtractConfig struct {
	// MinTextChars is the quality bar a strategy result must meet before the
	// chain accepts it and stops falling through.
	MinTextChars int `mapstructure:"min_text_chars"`

	// MaxTextChars bounds stored extracted text across all strategies.
	MaxTextChars int `mapstructure:"max_text_chars"`

	// CaptionMinInterval is the enforced delay between consecutive calls to
	// the caption provider.
	CaptionMinInterval time.Duration `mapstructure:"caption_min_interval"`

	CaptionBaseURL  string        `mapstructure:"caption_base_url"`
	CaptionLangs    []string      `mapstructure:"caption_langs"`
	MetadataAPIKey  string        `mapstructure:"metadata_api_key"`
	MetadataBaseURL string        `mapstructure:"metadata_base_url"`
	CrawlerAPIKey   string        `mapstructure:"crawler_api_key"`
	CrawlerBaseURL  string        `mapstructure:"crawler_base_url"`
	HTTPTimeout     time.Duration `mapstructure:"http_timeout"`
}

type SearchConfig struct {
	MaxLimit     int `mapstructure:"max_limit"`
	ContextChars int `mapstructure:"context_chars"` // per-source budget in chat context
	ExcerptChars int `mapstructure:"excerpt_chars"` // excerpt length on source handles
	IndexedChars int `mapstructure:"indexed_chars"` // extracted-text prefix in searchable text
}

type SnapshotConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.dsn", "DATABASE_DSN")
	v.BindEnv("qdrant.host", "QDRANT_HOST")
	v.BindEnv("qdrant.port", "QDRANT_PORT")
	v.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	v.BindEnv("embedding.api_key", "EMBEDDING_API_KEY")
	v.BindEnv("embedding.base_url", "EMBEDDING_BASE_URL")
	v.BindEnv("chat.api_key", "OPENAI_API_KEY")
	v.BindEnv("chat.base_url", "OPENAI_BASE_URL")
	v.BindEnv("extract.metadata_api_key", "METADATA_API_KEY")
	v.BindEnv("extract.crawler_api_key", "CRAWLER_API_KEY")
	v.BindEnv("snapshot.access_key", "SNAPSHOT_ACCESS_KEY")
	v.BindEnv("snapshot.secret_key", "SNAPSHOT_SECRET_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/curio.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.collection", "content")

	v.SetDefault("embedding.provider", "jina")
	v.SetDefault("embedding.model", "jina-embeddings-v3")
	v.SetDefault("embedding.base_url", "https://api.jina.ai/v1")
	v.SetDefault("embedding.dimensions", 1024)

	v.SetDefault("chat.enabled", true)
	v.SetDefault("chat.model", "gpt-4o-mini")
	v.SetDefault("chat.base_url", "https://api.openai.com/v1")

	v.SetDefault("ingest.max_retries", 3)
	v.SetDefault("ingest.retry_base_delay", 5*time.Second)

	v.SetDefault("extract.min_text_chars", 50)
	v.SetDefault("extract.max_text_chars", 8000)
	v.SetDefault("extract.caption_min_interval", 1500*time.Millisecond)
	v.SetDefault("extract.caption_langs", []string{"en", "en-US", "en-GB"})
	v.SetDefault("extract.http_timeout", 20*time.Second)

	v.SetDefault("search.max_limit", 50)
	v.SetDefault("search.context_chars", 2000)
	v.SetDefault("search.excerpt_chars", 200)
	v.SetDefault("search.indexed_chars", 2000)

	v.SetDefault("snapshot.enabled", false)
	v.SetDefault("snapshot.endpoint", "localhost:9000")
	v.SetDefault("snapshot.use_ssl", false)
	v.SetDefault("snapshot.bucket", "curio-snapshots")
}
