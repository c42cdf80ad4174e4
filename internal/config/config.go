// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreBigQuery = "bigquery"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	Port           int    `koanf:"PORT"`
	StoreBackend   string `koanf:"STORE_BACKEND"`
	GCSBucket      string `koanf:"GCS_BUCKET"`
	LogLevel       string `koanf:"LOG_LEVEL"`
	LogJSON        bool   `koanf:"LOG_JSON"`
	MaxUploadBytes int64  `koanf:"MAX_UPLOAD_BYTES"`

	// TransferWindowDays is the inclusive date distance between the two sides of a transfer.
	TransferWindowDays int `koanf:"TRANSFER_WINDOW_DAYS"`

	LLM      LLMConfig      `koanf:",squash"`
	Ingest   IngestConfig   `koanf:",squash"`
	Postgres PostgresConfig `koanf:",squash"`
	BigQuery BigQueryConfig `koanf:",squash"`
	Notion   NotionConfig   `koanf:",squash"`
}

// LLMConfig selects the extraction model.
type LLMConfig struct {
	Type           string        `koanf:"LLM_TYPE"` // CLOUD or LOCAL
	GeminiAPIKey   string        `koanf:"GEMINI_API_KEY"`
	GeminiModel    string        `koanf:"GEMINI_MODEL"`
	OllamaURL      string        `koanf:"OLLAMA_URL"`
	OllamaModel    string        `koanf:"OLLAMA_MODEL"`
	ExtractTimeout time.Duration `koanf:"EXTRACT_TIMEOUT"`
}

// IngestConfig bounds the text sample sent to the model.
type IngestConfig struct {
	TextSampleLimit int `koanf:"TEXT_SAMPLE_LIMIT"`
	TableRowLimit   int `koanf:"TABLE_ROW_LIMIT"`
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host     string `koanf:"POSTGRES_HOST"`
	Port     int    `koanf:"POSTGRES_PORT"`
	Database string `koanf:"POSTGRES_DB"`
	User     string `koanf:"POSTGRES_USER"`
	Password string `koanf:"POSTGRES_PASSWORD"`
	SSLMode  string `koanf:"POSTGRES_SSLMODE"`
}

// ConnString renders a pgx connection URL.
func (p PostgresConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// BigQueryConfig locates the warehouse dataset.
type BigQueryConfig struct {
	Project string `koanf:"BIGQUERY_PROJECT"`
	Dataset string `koanf:"BIGQUERY_DATASET"`
}

// NotionConfig is used by the sync-notion tool.
type NotionConfig struct {
	Token      string `koanf:"NOTION_TOKEN"`
	DatabaseID string `koanf:"NOTION_DB_ID"`
}

// Default returns the configuration used for unset variables.
func Default() Config {
	return Config{
		Port:               8080,
		StoreBackend:       StoreMemory,
		LogLevel:           "info",
		MaxUploadBytes:     10 << 20,
		TransferWindowDays: 5,
		LLM: LLMConfig{
			Type:           "CLOUD",
			GeminiModel:    "gemini-2.5-flash",
			OllamaURL:      "http://localhost:11434",
			OllamaModel:    "llama2",
			ExtractTimeout: 60 * time.Second,
		},
		Ingest: IngestConfig{
			TextSampleLimit: 5000,
			TableRowLimit:   50,
		},
		Postgres: PostgresConfig{
			Port:    5432,
			SSLMode: "disable",
		},
		BigQuery: BigQueryConfig{
			Dataset: "finance",
		},
	}
}

// Load reads an optional .env file, then the process environment, over Default.
// envFiles defaults to ".env"; a missing file is not an error.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("Load: read %s: %w", f, err)
		}
	}

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return Config{}, fmt.Errorf("Load: environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return Config{}, fmt.Errorf("Load: unmarshal: %w", err)
	}
	cfg.LLM.Type = strings.ToUpper(cfg.LLM.Type)
	cfg.StoreBackend = strings.ToLower(cfg.StoreBackend)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the selected backends have what they need.
func (c Config) Validate() error {
	var errs []error

	switch c.LLM.Type {
	case "CLOUD":
		if c.LLM.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required when LLM_TYPE=CLOUD"))
		}
	case "LOCAL":
	default:
		errs = append(errs, fmt.Errorf("LLM_TYPE must be CLOUD or LOCAL, got %q", c.LLM.Type))
	}

	switch c.StoreBackend {
	case StoreMemory:
	case StorePostgres:
		if c.Postgres.Host == "" || c.Postgres.Database == "" || c.Postgres.User == "" {
			errs = append(errs, errors.New("POSTGRES_HOST, POSTGRES_DB and POSTGRES_USER are required when STORE_BACKEND=postgres"))
		}
	case StoreBigQuery:
		if c.BigQuery.Project == "" {
			errs = append(errs, errors.New("BIGQUERY_PROJECT is required when STORE_BACKEND=bigquery"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be memory, postgres or bigquery, got %q", c.StoreBackend))
	}

	if c.TransferWindowDays < 0 {
		errs = append(errs, errors.New("TRANSFER_WINDOW_DAYS must not be negative"))
	}
	if c.LLM.ExtractTimeout <= 0 {
		errs = append(errs, errors.New("EXTRACT_TIMEOUT must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("Validate: %w", errors.Join(errs...))
	}
	return nil
}
