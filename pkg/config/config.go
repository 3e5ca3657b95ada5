package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/driftline/signal-engine/pkg/apperrors"
)

// Config holds all configuration for signal-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (API keys, tokens, passwords) must only come from environment variables.
type Config struct {
	// Server configuration (webhook receiver)
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// HubSpot CRM configuration
	HubSpot HubSpotConfig `yaml:"hubspot"`

	// OpenAI embedding provider configuration
	OpenAI OpenAIConfig `yaml:"openai"`

	// Database configuration (PostgreSQL with pgvector)
	Database DatabaseConfig `yaml:"database"`

	// Matching policy configuration
	Matching MatchingConfig `yaml:"matching"`

	// Sync routine configuration
	Sync SyncConfig `yaml:"sync"`

	// SlackWebhookURL enables match notifications when set. Optional.
	SlackWebhookURL string `yaml:"-" env:"SLACK_WEBHOOK_URL"` // Secret - not in YAML
}

// HubSpotConfig holds HubSpot API access configuration.
type HubSpotConfig struct {
	// AccessToken is a HubSpot Private App token.
	AccessToken string `yaml:"-" env:"HUBSPOT_ACCESS_TOKEN"` // Secret - not in YAML

	BaseURL string `yaml:"base_url" env:"HUBSPOT_BASE_URL" env-default:"https://api.hubapi.com"`

	// SignalObjectType is the custom object type ID for Signals.
	SignalObjectType string `yaml:"signal_object_type" env:"HUBSPOT_SIGNAL_OBJECT_TYPE" env-default:"2-54609655"`

	// SignalObjectName is the custom object schema name used in v4 URL paths.
	SignalObjectName string `yaml:"signal_object_name" env:"HUBSPOT_SIGNAL_OBJECT_NAME" env-default:"signals"`

	// Association type IDs for Signal -> Company and Signal -> Contact links.
	CompanyAssociationType int `yaml:"company_association_type" env:"HUBSPOT_COMPANY_ASSOCIATION_TYPE" env-default:"421"`
	ContactAssociationType int `yaml:"contact_association_type" env:"HUBSPOT_CONTACT_ASSOCIATION_TYPE" env-default:"423"`
}

// OpenAIConfig holds embedding provider configuration.
type OpenAIConfig struct {
	APIKey string `yaml:"-" env:"OPENAI_API_KEY"` // Secret - not in YAML

	BaseURL        string `yaml:"base_url" env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`
	EmbeddingModel string `yaml:"embedding_model" env:"OPENAI_EMBEDDING_MODEL" env-default:"text-embedding-3-small"`

	// Dimensions is the embedding vector length. Must match the vector
	// column width in the entity store schema.
	Dimensions int `yaml:"dimensions" env:"OPENAI_EMBEDDING_DIMENSIONS" env-default:"1536"`

	// RequestsPerMinute caps embedding API calls client-side.
	RequestsPerMinute int `yaml:"requests_per_minute" env:"OPENAI_REQUESTS_PER_MINUTE" env-default:"2900"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"signalengine"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"signal_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// MatchingConfig holds matching policy thresholds.
type MatchingConfig struct {
	// SimilarityFloor is the minimum cosine similarity required to create
	// an association.
	SimilarityFloor float64 `yaml:"similarity_floor" env:"SIMILARITY_FLOOR" env-default:"0.85"`

	// CandidateFloor is the minimum similarity for a candidate to be
	// retrieved and recorded in the audit log. Near misses below the
	// association floor still produce audit rows.
	CandidateFloor float64 `yaml:"candidate_floor" env:"CANDIDATE_FLOOR" env-default:"0.50"`

	// Limit is the maximum number of candidates retrieved per collection.
	Limit int `yaml:"limit" env:"MATCH_LIMIT" env-default:"10"`
}

// SyncConfig holds sync routine configuration.
type SyncConfig struct {
	// BatchSize is how many records are embedded and upserted per batch.
	BatchSize int `yaml:"batch_size" env:"SYNC_BATCH_SIZE" env-default:"50"`

	// Full forces a full resync, ignoring the stored sync cursors.
	Full bool `yaml:"full" env:"SYNC_FULL" env-default:"false"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time and set on the
// returned Config. Missing credentials fail the load so an invocation aborts
// before any partial writes.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.HubSpot.AccessToken == "" {
		return fmt.Errorf("HUBSPOT_ACCESS_TOKEN is not set: %w", apperrors.ErrMissingCredentials)
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is not set: %w", apperrors.ErrMissingCredentials)
	}
	if c.Matching.SimilarityFloor < 0 || c.Matching.SimilarityFloor > 1 {
		return fmt.Errorf("similarity floor %.2f outside [0,1]", c.Matching.SimilarityFloor)
	}
	if c.Matching.CandidateFloor > c.Matching.SimilarityFloor {
		return fmt.Errorf("candidate floor %.2f above similarity floor %.2f",
			c.Matching.CandidateFloor, c.Matching.SimilarityFloor)
	}
	if c.Matching.Limit <= 0 {
		return fmt.Errorf("match limit must be positive, got %d", c.Matching.Limit)
	}
	if c.OpenAI.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive, got %d", c.OpenAI.Dimensions)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
