package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/signal-engine/pkg/apperrors"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.HubSpot.AccessToken = "pat-test-token"
	cfg.OpenAI.APIKey = "sk-test-key"
	cfg.OpenAI.Dimensions = 1536
	cfg.Matching.SimilarityFloor = 0.85
	cfg.Matching.CandidateFloor = 0.50
	cfg.Matching.Limit = 10
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.validate())
}

func TestValidate_MissingHubSpotToken(t *testing.T) {
	cfg := validConfig()
	cfg.HubSpot.AccessToken = ""

	err := cfg.validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrMissingCredentials)
}

func TestValidate_MissingOpenAIKey(t *testing.T) {
	cfg := validConfig()
	cfg.OpenAI.APIKey = ""

	err := cfg.validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrMissingCredentials)
}

func TestValidate_FloorOutOfRange(t *testing.T) {
	cfg := validConfig()
	cfg.Matching.SimilarityFloor = 1.2

	assert.Error(t, cfg.validate())
}

func TestValidate_CandidateFloorAboveSimilarityFloor(t *testing.T) {
	cfg := validConfig()
	cfg.Matching.CandidateFloor = 0.90

	assert.Error(t, cfg.validate())
}

func TestValidate_NonPositiveLimit(t *testing.T) {
	cfg := validConfig()
	cfg.Matching.Limit = 0

	assert.Error(t, cfg.validate())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("HUBSPOT_ACCESS_TOKEN", "pat-env-token")
	t.Setenv("OPENAI_API_KEY", "sk-env-key")

	cfg, err := Load("test")
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Version)
	assert.Equal(t, "pat-env-token", cfg.HubSpot.AccessToken)
	assert.Equal(t, 0.85, cfg.Matching.SimilarityFloor)
	assert.Equal(t, 10, cfg.Matching.Limit)
	assert.Equal(t, "text-embedding-3-small", cfg.OpenAI.EmbeddingModel)
	assert.Equal(t, 1536, cfg.OpenAI.Dimensions)
}

func TestConnectionString(t *testing.T) {
	db := &DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "signalengine",
		Password: "secret",
		Database: "signal_engine",
		SSLMode:  "disable",
	}

	assert.Equal(t,
		"host=localhost port=5432 user=signalengine password=secret dbname=signal_engine sslmode=disable",
		db.ConnectionString())
}
