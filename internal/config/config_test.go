package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finover/riskengine/internal/portfolio"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "RiskEngine", cfg.App.Name)
	assert.Equal(t, Version, cfg.App.Version)
	assert.Equal(t, APIServerPort, cfg.API.Port)
	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.NATS.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)

	assert.Equal(t, portfolio.UnknownSector, cfg.Risk.DefaultSector)
	assert.Equal(t, 1.0, cfg.Risk.DefaultBeta)
	assert.Equal(t, 0.5, cfg.Risk.HighRiskThreshold)
	assert.Equal(t, 0.95, cfg.Risk.Confidence)
	assert.Equal(t, 5, cfg.Risk.ForecastPeriods)
	assert.Equal(t, 90, cfg.Risk.ReturnsLookbackDays)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
app:
  environment: staging
  log_level: debug
api:
  port: 9000
  rate_limit: 5
  rate_burst: 10
cache:
  ttl: 30s
risk:
  high_risk_threshold: 0.7
  composite_volatility_weight: 0.8
  composite_beta_weight: 0.2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.App.Environment)
	assert.Equal(t, 9000, cfg.API.Port)
	assert.Equal(t, 5.0, cfg.API.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 0.7, cfg.Risk.HighRiskThreshold)
	assert.Equal(t, 0.8, cfg.Risk.CompositeWeights().Volatility)
	assert.Equal(t, 0.2, cfg.Risk.CompositeWeights().Beta)
	// untouched keys keep their defaults
	assert.Equal(t, "Unknown", cfg.Risk.DefaultSector)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("RISKENGINE_API_PORT", "9191")
	t.Setenv("RISKENGINE_RISK_DEFAULT_SECTOR", "Unclassified")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.API.Port)
	assert.Equal(t, "Unclassified", cfg.Risk.DefaultSector)
}

func TestLoadInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("risk:\n  confidence: 1.5\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "risk.confidence", verrs[0].Field)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRiskConfigFieldDefaults(t *testing.T) {
	cfg := getValidConfig()
	cfg.Risk.DefaultSector = "Other"
	cfg.Risk.DefaultBeta = 0.9

	defaults := cfg.Risk.FieldDefaults()

	assert.Equal(t, "Other", defaults.Sector)
	assert.Equal(t, 0.9, defaults.Beta)
	assert.Equal(t, 0.0, defaults.Quantity)
	assert.Equal(t, 0.0, defaults.Price)

	pos, err := portfolio.FromMap(0, map[string]interface{}{"symbol": "X"}, defaults)
	require.NoError(t, err)
	assert.Equal(t, "Other", pos.Sector)
	assert.Equal(t, 0.9, pos.Beta)
}

func TestRiskConfigLookback(t *testing.T) {
	cfg := getValidConfig()
	cfg.Risk.ReturnsLookbackDays = 30
	assert.Equal(t, 30*24*time.Hour, cfg.Risk.Lookback())
}

func TestGetDSN(t *testing.T) {
	db := DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "risk",
		Password: "pw",
		Database: "riskengine",
		SSLMode:  "require",
		PoolSize: 4,
	}
	assert.Equal(t, "host=db port=5433 user=risk password=pw dbname=riskengine sslmode=require pool_max_conns=4", db.GetDSN())
	assert.Equal(t, "host=db port=5433 user=risk password=pw dbname=riskengine sslmode=require", db.ConnString())

	db.URL = "postgres://risk@db/riskengine"
	assert.Equal(t, "postgres://risk@db/riskengine", db.GetDSN())
	assert.Equal(t, "postgres://risk@db/riskengine", db.ConnString())
}

func TestAddresses(t *testing.T) {
	api := APIConfig{Host: "127.0.0.1", Port: 8080}
	redis := RedisConfig{Host: "cache", Port: 6380}

	assert.Equal(t, "127.0.0.1:8080", api.GetAPIAddr())
	assert.Equal(t, "cache:6380", redis.GetRedisAddr())
}
