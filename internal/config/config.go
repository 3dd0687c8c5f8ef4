package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/finover/riskengine/internal/forecast"
	"github.com/finover/riskengine/internal/portfolio"
	"github.com/finover/riskengine/internal/risk"
)

// EnvPrefix is the prefix for environment variable overrides (RISKENGINE_API_PORT, ...)
const EnvPrefix = "RISKENGINE"

// Config holds all application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	API        APIConfig        `mapstructure:"api"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Risk       RiskConfig       `mapstructure:"risk"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // json or console
}

// APIConfig contains REST API settings
type APIConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RateLimit      float64       `mapstructure:"rate_limit"` // requests per second per client
	RateBurst      int           `mapstructure:"rate_burst"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig contains PostgreSQL settings for the history store
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"` // takes precedence over the discrete fields
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`
}

// RedisConfig contains Redis settings for the response cache
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NATSConfig contains NATS settings for risk alerts
type NATSConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// MonitoringConfig contains monitoring settings
type MonitoringConfig struct {
	PrometheusPort int  `mapstructure:"prometheus_port"`
	EnableMetrics  bool `mapstructure:"enable_metrics"`
}

// CacheConfig controls caching of analysis responses
type CacheConfig struct {
	TTL       time.Duration `mapstructure:"ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

// RiskConfig is the defaults table applied when raw positions are decoded,
// plus the service-level parameters of the analytics operations.
type RiskConfig struct {
	DefaultSector             string  `mapstructure:"default_sector"`
	DefaultBeta               float64 `mapstructure:"default_beta"`
	DefaultVolatility         float64 `mapstructure:"default_volatility"`
	DefaultRiskScore          float64 `mapstructure:"default_risk_score"`
	HighRiskThreshold         float64 `mapstructure:"high_risk_threshold"`
	Confidence                float64 `mapstructure:"confidence"`
	ForecastPeriods           int     `mapstructure:"forecast_periods"`
	CompositeVolatilityWeight float64 `mapstructure:"composite_volatility_weight"`
	CompositeBetaWeight       float64 `mapstructure:"composite_beta_weight"`
	ReturnsLookbackDays       int     `mapstructure:"returns_lookback_days"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file; defaults and environment only
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "RiskEngine")
	v.SetDefault("app.version", Version)
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", APIServerPort)
	v.SetDefault("api.allowed_origins", []string{"*"})
	v.SetDefault("api.rate_limit", 20.0)
	v.SetDefault("api.rate_burst", 40)
	v.SetDefault("api.read_timeout", 15*time.Second)
	v.SetDefault("api.write_timeout", 15*time.Second)

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", PostgresPort)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "riskengine")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", RedisPort)
	v.SetDefault("redis.db", 0)

	// NATS defaults
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", fmt.Sprintf("nats://localhost:%d", NATSPort))
	v.SetDefault("nats.subject_prefix", "risk.alerts")

	// Monitoring defaults
	v.SetDefault("monitoring.prometheus_port", MetricsPort)
	v.SetDefault("monitoring.enable_metrics", true)

	// Cache defaults
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.key_prefix", "riskengine")

	// Risk defaults
	rc := DefaultRiskConfig()
	v.SetDefault("risk.default_sector", rc.DefaultSector)
	v.SetDefault("risk.default_beta", rc.DefaultBeta)
	v.SetDefault("risk.default_volatility", rc.DefaultVolatility)
	v.SetDefault("risk.default_risk_score", rc.DefaultRiskScore)
	v.SetDefault("risk.high_risk_threshold", rc.HighRiskThreshold)
	v.SetDefault("risk.confidence", rc.Confidence)
	v.SetDefault("risk.forecast_periods", rc.ForecastPeriods)
	v.SetDefault("risk.composite_volatility_weight", rc.CompositeVolatilityWeight)
	v.SetDefault("risk.composite_beta_weight", rc.CompositeBetaWeight)
	v.SetDefault("risk.returns_lookback_days", rc.ReturnsLookbackDays)
}

// GetDSN returns the PostgreSQL connection string for the pgx pool
func (c *DatabaseConfig) GetDSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("%s pool_max_conns=%d", c.ConnString(), c.PoolSize)
}

// ConnString returns a libpq-compatible connection string without pool settings
func (c *DatabaseConfig) ConnString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAPIAddr returns the API server address
func (c *APIConfig) GetAPIAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DefaultRiskConfig returns the risk section used when nothing is configured
func DefaultRiskConfig() RiskConfig {
	d := portfolio.DefaultFieldDefaults()
	cw := risk.DefaultCompositeWeights()
	return RiskConfig{
		DefaultSector:             d.Sector,
		DefaultBeta:               d.Beta,
		DefaultVolatility:         d.Volatility,
		DefaultRiskScore:          d.RiskScore,
		HighRiskThreshold:         0.5,
		Confidence:                risk.DefaultConfidence,
		ForecastPeriods:           forecast.DefaultPeriods,
		CompositeVolatilityWeight: cw.Volatility,
		CompositeBetaWeight:       cw.Beta,
		ReturnsLookbackDays:       90,
	}
}

// FieldDefaults converts the risk section into the table used when decoding positions
func (c *RiskConfig) FieldDefaults() portfolio.FieldDefaults {
	return portfolio.FieldDefaults{
		RiskScore:  c.DefaultRiskScore,
		Sector:     c.DefaultSector,
		Volatility: c.DefaultVolatility,
		Beta:       c.DefaultBeta,
	}
}

// CompositeWeights returns the weighting of the advanced composite score
func (c *RiskConfig) CompositeWeights() risk.CompositeWeights {
	return risk.CompositeWeights{
		Volatility: c.CompositeVolatilityWeight,
		Beta:       c.CompositeBetaWeight,
	}
}

// Lookback returns the return-series lookback window as a duration
func (c *RiskConfig) Lookback() time.Duration {
	return time.Duration(c.ReturnsLookbackDays) * 24 * time.Hour
}
