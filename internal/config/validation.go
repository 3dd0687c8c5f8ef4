package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	sb.WriteString("\nPlease fix the above errors and try again.\n")
	return sb.String()
}

var (
	validEnvironments = []string{"development", "staging", "production"}
	validLogLevels    = []string{"trace", "debug", "info", "warn", "error", "fatal", "panic"}
	validLogFormats   = []string{"json", "console"}
)

// Validate performs comprehensive configuration validation
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs = append(errs, c.validateApp()...)
	errs = append(errs, c.validateAPI()...)
	errs = append(errs, c.validateDatabase()...)
	errs = append(errs, c.validateRedis()...)
	errs = append(errs, c.validateNATS()...)
	errs = append(errs, c.validateCache()...)
	errs = append(errs, c.validateRisk()...)
	errs = append(errs, c.validateEnvironmentRequirements()...)

	if len(errs) > 0 {
		return errs
	}

	return nil
}

func (c *Config) validateApp() ValidationErrors {
	var errs ValidationErrors

	if c.App.Name == "" {
		errs = append(errs, ValidationError{
			Field:   "app.name",
			Message: "Application name is required",
		})
	}

	if c.App.Environment == "" {
		errs = append(errs, ValidationError{
			Field:   "app.environment",
			Message: "Environment is required (development, staging, or production)",
		})
	} else if !slices.Contains(validEnvironments, c.App.Environment) {
		errs = append(errs, ValidationError{
			Field:   "app.environment",
			Message: fmt.Sprintf("Invalid environment '%s'. Must be one of: %v", c.App.Environment, validEnvironments),
		})
	}

	if c.App.LogLevel == "" {
		errs = append(errs, ValidationError{
			Field:   "app.log_level",
			Message: "Log level is required (debug, info, warn, error)",
		})
	} else if !slices.Contains(validLogLevels, strings.ToLower(c.App.LogLevel)) {
		errs = append(errs, ValidationError{
			Field:   "app.log_level",
			Message: fmt.Sprintf("Invalid log level '%s'. Must be one of: %v", c.App.LogLevel, validLogLevels),
		})
	}

	if c.App.LogFormat != "" && !slices.Contains(validLogFormats, c.App.LogFormat) {
		errs = append(errs, ValidationError{
			Field:   "app.log_format",
			Message: fmt.Sprintf("Invalid log format '%s'. Must be 'json' or 'console'", c.App.LogFormat),
		})
	}

	return errs
}

func (c *Config) validateAPI() ValidationErrors {
	var errs ValidationErrors

	errs = append(errs, validatePort("api.port", c.API.Port)...)

	if c.API.RateLimit < 0 {
		errs = append(errs, ValidationError{
			Field:   "api.rate_limit",
			Message: "Rate limit must be non-negative (0 disables limiting)",
		})
	}

	if c.API.RateLimit > 0 && c.API.RateBurst < 1 {
		errs = append(errs, ValidationError{
			Field:   "api.rate_burst",
			Message: "Rate burst must be at least 1 when rate limiting is enabled",
		})
	}

	return errs
}

func (c *Config) validateDatabase() ValidationErrors {
	var errs ValidationErrors

	if !c.Database.Enabled || c.Database.URL != "" {
		return errs
	}

	if c.Database.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "database.host",
			Message: "Database host is required",
		})
	}

	errs = append(errs, validatePort("database.port", c.Database.Port)...)

	if c.Database.User == "" {
		errs = append(errs, ValidationError{
			Field:   "database.user",
			Message: "Database user is required",
		})
	}

	if c.Database.Database == "" {
		errs = append(errs, ValidationError{
			Field:   "database.database",
			Message: "Database name is required",
		})
	}

	if c.Database.Password == "" && c.App.Environment != "development" {
		errs = append(errs, ValidationError{
			Field:   "database.password",
			Message: "Database password is required in non-development environments",
		})
	}

	if c.Database.PoolSize < 1 {
		errs = append(errs, ValidationError{
			Field:   "database.pool_size",
			Message: "Database pool size must be at least 1",
		})
	}

	return errs
}

func (c *Config) validateRedis() ValidationErrors {
	var errs ValidationErrors

	if !c.Redis.Enabled {
		return errs
	}

	if c.Redis.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "redis.host",
			Message: "Redis host is required",
		})
	}

	errs = append(errs, validatePort("redis.port", c.Redis.Port)...)

	return errs
}

func (c *Config) validateNATS() ValidationErrors {
	var errs ValidationErrors

	if !c.NATS.Enabled {
		return errs
	}

	if c.NATS.URL == "" {
		errs = append(errs, ValidationError{
			Field:   "nats.url",
			Message: "NATS URL is required",
		})
	} else if !strings.HasPrefix(c.NATS.URL, "nats://") {
		errs = append(errs, ValidationError{
			Field:   "nats.url",
			Message: "NATS URL must start with 'nats://'",
		})
	}

	if c.NATS.SubjectPrefix == "" {
		errs = append(errs, ValidationError{
			Field:   "nats.subject_prefix",
			Message: "NATS subject prefix is required",
		})
	}

	return errs
}

func (c *Config) validateCache() ValidationErrors {
	var errs ValidationErrors

	if c.Redis.Enabled && c.Cache.TTL <= 0 {
		errs = append(errs, ValidationError{
			Field:   "cache.ttl",
			Message: "Cache TTL must be positive when Redis is enabled",
		})
	}

	return errs
}

func (c *Config) validateRisk() ValidationErrors {
	var errs ValidationErrors

	if c.Risk.DefaultSector == "" {
		errs = append(errs, ValidationError{
			Field:   "risk.default_sector",
			Message: "Default sector is required",
		})
	}

	if c.Risk.DefaultVolatility < 0 {
		errs = append(errs, ValidationError{
			Field:   "risk.default_volatility",
			Message: fmt.Sprintf("Invalid default_volatility %.2f. Must be non-negative", c.Risk.DefaultVolatility),
		})
	}

	if c.Risk.DefaultRiskScore < 0 || c.Risk.DefaultRiskScore > 1 {
		errs = append(errs, ValidationError{
			Field:   "risk.default_risk_score",
			Message: fmt.Sprintf("Invalid default_risk_score %.2f. Must be between 0-1", c.Risk.DefaultRiskScore),
		})
	}

	if c.Risk.HighRiskThreshold < 0 || c.Risk.HighRiskThreshold > 1 {
		errs = append(errs, ValidationError{
			Field:   "risk.high_risk_threshold",
			Message: fmt.Sprintf("Invalid high_risk_threshold %.2f. Must be between 0-1", c.Risk.HighRiskThreshold),
		})
	}

	if c.Risk.Confidence <= 0 || c.Risk.Confidence >= 1 {
		errs = append(errs, ValidationError{
			Field:   "risk.confidence",
			Message: fmt.Sprintf("Invalid confidence %.2f. Must be strictly between 0 and 1", c.Risk.Confidence),
		})
	}

	if c.Risk.ForecastPeriods < 1 {
		errs = append(errs, ValidationError{
			Field:   "risk.forecast_periods",
			Message: "Forecast periods must be at least 1",
		})
	}

	if c.Risk.CompositeVolatilityWeight < 0 || c.Risk.CompositeBetaWeight < 0 {
		errs = append(errs, ValidationError{
			Field:   "risk.composite_weights",
			Message: "Composite volatility and beta weights must be non-negative",
		})
	}

	if c.Risk.ReturnsLookbackDays < 2 {
		errs = append(errs, ValidationError{
			Field:   "risk.returns_lookback_days",
			Message: "Returns lookback must cover at least 2 days",
		})
	}

	return errs
}

func (c *Config) validateEnvironmentRequirements() ValidationErrors {
	var errs ValidationErrors

	if c.App.Environment != "production" {
		return errs
	}

	if c.Database.Enabled && c.Database.URL == "" && c.Database.SSLMode == "disable" {
		errs = append(errs, ValidationError{
			Field:   "database.ssl_mode",
			Message: "SSL must be enabled for database in production",
		})
	}

	if c.Database.Enabled && isPlaceholderValue(c.Database.Password) {
		errs = append(errs, ValidationError{
			Field:   "database.password",
			Message: "Database password looks like a placeholder value",
		})
	}

	if slices.Contains(c.API.AllowedOrigins, "*") {
		errs = append(errs, ValidationError{
			Field:   "api.allowed_origins",
			Message: "Wildcard CORS origin is not allowed in production",
		})
	}

	return errs
}

func validatePort(field string, port int) ValidationErrors {
	if port == 0 {
		return ValidationErrors{{Field: field, Message: "Port is required"}}
	}
	if port < 1 || port > 65535 {
		return ValidationErrors{{Field: field, Message: fmt.Sprintf("Invalid port %d. Must be between 1-65535", port)}}
	}
	return nil
}

// isPlaceholderValue checks if a value is likely a placeholder
func isPlaceholderValue(value string) bool {
	lowerValue := strings.ToLower(value)
	for _, placeholder := range []string{"changeme", "placeholder", "example", "password", "secret"} {
		if strings.Contains(lowerValue, placeholder) {
			return true
		}
	}
	return false
}
