package config

// Default ports for the service and its optional backends
const (
	// APIServerPort is the port for the REST API server.
	APIServerPort = 8080

	// MetricsPort is the port the Prometheus metrics server listens on.
	MetricsPort = 9100

	PostgresPort = 5432
	RedisPort    = 6379
	NATSPort     = 4222
)
