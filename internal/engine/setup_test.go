package engine

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finover/riskengine/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Risk:  config.DefaultRiskConfig(),
		Cache: config.CacheConfig{TTL: time.Minute, KeyPrefix: "test"},
	}
}

func TestConnect_NoBackends(t *testing.T) {
	svc, backends := Connect(context.Background(), testConfig(), "test")
	defer backends.Close()

	require.NotNil(t, svc)
	assert.Nil(t, backends.Pool)
	assert.Nil(t, backends.Redis)
	assert.Nil(t, backends.Publisher)
	assert.False(t, svc.HasHistory())
}

func TestConnect_RedisAndNATS(t *testing.T) {
	mr := miniredis.RunT(t)

	ns, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1})
	require.NoError(t, err)
	go ns.Start()
	require.True(t, ns.ReadyForConnections(5*time.Second), "NATS server not ready")
	t.Cleanup(ns.Shutdown)

	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Redis = config.RedisConfig{Enabled: true, Host: mr.Host(), Port: port}
	cfg.NATS = config.NATSConfig{Enabled: true, URL: ns.ClientURL(), SubjectPrefix: "test.alerts"}

	svc, backends := Connect(context.Background(), cfg, "test")
	defer backends.Close()

	require.NotNil(t, backends.Redis)
	require.NotNil(t, backends.Publisher)

	status := svc.Health(context.Background())
	assert.Equal(t, StatusHealthy, status["cache"])
	assert.Equal(t, StatusHealthy, status["alerts"])
	assert.Equal(t, StatusNotConfigured, status["database"])
}

func TestConnect_UnreachableBackendsAreSkipped(t *testing.T) {
	cfg := testConfig()
	cfg.Redis = config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}
	cfg.NATS = config.NATSConfig{Enabled: true, URL: "nats://127.0.0.1:1"}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	svc, backends := Connect(ctx, cfg, "test")
	defer backends.Close()

	assert.Nil(t, backends.Redis)
	assert.Nil(t, backends.Publisher)
	assert.Equal(t, StatusNotConfigured, svc.Health(ctx)["cache"])
}
