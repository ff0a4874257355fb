package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("IZUMI_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "Izumi API", cfg.AppName)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, LimiterBackendRedis, cfg.LimiterBackend)
	require.Equal(t, 5, cfg.LimiterMaxAttempts)
	require.Equal(t, 5*time.Minute, cfg.LimiterBlockWindow)
	require.Equal(t, 24*time.Hour, cfg.JWTTTL)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("IZUMI_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsUnknownLimiterBackend(t *testing.T) {
	t.Setenv("IZUMI_JWT_SECRET", "secret")
	t.Setenv("IZUMI_LIMITER_BACKEND", "memcached")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("IZUMI_JWT_SECRET", "secret")
	t.Setenv("IZUMI_APP_PORT", ":9090")
	t.Setenv("IZUMI_LIMITER_BACKEND", "Memory")
	t.Setenv("IZUMI_LIMITER_BLOCK_WINDOW", "90s")
	t.Setenv("IZUMI_ADMIN_EMAIL", " Root@Izumi.dev ")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.Equal(t, LimiterBackendMemory, cfg.LimiterBackend)
	require.Equal(t, 90*time.Second, cfg.LimiterBlockWindow)
	require.Equal(t, "root@izumi.dev", cfg.AdminEmail)
}
