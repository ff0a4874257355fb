package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Limiter backends accepted by LimiterBackend.
const (
	LimiterBackendRedis    = "redis"
	LimiterBackendMemory   = "memory"
	LimiterBackendDisabled = "disabled"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName            string
	AppEnv             string
	AppPort            string
	DatabaseURL        string
	RedisURL           string
	NATSURL            string
	EventSubjectBase   string
	JWTSecret          string
	JWTTTL             time.Duration
	AdminEmail         string
	AdminPassword      string
	LimiterBackend     string
	LimiterMaxAttempts int
	LimiterBlockWindow time.Duration
	AuthRequestsPerMin int
	AnalyticsCacheTTL  time.Duration
	CatalogCacheTTL    time.Duration
	LeaderboardKey     string
	CORSAllowOrigins   string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("IZUMI")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Izumi API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("jwt.ttl", "24h")
	v.SetDefault("limiter.backend", LimiterBackendRedis)
	v.SetDefault("limiter.max_attempts", 5)
	v.SetDefault("limiter.block_window", "5m")
	v.SetDefault("auth.requests_per_minute", 30)
	v.SetDefault("analytics.cache_ttl", "5m")
	v.SetDefault("catalog.cache_ttl", "1m")
	v.SetDefault("leaderboard.key", "izumi:leaderboard")
	v.SetDefault("events.subject_base", "izumi")
	v.SetDefault("cors.allow_origins", "*")

	jwtTTL, err := parseDuration(v, "jwt.ttl")
	if err != nil {
		return Config{}, err
	}
	blockWindow, err := parseDuration(v, "limiter.block_window")
	if err != nil {
		return Config{}, err
	}
	analyticsTTL, err := parseDuration(v, "analytics.cache_ttl")
	if err != nil {
		return Config{}, err
	}
	catalogTTL, err := parseDuration(v, "catalog.cache_ttl")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		DatabaseURL:        v.GetString("database.url"),
		RedisURL:           v.GetString("redis.url"),
		NATSURL:            v.GetString("nats.url"),
		EventSubjectBase:   v.GetString("events.subject_base"),
		JWTSecret:          v.GetString("jwt.secret"),
		JWTTTL:             jwtTTL,
		AdminEmail:         strings.ToLower(strings.TrimSpace(v.GetString("admin.email"))),
		AdminPassword:      v.GetString("admin.password"),
		LimiterBackend:     strings.ToLower(strings.TrimSpace(v.GetString("limiter.backend"))),
		LimiterMaxAttempts: v.GetInt("limiter.max_attempts"),
		LimiterBlockWindow: blockWindow,
		AuthRequestsPerMin: v.GetInt("auth.requests_per_minute"),
		AnalyticsCacheTTL:  analyticsTTL,
		CatalogCacheTTL:    catalogTTL,
		LeaderboardKey:     v.GetString("leaderboard.key"),
		CORSAllowOrigins:   v.GetString("cors.allow_origins"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.LimiterBackend {
	case LimiterBackendRedis, LimiterBackendMemory, LimiterBackendDisabled:
	default:
		return Config{}, fmt.Errorf("unsupported limiter backend %q", cfg.LimiterBackend)
	}

	if cfg.LimiterMaxAttempts <= 0 {
		cfg.LimiterMaxAttempts = 5
	}
	if cfg.AuthRequestsPerMin <= 0 {
		cfg.AuthRequestsPerMin = 30
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, fmt.Errorf("%s must not be empty", key)
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}

	return d, nil
}
