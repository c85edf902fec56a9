package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	CORS      CORSConfig
	Log       LogConfig
	Realtime  RealtimeConfig
	Merges    MergesConfig
	Retention RetentionConfig
	Exports   ExportsConfig
	Stats     StatsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RealtimeConfig tunes the display websocket transport.
type RealtimeConfig struct {
	HeartbeatInterval time.Duration
	WriteTimeout      time.Duration
	ReadLimitBytes    int64
}

// MergesConfig controls the scheduled daily merge reset.
type MergesConfig struct {
	ResetHour int
}

// RetentionConfig controls the acknowledged pickup purge.
type RetentionConfig struct {
	Window    time.Duration
	PurgeHour int
}

// ExportsConfig toggles pickup history exports.
type ExportsConfig struct {
	Enabled bool
}

// StatsConfig governs cache behaviour for the pickup stats endpoint.
type StatsConfig struct {
	CacheTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Realtime = RealtimeConfig{
		HeartbeatInterval: parseDuration(v.GetString("WS_HEARTBEAT_INTERVAL"), 30*time.Second),
		WriteTimeout:      parseDuration(v.GetString("WS_WRITE_TIMEOUT"), 5*time.Second),
		ReadLimitBytes:    v.GetInt64("WS_READ_LIMIT_BYTES"),
	}

	cfg.Merges = MergesConfig{
		ResetHour: clampHour(v.GetInt("MERGE_RESET_HOUR")),
	}

	cfg.Retention = RetentionConfig{
		Window:    parseDuration(v.GetString("PICKUP_RETENTION_WINDOW"), 24*time.Hour),
		PurgeHour: clampHour(v.GetInt("PICKUP_PURGE_HOUR")),
	}

	cfg.Exports = ExportsConfig{
		Enabled: v.GetBool("ENABLE_EXPORTS"),
	}

	cfg.Stats = StatsConfig{
		CacheTTL: parseDuration(v.GetString("STATS_CACHE_TTL"), time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "pickup_display")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("WS_HEARTBEAT_INTERVAL", "30s")
	v.SetDefault("WS_WRITE_TIMEOUT", "5s")
	v.SetDefault("WS_READ_LIMIT_BYTES", 4096)

	v.SetDefault("MERGE_RESET_HOUR", 18)

	v.SetDefault("PICKUP_RETENTION_WINDOW", "24h")
	v.SetDefault("PICKUP_PURGE_HOUR", 2)

	v.SetDefault("ENABLE_EXPORTS", true)
	v.SetDefault("STATS_CACHE_TTL", "1m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func clampHour(hour int) int {
	if hour < 0 || hour > 23 {
		return 0
	}
	return hour
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
