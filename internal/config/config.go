package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                   string
	AppEnv                    string
	AppPort                   string
	CORSOrigins               string
	DatabaseURL               string
	RedisURL                  string
	NATSURL                   string
	RealtimeChannel           string
	JWTSecret                 string
	AdminQueryToken           string
	AdminQueryMaxPageSize     int
	OpenAIAPIKey              string
	AIModel                   string
	PublishedCacheTTL         time.Duration
	SpaceCodeAttempts         int
	StreamKeepAlive           time.Duration
	SigningOrg                string
	SigningAttestationVersion string
}

// IsDevelopment reports whether the service runs in the local development environment.
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
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
	v.SetEnvPrefix("SKOLE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "321skole API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("realtime.channel", "skole:spaces")
	v.SetDefault("admin.query_max_page_size", 500)
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("lessons.cache_ttl", "2m")
	v.SetDefault("spaces.code_attempts", 10)
	v.SetDefault("spaces.stream_keepalive", "30s")
	v.SetDefault("signing.org", "321skole")
	v.SetDefault("signing.attestation_version", "v1")

	cacheTTL, err := parseDuration(v.GetString("lessons.cache_ttl"), 2*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid lessons cache ttl: %w", err)
	}

	keepAlive, err := parseDuration(v.GetString("spaces.stream_keepalive"), 30*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid stream keepalive: %w", err)
	}

	cfg := Config{
		AppName:                   v.GetString("app.name"),
		AppEnv:                    v.GetString("app.env"),
		AppPort:                   v.GetString("app.port"),
		CORSOrigins:               v.GetString("cors.allowed_origins"),
		DatabaseURL:               v.GetString("database.url"),
		RedisURL:                  v.GetString("redis.url"),
		NATSURL:                   v.GetString("nats.url"),
		RealtimeChannel:           v.GetString("realtime.channel"),
		JWTSecret:                 v.GetString("jwt.secret"),
		AdminQueryToken:           v.GetString("admin.query_token"),
		AdminQueryMaxPageSize:     v.GetInt("admin.query_max_page_size"),
		OpenAIAPIKey:              v.GetString("openai_api_key"),
		AIModel:                   v.GetString("ai.model"),
		PublishedCacheTTL:         cacheTTL,
		SpaceCodeAttempts:         v.GetInt("spaces.code_attempts"),
		StreamKeepAlive:           keepAlive,
		SigningOrg:                v.GetString("signing.org"),
		SigningAttestationVersion: v.GetString("signing.attestation_version"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.AdminQueryMaxPageSize <= 0 {
		cfg.AdminQueryMaxPageSize = 500
	}

	if cfg.SpaceCodeAttempts <= 0 {
		cfg.SpaceCodeAttempts = 10
	}

	return cfg, nil
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}
