package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"

	"github.com/samirrijal/routecast/internal/core/domain"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	SQLite    SQLiteConfig    `mapstructure:"sqlite"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Render    RenderConfig    `mapstructure:"render"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	BodyLimitMB  int    `mapstructure:"body_limit_mb"`
	JWTSecret    string `mapstructure:"jwt_secret"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User), url.QueryEscape(d.Password), d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// MigrateURL is the DSN in the form the migrate pgx/v5 driver expects.
func (d DatabaseConfig) MigrateURL() string {
	return "pgx5" + strings.TrimPrefix(d.DSN(), "postgres")
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
	// ArtifactTTL is how long an undownloaded render is kept, in seconds.
	ArtifactTTL int `mapstructure:"artifact_ttl"`
	// ChartTTL is the lap chart cache lifetime, in seconds.
	ChartTTL int `mapstructure:"chart_ttl"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type RenderConfig struct {
	MaxBackgroundSide int `mapstructure:"max_background_side"`
	// MaxBackgroundPixels rejects uploads whose decoded size would exceed
	// width*height before they are decoded.
	MaxBackgroundPixels int `mapstructure:"max_background_pixels"`
	// StreamAbovePoints switches videos with no requested format from gif
	// to the frame stream above this many points. 0 disables it.
	StreamAbovePoints int    `mapstructure:"stream_above_points"`
	FPSDivisor        int    `mapstructure:"fps_divisor"`
	DefaultPreset     string `mapstructure:"default_preset"`
	JPEGQuality       int    `mapstructure:"jpeg_quality"`
	// Store selects the artifact store: "memory" or "valkey".
	Store string `mapstructure:"store"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 120)
	v.SetDefault("server.body_limit_mb", 64)
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "routecast")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "routecast")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("sqlite.path", "routecast.db")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.artifact_ttl", 3600)
	v.SetDefault("valkey.chart_ttl", 600)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "routecast-render")
	v.SetDefault("render.max_background_side", domain.DefaultMaxSide)
	v.SetDefault("render.max_background_pixels", 40_000_000)
	v.SetDefault("render.stream_above_points", 5400)
	v.SetDefault("render.fps_divisor", domain.DefaultFPSDivisor)
	v.SetDefault("render.default_preset", string(domain.PresetDefault))
	v.SetDefault("render.jpeg_quality", 90)
	v.SetDefault("render.store", "memory")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: ROUTECAST_RENDER_FPS_DIVISOR → render.fps_divisor
	v.SetEnvPrefix("ROUTECAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.BodyLimitMB <= 0 {
		errs = append(errs, "server.body_limit_mb must be positive")
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Valkey.ArtifactTTL < 0 {
		errs = append(errs, "valkey.artifact_ttl must not be negative")
	}
	if c.Temporal.TaskQueue == "" {
		errs = append(errs, "temporal.task_queue is required")
	}
	if c.Render.MaxBackgroundSide <= 0 {
		errs = append(errs, "render.max_background_side must be positive")
	}
	if c.Render.MaxBackgroundPixels <= 0 {
		errs = append(errs, "render.max_background_pixels must be positive")
	}
	if c.Render.StreamAbovePoints < 0 {
		errs = append(errs, "render.stream_above_points must not be negative")
	}
	if c.Render.FPSDivisor <= 0 {
		errs = append(errs, "render.fps_divisor must be positive")
	}
	if _, err := domain.PresetConfig(domain.Preset(c.Render.DefaultPreset)); err != nil {
		errs = append(errs, fmt.Sprintf("render.default_preset %q is unknown", c.Render.DefaultPreset))
	}
	if c.Render.JPEGQuality < 1 || c.Render.JPEGQuality > 100 {
		errs = append(errs, fmt.Sprintf("render.jpeg_quality must be 1-100, got %d", c.Render.JPEGQuality))
	}
	switch c.Render.Store {
	case "memory", "valkey":
	default:
		errs = append(errs, fmt.Sprintf("render.store must be memory or valkey, got %q", c.Render.Store))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
