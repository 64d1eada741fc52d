package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // hours.timezone must resolve on minimal images

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
	Geocoder  GeocoderConfig  `mapstructure:"geocoder"`
	Geocache  GeocacheConfig  `mapstructure:"geocache"`
	Markers   MarkersConfig   `mapstructure:"markers"`
	Hours     HoursConfig     `mapstructure:"hours"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GeocoderConfig points at the Naver Cloud geocode API.
type GeocoderConfig struct {
	URL     string `mapstructure:"url"`
	KeyID   string `mapstructure:"key_id"`
	Key     string `mapstructure:"key"`
	Timeout int    `mapstructure:"timeout_ms"`
}

func (g GeocoderConfig) TimeoutDuration() time.Duration {
	return time.Duration(g.Timeout) * time.Millisecond
}

// GeocacheConfig selects where resolved addresses are persisted.
type GeocacheConfig struct {
	Backend    string `mapstructure:"backend"` // valkey | file | memory
	FilePath   string `mapstructure:"file_path"`
	StorageKey string `mapstructure:"storage_key"`
	MaxEntries int    `mapstructure:"max_entries"`
	Normalize  bool   `mapstructure:"normalize"`
}

type MarkersConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
	GridSize      int `mapstructure:"grid_size"`
	WaitTimeout   int `mapstructure:"wait_timeout_ms"`
	MaxVenues     int `mapstructure:"max_venues"`
}

type HoursConfig struct {
	Timezone     string `mapstructure:"timezone"`
	TickInterval int    `mapstructure:"tick_interval"` // seconds
}

// Location loads the configured timezone.
func (h HoursConfig) Location() (*time.Location, error) {
	return time.LoadLocation(h.Timezone)
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "nightmap")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "nightmap")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("geocoder.url", "https://naveropenapi.apigw.ntruss.com/map-geocode/v2/geocode")
	v.SetDefault("geocoder.key_id", "")
	v.SetDefault("geocoder.key", "")
	v.SetDefault("geocoder.timeout_ms", 5000)
	v.SetDefault("geocache.backend", "valkey")
	v.SetDefault("geocache.file_path", "data/geocode-cache.json")
	v.SetDefault("geocache.storage_key", "geocodeCache")
	v.SetDefault("geocache.max_entries", 0)
	v.SetDefault("geocache.normalize", true)
	v.SetDefault("markers.max_concurrent", 8)
	v.SetDefault("markers.grid_size", 60)
	v.SetDefault("markers.wait_timeout_ms", 3000)
	v.SetDefault("markers.max_venues", 500)
	v.SetDefault("hours.timezone", "Asia/Seoul")
	v.SetDefault("hours.tick_interval", 60)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "nightmap-geocode")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: NIGHTMAP_DATABASE_HOST → database.host
	v.SetEnvPrefix("NIGHTMAP")
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
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	switch c.Geocache.Backend {
	case "valkey", "memory":
	case "file":
		if c.Geocache.FilePath == "" {
			errs = append(errs, "geocache.file_path is required for the file backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("geocache.backend must be valkey, file or memory, got %q", c.Geocache.Backend))
	}
	if c.Geocache.StorageKey == "" {
		errs = append(errs, "geocache.storage_key is required")
	}
	if c.Geocache.MaxEntries < 0 {
		errs = append(errs, "geocache.max_entries must not be negative")
	}
	if c.Geocoder.Timeout <= 0 {
		errs = append(errs, "geocoder.timeout_ms must be positive")
	}
	if c.Markers.MaxConcurrent < 0 {
		errs = append(errs, "markers.max_concurrent must not be negative")
	}
	if c.Markers.GridSize <= 0 {
		errs = append(errs, "markers.grid_size must be positive")
	}
	if _, err := c.Hours.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("hours.timezone %q: %v", c.Hours.Timezone, err))
	}
	if c.Hours.TickInterval <= 0 {
		errs = append(errs, "hours.tick_interval must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
