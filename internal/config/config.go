package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"marketpulse/internal/domain"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for marketpulse.
type Config struct {
	Server  Server  `yaml:"server"`
	GenAI   GenAI   `yaml:"genai"`
	Market  Market  `yaml:"market"`
	Alpaca  Alpaca  `yaml:"alpaca"`
	Storage Storage `yaml:"storage"`
	Logging Logging `yaml:"logging"`
}

// Server holds network listener configuration.
type Server struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	GRPCPort     int           `yaml:"grpc_port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// GenAI configures the generative JSON-completion service behind the query
// client.
type GenAI struct {
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Market controls the simulated instrument store.
type Market struct {
	TickInterval  time.Duration       `yaml:"tick_interval"`
	FlashDuration time.Duration       `yaml:"flash_duration"`
	PriceDriftPct float64             `yaml:"price_drift_pct"` // max |change| of currentValue, percent of itself
	DailyDrift    float64             `yaml:"daily_drift"`     // max |change| of dailyChange, points
	YTDDrift      float64             `yaml:"ytd_drift"`       // max |change| of ytdReturn, points
	DefaultRange  string              `yaml:"default_range"`
	Seed          []domain.Instrument `yaml:"seed"`
}

// Alpaca holds credentials for optional watchlist seeding and per-ticker
// headlines.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
	Watchlist string `yaml:"watchlist"`
}

// Storage holds optional persistence targets. Empty paths disable them.
type Storage struct {
	SQLitePath string `yaml:"sqlite_path"`
	ArchiveDir string `yaml:"archive_dir"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns a Config populated with built-in defaults.
func Default() *Config {
	return &Config{
		Server: Server{
			Host:         "0.0.0.0",
			Port:         8080,
			GRPCPort:     50051,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		GenAI: GenAI{
			Model:   "gemini-2.5-flash",
			Timeout: 30 * time.Second,
		},
		Market: Market{
			TickInterval:  2500 * time.Millisecond,
			FlashDuration: 500 * time.Millisecond,
			PriceDriftPct: 0.25,
			DailyDrift:    2.5,
			YTDDrift:      2.5,
			DefaultRange:  string(domain.DefaultRange),
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the YAML configuration file at the given path on top of the
// defaults and then applies environment variable overrides. A missing file
// is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d out of range", c.Server.GRPCPort)
	}
	if c.Market.TickInterval <= 0 {
		return fmt.Errorf("market.tick_interval must be positive, got %s", c.Market.TickInterval)
	}
	if c.Market.FlashDuration < 0 {
		return fmt.Errorf("market.flash_duration must not be negative, got %s", c.Market.FlashDuration)
	}
	if _, err := domain.ParseChartRange(c.Market.DefaultRange); err != nil {
		return fmt.Errorf("market.default_range: %w", err)
	}
	return nil
}

// Addr returns the HTTP listen address.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GRPCAddr returns the gRPC listen address, or "" when the stream is disabled.
func (s Server) GRPCAddr() string {
	if s.GRPCPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", s.Host, s.GRPCPort)
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MARKETPULSE_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("MARKETPULSE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}

	// Lowest priority first.
	if v := os.Getenv("API_KEY"); v != "" {
		cfg.GenAI.APIKey = v
	}
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		cfg.GenAI.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.GenAI.APIKey = v
	}
	if v := os.Getenv("GENAI_MODEL"); v != "" {
		cfg.GenAI.Model = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("ARCHIVE_DIR"); v != "" {
		cfg.Storage.ArchiveDir = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
