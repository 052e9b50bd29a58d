package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Map     MapConfig     `yaml:"map" mapstructure:"map"`
	Tiles   TilesConfig   `yaml:"tiles" mapstructure:"tiles"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	PostGIS PostGISConfig `yaml:"postgis" mapstructure:"postgis"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the local sqlite database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the map server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MapConfig holds default map document settings.
type MapConfig struct {
	CenterLat float64 `yaml:"center_lat" mapstructure:"center_lat"`
	CenterLng float64 `yaml:"center_lng" mapstructure:"center_lng"`
	Zoom      int     `yaml:"zoom" mapstructure:"zoom"`
	Height    string  `yaml:"height" mapstructure:"height"`
	Basemap   string  `yaml:"basemap" mapstructure:"basemap"`
}

// TilesConfig configures the tile cache, proxy, and seeder.
type TilesConfig struct {
	CacheSize    int     `yaml:"cache_size" mapstructure:"cache_size"`
	CacheTTL     string  `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
	SeedWorkers  int     `yaml:"seed_workers" mapstructure:"seed_workers"`
	UpstreamRate float64 `yaml:"upstream_rate" mapstructure:"upstream_rate"`
}

// GeocodeConfig configures the geocoding client.
type GeocodeConfig struct {
	RatePerSec   float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	NominatimURL string  `yaml:"nominatim_url" mapstructure:"nominatim_url"`
	CacheTTLDays int     `yaml:"cache_ttl_days" mapstructure:"cache_ttl_days"`
}

// PostGISConfig configures the optional PostGIS feature backend.
type PostGISConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FetchConfig configures the dataset downloader.
type FetchConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	TempDir     string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GEOSPYTHON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.path", "geospython.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("map.center_lat", 20.0)
	v.SetDefault("map.center_lng", 0.0)
	v.SetDefault("map.zoom", 2)
	v.SetDefault("map.height", "600px")
	v.SetDefault("map.basemap", "OpenStreetMap")
	v.SetDefault("tiles.cache_size", 10000)
	v.SetDefault("tiles.cache_ttl", "1h")
	v.SetDefault("tiles.user_agent", "geospython/1.0")
	v.SetDefault("tiles.seed_workers", 4)
	v.SetDefault("tiles.upstream_rate", 10.0)
	v.SetDefault("geocode.rate_per_sec", 10.0)
	v.SetDefault("geocode.nominatim_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.cache_ttl_days", 30)
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.temp_dir", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that required settings are present for the given run mode.
// Modes: "serve", "seed", "geocode".
func (c *Config) Validate(mode string) error {
	var missing []string

	if c.Tiles.SeedWorkers < 1 || c.Tiles.SeedWorkers > 64 {
		missing = append(missing, "tiles.seed_workers must be between 1 and 64")
	}
	if c.Tiles.UpstreamRate <= 0 {
		missing = append(missing, "tiles.upstream_rate must be > 0")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	case "seed":
		if c.Store.Path == "" {
			missing = append(missing, "store.path is required")
		}
	case "geocode":
		if c.Geocode.RatePerSec <= 0 {
			missing = append(missing, "geocode.rate_per_sec must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: %s", strings.Join(missing, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
