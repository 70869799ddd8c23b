// Package config loads osmclean settings from, in order of precedence,
// command-line flags (bound by the caller), environment variables, a .env
// file, an optional osmclean.yaml file and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/osm-versailles/internal/logging"
	"github.com/osm-versailles/internal/osm"
)

// Config holds the application configuration.
type Config struct {
	OSMFile       string
	ReferenceFile string
	OverridesFile string
	StreetsFile   string
	OutputFile    string
	Pretty        bool

	// SkipUnresolvable counts and skips records whose city has no
	// postcode instead of aborting the run.
	SkipUnresolvable bool

	Bounds   osm.Bounds
	Database DatabaseConfig
	RedisURL string
	Web      WebConfig
	Log      logging.Config
	Debug    bool

	// ConfigFile is the config file that was read, if any.
	ConfigFile string
}

// DatabaseConfig contains database connection settings. URL wins over the
// discrete PG* settings when set.
type DatabaseConfig struct {
	URL            string
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	MaxConnections int
}

// WebConfig contains HTTP server settings.
type WebConfig struct {
	Host string
	Port int

	// APIKey, when set, is required in the X-API-Key header of /api requests.
	APIKey   string
	CacheTTL time.Duration
}

// Addr is the listen address.
func (w WebConfig) Addr() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

// DSN returns the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

const defaultOSMFile = "./Versailles.osm/Versailles.osm"

func setDefaults(v *viper.Viper) {
	v.SetDefault("osm_file", defaultOSMFile)
	v.SetDefault("reference_file", "./Reference/laposte_hexasmal.csv")
	v.SetDefault("overrides_file", "")
	v.SetDefault("output_file", "")
	v.SetDefault("pretty", false)
	v.SetDefault("skip_unresolvable", false)

	v.SetDefault("bounds.min_lat", osm.Versailles.MinLat)
	v.SetDefault("bounds.max_lat", osm.Versailles.MaxLat)
	v.SetDefault("bounds.min_lon", osm.Versailles.MinLon)
	v.SetDefault("bounds.max_lon", osm.Versailles.MaxLon)

	v.SetDefault("redis_url", "")
	v.SetDefault("web.host", "0.0.0.0")
	v.SetDefault("web.port", 8080)
	v.SetDefault("web.cache_ttl", 5*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("debug", false)
}

// Load builds the configuration. configFile may be empty, in which case
// osmclean.yaml is looked up in the current directory and ignored when
// absent. An explicit configFile that cannot be read is an error.
func Load(configFile string) (*Config, error) {
	if err := LoadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return load(viper.New(), configFile)
}

func load(v *viper.Viper, configFile string) (*Config, error) {
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("osmclean")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	cfg := &Config{
		OSMFile:          v.GetString("osm_file"),
		ReferenceFile:    v.GetString("reference_file"),
		OverridesFile:    v.GetString("overrides_file"),
		StreetsFile:      v.GetString("streets_file"),
		OutputFile:       v.GetString("output_file"),
		Pretty:           v.GetBool("pretty"),
		SkipUnresolvable: v.GetBool("skip_unresolvable"),
		Bounds: osm.Bounds{
			MinLat: v.GetFloat64("bounds.min_lat"),
			MaxLat: v.GetFloat64("bounds.max_lat"),
			MinLon: v.GetFloat64("bounds.min_lon"),
			MaxLon: v.GetFloat64("bounds.max_lon"),
		},
		Database: DatabaseConfig{
			URL:            GetEnv("DATABASE_URL", v.GetString("database.url")),
			Host:           GetEnv("PGHOST", "localhost"),
			Port:           GetEnvInt("PGPORT", 5432),
			User:           GetEnv("PGUSER", "postgres"),
			Password:       GetEnv("PGPASSWORD", "password"),
			Name:           GetEnv("PGDATABASE", "osm_versailles"),
			MaxConnections: GetEnvInt("DB_MAX_CONNECTIONS", 20),
		},
		RedisURL: v.GetString("redis_url"),
		Web: WebConfig{
			Host:     v.GetString("web.host"),
			Port:     v.GetInt("web.port"),
			APIKey:   v.GetString("web.api_key"),
			CacheTTL: v.GetDuration("web.cache_ttl"),
		},
		Log: logging.Config{
			Level:   v.GetString("log.level"),
			Format:  v.GetString("log.format"),
			Output:  v.GetString("log.output"),
			NoColor: GetEnvBool("NO_COLOR", false),
		},
		Debug:      v.GetBool("debug"),
		ConfigFile: v.ConfigFileUsed(),
	}

	if cfg.OutputFile == "" {
		cfg.OutputFile = cfg.OSMFile + ".json"
	}
	return cfg, nil
}
