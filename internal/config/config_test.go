package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osm-versailles/internal/osm"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, defaultOSMFile, cfg.OSMFile)
	assert.Equal(t, defaultOSMFile+".json", cfg.OutputFile)
	assert.Equal(t, "./Reference/laposte_hexasmal.csv", cfg.ReferenceFile)
	assert.Empty(t, cfg.OverridesFile)
	assert.Equal(t, osm.Versailles, cfg.Bounds)
	assert.Equal(t, 8080, cfg.Web.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Web.Addr())
	assert.Equal(t, 5*time.Minute, cfg.Web.CacheTTL)
	assert.Empty(t, cfg.Web.APIKey)
	assert.False(t, cfg.SkipUnresolvable)
	assert.Empty(t, cfg.ConfigFile)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("OSM_FILE", "/data/paris.osm")
	t.Setenv("SKIP_UNRESOLVABLE", "true")
	t.Setenv("BOUNDS_MIN_LAT", "48.1")
	t.Setenv("WEB_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/osm")

	cfg, err := load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "/data/paris.osm", cfg.OSMFile)
	assert.Equal(t, "/data/paris.osm.json", cfg.OutputFile)
	assert.True(t, cfg.SkipUnresolvable)
	assert.Equal(t, 48.1, cfg.Bounds.MinLat)
	assert.Equal(t, osm.Versailles.MaxLat, cfg.Bounds.MaxLat)
	assert.Equal(t, 9090, cfg.Web.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "postgres://u:p@db/osm", cfg.Database.DSN())
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "osmclean.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
osm_file: extract.osm
output_file: out.json
pretty: true
web:
  port: 7000
`), 0o644))

	cfg, err := load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "extract.osm", cfg.OSMFile)
	assert.Equal(t, "out.json", cfg.OutputFile)
	assert.True(t, cfg.Pretty)
	assert.Equal(t, 7000, cfg.Web.Port)
	assert.Equal(t, path, cfg.ConfigFile)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "localhost", Port: 5432, User: "osm", Password: "secret", Name: "osm_versailles"}
	assert.Equal(t, "host=localhost port=5432 user=osm password=secret dbname=osm_versailles sslmode=disable", d.DSN())
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("OSMCLEAN_TEST_STR", "value")
	t.Setenv("OSMCLEAN_TEST_INT", "42")
	t.Setenv("OSMCLEAN_TEST_BAD_INT", "forty-two")
	t.Setenv("OSMCLEAN_TEST_BOOL", "yes")
	t.Setenv("OSMCLEAN_TEST_BAD_BOOL", "maybe")

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"string", GetEnv("OSMCLEAN_TEST_STR", "default"), "value"},
		{"string default", GetEnv("OSMCLEAN_TEST_UNSET", "default"), "default"},
		{"int", GetEnvInt("OSMCLEAN_TEST_INT", 1), 42},
		{"bad int", GetEnvInt("OSMCLEAN_TEST_BAD_INT", 1), 1},
		{"bool", GetEnvBool("OSMCLEAN_TEST_BOOL", false), true},
		{"bad bool", GetEnvBool("OSMCLEAN_TEST_BAD_BOOL", true), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OSMCLEAN_FROM_DOTENV=loaded\nOSMCLEAN_PRESET=dotenv\n"), 0o644))
	t.Chdir(dir)
	t.Setenv("OSMCLEAN_PRESET", "shell")
	t.Cleanup(func() { os.Unsetenv("OSMCLEAN_FROM_DOTENV") })

	require.NoError(t, LoadEnv())

	assert.Equal(t, "loaded", os.Getenv("OSMCLEAN_FROM_DOTENV"))
	assert.Equal(t, "shell", os.Getenv("OSMCLEAN_PRESET"), "set variables are not overridden")
}
