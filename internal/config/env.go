package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// envPaths are searched in order; the first .env file found is loaded.
var envPaths = []string{".env", "../.env", "../../.env"}

// LoadEnv loads environment variables from the first .env file found in
// the current directory or its parents. Variables already set win.
func LoadEnv() error {
	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		return godotenv.Load(envPath)
	}
	return nil
}

// envValue returns the trimmed value of key when it is set, non-blank and
// accepted by parse.
func envValue[T any](key string, parse func(string) (T, error)) (T, bool) {
	var zero T
	raw, ok := os.LookupEnv(key)
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return zero, false
	}
	v, err := parse(raw)
	if err != nil {
		return zero, false
	}
	return v, true
}

// GetEnv returns the value of key, or defaultValue when unset or blank.
func GetEnv(key, defaultValue string) string {
	if v, ok := envValue(key, func(s string) (string, error) { return s, nil }); ok {
		return v
	}
	return defaultValue
}

// GetEnvInt is GetEnv for integers. Unparsable values fall back to
// defaultValue.
func GetEnvInt(key string, defaultValue int) int {
	if v, ok := envValue(key, strconv.Atoi); ok {
		return v
	}
	return defaultValue
}

// GetEnvBool accepts true/false, 1/0, yes/no and on/off.
func GetEnvBool(key string, defaultValue bool) bool {
	if v, ok := envValue(key, parseBool); ok {
		return v
	}
	return defaultValue
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	return strconv.ParseBool(s)
}
