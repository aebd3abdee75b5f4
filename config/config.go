// Package config loads process settings for the linfit binaries from the
// environment, optionally seeded from a .env file.
package config

import (
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/YuminosukeSato/linfit/internal/archive"
	"github.com/YuminosukeSato/linfit/pkg/errors"
)

// Environment variable names.
const (
	EnvLogLevel       = "LINFIT_LOG_LEVEL"
	EnvLogFormat      = "LINFIT_LOG_FORMAT"
	EnvPort           = "PORT"
	EnvDBDriver       = "LINFIT_DB_DRIVER"
	EnvDatabaseURL    = "DATABASE_URL"
	EnvAllowedOrigins = "LINFIT_ALLOWED_ORIGINS"
	EnvArchiveCodec   = "LINFIT_ARCHIVE_CODEC"
	EnvMaxUploadBytes = "LINFIT_MAX_UPLOAD_BYTES"
)

// Config holds process settings.
type Config struct {
	LogLevel       string
	LogFormat      string
	Port           string
	DBDriver       string
	DatabaseURL    string
	AllowedOrigins []string
	ArchiveCodec   archive.CodecType
	MaxUploadBytes int64
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		LogLevel:       "info",
		LogFormat:      "json",
		Port:           "8080",
		DBDriver:       "sqlite",
		DatabaseURL:    "linfit.db",
		AllowedOrigins: []string{"http://localhost:3000"},
		ArchiveCodec:   archive.CodecZstd,
		MaxUploadBytes: 10 << 20,
	}
}

// Load reads files (default ".env") into the environment without
// overriding variables already set, then builds a Config. A missing
// .env file is not an error.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, errors.Wrapf(err, "load %s", f)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment.
func FromEnv() (Config, error) {
	cfg := Default()

	setString(&cfg.LogLevel, EnvLogLevel)
	setString(&cfg.LogFormat, EnvLogFormat)
	setString(&cfg.Port, EnvPort)
	setString(&cfg.DBDriver, EnvDBDriver)
	setString(&cfg.DatabaseURL, EnvDatabaseURL)

	if v, ok := lookup(EnvAllowedOrigins); ok {
		cfg.AllowedOrigins = splitList(v)
	}
	if v, ok := lookup(EnvArchiveCodec); ok {
		c, err := archive.ParseCodec(v)
		if err != nil {
			return Config{}, err
		}
		cfg.ArchiveCodec = c
	}
	if v, ok := lookup(EnvMaxUploadBytes); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return Config{}, errors.NewInvalidConfigError(EnvMaxUploadBytes, "must be a positive integer", v)
		}
		cfg.MaxUploadBytes = n
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
