package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/desalination-map/internal/render"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
	"gonum.org/v1/plot/palette/brewer"
)

const (
	// DefaultSourceURL is the article listing desalination plants by country.
	DefaultSourceURL = "https://en.wikipedia.org/wiki/Desalination_by_country"
	// DefaultTableClass is the class attribute of the plant table.
	DefaultTableClass = "wikitable sortable"
	// DefaultGeometryPath is the Natural Earth admin-0 boundary file.
	// It is not shipped; data/README.md names the download.
	DefaultGeometryPath = "data/ne_110m_admin_0_countries.shp"

	debugAddr = "127.0.0.1:5000"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	Debug           bool
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Source page configuration.
	SourceURL     string
	TableClass    string
	SourceTimeout time.Duration

	// Boundary data configuration.
	GeometryPath  string
	GeometryCache bool

	Palette string

	// Aggregate publishing, disabled when no brokers are set.
	KafkaBrokers []string
	KafkaTopic   string
}

// PublishEnabled reports whether aggregates should be written to Kafka.
func (c *Config) PublishEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults where unset.
// debugFlag forces debug mode on in addition to the DEBUG variable.
func Load(debugFlag bool) (*Config, error) {
	debug := debugFlag || parseBool(os.Getenv("DEBUG"))
	if debug {
		// A missing .env file is fine; existing variables are not overridden.
		_ = godotenv.Load()
		debug = true
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	sourceTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("SOURCE_TIMEOUT", "15s"))
	if err != nil || sourceTimeout <= 0 {
		return nil, errors.New("invalid SOURCE_TIMEOUT")
	}

	addr, level, format := ":8080", "info", "json"
	if debug {
		addr, level, format = debugAddr, "debug", "text"
	}

	cfg := &Config{
		Debug:           debug,
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", addr),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", level),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", format),
		ShutdownTimeout: shutdownTimeout,

		SourceURL:     sharedcfg.EnvOrDefault("SOURCE_URL", DefaultSourceURL),
		TableClass:    sharedcfg.EnvOrDefault("TABLE_CLASS", DefaultTableClass),
		SourceTimeout: sourceTimeout,

		GeometryPath:  sharedcfg.EnvOrDefault("GEOMETRY_PATH", DefaultGeometryPath),
		GeometryCache: parseBool(os.Getenv("GEOMETRY_CACHE")),

		Palette: sharedcfg.EnvOrDefault("PALETTE", render.DefaultPalette),

		KafkaBrokers: sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "desalination-country-aggregates"),
	}

	if !strings.HasPrefix(cfg.SourceURL, "http://") && !strings.HasPrefix(cfg.SourceURL, "https://") {
		return nil, errors.New("SOURCE_URL must be an http(s) URL")
	}
	if strings.TrimSpace(cfg.TableClass) == "" {
		return nil, errors.New("TABLE_CLASS is required")
	}
	if cfg.GeometryPath == "" {
		return nil, errors.New("GEOMETRY_PATH is required")
	}
	if _, err := brewer.GetPalette(brewer.TypeAny, cfg.Palette, render.PaletteSize); err != nil {
		return nil, fmt.Errorf("invalid PALETTE %q: %w", cfg.Palette, err)
	}
	if cfg.PublishEnabled() && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func parseBool(s string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && v
}
