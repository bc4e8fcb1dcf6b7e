package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/abnlookup/pkg/abr"
	"github.com/hazyhaar/abnlookup/pkg/registry"
	"github.com/hazyhaar/abnlookup/pkg/search"
)

type config struct {
	Addr           string        `yaml:"addr"`
	Backend        string        `yaml:"backend"` // "abr" or "local"
	DBPath         string        `yaml:"db_path"`
	SourcesDB      string        `yaml:"sources_db"`
	CheckInterval  time.Duration `yaml:"check_interval"` // 0 disables the source checker
	MCP            bool          `yaml:"mcp"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	LogLevel       string        `yaml:"log_level"`
	ABR            abrConfig     `yaml:"abr"`
	Cache          cacheConfig   `yaml:"cache"`
	TLS            tlsConfig     `yaml:"tls"`
}

type abrConfig struct {
	BaseURL       string        `yaml:"base_url"`
	GUID          string        `yaml:"guid"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	MaxResults    int           `yaml:"max_results"`
}

type cacheConfig struct {
	TTL     time.Duration `yaml:"ttl"` // 0 disables caching
	Cleanup time.Duration `yaml:"cleanup"`
}

type tlsConfig struct {
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
	SelfSigned bool   `yaml:"self_signed"`
}

func defaultConfig() config {
	return config{
		Addr:           ":8420",
		Backend:        "abr",
		DBPath:         "data/abn.db",
		SourcesDB:      "data/sources.db",
		MCP:            true,
		RequestTimeout: 15 * time.Second,
		LogLevel:       "info",
		ABR: abrConfig{
			BaseURL:       abr.DefaultBaseURL,
			Timeout:       abr.DefaultTimeout,
			RatePerSecond: 5,
			MaxResults:    abr.DefaultMaxResults,
		},
		Cache: cacheConfig{
			TTL:     10 * time.Minute,
			Cleanup: 30 * time.Minute,
		},
	}
}

// loadConfig reads path over the defaults. A missing file is not an error.
// ABR_GUID, when set, overrides abr.guid.
func loadConfig(path string, logger *slog.Logger) (config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		logger.Info("no config file, using defaults", "path", path)
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if guid := os.Getenv("ABR_GUID"); guid != "" {
		cfg.ABR.GUID = guid
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch cfg.Backend {
	case "abr", "local":
	default:
		return cfg, fmt.Errorf("unknown backend %q (want abr or local)", cfg.Backend)
	}
	return cfg, nil
}

func (c config) level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// backend is the lookup service selected by the config plus what the
// server needs to report on and release it.
type backend struct {
	svc   search.LookupService
	cache *search.CachedService
	count func(context.Context) (int, error)
	close func() error
}

func openBackend(cfg config, logger *slog.Logger) (*backend, error) {
	b := &backend{close: func() error { return nil }}

	switch cfg.Backend {
	case "local":
		if err := ensureDir(cfg.DBPath); err != nil {
			return nil, err
		}
		store, err := registry.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open register: %w", err)
		}
		store.SetLimit(cfg.ABR.MaxResults)
		b.svc = store
		b.count = store.Count
		b.close = store.Close
	default:
		client, err := abr.New(abr.Config{
			BaseURL:       cfg.ABR.BaseURL,
			GUID:          cfg.ABR.GUID,
			Timeout:       cfg.ABR.Timeout,
			RatePerSecond: cfg.ABR.RatePerSecond,
			MaxResults:    cfg.ABR.MaxResults,
			Logger:        logger,
		})
		if err != nil {
			return nil, fmt.Errorf("abr client: %w", err)
		}
		b.svc = client
	}

	if cfg.Cache.TTL > 0 {
		b.cache = search.NewCachedService(b.svc, cfg.Cache.TTL, cfg.Cache.Cleanup)
		b.svc = b.cache
	}
	return b, nil
}

func mustLoadConfig(path string, logger *slog.Logger) config {
	cfg, err := loadConfig(path, logger)
	if err != nil {
		logger.Error("config", "error", err)
		os.Exit(1)
	}
	return cfg
}

// ensureDir creates the parent directory of a database file.
func ensureDir(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	return nil
}
