package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/taxomigrate/pkg/migration"
	"github.com/hazyhaar/taxomigrate/pkg/store"
	"github.com/hazyhaar/taxomigrate/pkg/store/mongostore"
	"github.com/hazyhaar/taxomigrate/pkg/store/sqlitestore"
	"github.com/hazyhaar/taxomigrate/pkg/taxonomy"
)

type config struct {
	LogLevel     string       `yaml:"log_level"`
	Addr         string       `yaml:"addr"`
	TaxonomyFile string       `yaml:"taxonomy_file"`
	SynonymsFile string       `yaml:"synonyms_file"`
	Threshold    float64      `yaml:"threshold"`
	Fields       store.Fields `yaml:"fields"`
	Store        storeConfig  `yaml:"store"`
	Mongo        mongoConfig  `yaml:"mongo"`
	Runner       runnerConfig `yaml:"runner"`
	HistoryDB    string       `yaml:"history_db"`
}

type storeConfig struct {
	Driver        string `yaml:"driver"` // sqlite | mongo
	SQLitePath    string `yaml:"sqlite_path"`
	MongoDatabase string `yaml:"mongo_database"`
	Collection    string `yaml:"collection"`
}

type mongoConfig struct {
	URIEnv string `yaml:"uri_env"`
}

type runnerConfig struct {
	Workers         int           `yaml:"workers"`
	Retries         int           `yaml:"retries"`
	Backoff         time.Duration `yaml:"backoff"`
	WritesPerSecond float64       `yaml:"writes_per_second"`
	SampleSize      int           `yaml:"sample_size"`
}

func defaultConfig() config {
	return config{
		LogLevel:  "info",
		Addr:      ":8430",
		Threshold: taxonomy.DefaultThreshold,
		Fields:    store.DefaultFields,
		Store: storeConfig{
			Driver:        "sqlite",
			SQLitePath:    "records.db",
			MongoDatabase: "marketplace",
			Collection:    "users",
		},
		Mongo: mongoConfig{URIEnv: "MONGODB_URI"},
		Runner: runnerConfig{
			Retries:    migration.DefaultRetries,
			Backoff:    migration.DefaultBackoff,
			SampleSize: migration.DefaultSampleSize,
		},
		HistoryDB: "history.db",
	}
}

func parseConfig(data []byte) (config, error) {
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.Fields = cfg.Fields.WithDefaults()
	switch cfg.Store.Driver {
	case "sqlite", "mongo":
	default:
		return cfg, fmt.Errorf("unknown store driver %q (want sqlite or mongo)", cfg.Store.Driver)
	}
	return cfg, nil
}

func loadConfig(path string, logger *slog.Logger) config {
	// .env only feeds credentials such as the Mongo URI.
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found, using environment variables")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("no config file, using defaults", "path", path)
			return defaultConfig()
		}
		logger.Error("read config", "error", err)
		os.Exit(1)
	}
	cfg, err := parseConfig(data)
	if err != nil {
		logger.Error("parse config", "error", err)
		os.Exit(1)
	}
	return cfg
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(level)}))
}

// setup loads the config and rebuilds the logger at the configured level.
func setup(cfgPath string) (config, *slog.Logger) {
	cfg := loadConfig(cfgPath, newLogger("info"))
	return cfg, newLogger(cfg.LogLevel)
}

func loadResolver(cfg config) (*taxonomy.Resolver, error) {
	return taxonomy.Load(cfg.TaxonomyFile, cfg.SynonymsFile, taxonomy.WithThreshold(cfg.Threshold))
}

// recordStore is a migration.Store that must be released after use.
type recordStore struct {
	migration.Store
	target string
	close  func() error
}

func openStore(ctx context.Context, cfg config, logger *slog.Logger) (*recordStore, error) {
	switch cfg.Store.Driver {
	case "mongo":
		uri := os.Getenv(cfg.Mongo.URIEnv)
		if uri == "" {
			return nil, fmt.Errorf("environment variable %s is not set", cfg.Mongo.URIEnv)
		}
		s, err := mongostore.Open(ctx, mongostore.Config{
			URI:        uri,
			Database:   cfg.Store.MongoDatabase,
			Collection: cfg.Store.Collection,
			Fields:     cfg.Fields,
		}, logger)
		if err != nil {
			return nil, err
		}
		return &recordStore{
			Store:  s,
			target: "mongo:" + cfg.Store.MongoDatabase + "." + cfg.Store.Collection,
			close:  func() error { return s.Close(context.Background()) },
		}, nil
	case "sqlite":
		s, err := sqlitestore.Open(cfg.Store.SQLitePath, cfg.Fields, logger)
		if err != nil {
			return nil, err
		}
		return &recordStore{Store: s, target: "sqlite:" + cfg.Store.SQLitePath, close: s.Close}, nil
	default:
		return nil, errors.New("unknown store driver " + cfg.Store.Driver)
	}
}
