// Package config loads run configuration. Precedence, highest first: flags,
// WIKISQL_ environment variables, wikisql.yaml, built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"wikisqleval/internal/adapter"
	"wikisqleval/internal/llm"
)

const (
	DefaultFile = "wikisql.yaml"
	EnvPrefix   = "WIKISQL_"
)

type Config struct {
	Data        DataConfig      `koanf:"data"`
	Database    DatabaseConfig  `koanf:"database"`
	LLM         llm.ModelConfig `koanf:"llm"`
	Heavy       HeavyConfig     `koanf:"heavy"`
	Eval        EvalConfig      `koanf:"eval"`
	Output      string          `koanf:"output"`
	MetricsFile string          `koanf:"metrics_file"`
	Verbose     bool            `koanf:"verbose"`
}

type DataConfig struct {
	Split       string `koanf:"split"`
	WikiSQLPath string `koanf:"wikisql_path"`
	DataDir     string `koanf:"data_dir"`
	Limit       int    `koanf:"limit"`
	// Remote enables downloading missing split files into DataDir.
	Remote bool `koanf:"remote"`
}

// DatabaseConfig selects the store tables are materialized into. Path is
// used by SQLite only; empty means in-memory.
type DatabaseConfig struct {
	Type     string `koanf:"type"`
	Path     string `koanf:"path"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Name     string `koanf:"name"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	SSLMode  string `koanf:"sslmode"`
}

type HeavyConfig struct {
	Enabled bool          `koanf:"enabled"`
	Workers int           `koanf:"workers"`
	Timeout time.Duration `koanf:"timeout"`
}

type EvalConfig struct {
	// Tier forces one evaluator; empty tries official, compatible, validator.
	Tier    string        `koanf:"tier"`
	Ordered bool          `koanf:"ordered"`
	Python  string        `koanf:"python"`
	Script  string        `koanf:"script"`
	Timeout time.Duration `koanf:"timeout"`
}

func defaults() map[string]any {
	return map[string]any{
		"data.split":         "dev",
		"data.wikisql_path":  "WikiSQL",
		"data.data_dir":      "data",
		"data.limit":         0,
		"data.remote":        true,
		"database.type":      string(adapter.SQLite),
		"database.sslmode":   "disable",
		"llm.provider":       string(llm.ProviderOpenAI),
		"llm.model":          "deepseek-chat",
		"llm.max_tokens":     2048,
		"llm.temperature":    0.0,
		"llm.timeout":        "30s",
		"llm.max_retries":    2,
		"llm.cache_ttl":      "0s",
		"heavy.enabled":      false,
		"heavy.workers":      4,
		"heavy.timeout":      "120s",
		"eval.python":        "python",
		"eval.script":        "WikiSQL/evaluate.py",
		"eval.timeout":       "300s",
		"output":             "results",
		"verbose":            false,
	}
}

// sections are the nested keys; an env var whose first segment names one is
// split there, so WIKISQL_LLM_BASE_URL becomes llm.base_url.
var sections = []string{"data", "database", "llm", "heavy", "eval"}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, sec := range sections {
		if strings.HasPrefix(key, sec+"_") {
			return sec + "." + strings.TrimPrefix(key, sec+"_")
		}
	}
	return key
}

// flagKeys maps command flags to config keys. Flags not listed map to their
// name in snake case.
var flagKeys = map[string]string{
	"split":        "data.split",
	"limit":        "data.limit",
	"wikisql-path": "data.wikisql_path",
	"data-dir":     "data.data_dir",
	"remote":       "data.remote",
	"db-type":      "database.type",
	"db-path":      "database.path",
	"provider":     "llm.provider",
	"model":        "llm.model",
	"base-url":     "llm.base_url",
	"heavy":        "heavy.enabled",
	"tier":         "eval.tier",
	"ordered":      "eval.ordered",
	"python":       "eval.python",
}

// Options controls Load.
type Options struct {
	// File is an explicit config file; it must exist when set.
	File string
	// EnvFile is loaded into the environment first when it exists.
	EnvFile string
	Flags   *pflag.FlagSet
}

// Load builds a Config from every layer.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	path := opts.File
	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(opts.Flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values no layer can be trusted to get right.
func (c *Config) Validate() error {
	var errs []error
	if c.Data.Split == "" {
		errs = append(errs, errors.New("data.split must be set"))
	}
	if c.Data.Limit < 0 {
		errs = append(errs, fmt.Errorf("data.limit must not be negative, got %d", c.Data.Limit))
	}
	switch adapter.DatabaseType(c.Database.Type) {
	case adapter.SQLite, adapter.PostgreSQL, adapter.MySQL, "postgres":
	default:
		errs = append(errs, &adapter.UnsupportedDatabaseError{Type: c.Database.Type})
	}
	switch c.LLM.Provider {
	case llm.ProviderOpenAI, llm.ProviderAnthropic:
	default:
		errs = append(errs, fmt.Errorf("unknown llm provider %q", c.LLM.Provider))
	}
	switch c.Eval.Tier {
	case "", "official", "compatible", "validator":
	default:
		errs = append(errs, fmt.Errorf("unknown evaluation tier %q", c.Eval.Tier))
	}
	if c.Heavy.Workers < 1 {
		errs = append(errs, fmt.Errorf("heavy.workers must be at least 1, got %d", c.Heavy.Workers))
	}
	return errors.Join(errs...)
}

// DBConfig returns the adapter config of the materialization store.
func (c *Config) DBConfig(log *slog.Logger) *adapter.DBConfig {
	return &adapter.DBConfig{
		Type:     c.Database.Type,
		FilePath: c.Database.Path,
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		Database: c.Database.Name,
		User:     c.Database.User,
		Password: c.Database.Password,
		SSLMode:  c.Database.SSLMode,
		Logger:   log,
	}
}

// ModelLabel is the model name made safe for file names.
func (c *Config) ModelLabel() string {
	r := strings.NewReplacer("/", "-", ":", "-", " ", "-")
	if c.LLM.ModelName == "" {
		return "model"
	}
	return r.Replace(c.LLM.ModelName)
}
