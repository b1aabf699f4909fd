// Package config loads the engine configuration: defaults, then a YAML file,
// then LAWGRAPH_-prefixed environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/lawgraph/lawgraph/aggregate"
	"github.com/lawgraph/lawgraph/embedding"
	"github.com/lawgraph/lawgraph/expansion"
	"github.com/lawgraph/lawgraph/llm"
	"github.com/lawgraph/lawgraph/partition"
	"github.com/lawgraph/lawgraph/routing"
	"github.com/lawgraph/lawgraph/service"
)

// Config is the complete engine configuration.
type Config struct {
	Log       LogConfig              `yaml:"log" env:"LOG"`
	Graph     GraphConfig            `yaml:"graph" env:"GRAPH"`
	Redis     RedisConfig            `yaml:"redis" env:"REDIS"`
	Embedding embedding.OpenAIConfig `yaml:"embedding" env:"EMBEDDING"`
	LLM       llm.OpenAIConfig       `yaml:"llm" env:"LLM"`
	Expansion expansion.Config       `yaml:"expansion"`
	Routing   routing.Config         `yaml:"routing"`
	Partition partition.Config       `yaml:"partition"`
	Aggregate aggregate.Config       `yaml:"aggregate"`
	Synthesis llm.SynthesizerConfig  `yaml:"synthesis"`
	Service   service.Config         `yaml:"service"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format is "json" or "console".
	Format string `yaml:"format" env:"FORMAT"`
}

// GraphConfig configures the graph store.
type GraphConfig struct {
	// Dimensions sizes the paragraph vector index. Must match the embedding
	// provider's output dimensionality.
	Dimensions int `yaml:"dimensions" env:"DIMENSIONS"`

	// CorpusPath is an optional JSON corpus loaded at startup.
	CorpusPath string `yaml:"corpus_path" env:"CORPUS_PATH"`
}

// RedisConfig configures the optional shared snapshot cache.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled" env:"ENABLED"`
	Addr     string        `yaml:"addr" env:"ADDR"`
	Password string        `yaml:"password" env:"PASSWORD"`
	DB       int           `yaml:"db" env:"DB"`
	TTL      time.Duration `yaml:"ttl" env:"TTL"`
}

// DefaultConfig returns the complete default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log:       LogConfig{Level: "info", Format: "json"},
		Graph:     GraphConfig{Dimensions: 1536},
		Redis:     RedisConfig{Addr: "localhost:6379", TTL: time.Hour},
		Embedding: embedding.DefaultOpenAIConfig(),
		LLM:       llm.DefaultOpenAIConfig(),
		Expansion: expansion.DefaultConfig(),
		Routing:   routing.DefaultConfig(),
		Partition: partition.DefaultConfig(),
		Aggregate: aggregate.DefaultConfig(),
		Synthesis: llm.DefaultSynthesizerConfig(),
		Service:   service.DefaultConfig(),
	}
}

// BuildLogger constructs the zap logger described by the log section.
func (c *Config) BuildLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", c.Log.Level, err)
	}
	zapCfg := zap.NewProductionConfig()
	if c.Log.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

// Loader loads configuration with defaults, file and env layered in order.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a loader with the LAWGRAPH env prefix and the standard
// validator.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "LAWGRAPH",
		validators: []func(*Config) error{Validate},
	}
}

// WithConfigPath sets the YAML file path. A missing file is not an error.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix overrides the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator appends an extra validation pass.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load resolves the configuration: defaults, then YAML, then env overrides,
// then validation.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}
	if err := l.applyEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("validate config: %w", err)
		}
	}
	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnv walks struct fields carrying an env tag and overrides them from
// PREFIX_TAG environment variables. Fields without a tag are YAML-only.
func (l *Loader) applyEnv(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		envTag := t.Field(i).Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}
		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.applyEnv(field, envKey); err != nil {
				return err
			}
			continue
		}
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("set %s: %w", envKey, err)
		}
	}
	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return fmt.Errorf("field is not settable")
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}

// Validate checks the cross-cutting constraints a mistuned config would
// otherwise only surface at query time.
func Validate(cfg *Config) error {
	if cfg.Graph.Dimensions <= 0 {
		return fmt.Errorf("graph.dimensions must be positive")
	}
	if cfg.Embedding.Dimensions != 0 && cfg.Embedding.Dimensions != cfg.Graph.Dimensions {
		return fmt.Errorf("embedding.dimensions (%d) must match graph.dimensions (%d)",
			cfg.Embedding.Dimensions, cfg.Graph.Dimensions)
	}
	if cfg.Expansion.Decay <= 0 || cfg.Expansion.Decay >= 1 {
		return fmt.Errorf("expansion.decay must be in (0, 1)")
	}
	if cfg.Expansion.Threshold < 0 || cfg.Expansion.Threshold > 1 {
		return fmt.Errorf("expansion.threshold must be in [0, 1]")
	}
	if cfg.Routing.VectorWeight+cfg.Routing.LLMWeight <= 0 {
		return fmt.Errorf("routing weights must sum to a positive value")
	}
	if cfg.Partition.MinDomainSize > 0 && cfg.Partition.MaxDomainSize > 0 &&
		cfg.Partition.MinDomainSize >= cfg.Partition.MaxDomainSize {
		return fmt.Errorf("partition.min_domain_size must be below partition.max_domain_size")
	}
	return nil
}
