// Package config provides configuration loading and management for tripgen.
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/tripgen/chunk"
	"github.com/c360studio/tripgen/llm"
	"github.com/c360studio/tripgen/model"
	"github.com/c360studio/tripgen/strategy"
)

// Config represents the complete tripgen configuration
type Config struct {
	Providers  ProvidersConfig  `yaml:"providers"`
	Generation GenerationConfig `yaml:"generation"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Server     ServerConfig     `yaml:"server"`
}

// ProvidersConfig configures endpoints, routing and call resilience
type ProvidersConfig struct {
	model.RegistryConfig `yaml:",inline"`

	Retry     llm.RetryConfig     `yaml:"retry"`
	RateLimit llm.RateLimitConfig `yaml:"rate_limit"`
	Health    model.HealthConfig  `yaml:"health"`
}

// GenerationConfig configures strategy choice and chunking
type GenerationConfig struct {
	// Strategy is the default coordination mode (auto, single, race, pipeline, cross-review, full)
	Strategy strategy.Mode `yaml:"strategy"`
	// ChunkSize is the number of days generated per provider call
	ChunkSize int `yaml:"chunk_size" validate:"min=1,max=30"`
	// MaxConcurrency bounds in-flight chunk calls (0 = unbounded)
	MaxConcurrency int `yaml:"max_concurrency" validate:"min=0"`
	// RaceTimeout is each contender's budget in a race
	RaceTimeout time.Duration `yaml:"race_timeout"`
	// QualityFloor is the review score under which cross-review corrects once
	QualityFloor int `yaml:"quality_floor" validate:"min=1,max=100"`
	// TopK is the default number of retrieval articles
	TopK int `yaml:"top_k" validate:"min=0,max=50"`
}

// RetrievalConfig points at the article search and image services.
// Empty URLs disable the service.
type RetrievalConfig struct {
	SearchURL string        `yaml:"search_url" validate:"omitempty,url"`
	ImageURL  string        `yaml:"image_url" validate:"omitempty,url"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Metric store kinds
const (
	StoreNone   = "none"
	StoreLog    = "log"
	StoreNATS   = "nats"
	StoreSQLite = "sqlite"
)

// MetricsConfig configures where generation records go
type MetricsConfig struct {
	// Store is the sink kind: none, log, nats or sqlite
	Store string `yaml:"store" validate:"oneof=none log nats sqlite"`
	// NATSURL is required for the nats store
	NATSURL string `yaml:"nats_url" validate:"required_if=Store nats"`
	// Subject is the NATS subject records are published to
	Subject string `yaml:"subject"`
	// SQLitePath is required for the sqlite store
	SQLitePath string `yaml:"sqlite_path" validate:"required_if=Store sqlite"`
	// QueueSize bounds records waiting to be flushed
	QueueSize int `yaml:"queue_size" validate:"min=0"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	// Addr is the listen address
	Addr string `yaml:"addr" validate:"required"`

	// GenerationTimeout bounds a request's generation once the client has
	// gone. Zero means no server-side bound.
	GenerationTimeout time.Duration `yaml:"generation_timeout" validate:"min=0"`
}

// StrategyConfig returns the orchestrator settings.
func (g GenerationConfig) StrategyConfig() strategy.Config {
	return strategy.Config{
		Mode:         g.Strategy,
		RaceTimeout:  g.RaceTimeout,
		QualityFloor: g.QualityFloor,
	}
}

// ChunkConfig returns the coordinator settings.
func (g GenerationConfig) ChunkConfig() chunk.Config {
	return chunk.Config{Size: g.ChunkSize, MaxConcurrency: g.MaxConcurrency}
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Providers: ProvidersConfig{
			RegistryConfig: model.DefaultRegistryConfig(),
			Retry:          llm.DefaultRetryConfig(),
			RateLimit:      llm.RateLimitConfig{RequestsPerMinute: 60, Burst: 5},
			Health:         model.DefaultHealthConfig(),
		},
		Generation: GenerationConfig{
			Strategy:       strategy.ModeAuto,
			ChunkSize:      chunk.DefaultSize,
			MaxConcurrency: 0,
			RaceTimeout:    90 * time.Second,
			QualityFloor:   strategy.DefaultQualityFloor,
			TopK:           5,
		},
		Retrieval: RetrievalConfig{
			Timeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Store:     StoreLog,
			Subject:   "tripgen.metrics.generation",
			QueueSize: 256,
		},
		Server: ServerConfig{
			Addr:              ":8080",
			GenerationTimeout: 10 * time.Minute,
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !c.Generation.Strategy.IsValid() {
		return fmt.Errorf("generation.strategy %q is not a known mode", c.Generation.Strategy)
	}

	p := c.Providers
	if p.Primary == "" {
		return errors.New("providers.primary is required")
	}
	if _, ok := p.Endpoints[p.Primary]; !ok {
		return fmt.Errorf("providers.primary %q is not a configured endpoint", p.Primary)
	}
	if p.Alternate != "" {
		if _, ok := p.Endpoints[p.Alternate]; !ok {
			return fmt.Errorf("providers.alternate %q is not a configured endpoint", p.Alternate)
		}
	}
	for pattern, name := range p.TaskOverrides {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("providers.task_overrides: invalid pattern %q", pattern)
		}
		if _, ok := p.Endpoints[name]; !ok {
			return fmt.Errorf("providers.task_overrides[%s]: unknown endpoint %q", pattern, name)
		}
	}
	for task, name := range p.Pipeline {
		if !task.IsValid() {
			return fmt.Errorf("providers.pipeline: unknown task %q", task)
		}
		if _, ok := p.Endpoints[name]; !ok {
			return fmt.Errorf("providers.pipeline[%s]: unknown endpoint %q", task, name)
		}
	}
	return nil
}

// Registry builds an immutable provider registry from the loaded config.
func (c *Config) Registry(health *model.Health) *model.Registry {
	return model.NewRegistry(c.Providers.RegistryConfig, model.WithHealth(health))
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Providers
	op := other.Providers
	if op.Primary != "" {
		c.Providers.Primary = op.Primary
	}
	if op.Alternate != "" {
		c.Providers.Alternate = op.Alternate
	}
	c.Providers.Endpoints = mergeMap(c.Providers.Endpoints, op.Endpoints)
	c.Providers.TaskOverrides = mergeMap(c.Providers.TaskOverrides, op.TaskOverrides)
	c.Providers.Pipeline = mergeMap(c.Providers.Pipeline, op.Pipeline)
	if op.DefaultTimeout != 0 {
		c.Providers.DefaultTimeout = op.DefaultTimeout
	}
	if op.Retry.MaxAttempts != 0 {
		c.Providers.Retry.MaxAttempts = op.Retry.MaxAttempts
	}
	if op.Retry.BackoffBase != 0 {
		c.Providers.Retry.BackoffBase = op.Retry.BackoffBase
	}
	if op.Retry.BackoffMultiplier != 0 {
		c.Providers.Retry.BackoffMultiplier = op.Retry.BackoffMultiplier
	}
	if op.Retry.MaxBackoff != 0 {
		c.Providers.Retry.MaxBackoff = op.Retry.MaxBackoff
	}
	if op.RateLimit.RequestsPerMinute != 0 {
		c.Providers.RateLimit.RequestsPerMinute = op.RateLimit.RequestsPerMinute
	}
	if op.RateLimit.Burst != 0 {
		c.Providers.RateLimit.Burst = op.RateLimit.Burst
	}
	if op.Health.FailureThreshold != 0 {
		c.Providers.Health.FailureThreshold = op.Health.FailureThreshold
	}
	if op.Health.RecoveryTimeout != 0 {
		c.Providers.Health.RecoveryTimeout = op.Health.RecoveryTimeout
	}

	// Generation
	og := other.Generation
	if og.Strategy != "" {
		c.Generation.Strategy = og.Strategy
	}
	if og.ChunkSize != 0 {
		c.Generation.ChunkSize = og.ChunkSize
	}
	if og.MaxConcurrency != 0 {
		c.Generation.MaxConcurrency = og.MaxConcurrency
	}
	if og.RaceTimeout != 0 {
		c.Generation.RaceTimeout = og.RaceTimeout
	}
	if og.QualityFloor != 0 {
		c.Generation.QualityFloor = og.QualityFloor
	}
	if og.TopK != 0 {
		c.Generation.TopK = og.TopK
	}

	// Retrieval
	rc := other.Retrieval
	if rc.SearchURL != "" {
		c.Retrieval.SearchURL = rc.SearchURL
	}
	if rc.ImageURL != "" {
		c.Retrieval.ImageURL = rc.ImageURL
	}
	if rc.Timeout != 0 {
		c.Retrieval.Timeout = rc.Timeout
	}

	// Metrics
	om := other.Metrics
	if om.Store != "" {
		c.Metrics.Store = om.Store
	}
	if om.NATSURL != "" {
		c.Metrics.NATSURL = om.NATSURL
	}
	if om.Subject != "" {
		c.Metrics.Subject = om.Subject
	}
	if om.SQLitePath != "" {
		c.Metrics.SQLitePath = om.SQLitePath
	}
	if om.QueueSize != 0 {
		c.Metrics.QueueSize = om.QueueSize
	}

	// Server
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.GenerationTimeout != 0 {
		c.Server.GenerationTimeout = other.Server.GenerationTimeout
	}
}

// mergeMap returns dst with src's entries layered on top. dst is copied so
// defaults are never mutated through a shared map.
func mergeMap[K comparable, V any](dst, src map[K]V) map[K]V {
	if len(src) == 0 {
		return dst
	}
	out := make(map[K]V, len(dst)+len(src))
	maps.Copy(out, dst)
	maps.Copy(out, src)
	return out
}
