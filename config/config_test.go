package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/tripgen/model"
	"github.com/c360studio/tripgen/strategy"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// replaceFile swaps content in with a rename so watchers never see a
// half-written file.
func replaceFile(t *testing.T, path, content string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0644))
	require.NoError(t, os.Rename(tmp, path))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "gemini", cfg.Providers.Primary)
	assert.Equal(t, "openai", cfg.Providers.Alternate)
	assert.Equal(t, strategy.ModeAuto, cfg.Generation.Strategy)
	assert.Equal(t, 1, cfg.Generation.ChunkSize)
	assert.Equal(t, StoreLog, cfg.Metrics.Store)
	assert.Equal(t, 10*time.Minute, cfg.Server.GenerationTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid default config",
			modify: func(c *Config) {},
		},
		{
			name:    "unknown primary",
			modify:  func(c *Config) { c.Providers.Primary = "mistral" },
			wantErr: true,
		},
		{
			name:    "missing primary",
			modify:  func(c *Config) { c.Providers.Primary = "" },
			wantErr: true,
		},
		{
			name:    "unknown alternate",
			modify:  func(c *Config) { c.Providers.Alternate = "mistral" },
			wantErr: true,
		},
		{
			name: "endpoint with unknown adapter",
			modify: func(c *Config) {
				c.Providers.Endpoints = mergeMap(c.Providers.Endpoints, map[string]model.EndpointConfig{
					"local": {Provider: "ollama", Models: model.TierModels{Standard: "llama"}},
				})
			},
			wantErr: true,
		},
		{
			name: "endpoint without standard model",
			modify: func(c *Config) {
				c.Providers.Endpoints = mergeMap(c.Providers.Endpoints, map[string]model.EndpointConfig{
					"eu": {Provider: "openai"},
				})
			},
			wantErr: true,
		},
		{
			name:    "override to unknown endpoint",
			modify:  func(c *Config) { c.Providers.TaskOverrides = map[string]string{"review": "mistral"} },
			wantErr: true,
		},
		{
			name:    "invalid override pattern",
			modify:  func(c *Config) { c.Providers.TaskOverrides = map[string]string{"[review": "openai"} },
			wantErr: true,
		},
		{
			name:   "glob override",
			modify: func(c *Config) { c.Providers.TaskOverrides = map[string]string{"{review,modify}": "anthropic"} },
		},
		{
			name:    "pipeline unknown task",
			modify:  func(c *Config) { c.Providers.Pipeline = map[model.Task]string{"summary": "openai"} },
			wantErr: true,
		},
		{
			name:    "unknown strategy",
			modify:  func(c *Config) { c.Generation.Strategy = "tournament" },
			wantErr: true,
		},
		{
			name:    "chunk size zero",
			modify:  func(c *Config) { c.Generation.ChunkSize = 0 },
			wantErr: true,
		},
		{
			name:    "quality floor above 100",
			modify:  func(c *Config) { c.Generation.QualityFloor = 101 },
			wantErr: true,
		},
		{
			name:    "nats store without url",
			modify:  func(c *Config) { c.Metrics.Store = StoreNATS },
			wantErr: true,
		},
		{
			name: "sqlite store with path",
			modify: func(c *Config) {
				c.Metrics.Store = StoreSQLite
				c.Metrics.SQLitePath = "metrics.db"
			},
		},
		{
			name:    "search url not a url",
			modify:  func(c *Config) { c.Retrieval.SearchURL = "search service" },
			wantErr: true,
		},
		{
			name:   "search url",
			modify: func(c *Config) { c.Retrieval.SearchURL = "http://localhost:9200" },
		},
		{
			name:    "unknown store",
			modify:  func(c *Config) { c.Metrics.Store = "kafka" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	defaultEndpoints := len(base.Providers.Endpoints)

	base.Merge(&Config{
		Providers: ProvidersConfig{
			RegistryConfig: model.RegistryConfig{
				Primary: "anthropic",
				Endpoints: map[string]model.EndpointConfig{
					"openai-eu": {Provider: "openai", URL: "https://eu.example.com/v1", Models: model.TierModels{Standard: "gpt-4o-mini"}},
				},
			},
		},
		Generation: GenerationConfig{Strategy: strategy.ModeRace, TopK: 8},
		Metrics:    MetricsConfig{Store: StoreSQLite, SQLitePath: "m.db"},
		Server:     ServerConfig{GenerationTimeout: 2 * time.Minute},
	})

	assert.Equal(t, "anthropic", base.Providers.Primary)
	assert.Equal(t, "openai", base.Providers.Alternate, "zero values do not override")
	assert.Len(t, base.Providers.Endpoints, defaultEndpoints+1)
	assert.Equal(t, strategy.ModeRace, base.Generation.Strategy)
	assert.Equal(t, 8, base.Generation.TopK)
	assert.Equal(t, 1, base.Generation.ChunkSize)
	assert.Equal(t, StoreSQLite, base.Metrics.Store)
	assert.Equal(t, ":8080", base.Server.Addr)
	assert.Equal(t, 2*time.Minute, base.Server.GenerationTimeout)
	assert.Len(t, DefaultConfig().Providers.Endpoints, defaultEndpoints, "defaults are not mutated")

	base.Merge(nil)
	assert.Equal(t, "anthropic", base.Providers.Primary)
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tripgen.yaml")
	cfg := DefaultConfig()
	cfg.Generation.Strategy = strategy.ModePipeline
	ep := cfg.Providers.Endpoints["gemini"]
	ep.APIKey = "secret"
	cfg.Providers.Endpoints["gemini"] = ep

	require.NoError(t, cfg.SaveToFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret", "API keys are never written")

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, strategy.ModePipeline, loaded.Generation.Strategy)
	assert.Equal(t, "gemini-2.5-flash", loaded.Providers.Endpoints["gemini"].Models.Standard)
	assert.Equal(t, "gemini", loaded.Providers.Pipeline[model.TaskOutline])
}

func TestLoader_Layering(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	sub := filepath.Join(project, "trips", "kyoto")
	require.NoError(t, os.MkdirAll(sub, 0755))

	writeFile(t, filepath.Join(home, UserConfigDir, UserConfigFile), `
generation:
  top_k: 9
  strategy: race
`)
	writeFile(t, filepath.Join(project, ProjectConfigFile), `
providers:
  primary: openai
generation:
  strategy: cross-review
server:
  addr: ":9090"
`)

	loader := NewLoader(quietLogger(),
		WithHome(home),
		WithDir(sub),
		WithEnv(envMap(map[string]string{
			"OPENAI_API_KEY":             "sk-test",
			"TRIPGEN_PROVIDER_REVIEW":    "anthropic",
			"TRIPGEN_ALTERNATE_PROVIDER": "gemini",
		})),
	)

	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Generation.TopK, "user layer")
	assert.Equal(t, strategy.ModeCrossReview, cfg.Generation.Strategy, "project beats user")
	assert.Equal(t, "openai", cfg.Providers.Primary)
	assert.Equal(t, "gemini", cfg.Providers.Alternate, "env beats files")
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "anthropic", cfg.Providers.TaskOverrides["review"])
	assert.Equal(t, "sk-test", cfg.Providers.Endpoints["openai"].APIKey)
	assert.Empty(t, cfg.Providers.Endpoints["gemini"].APIKey)

	reg := cfg.Registry(model.NewHealth(cfg.Providers.Health))
	assert.Equal(t, []string{"openai"}, reg.Configured())
	assert.Len(t, loader.Files(), 2)
}

func TestLoader_EnvOverrides(t *testing.T) {
	loader := NewLoader(quietLogger(),
		WithHome(t.TempDir()),
		WithDir(t.TempDir()),
		WithEnv(envMap(map[string]string{
			"TRIPGEN_PRIMARY_PROVIDER": "anthropic",
			"TRIPGEN_STRATEGY":         "single",
			"TRIPGEN_SEARCH_URL":       "http://search.local",
			"ANTHROPIC_API_KEY":        "ak",
		})),
	)

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Providers.Primary)
	assert.Equal(t, strategy.ModeSingle, cfg.Generation.Strategy)
	assert.Equal(t, "http://search.local", cfg.Retrieval.SearchURL)

	h, err := cfg.Registry(nil).Resolve(model.TaskOutline)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", h.Name)
}

func TestLoader_InvalidEnvRejected(t *testing.T) {
	loader := NewLoader(quietLogger(),
		WithHome(t.TempDir()),
		WithDir(t.TempDir()),
		WithEnv(envMap(map[string]string{"TRIPGEN_STRATEGY": "tournament"})),
	)
	_, err := loader.Load()
	assert.Error(t, err)
}

func TestLoader_ExplicitFileMustExist(t *testing.T) {
	loader := NewLoader(quietLogger(),
		WithHome(t.TempDir()),
		WithFile(filepath.Join(t.TempDir(), "missing.yaml")),
		WithEnv(envMap(nil)),
	)
	_, err := loader.Load()
	assert.Error(t, err)
}

func TestLoader_EnsureUserConfig(t *testing.T) {
	home := t.TempDir()
	loader := NewLoader(quietLogger(), WithHome(home))

	path, err := loader.EnsureUserConfig()
	require.NoError(t, err)
	assert.FileExists(t, path)

	again, err := loader.EnsureUserConfig()
	require.NoError(t, err)
	assert.Equal(t, path, again)
}

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ProjectConfigFile)
	writeFile(t, path, "generation:\n  strategy: race\n")

	loader := NewLoader(quietLogger(), WithHome(t.TempDir()), WithFile(path), WithEnv(envMap(nil)))

	var reloads atomic.Int32
	var last atomic.Value
	w, err := NewWatcher(loader, func(cfg *Config) {
		reloads.Add(1)
		last.Store(cfg.Generation.Strategy)
	}, quietLogger())
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	replaceFile(t, path, "generation:\n  strategy: tournament\n")
	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, reloads.Load(), "invalid edits are rejected")

	replaceFile(t, path, "generation:\n  strategy: pipeline\n")
	require.Eventually(t, func() bool { return reloads.Load() > 0 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, strategy.ModePipeline, last.Load())

	cancel()
	require.NoError(t, <-done)
}

func TestWatcher_ReloadDirect(t *testing.T) {
	path := filepath.Join(t.TempDir(), ProjectConfigFile)
	writeFile(t, path, "generation:\n  top_k: 3\n")
	loader := NewLoader(quietLogger(), WithHome(t.TempDir()), WithFile(path), WithEnv(envMap(nil)))

	var got *Config
	w, err := NewWatcher(loader, func(cfg *Config) { got = cfg }, quietLogger())
	require.NoError(t, err)
	defer w.watcher.Close()

	require.True(t, w.Reload())
	require.NotNil(t, got)
	assert.Equal(t, 3, got.Generation.TopK)

	writeFile(t, path, "generation: [not, a, map]\n")
	got = nil
	assert.False(t, w.Reload())
	assert.Nil(t, got)
}

func TestNewWatcher_NoFiles(t *testing.T) {
	loader := NewLoader(quietLogger(), WithHome(t.TempDir()), WithDir(t.TempDir()))
	_, err := NewWatcher(loader, func(*Config) {}, quietLogger())
	assert.Error(t, err)
}
