package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/c360studio/tripgen/model"
	"github.com/c360studio/tripgen/strategy"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "tripgen.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/tripgen"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
	// EnvPrefix prefixes every environment override
	EnvPrefix = "TRIPGEN_"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger *slog.Logger

	// explicit replaces the project config search when set
	explicit string
	// dir is where the project config search starts
	dir    string
	home   func() (string, error)
	getenv func(string) string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFile loads exactly this project config file instead of searching.
func WithFile(path string) LoaderOption {
	return func(l *Loader) {
		l.explicit = path
	}
}

// WithDir starts the project config search in dir.
func WithDir(dir string) LoaderOption {
	return func(l *Loader) {
		l.dir = dir
	}
}

// WithEnv replaces the environment lookup.
func WithEnv(getenv func(string) string) LoaderOption {
	return func(l *Loader) {
		l.getenv = getenv
	}
}

// WithHome replaces the home directory lookup.
func WithHome(home string) LoaderOption {
	return func(l *Loader) {
		l.home = func() (string, error) { return home, nil }
	}
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger, opts ...LoaderOption) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{
		logger: logger,
		home:   os.UserHomeDir,
		getenv: os.Getenv,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/tripgen/config.yaml)
// 3. Project config (tripgen.yaml in current or parent directories, or the explicit file)
// 4. Environment variables, after .env files are loaded
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()

	if userConfigPath := l.userConfigPath(); userConfigPath != "" {
		if userConfig, err := LoadFromFile(userConfigPath); err == nil {
			l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
			config.Merge(userConfig)
		} else if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
		}
	}

	projectConfigPath := l.ProjectConfigPath()
	if projectConfigPath != "" {
		projectConfig, err := LoadFromFile(projectConfigPath)
		switch {
		case err == nil:
			l.logger.Debug("Loaded project config", slog.String("path", projectConfigPath))
			config.Merge(projectConfig)
		case l.explicit != "":
			return nil, err
		default:
			l.logger.Warn("Failed to load project config", slog.String("path", projectConfigPath), slog.String("error", err.Error()))
		}
	} else {
		l.logger.Debug("No project config found")
	}

	l.loadDotEnv(projectConfigPath)
	l.applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Files returns the config files that currently take part in loading.
func (l *Loader) Files() []string {
	var files []string
	if p := l.userConfigPath(); p != "" {
		if _, err := os.Stat(p); err == nil {
			files = append(files, p)
		}
	}
	if p := l.ProjectConfigPath(); p != "" {
		files = append(files, p)
	}
	return files
}

// loadDotEnv loads .env next to the project config and in the start
// directory. Existing environment variables are never overwritten.
func (l *Loader) loadDotEnv(projectConfigPath string) {
	candidates := []string{filepath.Join(l.startDir(), ".env")}
	if projectConfigPath != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(projectConfigPath), ".env"))
	}

	seen := make(map[string]bool)
	for _, path := range candidates {
		if seen[path] {
			continue
		}
		seen[path] = true
		if err := godotenv.Load(path); err == nil {
			l.logger.Debug("Loaded .env file", slog.String("path", path))
		} else if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("Failed to load .env file", slog.String("path", path), slog.String("error", err.Error()))
		}
	}
}

// applyEnv applies TRIPGEN_* overrides and resolves endpoint API keys.
func (l *Loader) applyEnv(config *Config) {
	p := &config.Providers

	if v := l.getenv(EnvPrefix + "PRIMARY_PROVIDER"); v != "" {
		p.Primary = v
	}
	if v := l.getenv(EnvPrefix + "ALTERNATE_PROVIDER"); v != "" {
		p.Alternate = v
	}
	if v := l.getenv(EnvPrefix + "STRATEGY"); v != "" {
		config.Generation.Strategy = strategy.Mode(v)
	}

	if v := l.getenv(EnvPrefix + "SEARCH_URL"); v != "" {
		config.Retrieval.SearchURL = v
	}
	if v := l.getenv(EnvPrefix + "IMAGE_URL"); v != "" {
		config.Retrieval.ImageURL = v
	}

	for _, task := range model.Tasks {
		v := l.getenv(EnvPrefix + "PROVIDER_" + strings.ToUpper(string(task)))
		if v == "" {
			continue
		}
		p.TaskOverrides = mergeMap(p.TaskOverrides, map[string]string{string(task): v})
		l.logger.Debug("Task override from environment", "task", task, "endpoint", v)
	}

	endpoints := make(map[string]model.EndpointConfig, len(p.Endpoints))
	for name, ep := range p.Endpoints {
		if ep.APIKeyEnv != "" {
			ep.APIKey = l.getenv(ep.APIKeyEnv)
		}
		endpoints[name] = ep
	}
	p.Endpoints = endpoints
}

// EnsureUserConfig creates the user config file with defaults if it doesn't exist
func (l *Loader) EnsureUserConfig() (string, error) {
	userConfigPath := l.userConfigPath()
	if userConfigPath == "" {
		return "", errors.New("cannot determine home directory")
	}

	if _, err := os.Stat(userConfigPath); err == nil {
		return userConfigPath, nil
	}

	if err := DefaultConfig().SaveToFile(userConfigPath); err != nil {
		return "", err
	}

	l.logger.Info("Created default user config", slog.String("path", userConfigPath))
	return userConfigPath, nil
}

// userConfigPath returns the path to the user config file
func (l *Loader) userConfigPath() string {
	home, err := l.home()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

func (l *Loader) startDir() string {
	if l.dir != "" {
		return l.dir
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

// ProjectConfigPath returns the explicit config file, or searches for
// tripgen.yaml in the start directory and its parents.
func (l *Loader) ProjectConfigPath() string {
	if l.explicit != "" {
		return l.explicit
	}

	dir := l.startDir()
	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
