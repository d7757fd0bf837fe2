package model

import (
	"time"
)

// EndpointConfig defines one provider endpoint.
type EndpointConfig struct {
	// Provider is the adapter name (gemini, openai, anthropic).
	Provider string `yaml:"provider" json:"provider" validate:"required,oneof=gemini openai anthropic"`

	// URL overrides the provider's default base URL.
	URL string `yaml:"url,omitempty" json:"url,omitempty" validate:"omitempty,url"`

	// Models holds the model identifier per tier.
	Models TierModels `yaml:"models" json:"models"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env,omitempty" json:"api_key_env,omitempty"`

	// APIKey is resolved from APIKeyEnv at load time and never serialized.
	APIKey string `yaml:"-" json:"-"`

	// Timeout bounds one call to this endpoint, retries included.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// TierModels maps tiers to model identifiers.
type TierModels struct {
	Standard string `yaml:"standard" json:"standard" validate:"required"`
	Premium  string `yaml:"premium,omitempty" json:"premium,omitempty"`
}

// RegistryConfig is the serialized form of a Registry.
type RegistryConfig struct {
	// Primary is the default endpoint for every task.
	Primary string `yaml:"primary" json:"primary"`

	// Alternate is the second provider used by race and cross-review.
	Alternate string `yaml:"alternate,omitempty" json:"alternate,omitempty"`

	// Endpoints are the configured endpoints by name.
	Endpoints map[string]EndpointConfig `yaml:"endpoints" json:"endpoints" validate:"dive"`

	// TaskOverrides maps a task name or glob pattern ("detail*",
	// "{outline,details}") to an endpoint name.
	TaskOverrides map[string]string `yaml:"task_overrides,omitempty" json:"task_overrides,omitempty"`

	// Pipeline assigns a fixed endpoint per task for the pipeline strategy.
	Pipeline map[Task]string `yaml:"pipeline,omitempty" json:"pipeline,omitempty"`

	// DefaultTimeout applies to endpoints without their own timeout.
	DefaultTimeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// DefaultRegistryConfig returns a two-provider setup keyed by the usual
// environment variables. Endpoints without a key stay unconfigured.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		Primary:   "gemini",
		Alternate: "openai",
		Endpoints: map[string]EndpointConfig{
			"gemini": {
				Provider:  "gemini",
				Models:    TierModels{Standard: "gemini-2.5-flash", Premium: "gemini-2.5-pro"},
				APIKeyEnv: "GEMINI_API_KEY",
			},
			"openai": {
				Provider:  "openai",
				Models:    TierModels{Standard: "gpt-4o-mini", Premium: "gpt-4o"},
				APIKeyEnv: "OPENAI_API_KEY",
			},
			"anthropic": {
				Provider:  "anthropic",
				Models:    TierModels{Standard: "claude-3-5-haiku-latest", Premium: "claude-sonnet-4-0"},
				APIKeyEnv: "ANTHROPIC_API_KEY",
			},
		},
		Pipeline: map[Task]string{
			TaskOutline: "gemini",
			TaskDetails: "openai",
		},
		DefaultTimeout: 60 * time.Second,
	}
}
