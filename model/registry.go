package model

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/tripgen/llm"
)

// ErrNoProvider is returned when no configured endpoint can serve a task.
var ErrNoProvider = errors.New("no provider configured")

// Handle is a resolved endpoint. It carries configuration only; invocation
// is left to the caller.
type Handle struct {
	Name     string
	Endpoint EndpointConfig
}

// Target builds the llm.Target for a tier. Premium falls back to the
// standard model when the endpoint has no premium model.
func (h Handle) Target(tier Tier) llm.Target {
	modelName := h.Endpoint.Models.Standard
	if tier == TierPremium && h.Endpoint.Models.Premium != "" {
		modelName = h.Endpoint.Models.Premium
	}
	return llm.Target{
		Name:     h.Name,
		Provider: h.Endpoint.Provider,
		Model:    modelName,
		URL:      h.Endpoint.URL,
		APIKey:   h.Endpoint.APIKey,
		Timeout:  h.Endpoint.Timeout,
	}
}

// taskOverride is a compiled task override entry.
type taskOverride struct {
	pattern  string
	endpoint string
}

// Registry maps tasks to provider endpoints. It is immutable once built and
// safe for concurrent use; reloads build a new Registry.
type Registry struct {
	primary   string
	alternate string
	endpoints map[string]EndpointConfig
	overrides []taskOverride
	pipeline  map[Task]string
	health    *Health
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithHealth makes availability checks consult a circuit breaker.
func WithHealth(h *Health) RegistryOption {
	return func(r *Registry) {
		r.health = h
	}
}

// NewRegistry builds a registry from configuration. Maps are copied.
func NewRegistry(cfg RegistryConfig, opts ...RegistryOption) *Registry {
	r := &Registry{
		primary:   cfg.Primary,
		alternate: cfg.Alternate,
		endpoints: make(map[string]EndpointConfig, len(cfg.Endpoints)),
		pipeline:  maps.Clone(cfg.Pipeline),
	}
	for name, ep := range cfg.Endpoints {
		if ep.Timeout == 0 {
			ep.Timeout = cfg.DefaultTimeout
		}
		r.endpoints[name] = ep
	}

	for pattern, endpoint := range cfg.TaskOverrides {
		r.overrides = append(r.overrides, taskOverride{pattern: pattern, endpoint: endpoint})
	}
	// Exact names first, then longer (more specific) patterns; ties by name.
	slices.SortFunc(r.overrides, func(a, b taskOverride) int {
		ag, bg := isGlob(a.pattern), isGlob(b.pattern)
		switch {
		case ag != bg && !ag:
			return -1
		case ag != bg:
			return 1
		case len(a.pattern) != len(b.pattern):
			return len(b.pattern) - len(a.pattern)
		default:
			return strings.Compare(a.pattern, b.pattern)
		}
	})

	for _, opt := range opts {
		opt(r)
	}
	return r
}

func isGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// IsConfigured reports whether an endpoint exists and has credentials.
func (r *Registry) IsConfigured(name string) bool {
	ep, ok := r.endpoints[name]
	return ok && ep.APIKey != ""
}

// Endpoint returns the handle for a named endpoint.
func (r *Registry) Endpoint(name string) (Handle, bool) {
	ep, ok := r.endpoints[name]
	if !ok {
		return Handle{}, false
	}
	return Handle{Name: name, Endpoint: ep}, true
}

// EndpointNames returns all endpoint names in sorted order.
func (r *Registry) EndpointNames() []string {
	return slices.Sorted(maps.Keys(r.endpoints))
}

// Configured returns the names of configured endpoints in sorted order.
func (r *Registry) Configured() []string {
	var out []string
	for _, name := range r.EndpointNames() {
		if r.IsConfigured(name) {
			out = append(out, name)
		}
	}
	return out
}

// PrimaryName returns the endpoint serving tasks by default: the primary if
// configured, otherwise the alternate. Empty when neither is configured.
func (r *Registry) PrimaryName() string {
	switch {
	case r.IsConfigured(r.primary):
		return r.primary
	case r.IsConfigured(r.alternate):
		return r.alternate
	}
	return ""
}

// Resolve returns the endpoint for a task: a task override first, then the
// default primary.
func (r *Registry) Resolve(task Task) (Handle, error) {
	if name, ok := r.override(task); ok {
		h, _ := r.Endpoint(name)
		return h, nil
	}

	if name := r.PrimaryName(); name != "" {
		h, _ := r.Endpoint(name)
		return h, nil
	}
	return Handle{}, fmt.Errorf("resolve %s: %w", task, ErrNoProvider)
}

// override finds the first configured endpoint whose pattern matches the task.
// Overrides naming unconfigured endpoints are skipped.
func (r *Registry) override(task Task) (string, bool) {
	for _, o := range r.overrides {
		matched, err := doublestar.Match(o.pattern, string(task))
		if err != nil || !matched {
			continue
		}
		if r.IsConfigured(o.endpoint) {
			return o.endpoint, true
		}
	}
	return "", false
}

// ResolvePipeline returns the endpoint assigned to a task for the pipeline
// strategy, falling back to Resolve when no assignment is configured.
func (r *Registry) ResolvePipeline(task Task) (Handle, error) {
	if name, ok := r.pipeline[task]; ok && r.IsConfigured(name) {
		h, _ := r.Endpoint(name)
		return h, nil
	}
	return r.Resolve(task)
}

// BothProvidersAvailable reports whether two distinct providers are
// configured and neither has an open circuit.
func (r *Registry) BothProvidersAvailable() bool {
	if r.primary == "" || r.alternate == "" || r.primary == r.alternate {
		return false
	}
	if !r.IsConfigured(r.primary) || !r.IsConfigured(r.alternate) {
		return false
	}
	return r.health.IsEndpointAvailable(r.primary) && r.health.IsEndpointAvailable(r.alternate)
}

// Alternate returns the other provider of the configured pair, if it is
// configured and distinct from primary.
func (r *Registry) Alternate(primary string) (Handle, bool) {
	other := r.alternate
	if primary == r.alternate {
		other = r.primary
	}
	if other == "" || other == primary || !r.IsConfigured(other) {
		return Handle{}, false
	}
	return r.Endpoint(other)
}

// Health returns the circuit breaker, or nil.
func (r *Registry) Health() *Health {
	return r.health
}
