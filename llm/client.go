// Package llm provides a provider-agnostic client for generative text
// providers with retry, rate limiting and per-call timeouts.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`    // "system", "user", or "assistant"
	Content string `json:"content"` // Message content
}

// Target identifies one concrete provider endpoint and model.
type Target struct {
	// Name is the configured endpoint name ("gemini", "openai-eu", ...).
	Name string

	// Provider is the adapter to use ("gemini", "openai", "anthropic").
	Provider string

	// Model is the model identifier sent to the provider.
	Model string

	// URL overrides the provider's default base URL.
	URL string

	// APIKey authenticates the call.
	APIKey string

	// Timeout bounds the whole call including retries. Zero means no bound.
	Timeout time.Duration
}

// Request defines a completion request.
type Request struct {
	Target Target

	// Messages is the chat history to send.
	Messages []Message

	// Temperature controls randomness. nil uses the provider default.
	Temperature *float64

	// MaxTokens limits response length. 0 uses the provider default.
	MaxTokens int

	// JSON asks the provider for a JSON-only response where supported.
	JSON bool
}

// TokenUsage represents token consumption details for a call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response contains the completion result.
type Response struct {
	// RequestID uniquely identifies this call for log correlation.
	RequestID string

	// Content is the generated text.
	Content string

	// Model is the actual model that was used.
	Model string

	// Provider is the endpoint name that served the call.
	Provider string

	Usage TokenUsage

	// FinishReason indicates why generation stopped.
	FinishReason string

	Duration time.Duration
}

// Provider adapts one vendor API.
type Provider interface {
	// Name returns the provider identifier (e.g., "gemini", "openai").
	Name() string

	// Complete performs a single attempt against the vendor API. Errors should
	// be classified with NewTransientError / NewFatalError.
	Complete(ctx context.Context, target Target, req Request) (*Response, error)
}

// Completer is what coordination code depends on.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// HealthTracker receives per-endpoint outcomes, typically a circuit breaker.
type HealthTracker interface {
	MarkEndpointSuccess(name string)
	MarkEndpointFailure(name string)
}

// RateLimitConfig configures per-endpoint request pacing.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"min=0"`
	Burst             int `yaml:"burst" validate:"min=0"`
}

// Client dispatches requests to registered providers.
type Client struct {
	providers   map[string]Provider
	retryConfig RetryConfig
	rateLimit   RateLimitConfig
	health      HealthTracker
	logger      *slog.Logger

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithProviders registers provider adapters.
func WithProviders(providers ...Provider) ClientOption {
	return func(c *Client) {
		for _, p := range providers {
			c.providers[p.Name()] = p
		}
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(c *Client) {
		c.retryConfig = cfg
	}
}

// WithRateLimit paces requests per endpoint. A zero rate disables limiting.
func WithRateLimit(cfg RateLimitConfig) ClientOption {
	return func(c *Client) {
		c.rateLimit = cfg
	}
}

// WithHealthTracker reports call outcomes to a health tracker.
func WithHealthTracker(h HealthTracker) ClientOption {
	return func(c *Client) {
		c.health = h
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client. Providers must be registered with WithProviders.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		providers:   make(map[string]Provider),
		retryConfig: DefaultRetryConfig(),
		logger:      slog.Default(),
		limiters:    make(map[string]*rate.Limiter),
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.retryConfig.MaxAttempts < 1 {
		c.retryConfig.MaxAttempts = 1
	}

	return c
}

// Complete sends a request to its target, retrying transient failures within
// the target's timeout budget.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, NewFatalError(fmt.Errorf("at least one message is required"))
	}
	provider, ok := c.providers[req.Target.Provider]
	if !ok {
		return nil, NewFatalError(fmt.Errorf("unknown provider: %s", req.Target.Provider))
	}

	callerCtx := ctx
	if req.Target.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Target.Timeout)
		defer cancel()
	}

	requestID := uuid.New().String()
	startedAt := time.Now()

	if err := c.limiter(req.Target.Name).Wait(ctx); err != nil {
		return nil, NewTransientError(fmt.Errorf("rate limit wait: %w", err))
	}

	var lastErr error
	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		resp, err := provider.Complete(ctx, req.Target, req)
		if err == nil {
			c.markSuccess(req.Target.Name)
			resp.RequestID = requestID
			resp.Provider = req.Target.Name
			resp.Duration = time.Since(startedAt)
			if resp.Model == "" {
				resp.Model = req.Target.Model
			}
			c.logger.Debug("LLM call completed",
				"request_id", requestID,
				"provider", req.Target.Name,
				"model", resp.Model,
				"attempt", attempt,
				"duration", resp.Duration,
				"total_tokens", resp.Usage.TotalTokens)
			return resp, nil
		}

		lastErr = err
		if IsFatal(err) {
			c.logger.Warn("LLM call failed with fatal error",
				"request_id", requestID,
				"provider", req.Target.Name,
				"error", err)
			return nil, err
		}

		if attempt < c.retryConfig.MaxAttempts {
			backoff := c.calculateBackoff(attempt)
			c.logger.Debug("LLM call failed, retrying",
				"request_id", requestID,
				"provider", req.Target.Name,
				"attempt", attempt,
				"max_attempts", c.retryConfig.MaxAttempts,
				"backoff", backoff,
				"error", err)

			select {
			case <-ctx.Done():
				c.markFailure(callerCtx, req.Target.Name)
				return nil, NewTransientError(fmt.Errorf("%s: %w", req.Target.Name, ctx.Err()))
			case <-time.After(backoff):
			}
		}
	}

	c.markFailure(callerCtx, req.Target.Name)
	return nil, fmt.Errorf("%s: all %d attempts failed: %w", req.Target.Name, c.retryConfig.MaxAttempts, lastErr)
}

func (c *Client) limiter(name string) *rate.Limiter {
	c.limitersMu.Lock()
	defer c.limitersMu.Unlock()

	if l, ok := c.limiters[name]; ok {
		return l
	}

	l := rate.NewLimiter(rate.Inf, 0)
	if c.rateLimit.RequestsPerMinute > 0 {
		burst := max(c.rateLimit.Burst, 1)
		l = rate.NewLimiter(rate.Limit(float64(c.rateLimit.RequestsPerMinute)/60.0), burst)
	}
	c.limiters[name] = l
	return l
}

func (c *Client) markSuccess(name string) {
	if c.health != nil {
		c.health.MarkEndpointSuccess(name)
	}
}

// markFailure counts a failure against the endpoint unless the caller
// abandoned the call. The target's own timeout still counts.
func (c *Client) markFailure(callerCtx context.Context, name string) {
	if callerCtx.Err() != nil {
		c.logger.Debug("LLM call abandoned by caller, endpoint health unchanged",
			"provider", name,
			"error", callerCtx.Err())
		return
	}
	if c.health != nil {
		c.health.MarkEndpointFailure(name)
	}
}

// calculateBackoff computes exponential backoff duration with jitter.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= c.retryConfig.BackoffMultiplier
	}

	backoff := time.Duration(float64(c.retryConfig.BackoffBase) * multiplier)
	if backoff > c.retryConfig.MaxBackoff {
		backoff = c.retryConfig.MaxBackoff
	}

	// +/- 25% so concurrent chunk calls do not retry in lockstep.
	jitter := float64(backoff) * 0.25 * (rand.Float64()*2 - 1)
	return backoff + time.Duration(jitter)
}

// DefaultHTTPClient is shared by HTTP-based adapters. Per-call deadlines come
// from Target.Timeout via the request context.
func DefaultHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
}
