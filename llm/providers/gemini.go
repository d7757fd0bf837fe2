package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"google.golang.org/genai"

	"github.com/c360studio/tripgen/llm"
)

// GeminiProvider implements the Gemini API through the genai SDK.
type GeminiProvider struct {
	httpClient *http.Client

	mu      sync.Mutex
	clients map[string]*genai.Client
}

// NewGeminiProvider creates the adapter. A nil client uses llm.DefaultHTTPClient.
func NewGeminiProvider(httpClient *http.Client) *GeminiProvider {
	if httpClient == nil {
		httpClient = llm.DefaultHTTPClient()
	}
	return &GeminiProvider{
		httpClient: httpClient,
		clients:    make(map[string]*genai.Client),
	}
}

// Name returns the provider identifier.
func (g *GeminiProvider) Name() string {
	return "gemini"
}

// Complete performs one GenerateContent call.
func (g *GeminiProvider) Complete(ctx context.Context, target llm.Target, req llm.Request) (*llm.Response, error) {
	client, err := g.client(ctx, target)
	if err != nil {
		return nil, llm.NewFatalError(fmt.Errorf("gemini client: %w", err))
	}

	cfg := &genai.GenerateContentConfig{}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		cfg.Temperature = &t
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	var contents []*genai.Content
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			cfg.SystemInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)
		case llm.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	resp, err := client.Models.GenerateContent(ctx, target.Model, contents, cfg)
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	text := resp.Text()
	if text == "" {
		return nil, llm.NewTransientError(errors.New("gemini: empty response"))
	}

	out := &llm.Response{
		Content: text,
		Model:   resp.ModelVersion,
	}
	if len(resp.Candidates) > 0 {
		out.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func (g *GeminiProvider) client(ctx context.Context, target llm.Target) (*genai.Client, error) {
	key := target.APIKey + "|" + target.URL

	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.clients[key]; ok {
		return c, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:     target.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.httpClient,
	}
	if target.URL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: target.URL}
	}

	c, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	g.clients[key] = c
	return c, nil
}

func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return llm.ClassifyStatus(apiErr.Code, fmt.Errorf("gemini: %w", err))
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return llm.ClassifyStatus(apiErrPtr.Code, fmt.Errorf("gemini: %w", err))
	}
	return llm.NewTransientError(fmt.Errorf("gemini: %w", err))
}
