package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/c360studio/tripgen/llm"
)

// OpenAIProvider implements chat completions through the official SDK. It
// also serves OpenAI-compatible gateways via Target.URL.
type OpenAIProvider struct {
	httpClient *http.Client
}

// NewOpenAIProvider creates the adapter. A nil client uses llm.DefaultHTTPClient.
func NewOpenAIProvider(httpClient *http.Client) *OpenAIProvider {
	if httpClient == nil {
		httpClient = llm.DefaultHTTPClient()
	}
	return &OpenAIProvider{httpClient: httpClient}
}

// Name returns the provider identifier.
func (o *OpenAIProvider) Name() string {
	return "openai"
}

// Complete performs one chat completion call.
func (o *OpenAIProvider) Complete(ctx context.Context, target llm.Target, req llm.Request) (*llm.Response, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(target.APIKey),
		option.WithHTTPClient(o.httpClient),
		// Retries are owned by llm.Client.
		option.WithMaxRetries(0),
	}
	if target.URL != "" {
		opts = append(opts, option.WithBaseURL(target.URL))
	}
	client := openai.NewClient(opts...)

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(target.Model),
		Messages: toOpenAIMessages(req.Messages),
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, llm.NewTransientError(errors.New("openai: empty choices"))
	}

	return &llm.Response{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: llm.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
		FinishReason: string(resp.Choices[0].FinishReason),
	}, nil
}

func toOpenAIMessages(messages []llm.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case llm.RoleAssistant:
			out = append(out, openai.ChatCompletionMessageParamOfAssistant(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return llm.ClassifyStatus(apiErr.StatusCode, fmt.Errorf("openai: %w", err))
	}
	return llm.NewTransientError(fmt.Errorf("openai: %w", err))
}
