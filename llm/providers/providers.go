package providers

import (
	"net/http"

	"github.com/c360studio/tripgen/llm"
)

// All returns every built-in adapter sharing one HTTP client.
func All(httpClient *http.Client) []llm.Provider {
	if httpClient == nil {
		httpClient = llm.DefaultHTTPClient()
	}
	return []llm.Provider{
		NewGeminiProvider(httpClient),
		NewOpenAIProvider(httpClient),
		NewAnthropicProvider(httpClient),
	}
}
