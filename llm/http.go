package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// maxResponseSize limits the response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// HTTPAdapter is implemented by providers that speak a plain JSON-over-HTTP API.
type HTTPAdapter interface {
	// BuildURL constructs the full API endpoint URL.
	BuildURL(baseURL string) string

	// SetHeaders adds provider-specific headers to the request.
	SetHeaders(req *http.Request, apiKey string)

	// BuildRequestBody creates the JSON request body for the provider.
	BuildRequestBody(model string, messages []Message, temperature *float64, maxTokens int) ([]byte, error)

	// ParseResponse extracts the response from provider-specific JSON.
	ParseResponse(body []byte, model string) (*Response, error)
}

// DoHTTP executes a single HTTP attempt for an HTTPAdapter.
func DoHTTP(ctx context.Context, httpClient *http.Client, a HTTPAdapter, target Target, req Request) (*Response, error) {
	url := a.BuildURL(target.URL)

	body, err := a.BuildRequestBody(target.Model, req.Messages, req.Temperature, req.MaxTokens)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	a.SetHeaders(httpReq, target.APIKey)

	httpResp, err := httpClient.Do(httpReq)
	if err != nil {
		// Network errors and deadline expiry are transient.
		return nil, NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}

	resp, err := a.ParseResponse(respBody, target.Model)
	if err != nil {
		return nil, NewTransientError(err)
	}
	return resp, nil
}
