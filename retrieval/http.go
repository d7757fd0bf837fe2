package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/c360studio/tripgen/itinerary"
)

// DefaultTimeout bounds one search or image call.
const DefaultTimeout = 10 * time.Second

// maxResponseBytes bounds search service responses.
const maxResponseBytes = 4 << 20

// HTTPSearcher queries a search service at GET {base}/search?q=...&top_k=N,
// which answers {"articles": [...]}.
type HTTPSearcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSearcher creates a searcher for baseURL. A nil client gets a
// client with DefaultTimeout.
func NewHTTPSearcher(baseURL string, client *http.Client) *HTTPSearcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &HTTPSearcher{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type searchResponse struct {
	Articles []Article `json:"articles"`
}

// Search implements Searcher.
func (s *HTTPSearcher) Search(ctx context.Context, query string, topK int) ([]Article, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("top_k", strconv.Itoa(topK))

	var resp searchResponse
	if err := getJSON(ctx, s.client, s.baseURL+"/search?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return resp.Articles, nil
}

// HTTPImageLookup queries GET {base}/images?q=..., which answers with one
// image object or 404 when nothing matches.
type HTTPImageLookup struct {
	baseURL string
	client  *http.Client
}

// NewHTTPImageLookup creates an image lookup for baseURL.
func NewHTTPImageLookup(baseURL string, client *http.Client) *HTTPImageLookup {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &HTTPImageLookup{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Lookup implements ImageLookup. No match is (nil, nil).
func (l *HTTPImageLookup) Lookup(ctx context.Context, query string) (*itinerary.Image, error) {
	params := url.Values{}
	params.Set("q", query)

	var img itinerary.Image
	err := getJSON(ctx, l.client, l.baseURL+"/images?"+params.Encode(), &img)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("image lookup: %w", err)
	}
	return &img, nil
}

var errNotFound = errors.New("not found")

func getJSON(ctx context.Context, client *http.Client, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
