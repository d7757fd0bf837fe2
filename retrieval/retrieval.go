// Package retrieval adapts the external article search and image lookup
// services into prompt context. Both services are best-effort: any failure
// yields empty context and generation continues.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/c360studio/tripgen/itinerary"
)

// DefaultTopK is the number of articles requested when unset.
const DefaultTopK = 5

// maxSnippetChars bounds each article in the reference block.
const maxSnippetChars = 1200

// Article is one search hit.
type Article struct {
	Title   string           `json:"title"`
	URL     string           `json:"url"`
	Snippet string           `json:"snippet"`
	Image   *itinerary.Image `json:"image,omitempty"`
}

// Searcher queries the article index.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]Article, error)
}

// ImageLookup finds a decorative picture for a query.
type ImageLookup interface {
	Lookup(ctx context.Context, query string) (*itinerary.Image, error)
}

// Context is the formatted retrieval result handed to prompt builders.
type Context struct {
	// Text is the numbered reference block, empty when nothing was found.
	Text string

	// References lists the articles that made it into Text.
	References []itinerary.Reference

	// Image is the first article image, if any.
	Image *itinerary.Image
}

// Count returns the number of articles used.
func (c Context) Count() int {
	return len(c.References)
}

// Query builds the search query for a request.
func Query(req *itinerary.Request) string {
	parts := []string{req.Destination(), "travel"}
	parts = append(parts, req.Themes...)
	if req.Companion != "" {
		parts = append(parts, req.Companion)
	}
	return strings.Join(parts, " ")
}

// Retriever combines a Searcher with snippet cleanup.
type Retriever struct {
	searcher  Searcher
	converter *Converter
	logger    *slog.Logger
}

// NewRetriever creates a Retriever. A nil searcher always yields empty context.
func NewRetriever(searcher Searcher, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		searcher:  searcher,
		converter: NewConverter(),
		logger:    logger,
	}
}

// Gather searches and formats. Errors are logged and treated as no results.
func (r *Retriever) Gather(ctx context.Context, query string, topK int) Context {
	if r == nil || r.searcher == nil {
		return Context{}
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	articles, err := r.searcher.Search(ctx, query, topK)
	if err != nil {
		r.logger.Warn("Retrieval failed, continuing without context",
			"query", query,
			"error", err)
		return Context{}
	}
	if len(articles) > topK {
		articles = articles[:topK]
	}
	return r.format(articles)
}

// FormatContext numbers articles into a reference block using a fresh converter.
func FormatContext(articles []Article) Context {
	return NewConverter().format(articles)
}

func (r *Retriever) format(articles []Article) Context {
	return r.converter.format(articles)
}

func (c *Converter) format(articles []Article) Context {
	var out Context
	var sb strings.Builder

	for _, a := range articles {
		snippet := c.Snippet(a.Snippet)
		if snippet == "" && a.Title == "" {
			continue
		}
		n := len(out.References) + 1
		fmt.Fprintf(&sb, "[%d] %s", n, a.Title)
		if a.URL != "" {
			fmt.Fprintf(&sb, " (%s)", a.URL)
		}
		sb.WriteString("\n")
		if snippet != "" {
			sb.WriteString(snippet)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")

		out.References = append(out.References, itinerary.Reference{Title: a.Title, URL: a.URL})
		if out.Image == nil && a.Image != nil {
			img := *a.Image
			out.Image = &img
		}
	}

	out.Text = strings.TrimSpace(sb.String())
	return out
}

// HeroImage looks up a picture, falling back to the retrieval image. Lookup
// failures are logged and never returned.
func HeroImage(ctx context.Context, lookup ImageLookup, query string, fallback *itinerary.Image, logger *slog.Logger) *itinerary.Image {
	if lookup == nil {
		return fallback
	}
	if logger == nil {
		logger = slog.Default()
	}
	img, err := lookup.Lookup(ctx, query)
	if err != nil {
		logger.Warn("Hero image lookup failed", "query", query, "error", err)
		return fallback
	}
	if img == nil || img.URL == "" {
		return fallback
	}
	return img
}
