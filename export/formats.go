// Package export renders itineraries as Markdown, JSON or HTML.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/c360studio/tripgen/itinerary"
)

// Format identifies an output format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
)

// FormatInfo provides metadata about an export format.
type FormatInfo struct {
	// Name is the format identifier.
	Name Format

	// MIMEType is the standard MIME type.
	MIMEType string

	// Extension is the file extension (with dot).
	Extension string

	// Description describes the format.
	Description string
}

// FormatRegistry contains metadata for all supported formats.
var FormatRegistry = map[Format]FormatInfo{
	FormatMarkdown: {
		Name:        FormatMarkdown,
		MIMEType:    "text/markdown",
		Extension:   ".md",
		Description: "Markdown day-by-day plan",
	},
	FormatJSON: {
		Name:        FormatJSON,
		MIMEType:    "application/json",
		Extension:   ".json",
		Description: "Itinerary JSON document",
	},
	FormatHTML: {
		Name:        FormatHTML,
		MIMEType:    "text/html",
		Extension:   ".html",
		Description: "Standalone HTML page",
	},
}

// GetFormatInfo returns metadata for a format.
func GetFormatInfo(format Format) (FormatInfo, bool) {
	info, ok := FormatRegistry[format]
	return info, ok
}

// FormatNames returns the supported format names, sorted.
func FormatNames() []string {
	names := make([]string, 0, len(FormatRegistry))
	for f := range FormatRegistry {
		names = append(names, string(f))
	}
	slices.Sort(names)
	return names
}

// ParseFormat resolves a format name or file extension.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for f, info := range FormatRegistry {
		if s == string(f) || s == info.Extension || "."+s == info.Extension {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown export format %q (supported: %s)", s, strings.Join(FormatNames(), ", "))
}

// Write renders it to w in the given format.
func Write(w io.Writer, it *itinerary.Itinerary, format Format) error {
	if it == nil {
		return fmt.Errorf("export: nil itinerary")
	}
	switch format {
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(it))
		return err
	case FormatJSON:
		return JSON(w, it)
	case FormatHTML:
		return HTML(w, it)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// JSON writes the itinerary as indented JSON.
func JSON(w io.Writer, it *itinerary.Itinerary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(it); err != nil {
		return fmt.Errorf("encode itinerary: %w", err)
	}
	return nil
}
