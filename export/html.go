package export

import (
	"bytes"
	"fmt"
	"html"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/c360studio/tripgen/itinerary"
)

var renderer = goldmark.New(
	goldmark.WithExtensions(extension.Table, extension.Linkify),
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 52rem; margin: 2rem auto; padding: 0 1rem; line-height: 1.5; }
table { border-collapse: collapse; width: 100%%; }
th, td { border: 1px solid #ddd; padding: .4rem .6rem; text-align: left; vertical-align: top; }
img { max-width: 100%%; }
</style>
</head>
<body>
%s</body>
</html>
`

// HTML renders the Markdown form through goldmark into a standalone page.
func HTML(w io.Writer, it *itinerary.Itinerary) error {
	var body bytes.Buffer
	if err := renderer.Convert([]byte(Markdown(it)), &body); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	title := it.Destination
	if title == "" {
		title = "Itinerary"
	}
	_, err := fmt.Fprintf(w, pageTemplate, html.EscapeString(title), body.String())
	return err
}
