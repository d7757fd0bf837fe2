package retrieval

import (
	"regexp"
	"strings"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
)

var (
	scriptRe         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	excessiveLinesRe = regexp.MustCompile(`\n{3,}`)
	markupHintRe     = regexp.MustCompile(`<[a-zA-Z/][^>]*>`)
)

// noiseTags never carry travel content.
var noiseTags = map[string]bool{
	"nav": true, "header": true, "footer": true, "aside": true,
	"script": true, "style": true, "noscript": true, "iframe": true,
	"form": true, "button": true,
}

// Converter normalises search snippets, which may arrive as HTML fragments,
// into compact markdown.
type Converter struct {
	converter *md.Converter
}

// NewConverter creates a converter with GitHub-flavoured output.
func NewConverter() *Converter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &Converter{converter: converter}
}

// Snippet cleans one snippet and truncates it on a rune boundary.
func (c *Converter) Snippet(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	text := raw
	if markupHintRe.MatchString(raw) {
		markdown, err := c.converter.ConvertString(stripNoise(raw))
		if err == nil {
			text = markdown
		}
	}
	return truncate(cleanMarkdown(text), maxSnippetChars)
}

// stripNoise removes navigation and script elements from an HTML fragment.
func stripNoise(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		fragment = scriptRe.ReplaceAllString(fragment, "")
		return styleRe.ReplaceAllString(fragment, "")
	}

	var toRemove []*html.Node
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.ElementNode && noiseTags[n.Data] {
			toRemove = append(toRemove, n)
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			collect(child)
		}
	}
	collect(doc)
	for _, n := range toRemove {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}

	var sb strings.Builder
	if err := html.Render(&sb, doc); err != nil {
		return fragment
	}
	return sb.String()
}

func cleanMarkdown(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	content = strings.Join(lines, "\n")
	content = excessiveLinesRe.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit])) + "…"
}
