package llm

import (
	"regexp"
	"strings"
)

var (
	// fencePattern captures the body of the first markdown code fence.
	fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)```")
	// trailingCommaPattern matches trailing commas before ] or }.
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON returns the first complete JSON object found in a model
// response. Code fences, // comments and trailing commas are tolerated.
func ExtractJSON(content string) string {
	return extractBalanced(content, '{', '}')
}

// ExtractJSONArray returns the first complete JSON array in a model response.
func ExtractJSONArray(content string) string {
	return extractBalanced(content, '[', ']')
}

func extractBalanced(content string, open, closing byte) string {
	candidates := make([]string, 0, 2)
	if m := fencePattern.FindStringSubmatch(content); len(m) > 1 {
		candidates = append(candidates, m[1])
	}
	candidates = append(candidates, content)

	for _, c := range candidates {
		if raw := scanBalanced(c, open, closing); raw != "" {
			return cleanJSON(raw)
		}
	}
	return ""
}

// scanBalanced walks s from the first open byte and returns the substring up
// to its matching close, ignoring brackets inside string literals.
func scanBalanced(s string, open, closing byte) string {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == open:
			depth++
		case ch == closing:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// cleanJSON removes // comments outside strings and trailing commas, both
// common artifacts of model output.
func cleanJSON(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = stripLineComment(line)
	}
	return trailingCommaPattern.ReplaceAllString(strings.Join(lines, "\n"), "$1")
}

func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}

	inString := false
	escaped := false
	for i := 0; i < len(line)-1; i++ {
		ch := line[i]
		switch {
		case escaped:
			escaped = false
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case !inString && ch == '/' && line[i+1] == '/':
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}
