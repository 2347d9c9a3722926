package docio

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Markdown handles .md and .markdown files.
type Markdown struct{}

// CanHandle returns true for Markdown file extensions.
func (m *Markdown) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".markdown"
}

// linkRE matches inline links; the visible text survives, the URL goes.
var linkRE = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)

// Extract reads a Markdown file as plain text. YAML front matter is removed
// and inline links unwrap to their text. Headings stay as-is: downstream
// section detection keys on them.
func (m *Markdown) Extract(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	content = stripFrontMatter(content)
	return linkRE.ReplaceAllString(content, "$1"), nil
}

// stripFrontMatter removes a leading --- delimited YAML block.
func stripFrontMatter(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "---") {
		return content
	}
	rest := trimmed[3:]
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return content
	}
	return strings.TrimPrefix(rest[idx+4:], "\n")
}
