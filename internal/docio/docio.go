// Package docio is the document input/output boundary.
//
// Extractors turn supported file formats into plain text for the pipeline;
// detection is by file extension. PDF and DOCX are recognized but not
// handled here since they need an external converter; requests for them
// fail with ErrUnsupportedFormat before any core processing starts.
package docio

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for file formats no extractor handles.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Extractor handles a specific file format.
type Extractor interface {
	// CanHandle returns true if this extractor supports the given file path.
	CanHandle(path string) bool

	// Extract reads the file and returns its plain text.
	Extract(path string) (string, error)
}

// Extractors returns the built-in extractors in detection order.
func Extractors() []Extractor {
	return []Extractor{
		&Markdown{},
		&PlainText{},
	}
}

// ExtractFile dispatches to the first extractor that handles the path.
// Container formats that need external conversion get a pointed error.
func ExtractFile(path string) (string, error) {
	for _, e := range Extractors() {
		if e.CanHandle(path) {
			return e.Extract(path)
		}
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf", ".docx", ".doc":
		return "", fmt.Errorf("%w: %s needs conversion to plain text or Markdown first", ErrUnsupportedFormat, ext)
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}
