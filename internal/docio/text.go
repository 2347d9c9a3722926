package docio

import (
	"os"
	"path/filepath"
	"strings"
)

// PlainText handles .txt, .text, .log, and extensionless files.
type PlainText struct{}

// CanHandle returns true for plain text extensions.
func (t *PlainText) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".txt" || ext == ".text" || ext == ".log" || ext == ""
}

// Extract reads the file with line endings normalized to \n.
func (t *PlainText) Extract(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(string(data), "\r\n", "\n"), nil
}
