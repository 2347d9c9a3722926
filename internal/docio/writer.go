package docio

import (
	"fmt"
	"io"
)

// Writer renders an ordered sequence of paragraphs to an output stream.
type Writer interface {
	Write(w io.Writer, paragraphs []string) error
}

// PlainWriter writes paragraphs separated by blank lines.
type PlainWriter struct{}

func (p *PlainWriter) Write(w io.Writer, paragraphs []string) error {
	for i, para := range paragraphs {
		if i > 0 {
			if _, err := io.WriteString(w, "\n\n"); err != nil {
				return fmt.Errorf("writing paragraph separator: %w", err)
			}
		}
		if _, err := io.WriteString(w, para); err != nil {
			return fmt.Errorf("writing paragraph %d: %w", i+1, err)
		}
	}
	if len(paragraphs) > 0 {
		if _, err := io.WriteString(w, "\n"); err != nil {
			return fmt.Errorf("writing trailing newline: %w", err)
		}
	}
	return nil
}
