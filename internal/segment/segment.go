// Package segment splits raw document text into the units the rest of the
// pipeline works on: sentences, bounded-size chunks, titled sections, and
// paragraphs. Segmentation is best-effort and never fails on arbitrary text.
package segment

import (
	"regexp"
	"strings"
)

// DefaultChunkSize is the maximum chunk length in characters used when the
// caller does not specify one.
const DefaultChunkSize = 500

// Section is a titled span of a document. Title is empty for the implicit
// leading section before the first heading.
type Section struct {
	Title string
	Body  string
}

// headingPatterns match, in priority order: Markdown headings, ALL-CAPS
// headings ending in "." or ":", and numbered headings ("3. Results").
// The captured group is the section title.
var headingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^#+\s+(.+)$`),
	regexp.MustCompile(`^[A-Z][^a-z]+[.:]\s*(.+)$`),
	regexp.MustCompile(`^\d+\.\s+(.+)$`),
}

// Sentences splits text into sentences. A sentence ends at '.', '!' or '?'
// followed by whitespace; the delimiter stays with the sentence and the
// separating whitespace is dropped. Text with no delimiter is one sentence.
func Sentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if (c == '.' || c == '!' || c == '?') && i+1 < len(text) && isSpace(text[i+1]) {
			s := text[start : i+1]
			if strings.TrimSpace(s) != "" {
				sentences = append(sentences, s)
			}
			j := i + 1
			for j < len(text) && isSpace(text[j]) {
				j++
			}
			start = j
			i = j - 1
		}
	}
	if start < len(text) {
		s := text[start:]
		if strings.TrimSpace(s) != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// Chunks packs sentences greedily into chunks of at most maxSize characters,
// joined with single spaces. A chunk is closed when adding the next sentence
// would exceed maxSize. A single sentence longer than maxSize is kept whole:
// chunks never split mid-sentence, so semantic coherence wins over the exact
// size bound. Chunking is a pure function of (text, maxSize).
func Chunks(text string, maxSize int) []string {
	if maxSize <= 0 {
		maxSize = DefaultChunkSize
	}
	var chunks []string
	var b strings.Builder
	for _, s := range Sentences(text) {
		if b.Len() > 0 && b.Len()+1+len(s) > maxSize {
			chunks = append(chunks, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s)
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}

// Sections scans text line by line and groups it under headings. A line
// matching any heading pattern starts a new section; everything until the
// next heading is that section's body. Content before the first heading
// becomes an untitled leading section, dropped when empty. Text with no
// headings at all is returned as a single untitled section.
func Sections(text string) []Section {
	var sections []Section
	title := ""
	var body []string

	flush := func() {
		content := strings.TrimSpace(strings.Join(body, "\n"))
		if title == "" && content == "" {
			return
		}
		sections = append(sections, Section{Title: title, Body: content})
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		matched := false
		for _, re := range headingPatterns {
			if m := re.FindStringSubmatch(trimmed); m != nil {
				flush()
				title = strings.TrimSpace(m[1])
				body = nil
				matched = true
				break
			}
		}
		if !matched {
			body = append(body, line)
		}
	}
	flush()
	return sections
}

// Paragraphs splits text into blank-line-separated blocks, trimming each and
// dropping empties. This is the unit of document correction.
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var paragraphs []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}
