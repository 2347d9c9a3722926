package correct

import (
	"fmt"
	"sort"
	"strings"
)

// Match is a style suggestion retrieved from an indexed guide for one chunk
// of text.
type Match struct {
	Trigger    string  `json:"trigger"` // guide text whose occurrence should be replaced
	Example    string  `json:"example"` // replacement text from the guide's examples
	RuleType   string  `json:"rule_type"`
	Section    string  `json:"section"`
	Confidence float64 `json:"confidence"`
}

// ApplyMatches replaces, for each match, the first case-insensitive
// occurrence of the trigger with the example wrapped in a confidence
// marker. Matches are applied rightmost-first so earlier rewrites cannot
// shift the offsets of pending replacements. Returns the rewritten text and
// the matches that changed it, in application order.
func ApplyMatches(text string, matches []Match) (string, []Match) {
	type positioned struct {
		pos   int
		match Match
	}
	var found []positioned
	for _, m := range matches {
		if m.Example == "" {
			continue
		}
		if pos := foldIndex(text, m.Trigger); pos >= 0 {
			found = append(found, positioned{pos: pos, match: m})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].pos > found[j].pos })

	corrected := text
	var applied []Match
	for _, f := range found {
		pos := foldIndex(corrected, f.match.Trigger)
		if pos < 0 {
			continue
		}
		span := corrected[pos : pos+len(f.match.Trigger)]
		if equalFolded(span, f.match.Example) {
			continue
		}
		marked := fmt.Sprintf("<change confidence=%.2f>%s</change>", f.match.Confidence, f.match.Example)
		corrected = corrected[:pos] + marked + corrected[pos+len(f.match.Trigger):]
		applied = append(applied, f.match)
	}
	if len(applied) == 0 {
		return text, nil
	}
	return corrected, applied
}

// foldIndex is a case-insensitive strings.Index over ASCII letters. The
// fold keeps byte offsets valid in the original string, which a full
// Unicode lowering does not guarantee.
func foldIndex(s, substr string) int {
	if substr == "" {
		return -1
	}
	return strings.Index(asciiLower(s), asciiLower(substr))
}

func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}

func equalFolded(a, b string) bool {
	return strings.ToLower(strings.TrimSpace(a)) == strings.ToLower(strings.TrimSpace(b))
}
