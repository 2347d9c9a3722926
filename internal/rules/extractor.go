package rules

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/hurttlocker/redline/internal/segment"
)

// rulePattern is one extraction pattern. Patterns are tried in priority
// order against each segment; the first match wins and the rest are skipped.
// Quoted and arrow forms are more reliable signals than generic modal forms,
// so they carry lower priority numbers.
type rulePattern struct {
	regex    *regexp.Regexp
	name     string
	priority int
}

// Extractor turns free-form style-guide text into structured rules.
type Extractor struct {
	patterns []*rulePattern
}

// NewExtractor creates an extractor with the full pattern table.
func NewExtractor() *Extractor {
	return &Extractor{patterns: initRulePatterns()}
}

// initRulePatterns initializes extraction patterns in priority order.
func initRulePatterns() []*rulePattern {
	return []*rulePattern{
		// "X → Y", "X => Y", "X -> Y"
		{
			regex:    regexp.MustCompile(`^(?P<pattern>.+?)\s*(?:→|=>|->)\s*(?P<replacement>.+)$`),
			name:     "arrow",
			priority: 1,
		},
		// `Use "Y" instead of "X"` / `Use "Y" not "X"`
		{
			regex:    regexp.MustCompile(`(?i)\buse\s+"(?P<replacement>[^"]+)"\s+(?:instead\s+of|not)\s+"(?P<pattern>[^"]+)"`),
			name:     "quoted_use",
			priority: 2,
		},
		// `Write "Y" not "X"`
		{
			regex:    regexp.MustCompile(`(?i)\bwrite\s+"(?P<replacement>[^"]+)"\s+not\s+"(?P<pattern>[^"]+)"`),
			name:     "quoted_write",
			priority: 3,
		},
		// `Replace "X" with "Y"`
		{
			regex:    regexp.MustCompile(`(?i)\breplace\s+"(?P<pattern>[^"]+)"\s+with\s+"(?P<replacement>[^"]+)"`),
			name:     "quoted_replace",
			priority: 4,
		},
		// "X should be Y" / "X must be Y"
		{
			regex:    regexp.MustCompile(`(?i)^(?P<pattern>.+?)\s+(?:should|must)\s+be\s+(?P<replacement>.+)$`),
			name:     "modal",
			priority: 5,
		},
		// "X changes to Y" / "X becomes Y"
		{
			regex:    regexp.MustCompile(`(?i)^(?P<pattern>.+?)\s+(?:changes\s+to|becomes)\s+(?P<replacement>.+)$`),
			name:     "transform",
			priority: 6,
		},
		// "X in uppercase" / "X lowercase" / "X title case"
		{
			regex:    regexp.MustCompile(`(?i)^(?P<pattern>.+?)\s+(?:in\s+)?(?P<replacement>uppercase|lowercase|title\s+case)\.?$`),
			name:     "case_rule",
			priority: 7,
		},
		// "When <context>, X should be Y"
		{
			regex:    regexp.MustCompile(`(?i)^when\s+(?P<context>[^,]+),\s*(?P<pattern>.+?)\s+should\s+be\s+(?P<replacement>.+)$`),
			name:     "context_when",
			priority: 8,
		},
	}
}

// quotedPatternNames are the extraction patterns whose replacement text is an
// exact quoted phrase; those replacements double as the rule's first example.
var quotedPatternNames = map[string]bool{
	"quoted_use":     true,
	"quoted_write":   true,
	"quoted_replace": true,
}

// listMarkerRE matches list-item markers at the start of a line.
var listMarkerRE = regexp.MustCompile(`^(?:\d+\.|[-•*]|\w+\))\s*`)

// whenPrefixRE captures a leading "When <condition>," clause so it can move
// into the rule's context instead of polluting the pattern text.
var whenPrefixRE = regexp.MustCompile(`(?i)^when\s+([^,]+),\s*`)

// Extract scans guide text and returns one rule per segment that matches an
// extraction pattern. Segments that match nothing are silently skipped;
// malformed text never fails.
func (e *Extractor) Extract(text string) []Rule {
	var out []Rule
	for _, seg := range splitSegments(text) {
		for _, p := range e.patterns {
			m := p.regex.FindStringSubmatch(seg)
			if m == nil {
				continue
			}
			r, ok := e.buildRule(p, m, seg)
			if !ok {
				// Matched but produced an unusable pattern; let a later
				// pattern have a try.
				continue
			}
			out = append(out, r)
			break
		}
	}
	return out
}

// buildRule assembles a Rule from a pattern match. Returns false when the
// captured pattern text is empty, which violates the rule invariant.
func (e *Extractor) buildRule(p *rulePattern, m []string, seg string) (Rule, bool) {
	pattern := strings.TrimSpace(group(p.regex, m, "pattern"))
	replacement := strings.TrimSpace(group(p.regex, m, "replacement"))

	var ctx map[string]string
	if c := strings.TrimSpace(group(p.regex, m, "context")); c != "" {
		ctx = map[string]string{"when": c}
	}
	// A modal match can swallow a leading "When <cond>," clause; peel it off
	// into the context so the pattern stays a plain phrase.
	if wm := whenPrefixRE.FindStringSubmatch(pattern); wm != nil {
		if ctx == nil {
			ctx = map[string]string{"when": strings.TrimSpace(wm[1])}
		}
		pattern = strings.TrimSpace(pattern[len(wm[0]):])
	}
	if pattern == "" {
		return Rule{}, false
	}

	var examples []string
	if quotedPatternNames[p.name] && replacement != "" {
		examples = append(examples, replacement)
	}
	examples = appendUnique(examples, ExtractExamples(seg)...)

	return Rule{
		ID:          uuid.NewString(),
		Category:    DetermineCategory(seg),
		Type:        DetermineType(seg, pattern, replacement),
		Description: seg,
		Pattern:     pattern,
		Replacement: replacement,
		Examples:    examples,
		Context:     ctx,
	}, true
}

// splitSegments partitions guide text into candidate rule segments: one per
// sentence per line, with list-item markers stripped so patterns see clean
// phrases. Guides state one rule per line or bullet, so lines are the outer
// boundary and sentences the inner one.
func splitSegments(text string) []string {
	var segments []string
	for _, line := range strings.Split(text, "\n") {
		line = listMarkerRE.ReplaceAllString(strings.TrimSpace(line), "")
		if line == "" {
			continue
		}
		for _, s := range segment.Sentences(line) {
			s = strings.TrimSpace(s)
			if s != "" {
				segments = append(segments, s)
			}
		}
	}
	return segments
}

// examplePatterns pull exemplar phrasings out of guide text: explicit
// "Example:"/"e.g."/"For example" tails, bullet lines, and numbered lines.
var examplePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)(?:example|e\.g\.|for example)[:\s]+([^.\n]+(?:[.\n][^.\n]+)*)`),
	regexp.MustCompile(`(?im)^•\s*([^.\n]+(?:[.\n][^.\n]+)*)`),
	regexp.MustCompile(`(?im)^\d+\.\s+([^.\n]+(?:[.\n][^.\n]+)*)`),
}

// ExtractExamples mines example phrasings from guide text. Best-effort: an
// empty result is normal.
func ExtractExamples(text string) []string {
	var examples []string
	for _, re := range examplePatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v := strings.TrimSpace(m[1])
			if v != "" {
				examples = appendUnique(examples, v)
			}
		}
	}
	return examples
}

// group returns the named capture from a match, or "" when the pattern has
// no such group.
func group(re *regexp.Regexp, m []string, name string) string {
	idx := re.SubexpIndex(name)
	if idx < 0 || idx >= len(m) {
		return ""
	}
	return m[idx]
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		dup := false
		for _, d := range dst {
			if d == v {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}
