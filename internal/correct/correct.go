// Package correct rewrites clinical study report text to house style.
//
// Three passes run in a fixed order: a deterministic correction table
// (casing, units, abbreviations), a clinical-term precedence pass that
// resolves overlapping adverse-event phrases before tagging them, and a
// post-formatting pass that cleans spacing artifacts. Later passes assume
// the output shape of earlier ones, so the order is part of the contract.
//
// Retrieval-based suggestions from an indexed style guide are applied
// separately through ApplyMatches.
package correct

import (
	"fmt"
	"regexp"
	"strings"
)

// correction is one deterministic rewrite. Exactly one of repl and fn is
// set: repl is an expansion template ($1 style), fn computes the
// replacement from the full text and the match span.
type correction struct {
	re   *regexp.Regexp
	repl string
	fn   func(src string, m []int) string
}

// Engine applies the house style to text. Safe for concurrent use; each
// Apply call tracks its own first-mention state.
type Engine struct {
	table []correction
}

// NewEngine builds an engine with the standard correction table.
func NewEngine() *Engine {
	return &Engine{table: initCorrections()}
}

// Apply corrects text and returns the result with one human-readable
// record per applied substitution. Applying the result again is a no-op.
func (e *Engine) Apply(text string) (string, []string) {
	var changes []string
	out := text
	for _, c := range e.table {
		out = applyCorrection(out, c, &changes)
	}
	out = applyClinicalTerms(out, &changes)
	for _, c := range postFormat {
		out = applyCorrection(out, c, &changes)
	}
	return out, changes
}

// applyCorrection rewrites every match of c in text. Substitutions that
// produce the matched text unchanged are not recorded.
func applyCorrection(text string, c correction, changes *[]string) string {
	ms := c.re.FindAllStringSubmatchIndex(text, -1)
	if len(ms) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	for _, m := range ms {
		matched := text[m[0]:m[1]]
		var repl string
		if c.fn != nil {
			repl = c.fn(text, m)
		} else {
			repl = string(c.re.ExpandString(nil, c.repl, text, m))
		}
		b.WriteString(text[last:m[0]])
		b.WriteString(repl)
		last = m[1]
		if matched != repl {
			*changes = append(*changes, fmt.Sprintf("Changed '%s' to '%s'", matched, repl))
		}
	}
	b.WriteString(text[last:])
	return b.String()
}

// group returns the text of capture group i, or "" if it did not match.
func group(src string, m []int, i int) string {
	if 2*i+1 >= len(m) || m[2*i] < 0 {
		return ""
	}
	return src[m[2*i]:m[2*i+1]]
}

// capitalizeWord uppercases the first letter and lowercases the rest.
func capitalizeWord(w string) string {
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
}

// capitalizeLead capitalizes capture group 1 and keeps the rest of the
// match as written.
func capitalizeLead(src string, m []int) string {
	return capitalizeWord(group(src, m, 1)) + src[m[3]:m[1]]
}

// taggedAfter reports whether the text following pos already carries the
// abbreviation tag, e.g. "(AE)" after "adverse event".
func taggedAfter(src string, pos int, abbrev string) bool {
	rest := strings.TrimLeft(src[pos:], " ")
	return strings.HasPrefix(rest, "("+abbrev)
}

// appendAbbrev returns a substitution that adds " (ABBREV)" after the match
// unless the text is already tagged.
func appendAbbrev(abbrev string) func(string, []int) string {
	return func(src string, m []int) string {
		matched := src[m[0]:m[1]]
		if taggedAfter(src, m[1], abbrev) {
			return matched
		}
		return matched + " (" + abbrev + ")"
	}
}

// normalizeAbbrev returns a substitution that rewrites a Latin abbreviation
// to its canonical spacing. The trailing space is dropped when the match
// ends the text or runs into punctuation ("etc.)" must not become "etc. )"),
// so a corrected text never grows on a second pass.
func normalizeAbbrev(canonical string) func(string, []int) string {
	trimmed := strings.TrimRight(canonical, " ")
	return func(src string, m []int) string {
		if m[1] == len(src) || !isWordStart(src[m[1]]) {
			return trimmed
		}
		return canonical
	}
}

func isWordStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
