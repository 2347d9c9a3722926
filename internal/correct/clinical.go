package correct

import (
	"regexp"
	"strings"
)

// clinicalTermRE matches the overlapping adverse-event family in one
// alternation, most specific branch first. A single scan guarantees
// "serious adverse event" is consumed whole and never partially rewritten
// by the bare "adverse event" branch.
var clinicalTermRE = regexp.MustCompile(`(?i)\b(?:treatment[-\s]emergent\s+adverse\s+events?|serious\s+adverse\s+events?|adverse\s+drug\s+reactions?|adverse\s+events?)\b`)

// teHyphenRE normalizes the separator in "treatment emergent" while keeping
// the original word casing.
var teHyphenRE = regexp.MustCompile(`(?i)(treatment)[\s-]+(emergent)`)

// applyClinicalTerms tags adverse-event terminology with its abbreviation
// on first mention. Each abbreviation is appended once per text; mentions
// that already carry a tag count as seen.
func applyClinicalTerms(text string, changes *[]string) string {
	seen := make(map[string]bool)
	c := correction{re: clinicalTermRE, fn: func(src string, m []int) string {
		return tagClinicalTerm(src, m, seen)
	}}
	return applyCorrection(text, c, changes)
}

func tagClinicalTerm(src string, m []int, seen map[string]bool) string {
	matched := src[m[0]:m[1]]
	lower := strings.ToLower(matched)

	var abbrev, canonical string
	switch {
	case strings.Contains(lower, "emergent"):
		abbrev = "TEAE"
		canonical = teHyphenRE.ReplaceAllString(matched, "${1}-${2}")
	case strings.HasPrefix(lower, "serious"):
		abbrev = "SAE"
		canonical = matched
	case strings.Contains(lower, "drug"):
		abbrev = "ADR"
		canonical = matched
	default:
		abbrev = "AE"
		canonical = matched
	}

	if taggedAfter(src, m[1], abbrev) {
		seen[abbrev] = true
		return canonical
	}
	if seen[abbrev] {
		return canonical
	}
	seen[abbrev] = true

	tag := abbrev
	if strings.HasSuffix(lower, "s") {
		tag += "s"
	}
	return canonical + " (" + tag + ")"
}
