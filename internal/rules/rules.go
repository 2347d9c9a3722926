// Package rules defines the style-rule data model and the pattern-priority
// extractor that derives structured correction rules from free-form
// style-guide text.
//
// Extraction is purely heuristic: an ordered list of sentence patterns
// ("X → Y", `Use "Y" instead of "X"`, "X should be Y", ...) is tried against
// each guide segment and the first match wins. No LLM or external service is
// involved.
package rules

import "strings"

// Category buckets a rule by the aspect of the text it governs.
type Category string

const (
	CategoryStructure     Category = "Structure"
	CategoryNumbers       Category = "Numbers"
	CategoryDomain        Category = "Domain"
	CategoryFormatting    Category = "Formatting"
	CategoryPunctuation   Category = "Punctuation"
	CategoryGrammar       Category = "Grammar"
	CategoryAbbreviations Category = "Abbreviations"
	CategoryReferences    Category = "References"
)

// Categories returns all categories in declaration order. Classification
// ties are broken by this order, so it is part of the contract.
func Categories() []Category {
	return []Category{
		CategoryStructure,
		CategoryNumbers,
		CategoryDomain,
		CategoryFormatting,
		CategoryPunctuation,
		CategoryGrammar,
		CategoryAbbreviations,
		CategoryReferences,
	}
}

// Type describes how a rule's pattern is meant to be applied.
type Type string

const (
	TypeDirect  Type = "DIRECT"  // literal text substitution
	TypePattern Type = "PATTERN" // pattern contains wildcard/regex metacharacters
	TypeContext Type = "CONTEXT" // applies only under a stated condition
	TypeMulti   Type = "MULTI"   // multi-word phrase rewrite
	TypeCase    Type = "CASE"    // capitalization change
)

// Rule is one structured style-guide requirement. Immutable once created.
type Rule struct {
	ID          string            `json:"id"`
	Category    Category          `json:"category"`
	Type        Type              `json:"type"`
	Description string            `json:"description"`
	Pattern     string            `json:"pattern"`
	Replacement string            `json:"replacement"`
	Examples    []string          `json:"examples,omitempty"`
	Context     map[string]string `json:"context,omitempty"`
}

// categoryKeywords drive category scoring. A segment token scores one point
// for a category when any of that category's keywords is a substring of the
// token. Order matches Categories().
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryStructure, []string{"section", "heading", "table", "format", "layout"}},
	{CategoryNumbers, []string{"number", "measurement", "range", "value", "unit"}},
	{CategoryDomain, []string{"medical", "drug", "company", "clinical", "disease"}},
	{CategoryFormatting, []string{"capital", "space", "hyphen", "indent", "font"}},
	{CategoryPunctuation, []string{"comma", "period", "colon", "semicolon"}},
	{CategoryGrammar, []string{"tense", "verb", "sentence", "plural", "singular"}},
	{CategoryAbbreviations, []string{"abbreviation", "acronym", "short form"}},
	{CategoryReferences, []string{"reference", "citation", "source", "bibliography"}},
}

// DetermineCategory scores each category by keyword hits across the segment's
// tokens and returns the highest scorer. Ties go to the first-declared
// category; a zero score everywhere defaults to Formatting.
func DetermineCategory(segment string) Category {
	tokens := strings.Fields(strings.ToLower(segment))
	best := CategoryFormatting
	bestScore := 0
	for _, ck := range categoryKeywords {
		score := 0
		for _, token := range tokens {
			for _, kw := range ck.keywords {
				if strings.Contains(token, kw) {
					score++
					break
				}
			}
		}
		if score > bestScore {
			best = ck.category
			bestScore = score
		}
	}
	return best
}

// caseKeywords and contextKeywords feed DetermineType. Checked as substrings
// of the whole lowercased segment.
var (
	caseKeywords    = []string{"case", "upper", "lower", "capitalize"}
	contextKeywords = []string{"when", "if", "unless", "except"}
)

// maxDirectWords is the phrase length above which a rule is classified MULTI.
const maxDirectWords = 3

// DetermineType classifies a rule from its source segment and captured
// pattern/replacement. Check order is significant: CASE and MULTI are decided
// before the more generic PATTERN, CONTEXT and DIRECT fallbacks.
func DetermineType(segment, pattern, replacement string) Type {
	lower := strings.ToLower(segment)
	for _, kw := range caseKeywords {
		if strings.Contains(lower, kw) {
			return TypeCase
		}
	}
	if len(strings.Fields(pattern)) > maxDirectWords || len(strings.Fields(replacement)) > maxDirectWords {
		return TypeMulti
	}
	if strings.ContainsAny(pattern, `*?+[](`) {
		return TypePattern
	}
	for _, kw := range contextKeywords {
		if strings.Contains(lower, kw) {
			return TypeContext
		}
	}
	return TypeDirect
}

// Categorize groups rules by category. Every category is present in the
// result, empty or not, so callers can render a stable listing.
func Categorize(rs []Rule) map[Category][]Rule {
	out := make(map[Category][]Rule, len(categoryKeywords))
	for _, c := range Categories() {
		out[c] = []Rule{}
	}
	for _, r := range rs {
		out[r.Category] = append(out[r.Category], r)
	}
	return out
}

// Filter keeps rules matching the (possibly empty) category and type filters,
// compared case-insensitively. Empty filters match everything.
func Filter(rs []Rule, category, ruleType string) []Rule {
	filtered := make([]Rule, 0, len(rs))
	for _, r := range rs {
		if category != "" && !strings.EqualFold(string(r.Category), category) {
			continue
		}
		if ruleType != "" && !strings.EqualFold(string(r.Type), ruleType) {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

// chunkTypeKeywords classify whole guide chunks (not individual rules) by
// content. Scoring is substring-based over content plus section title.
var chunkTypeKeywords = []struct {
	name     string
	keywords []string
}{
	{"formatting", []string{"format", "style", "font", "spacing", "margin", "indent", "layout"}},
	{"grammar", []string{"grammar", "tense", "verb", "noun", "sentence", "phrase"}},
	{"punctuation", []string{"punctuation", "comma", "period", "colon", "semicolon"}},
	{"terminology", []string{"term", "word", "vocabulary", "glossary", "definition"}},
	{"structure", []string{"structure", "organization", "section", "heading", "outline"}},
}

// ChunkRuleType labels a guide chunk with the kind of rule it describes,
// or "general" when nothing scores.
func ChunkRuleType(content, section string) string {
	lower := strings.ToLower(content + " " + section)
	best := "general"
	bestScore := 0
	for _, ct := range chunkTypeKeywords {
		score := 0
		for _, kw := range ct.keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			best = ct.name
			bestScore = score
		}
	}
	return best
}
