package correct

import (
	"regexp"
	"strings"
)

var phaseNumbers = map[string]string{
	"1": "1", "2": "2", "3": "3", "4": "4",
	"i": "1", "ii": "2", "iii": "3", "iv": "4",
	"one": "1", "two": "2", "three": "3", "four": "4",
}

// initCorrections builds the deterministic correction table. Order is part
// of the contract: mL runs before L, the EOT/EOS appends run before the
// study-period casing rules, and the ethnicity rule runs before the gender
// rule so stacked demographics ("white female subjects") correct fully.
func initCorrections() []correction {
	return []correction{
		// Sponsor name. The legal entity ("... Inc") keeps its own casing.
		{re: regexp.MustCompile(`(?i)\bdaiichi\s+sankyo\b`), fn: func(src string, m []int) string {
			rest := strings.TrimLeft(src[m[1]:], " ")
			if len(rest) >= 3 && strings.EqualFold(rest[:3], "inc") {
				return src[m[0]:m[1]]
			}
			return "Daiichi Sankyo"
		}},

		// Study phases: roman numerals and number words become digits.
		{re: regexp.MustCompile(`(?i)\bphase\s+(iii|ii|iv|i|[1-4]|one|two|three|four)\b`), fn: func(src string, m []int) string {
			n := phaseNumbers[strings.ToLower(group(src, m, 1))]
			if n == "" {
				return src[m[0]:m[1]]
			}
			return "Phase " + n
		}},

		// Clinical terms tagged with their abbreviation on first mention.
		// The adverse-event family is handled by the precedence pass instead.
		{re: regexp.MustCompile(`(?i)\binvestigational\s+product\b`), fn: appendAbbrev("IP")},
		{re: regexp.MustCompile(`(?i)\bconcomitant\s+medication\b`), fn: appendAbbrev("CM")},
		{re: regexp.MustCompile(`(?i)\bquality\s+of\s+life\b`), fn: appendAbbrev("QoL")},

		// Document structure references.
		{re: regexp.MustCompile(`(?i)\bsynopsis\b`), repl: "Synopsis"},
		{re: regexp.MustCompile(`(?i)\bappendix\b`), repl: "Appendix"},
		{re: regexp.MustCompile(`(?i)\btable\s+(\d+)\b`), repl: "Table $1"},
		{re: regexp.MustCompile(`(?i)\bfigure\s+(\d+)\b`), repl: "Figure $1"},
		{re: regexp.MustCompile(`(?i)\bsection\s+(\d+(?:\.\d+)*)\b`), repl: "Section $1"},
		{re: regexp.MustCompile(`(?i)\bmaterials\s+and\s+methods\b`), repl: "Materials and Methods"},
		{re: regexp.MustCompile(`(?i)\bresults\s+and\s+discussion\b`), repl: "Results and Discussion"},

		// Units: a space between value and symbol. mL before L.
		{re: regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s*mg\b`), repl: "$1 mg"},
		{re: regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*ml\b`), repl: "$1 mL"},
		{re: regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*l\b`), repl: "$1 L"},
		{re: regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*kg\b`), repl: "$1 kg"},
		{re: regexp.MustCompile(`(?i)\bapproximately\s+(\d)`), repl: "~$1"},
		{re: regexp.MustCompile(`(?i)\bgreater\s+than\s+or\s+equal\s+to\s+(\d)`), repl: "≥$1"},
		{re: regexp.MustCompile(`(?i)\bless\s+than\s+or\s+equal\s+to\s+(\d)`), repl: "≤$1"},

		// Statistical terms.
		{re: regexp.MustCompile(`(?i)\bp[- ]values?\b`), fn: func(src string, m []int) string {
			if strings.HasSuffix(strings.ToLower(src[m[0]:m[1]]), "s") {
				return "P values"
			}
			return "P value"
		}},
		{re: regexp.MustCompile(`(?i)\bci\b`), repl: "CI"},
		{re: regexp.MustCompile(`(?i)\bsd\b`), repl: "SD"},
		{re: regexp.MustCompile(`(?i)\bse\b`), repl: "SE"},
		{re: regexp.MustCompile(`(?i)\bitt\b`), repl: "ITT"},
		{re: regexp.MustCompile(`(?i)\bpp\b`), repl: "PP"},
		{re: regexp.MustCompile(`(?i)\bodds\s+ratio\b`), fn: appendAbbrev("OR")},
		{re: regexp.MustCompile(`(?i)\bhazard\s+ratio\b`), fn: appendAbbrev("HR")},

		// Regulatory bodies and guidelines.
		{re: regexp.MustCompile(`(?i)\bfda\b`), repl: "FDA"},
		{re: regexp.MustCompile(`(?i)\bema\b`), repl: "EMA"},
		{re: regexp.MustCompile(`(?i)\birb\b`), repl: "IRB"},
		{re: regexp.MustCompile(`(?i)\biec\b`), repl: "IEC"},
		{re: regexp.MustCompile(`(?i)\bich\b`), repl: "ICH"},
		{re: regexp.MustCompile(`(?i)\bgcp\b`), repl: "GCP"},

		// Time points. EOT/EOS appends run before the period-casing rules:
		// once "(EOT)" sits inside the phrase, "treatment period" no longer
		// matches and stays lowercase as intended.
		{re: regexp.MustCompile(`(?i)\bbase-line\b`), repl: "baseline"},
		{re: regexp.MustCompile(`(?i)\bfollow\s+up\b`), repl: "follow-up"},
		{re: regexp.MustCompile(`(?i)\bend\s+of\s+treatment\b`), fn: appendAbbrev("EOT")},
		{re: regexp.MustCompile(`(?i)\bend\s+of\s+study\b`), fn: appendAbbrev("EOS")},
		{re: regexp.MustCompile(`(?i)\bscreening\s+period\b`), repl: "Screening Period"},
		{re: regexp.MustCompile(`(?i)\btreatment\s+period\b`), repl: "Treatment Period"},

		// Common medical acronyms.
		{re: regexp.MustCompile(`(?i)\becg\b`), repl: "ECG"},
		{re: regexp.MustCompile(`(?i)\bmri\b`), repl: "MRI"},
		{re: regexp.MustCompile(`(?i)\bct\s+scan\b`), repl: "CT scan"},
		{re: regexp.MustCompile(`(?i)\bdna\b`), repl: "DNA"},
		{re: regexp.MustCompile(`(?i)\brna\b`), repl: "RNA"},
		{re: regexp.MustCompile(`(?i)\bpcr\b`), repl: "PCR"},

		// Program-specific terminology.
		{re: regexp.MustCompile(`(?i)\bds-8201a?\b`), repl: "DS-8201a"},
		{re: regexp.MustCompile(`(?i)\bt-dxd\b`), repl: "T-DXd"},
		{re: regexp.MustCompile(`(?i)\bnsclc\b`), repl: "NSCLC"},
		{re: regexp.MustCompile(`(?i)\bher2\b`), repl: "HER2"},
		{re: regexp.MustCompile(`(?i)\bild\b`), repl: "ILD"},
		{re: regexp.MustCompile(`(?i)\bcsr\b`), repl: "CSR"},
		{re: regexp.MustCompile(`(?i)\bsap\b`), repl: "SAP"},
		{re: regexp.MustCompile(`(?i)\bicf\b`), repl: "ICF"},

		// Demographics. Ethnicity before gender: "white female subjects"
		// takes the ethnicity pass first, then the gender pass capitalizes
		// the inner word.
		{re: regexp.MustCompile(`(?i)\bbmi\b`), repl: "BMI"},
		{re: regexp.MustCompile(`(?i)\b(white|black|asian|other)\s+(?:subjects?|participants?|patients?|populations?|ethnicit(?:y|ies)|males?|females?)\b`), fn: capitalizeLead},
		{re: regexp.MustCompile(`(?i)\b(males?|females?)\s+(?:subjects?|participants?|patients?|populations?)\b`), fn: capitalizeLead},

		// Titles and roles.
		{re: regexp.MustCompile(`(?i)\bdr\.?\s`), repl: "Dr. "},
		{re: regexp.MustCompile(`(?i)\bprof\.?\s`), repl: "Prof. "},
		{re: regexp.MustCompile(`(?i)\bprincipal\s+investigator\b`), repl: "Principal Investigator"},
		{re: regexp.MustCompile(`(?i)\bclinical\s+trial\b`), repl: "Clinical Trial"},

		// Latin abbreviations: canonical comma-and-space forms.
		{re: regexp.MustCompile(`(?i)\be\.g\.,?\s*`), fn: normalizeAbbrev("e.g., ")},
		{re: regexp.MustCompile(`(?i)\bi\.e\.,?\s*`), fn: normalizeAbbrev("i.e., ")},
		{re: regexp.MustCompile(`(?i)\bvs\b\.?,?\s*`), fn: normalizeAbbrev("vs ")},
		{re: regexp.MustCompile(`(?i)\betc\b\.?,?\s*`), fn: normalizeAbbrev("etc. ")},
	}
}

// postFormat cleans spacing artifacts left by earlier passes.
var postFormat = []correction{
	{re: regexp.MustCompile(`(\d)\s{2,}(mg|mL|L|kg)\b`), repl: "$1 $2"},
	{re: regexp.MustCompile(`~\s+(\d)`), repl: "~$1"},
	{re: regexp.MustCompile(`([≥≤])\s+(\d)`), repl: "${1}${2}"},
}
