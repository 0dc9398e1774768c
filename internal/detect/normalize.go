package detect

import (
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// normalizeName canonicalizes a company name for comparison: unicode
// compatibility normalization, case folding, punctuation stripping,
// abbreviation replacement, and trailing legal-suffix removal.
func normalizeName(name string, rules Rules) string {
	folded := cases.Fold().String(norm.NFKC.String(name))

	var b strings.Builder
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '&':
			b.WriteString(" & ")
		default:
			b.WriteRune(' ')
		}
	}

	tokens := strings.Fields(b.String())
	for i, t := range tokens {
		tokens[i] = rules.replace(t)
	}
	tokens = trimLegalSuffix(tokens, rules)

	return strings.Join(tokens, " ")
}

// trimLegalSuffix drops trailing legal-form suffixes, longest phrase first,
// repeating until none remain ("EXAMPLE TRADING LTD" and "EXAMPLE TRADING
// PUBLIC LIMITED COMPANY" both reduce to "example trading").
func trimLegalSuffix(tokens []string, rules Rules) []string {
	for {
		trimmed := false
		for width := 3; width >= 1 && !trimmed; width-- {
			if len(tokens) <= width {
				continue
			}
			tail := strings.Join(tokens[len(tokens)-width:], " ")
			if rules.isLegalSuffix(tail) {
				tokens = tokens[:len(tokens)-width]
				trimmed = true
			}
		}
		if !trimmed {
			return tokens
		}
	}
}

// nameSimilarity scores two normalized names in [0,1]. The score is the
// better of token-set Jaccard overlap and character-level edit similarity,
// so both word reordering and small misspellings score high.
func nameSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	jaccard := tokenJaccard(a, b)
	edit := levenshtein.Similarity(a, b, nil)
	if jaccard > edit {
		return jaccard
	}
	return edit
}

func tokenJaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}
	union := len(setA)
	for t := range setB {
		if !setA[t] {
			union++
		}
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	fields := strings.Fields(s)
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}
