package detect

import (
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Rules drive name normalization. Legal suffixes are dropped before
// comparison so "EXAMPLE LTD" and "EXAMPLE LIMITED" normalize identically;
// replacements fold common abbreviations to one spelling.
type Rules struct {
	LegalSuffixes []string          `yaml:"legal_suffixes"`
	Replacements  map[string]string `yaml:"replacements"`

	suffixSet map[string]bool
}

// DefaultRules parses the embedded normalization rules document.
func DefaultRules() Rules {
	r, err := ParseRules(defaultRulesYAML)
	if err != nil {
		// The embedded document is validated by tests; a parse failure here
		// is a build defect.
		panic(err)
	}
	return r
}

// ParseRules loads a rules document, allowing deployments to override the
// suffix table.
func ParseRules(doc []byte) (Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(doc, &r); err != nil {
		return Rules{}, eris.Wrap(err, "detect: parse rules")
	}
	r.suffixSet = make(map[string]bool, len(r.LegalSuffixes))
	for _, s := range r.LegalSuffixes {
		r.suffixSet[strings.ToUpper(s)] = true
	}
	return r, nil
}

func (r Rules) isLegalSuffix(token string) bool {
	return r.suffixSet[strings.ToUpper(token)]
}

func (r Rules) replace(token string) string {
	if v, ok := r.Replacements[strings.ToLower(token)]; ok {
		return v
	}
	return token
}
