// Package detect compares extracted document text against canonical registry
// fields and scores discrepancies. Detection is pure: no I/O, deterministic,
// and order-independent over the fragment sequence.
package detect

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/signal-watch/signalwatch/internal/model"
)

// Field labels what a fragment was extracted as.
type Field string

const (
	// FieldName marks a fragment holding a candidate company name.
	FieldName Field = "name"
	// FieldDate marks a fragment holding date text for the same semantic
	// field as the canonical date (incorporation).
	FieldDate Field = "date"
)

// Canonical is the registry's authoritative record for one entity.
type Canonical struct {
	EntityNumber   string
	Name           string
	IncorporatedOn time.Time
}

// Fragment is one extracted text value tied to its source document.
type Fragment struct {
	Text       string
	DocumentID string
	Field      Field
}

// Config tunes detection. The name threshold is global, not per document
// type; a single knob is easier to reason about and matches how the registry
// data actually varies.
type Config struct {
	// NameThreshold is the similarity score at or above which a differing
	// name is considered a cosmetic variant (low severity). Default: 0.85.
	NameThreshold float64
}

// DefaultConfig returns the default detection thresholds.
func DefaultConfig() Config {
	return Config{NameThreshold: 0.85}
}

// Detector scores mismatches between canonical fields and extracted text.
type Detector struct {
	cfg   Config
	rules Rules
}

// New creates a Detector with the given config and the embedded
// normalization rules.
func New(cfg Config) *Detector {
	if cfg.NameThreshold <= 0 || cfg.NameThreshold > 1 {
		cfg.NameThreshold = 0.85
	}
	return &Detector{cfg: cfg, rules: DefaultRules()}
}

// NewWithRules creates a Detector with custom normalization rules.
func NewWithRules(cfg Config, rules Rules) *Detector {
	d := New(cfg)
	d.rules = rules
	return d
}

// Detect compares every fragment against the canonical record and returns
// the mismatch set, sorted by (document, kind, found value) so permuting the
// input yields an identical result. Canonical data is never mutated.
func (d *Detector) Detect(canonical Canonical, fragments []Fragment) []model.Mismatch {
	var out []model.Mismatch
	seen := make(map[model.Mismatch]bool)

	for _, f := range fragments {
		var found []model.Mismatch
		switch f.Field {
		case FieldDate:
			found = d.detectDates(canonical, f)
		default:
			found = d.detectName(canonical, f)
		}
		for _, m := range found {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.DocumentID != b.DocumentID {
			return a.DocumentID < b.DocumentID
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Found < b.Found
	})
	return out
}

// detectName compares a candidate name fragment to the canonical name. An
// exact match after case folding produces nothing; any textual difference is
// recorded, with severity driven by the similarity of the fully normalized
// forms ("LTD" vs "LIMITED" scores 1.0 and lands as a low-severity variant).
func (d *Detector) detectName(c Canonical, f Fragment) []model.Mismatch {
	fragment := strings.TrimSpace(f.Text)
	if fragment == "" || c.Name == "" {
		return nil
	}
	if foldLite(fragment) == foldLite(c.Name) {
		return nil
	}

	normCanonical := normalizeName(c.Name, d.rules)
	normFragment, foundValue := d.bestCandidate(normCanonical, fragment)

	sim := nameSimilarity(normCanonical, normFragment)

	return []model.Mismatch{{
		Kind:         model.MismatchName,
		EntityNumber: c.EntityNumber,
		DocumentID:   f.DocumentID,
		Expected:     c.Name,
		Found:        foundValue,
		Similarity:   sim,
		Severity:     d.nameSeverity(sim),
	}}
}

// bestCandidate returns the normalized comparison text for a fragment. Short
// fragments are compared whole. Long fragments (document body text) are
// scanned for the token window that best matches the canonical name, so a
// certificate containing the name among boilerplate is scored on the name
// itself. Ties resolve to the earliest window.
func (d *Detector) bestCandidate(normCanonical, fragment string) (normalized, display string) {
	normFragment := normalizeName(fragment, d.rules)
	canonTokens := strings.Fields(normCanonical)
	fragTokens := strings.Fields(normFragment)

	if len(canonTokens) == 0 || len(fragTokens) <= 4*len(canonTokens) {
		return normFragment, fragment
	}

	bestScore := -1.0
	best := normFragment
	for width := len(canonTokens) - 1; width <= len(canonTokens)+2; width++ {
		if width < 1 {
			continue
		}
		for i := 0; i+width <= len(fragTokens); i++ {
			window := strings.Join(fragTokens[i:i+width], " ")
			if score := nameSimilarity(normCanonical, window); score > bestScore {
				bestScore = score
				best = window
			}
		}
	}
	return best, best
}

func (d *Detector) nameSeverity(sim float64) model.Severity {
	switch {
	case sim >= d.cfg.NameThreshold:
		return model.SeverityLow
	case sim >= 0.6:
		return model.SeverityMedium
	default:
		return model.SeverityHigh
	}
}

// detectDates flags every date parsed from the fragment that disagrees with
// the canonical date. Format variants of the same calendar day never mismatch;
// any drift does.
func (d *Detector) detectDates(c Canonical, f Fragment) []model.Mismatch {
	if c.IncorporatedOn.IsZero() {
		return nil
	}

	var out []model.Mismatch
	for _, found := range extractDates(f.Text) {
		if sameDate(found, c.IncorporatedOn) {
			continue
		}
		out = append(out, model.Mismatch{
			Kind:         model.MismatchDate,
			EntityNumber: c.EntityNumber,
			DocumentID:   f.DocumentID,
			Expected:     c.IncorporatedOn.Format("2006-01-02"),
			Found:        found.Format("2006-01-02"),
			Similarity:   0,
			Severity:     dateSeverity(c.IncorporatedOn, found),
		})
	}
	return out
}

func dateSeverity(expected, found time.Time) model.Severity {
	if expected.Year() != found.Year() {
		return model.SeverityHigh
	}
	return model.SeverityMedium
}

// foldLite collapses whitespace and case without touching suffixes or
// punctuation, for the exact-match fast path.
func foldLite(s string) string {
	return strings.Join(strings.Fields(cases.Fold().String(norm.NFKC.String(s))), " ")
}
