package batch

import (
	"fmt"
	"regexp"
	"strings"
)

var entityNumberPattern = regexp.MustCompile(`^[A-Z0-9]{8}$`)

// ValidationError reports a rejected input identifier. Validation runs over
// the full seed list before any job executes, so one bad identifier fails the
// whole request up front instead of mid-batch.
type ValidationError struct {
	Input  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid company number %q: %s", e.Input, e.Reason)
}

// NormalizeNumber canonicalizes a raw company number: trim, uppercase, and
// left-pad with zeros to eight characters. Registry numbers are stored
// zero-padded, so "123456" and "00123456" identify the same company.
func NormalizeNumber(raw string) (string, error) {
	n := strings.ToUpper(strings.TrimSpace(raw))
	if n == "" {
		return "", &ValidationError{Input: raw, Reason: "empty"}
	}
	if len(n) < 8 {
		n = strings.Repeat("0", 8-len(n)) + n
	}
	if !entityNumberPattern.MatchString(n) {
		return "", &ValidationError{Input: raw, Reason: "must be 8 alphanumeric characters after zero-padding"}
	}
	return n, nil
}

// normalizeSeeds validates and dedupes the seed list, preserving first-seen
// order. Any invalid entry rejects the entire list.
func normalizeSeeds(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, &ValidationError{Input: "", Reason: "no company numbers given"}
	}
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		n, err := NormalizeNumber(r)
		if err != nil {
			return nil, err
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out, nil
}
