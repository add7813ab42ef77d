package sanitizer

import (
	"math"
	"strings"
	"unicode"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

func dropRunes(pred func(rune) bool) Strategy {
	return func(s string) string {
		return strings.Map(func(r rune) rune {
			if pred(r) {
				return -1
			}
			return r
		}, s)
	}
}

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

// SanitizeIdentifier normalizes vehicle, requester and reservation ids.
// Case is preserved since ids are opaque.
func SanitizeIdentifier(id string) string {
	p := Pipeline{
		strings.TrimSpace,
		dropRunes(unicode.IsControl),
		dropRunes(unicode.IsSpace),
	}
	return p.Apply(id)
}

func SanitizeReference(ref string) string {
	p := Pipeline{
		dropRunes(unicode.IsControl),
		TrimAndNormalize,
	}
	return p.Apply(ref)
}

func NormalizeStringSlice(items []string, normalizer Strategy) []string {
	if len(items) == 0 {
		return []string{}
	}

	seen := make(map[string]bool)
	result := make([]string, 0, len(items))

	for _, item := range items {
		normalized := normalizer(item)

		if normalized == "" {
			continue
		}

		if seen[normalized] {
			continue
		}

		seen[normalized] = true
		result = append(result, normalized)
	}

	return result
}

func NormalizeIdentifiers(ids []string) []string {
	return NormalizeStringSlice(ids, SanitizeIdentifier)
}

// RoundAmount rounds to two decimal places. NaN and negative infinity become 0.
func RoundAmount(amount float64) float64 {
	if math.IsNaN(amount) || math.IsInf(amount, -1) {
		return 0
	}
	if math.IsInf(amount, 1) {
		return amount
	}
	return math.Round(amount*100) / 100
}
