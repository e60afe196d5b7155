package search

import (
	"strings"
	"unicode"
)

// Strategy selects which stores a query fans out to
type Strategy string

const (
	StrategySemantic   Strategy = "semantic"   // Vector similarity only
	StrategyStructural Strategy = "structural" // Graph full-text only
	StrategyHybrid     Strategy = "hybrid"     // Both, fused
)

// relationVerbs are structural cues in a query
var relationVerbs = map[string]bool{
	"calls":      true,
	"implements": true,
	"imports":    true,
	"inherits":   true,
	"extends":    true,
	"contains":   true,
	"references": true,
	"depends":    true,
}

// naturalCues mark free-text intent
var naturalCues = map[string]bool{
	"how":   true,
	"what":  true,
	"where": true,
	"why":   true,
	"which": true,
	"find":  true,
	"show":  true,
	"code":  true,
	"logic": true,
}

// classify picks a strategy from surface features of the query. This is a
// heuristic, not a parser; ambiguous queries fall through to hybrid.
func classify(query string) Strategy {
	words := strings.Fields(query)

	structural := 0
	natural := 0
	for _, word := range words {
		lower := strings.ToLower(strings.Trim(word, ".,?!\"'"))
		switch {
		case relationVerbs[lower]:
			structural++
		case naturalCues[lower]:
			natural++
		case looksLikeIdentifier(word):
			structural++
		}
	}

	switch {
	case structural > 0 && natural == 0:
		return StrategyStructural
	case natural > 0 && structural == 0 && len(words) >= 3:
		return StrategySemantic
	default:
		return StrategyHybrid
	}
}

// looksLikeIdentifier detects CamelCase, snake_case, and dotted names
func looksLikeIdentifier(word string) bool {
	if strings.Contains(word, "_") || strings.Contains(word, ".") {
		for _, r := range word {
			if unicode.IsSpace(r) {
				return false
			}
		}
		return len(word) > 2
	}

	// Interior uppercase marks CamelCase
	for i, r := range word {
		if i > 0 && unicode.IsUpper(r) {
			return true
		}
	}
	return false
}
