package resolver

import (
	"regexp"
	"strconv"
	"strings"
)

// leadingQuantity matches "2 kg rice", "1,5 л молоко", "3 шт яйца": a leading
// number with optional decimal part, an optional unit token, then the name.
var leadingQuantity = regexp.MustCompile(`^\s*([0-9]+(?:[.,][0-9]+)?)\s*(?:(кг|гр|г|л|литр|литра|шт|штук|пачка|пачки|уп|kg|g|l|litr|dona|pachka)\.?)?\s+(.+)$`)

// fractionWords carries the ru/uz quantity words the voice pipeline produces.
var fractionWords = []struct {
	word string
	qty  float64
}{
	{"три четверти", 0.75},
	{"полтора", 1.5},
	{"половина", 0.5},
	{"пол", 0.5},
	{"четверть", 0.25},
	{"четвертин", 0.25},
	{"yarim", 0.5},
	{"ярим", 0.5},
	{"chorak", 0.25},
	{"чорак", 0.25},
}

// extractQuantity pulls an embedded quantity out of a raw item string and
// returns the quantity together with the remaining product name.
// "2 kg rice" -> (2, "rice"); "пол кг сахар" -> (0.5, "кг сахар" minus word);
// plain "rice" -> (1, "rice").
func extractQuantity(raw string) (float64, string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 1, ""
	}

	if m := leadingQuantity.FindStringSubmatch(trimmed); m != nil {
		qty, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err == nil && qty > 0 {
			return qty, strings.TrimSpace(m[3])
		}
	}

	lower := strings.ToLower(trimmed)
	for _, fw := range fractionWords {
		if strings.HasPrefix(lower, fw.word+" ") {
			rest := strings.TrimSpace(trimmed[len(fw.word):])
			rest = strings.TrimPrefix(rest, "кг ")
			rest = strings.TrimPrefix(rest, "kg ")
			if rest != "" {
				return fw.qty, rest
			}
		}
	}

	return 1, trimmed
}
