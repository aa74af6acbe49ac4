package categorize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stopWords are dropped from descriptions before classification. Mostly
// Polish prepositions and legal-form noise common in card descriptions.
var stopWords = map[string]struct{}{
	"i": {}, "w": {}, "z": {}, "na": {}, "do": {}, "od": {}, "za": {}, "o": {},
	"po": {}, "dla": {}, "sp": {}, "zoo": {}, "sa": {}, "pl": {}, "the": {}, "and": {},
}

// Preprocess normalizes a description into space-separated tokens: lower case,
// diacritics folded ("ł" becomes "l"), split on anything that is not a letter
// or digit, stop-words and single characters removed.
func Preprocess(text string) string {
	folded := foldDiacritics(strings.ToLower(text))

	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return strings.Join(tokens, " ")
}

func foldDiacritics(s string) string {
	// NFD does not decompose ł, so it is mapped explicitly.
	s = strings.ReplaceAll(s, "ł", "l")

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
