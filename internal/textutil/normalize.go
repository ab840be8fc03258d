package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// featPattern strips "feat./ft./featuring <names>" suffixes from titles.
	featPattern = regexp.MustCompile(`(?i)\b(?:feat\.?|ft\.?|featuring)\b[^()\[\]]*`)
	// parentheticalPattern strips "(...)" and "[...]" version annotations.
	parentheticalPattern = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
	dashPattern          = regexp.MustCompile(`[-–—_]+`)
	punctPattern         = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	spacePattern         = regexp.MustCompile(`\s+`)
)

// accentFolder decomposes characters and drops combining marks so that
// "Café Tacvba" and "Cafe Tacvba" normalize identically.
var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize reduces text to a canonical lowercase form for comparison:
// accents folded, feat/ft credits and parenthetical annotations removed,
// dashes treated as spaces, punctuation dropped, whitespace collapsed.
func Normalize(text string) string {
	result := strings.ToLower(strings.TrimSpace(text))
	if result == "" {
		return ""
	}
	if folded, _, err := transform.String(accentFolder, result); err == nil {
		result = folded
	}
	result = featPattern.ReplaceAllString(result, " ")
	result = parentheticalPattern.ReplaceAllString(result, " ")
	result = dashPattern.ReplaceAllString(result, " ")
	result = punctPattern.ReplaceAllString(result, "")
	result = spacePattern.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}

// Tokenize splits normalized text into lowercase tokens, dropping single-rune
// noise tokens.
func Tokenize(text string) []string {
	fields := strings.Fields(Normalize(text))
	terms := make([]string, 0, len(fields))
	for _, token := range fields {
		if len([]rune(token)) < 2 {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}
