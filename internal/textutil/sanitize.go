package textutil

import "strings"

// fileNameReplacer swaps filesystem-unsafe characters for safe ones. Path
// separators and colons become dashes so the visible name keeps its shape;
// shell metacharacters are dropped outright.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName makes name safe to use as a single path component,
// trimming surrounding whitespace.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

// SanitizeFolderName reduces a tag (artist, genre, request name) to a
// destination folder name. Letters, digits, spaces, dashes, and underscores
// survive; non-ASCII runes are kept so accented names stay readable.
// Returns "" when nothing survives.
func SanitizeFolderName(tag string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(tag) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune(r)
		case r > 127:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
