package textutil

import (
	"math"
	"strings"
)

// Fingerprint represents a term-frequency vector for text similarity comparison.
type Fingerprint struct {
	tokens map[string]float64
	norm   float64
}

// NewFingerprint creates a fingerprint from the provided text.
// Returns nil if the text produces no valid tokens.
func NewFingerprint(text string) *Fingerprint {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	var norm float64
	for _, count := range counts {
		norm += count * count
	}
	return &Fingerprint{
		tokens: counts,
		norm:   math.Sqrt(norm),
	}
}

// CosineSimilarity computes the cosine similarity between two fingerprints.
// Returns 0 if either fingerprint is nil or has zero norm.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.tokens {
		if other, ok := b.tokens[token]; ok {
			dot += count * other
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}

// DiceBigramSimilarity computes the Sørensen–Dice coefficient over character
// bigrams of the normalized inputs. Character-level comparison tolerates typos
// that token comparison misses ("marc antony" vs "marc anthony").
func DiceBigramSimilarity(a, b string) float64 {
	ba := bigrams(a)
	bb := bigrams(b)
	if len(ba) == 0 || len(bb) == 0 {
		return 0
	}
	var common int
	for gram, count := range ba {
		if other, ok := bb[gram]; ok {
			common += min(count, other)
		}
	}
	var totalA, totalB int
	for _, count := range ba {
		totalA += count
	}
	for _, count := range bb {
		totalB += count
	}
	return 2 * float64(common) / float64(totalA+totalB)
}

// Score rates the similarity of two labels on a 0-100 scale. Inputs are
// normalized first; identical normal forms score 100. The result is the best
// of token cosine similarity and character-bigram similarity so that both
// reordered tokens and misspellings are tolerated.
func Score(a, b string) float64 {
	na := Normalize(a)
	nb := Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 100
	}
	cosine := CosineSimilarity(NewFingerprint(na), NewFingerprint(nb))
	dice := DiceBigramSimilarity(na, nb)
	return 100 * math.Max(cosine, dice)
}

func bigrams(text string) map[string]int {
	letters := []rune(strings.ReplaceAll(text, " ", ""))
	if len(letters) < 2 {
		return nil
	}
	grams := make(map[string]int, len(letters)-1)
	for i := 0; i+1 < len(letters); i++ {
		grams[string(letters[i:i+2])]++
	}
	return grams
}
