// Package matching implements the pure matching engine: given requested
// items, a catalog snapshot, and a set of copy rules, it produces the files
// to copy. Evaluation has no side effects and is deterministic for a given
// catalog order.
package matching

import (
	"sort"

	"mediacopier/internal/media"
	"mediacopier/internal/textutil"
)

// Match is one candidate that passed the rules for a requested item.
type Match struct {
	File  media.File
	Score float64 // 0-100
	Exact bool
}

// MatchItem evaluates one requested item against the catalog. Candidates are
// filtered by extension allow-list and the minimum-size gate, then kept on an
// exact normalized match or, when fuzzy matching is enabled, a similarity
// score at or above the threshold. Results are ordered by score descending
// with catalog order breaking ties.
func MatchItem(item RequestedItem, files []media.File, rules CopyRules) []Match {
	requested := textutil.Normalize(item.Text)
	if requested == "" {
		return nil
	}

	var matches []Match
	for _, f := range files {
		if !rules.AllowsExtension(f.Ext) {
			continue
		}
		if rules.FilterBySize && f.Size < rules.MinSizeBytes() {
			continue
		}
		candidate := textutil.Normalize(candidateLabel(item.Type, f))
		if candidate == "" {
			continue
		}
		if candidate == requested {
			matches = append(matches, Match{File: f, Score: 100, Exact: true})
			continue
		}
		if !rules.FuzzyEnabled {
			continue
		}
		score := textutil.Score(item.Text, candidateLabel(item.Type, f))
		if score >= rules.FuzzyThreshold {
			matches = append(matches, Match{File: f, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// MatchItems evaluates every requested item and returns the union of matched
// files in first-match order. When skip-duplicates is set, a file matched by
// several items appears once.
func MatchItems(items []RequestedItem, files []media.File, rules CopyRules) []media.File {
	seen := make(map[string]struct{})
	var union []media.File
	for _, item := range items {
		for _, m := range MatchItem(item, files, rules) {
			if rules.SkipDuplicates {
				if _, dup := seen[m.File.Path]; dup {
					continue
				}
				seen[m.File.Path] = struct{}{}
			}
			union = append(union, m.File)
		}
	}
	return union
}

// candidateLabel picks the catalog field the requested item is compared
// against.
func candidateLabel(t RequestedItemType, f media.File) string {
	switch t {
	case ItemArtist:
		if f.Artist != "" {
			return f.Artist
		}
		return f.Title
	case ItemGenre:
		return f.Genre
	default:
		return f.Title
	}
}
