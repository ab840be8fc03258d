package matching

import (
	"fmt"
	"slices"
	"strings"

	"mediacopier/internal/config"
)

// CopyRules governs how requested items are matched against the catalog and
// how the runner treats per-file failures. Jobs hold a snapshot taken at
// creation time; later changes to the source rules never affect queued jobs.
type CopyRules struct {
	AllowedExtensions []string
	MinSizeMB         float64
	FilterBySize      bool
	FuzzyEnabled      bool
	FuzzyThreshold    float64
	SkipDuplicates    bool
	DryRun            bool
	FailFast          bool
}

// Clone returns a deep copy so the snapshot is isolated from the original.
func (r CopyRules) Clone() CopyRules {
	out := r
	out.AllowedExtensions = slices.Clone(r.AllowedExtensions)
	return out
}

// Validate checks rule values for internal consistency.
func (r CopyRules) Validate() error {
	if r.FuzzyThreshold < 0 || r.FuzzyThreshold > 100 {
		return fmt.Errorf("fuzzy threshold must be between 0 and 100, got %.1f", r.FuzzyThreshold)
	}
	if r.MinSizeMB < 0 {
		return fmt.Errorf("minimum size must not be negative, got %.1f", r.MinSizeMB)
	}
	for _, ext := range r.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("extension %q must start with a dot", ext)
		}
	}
	return nil
}

// AllowsExtension reports whether ext passes the allow-list. An empty list
// allows everything.
func (r CopyRules) AllowsExtension(ext string) bool {
	if len(r.AllowedExtensions) == 0 {
		return true
	}
	ext = strings.ToLower(ext)
	return slices.Contains(r.AllowedExtensions, ext)
}

// MinSizeBytes converts the megabyte threshold to bytes.
func (r CopyRules) MinSizeBytes() int64 {
	return int64(r.MinSizeMB * 1024 * 1024)
}

// RulesForProduct builds the default rules for a product type from
// configuration. Unknown product types get the music extension list.
func RulesForProduct(cfg *config.Config, productType string) CopyRules {
	var exts []string
	switch productType {
	case "videos":
		exts = cfg.Rules.VideoExtensions
	case "movies":
		exts = cfg.Rules.MovieExtensions
	default:
		exts = cfg.Rules.MusicExtensions
	}
	return CopyRules{
		AllowedExtensions: slices.Clone(exts),
		MinSizeMB:         cfg.Rules.MinSizeMB,
		FilterBySize:      cfg.Rules.FilterBySize,
		FuzzyEnabled:      cfg.Rules.FuzzyEnabled,
		FuzzyThreshold:    cfg.Rules.FuzzyThreshold,
		SkipDuplicates:    cfg.Rules.SkipDuplicates,
		DryRun:            cfg.Rules.DryRun,
		FailFast:          cfg.Rules.FailFast,
	}
}
