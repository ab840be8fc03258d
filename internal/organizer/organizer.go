// Package organizer computes destination paths for copied files according to
// the job's organization mode and resolves filename collisions
// deterministically.
package organizer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mediacopier/internal/queue"
	"mediacopier/internal/textutil"
)

// Fallback folder names used when an item carries no tag for the mode.
const (
	unknownArtist = "Unknown Artist"
	unknownGenre  = "Unknown Genre"
	defaultFolder = "Request"
)

// DestinationPath computes where a job item lands under destRoot. jobName
// names the per-request subfolder in folder_per_request mode. The result is
// a full file path; parent directories may not exist yet.
func DestinationPath(destRoot string, mode queue.OrganizationMode, item queue.JobItem, jobName string) string {
	filename := textutil.SanitizeFileName(filepath.Base(item.Source))

	switch mode {
	case queue.SingleFolder:
		return filepath.Join(destRoot, filename)
	case queue.ScatterByArtist:
		return filepath.Join(destRoot, folderName(item.Artist, unknownArtist), filename)
	case queue.ScatterByGenre:
		return filepath.Join(destRoot, folderName(item.Genre, unknownGenre), filename)
	case queue.FolderPerRequest:
		return filepath.Join(destRoot, folderName(jobName, defaultFolder), filename)
	case queue.KeepRelative:
		if item.RelPath != "" && !strings.HasPrefix(item.RelPath, "..") {
			return filepath.Join(destRoot, filepath.FromSlash(item.RelPath))
		}
		return filepath.Join(destRoot, filename)
	default:
		return filepath.Join(destRoot, filename)
	}
}

// EnsureUnique returns path if nothing exists there, otherwise the first
// "stem_N.ext" variant that is free. Renaming is deterministic: counters
// increment from 1.
func EnsureUnique(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	for counter := 1; ; counter++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, counter, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// folderName sanitizes a tag into a destination folder name, substituting
// fallback when nothing usable survives.
func folderName(tag, fallback string) string {
	out := textutil.SanitizeFolderName(tag)
	if out == "" {
		return fallback
	}
	return out
}
