// Package media scans the local content library into an in-memory catalog.
// Artist, genre, and title come from embedded metadata when a file carries
// it, falling back to the directory layout beneath each content root:
// root/genre/artist/track for music, root/artist/file or flat files for
// videos and movies.
package media

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dhowden/tag"

	"mediacopier/internal/logging"
)

// File is one candidate in the catalog. Immutable once scanned.
type File struct {
	Path   string
	Name   string // base name without extension
	Ext    string // lowercase, with leading dot
	Size   int64
	Artist string
	Genre  string
	Title  string
}

// Catalog holds scanned files grouped by product type ("music", "videos",
// "movies"). Files within a group are sorted by path so scans are
// reproducible.
type Catalog struct {
	files map[string][]File
}

var ignoredNames = map[string]struct{}{
	".DS_Store":   {},
	"Thumbs.db":   {},
	"desktop.ini": {},
}

var ignoredExtensions = map[string]struct{}{
	".tmp":     {},
	".temp":    {},
	".bak":     {},
	".part":    {},
	".partial": {},
	".swp":     {},
}

// taggedExtensions are the container formats the metadata reader understands.
var taggedExtensions = map[string]struct{}{
	".mp3":  {},
	".flac": {},
	".m4a":  {},
	".mp4":  {},
	".ogg":  {},
}

// probeTags reads embedded metadata from a media file. Overridable in tests.
var probeTags = readEmbeddedTags

func readEmbeddedTags(path string) (artist, genre, title string, ok bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", "", false
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return "", "", "", false
	}
	return strings.TrimSpace(meta.Artist()),
		strings.TrimSpace(meta.Genre()),
		strings.TrimSpace(meta.Title()),
		true
}

// NewCatalog builds a catalog from pre-scanned files, keyed by product type.
// Used by tests and fixtures; production code goes through Scan.
func NewCatalog(files map[string][]File) *Catalog {
	if files == nil {
		files = make(map[string][]File)
	}
	return &Catalog{files: files}
}

// Scan walks every content root and builds the catalog. A missing root is
// logged and skipped; unreadable files are skipped.
func Scan(roots map[string]string, logger *slog.Logger) (*Catalog, error) {
	log := logging.NewComponentLogger(logger, "media-scan")
	catalog := &Catalog{files: make(map[string][]File)}

	for product, root := range roots {
		if root == "" {
			continue
		}
		files, err := scanRoot(root)
		if err != nil {
			if os.IsNotExist(err) {
				log.Warn("content root missing, skipping",
					logging.String("product", product),
					logging.String("root", root))
				continue
			}
			return nil, err
		}
		sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
		catalog.files[product] = files
		log.Info("scanned content root",
			logging.String("product", product),
			logging.String("root", root),
			logging.Int("files", len(files)))
	}
	return catalog, nil
}

// FilesFor returns the scanned files for a product type. The returned slice
// is shared; callers must not mutate it.
func (c *Catalog) FilesFor(product string) []File {
	return c.files[product]
}

// Size returns the total number of files across all product types.
func (c *Catalog) Size() int {
	total := 0
	for _, files := range c.files {
		total += len(files)
	}
	return total
}

func scanRoot(root string) ([]File, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, err
	}

	var files []File
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if ignored(name) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(name))
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		genre, artist := tagsFromLayout(rel)
		title := stem
		if _, tagged := taggedExtensions[ext]; tagged {
			if a, g, t, ok := probeTags(path); ok {
				if a != "" {
					artist = a
				}
				if g != "" {
					genre = g
				}
				if t != "" {
					title = t
				}
			}
		}
		files = append(files, File{
			Path:   path,
			Name:   stem,
			Ext:    ext,
			Size:   info.Size(),
			Artist: artist,
			Genre:  genre,
			Title:  title,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// tagsFromLayout derives genre and artist tags from a file's path relative to
// its content root. Two directory levels map to genre/artist, one level maps
// to artist only, a flat file carries no tags.
func tagsFromLayout(rel string) (genre, artist string) {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	switch {
	case len(parts) >= 3:
		return parts[0], parts[1]
	case len(parts) == 2:
		return "", parts[0]
	default:
		return "", ""
	}
}

func ignored(name string) bool {
	if _, ok := ignoredNames[name]; ok {
		return true
	}
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, ok := ignoredExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}
