// Package catalog builds the immutable mapping from public request paths to
// filesystem resources. Wildcard routes are expanded at startup; after Build
// returns, no key ends in a wildcard marker and entries never change.
package catalog

import (
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/qubane/webserv/config"
	"github.com/qubane/webserv/filesystem"
)

const wildcardSuffix = "/*"

// Entry is one resolved public path.
type Entry struct {
	Path         string
	File         string
	ContentType  string
	Compressible bool
	Size         int64
}

type Catalog struct {
	entries map[string]Entry
}

// Build resolves the configured routes against the filesystem. Routes whose
// target is missing are skipped with a warning; the catalog is still usable.
func Build(routes []config.Route, fs filesystem.Filesystem, logger *slog.Logger) *Catalog {
	entries := make(map[string]Entry)

	for _, route := range routes {
		target := strings.TrimSuffix(route.File, wildcardSuffix)

		exists, err := fs.FileExists(target)
		if err != nil || !exists {
			logger.Warn("skipping route with missing target",
				"path", route.Path, "file", route.File)
			continue
		}

		if !strings.HasSuffix(route.Path, wildcardSuffix) {
			addEntry(entries, route.Path, target, route.Compress, fs, logger)
			continue
		}

		files, err := fs.ListFilesRecursive(target)
		if err != nil {
			logger.Warn("skipping unlistable wildcard route",
				"path", route.Path, "file", route.File, "error", err)
			continue
		}

		prefix := strings.TrimSuffix(route.Path, "*")
		for _, file := range files {
			public := prefix + strings.TrimPrefix(file, target+"/")
			addEntry(entries, public, file, route.Compress, fs, logger)
		}
	}

	return &Catalog{entries: entries}
}

func addEntry(entries map[string]Entry, public, file string, compress bool, fs filesystem.Filesystem, logger *slog.Logger) {
	size, err := fs.FileSize(file)
	if err != nil {
		logger.Warn("skipping unreadable catalog target", "path", public, "file", file, "error", err)
		return
	}

	entries[public] = Entry{
		Path:         public,
		File:         file,
		ContentType:  ContentTypeFor(file),
		Compressible: compress,
		Size:         size,
	}
}

func (c *Catalog) Lookup(public string) (Entry, bool) {
	entry, found := c.entries[public]
	return entry, found
}

func (c *Catalog) Len() int {
	return len(c.entries)
}

// Paths returns all public paths in sorted order, for the startup listing.
func (c *Catalog) Paths() []string {
	paths := make([]string, 0, len(c.entries))
	for public := range c.entries {
		paths = append(paths, public)
	}
	sort.Strings(paths)
	return paths
}

// ContentTypeFor derives the content type from the file extension. Unknown
// extensions answer with the generic wildcard type.
func ContentTypeFor(file string) string {
	switch path.Ext(file) {
	case ".htm", ".html":
		return "text/html"
	case ".css":
		return "text/css"
	case ".txt":
		return "text/plain"
	case ".js":
		return "text/javascript"
	case ".json":
		return "application/json"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".ico":
		return "image/x-icon"
	case ".svg":
		return "image/svg+xml"
	default:
		return "*/*"
	}
}
