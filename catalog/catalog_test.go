package catalog

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/qubane/webserv/config"
	"github.com/qubane/webserv/filesystem"
	"github.com/qubane/webserv/test"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func siteDir(t *testing.T) (string, filesystem.Filesystem) {
	t.Helper()

	dir := filepath.ToSlash(t.TempDir())
	fs := filesystem.NewLocalFilesystem()

	test.AssertNoError(t, fs.CreateDirectory(dir+"/images/icons"))
	test.AssertNoError(t, fs.WriteFile(dir+"/index.html", []byte("<html>index</html>")))
	test.AssertNoError(t, fs.WriteFile(dir+"/robots.txt", []byte("User-agent: *")))
	test.AssertNoError(t, fs.WriteFile(dir+"/images/logo.png", []byte{0x89, 'P', 'N', 'G'}))
	test.AssertNoError(t, fs.WriteFile(dir+"/images/icons/dot.webp", []byte{1, 2, 3}))
	test.AssertNoError(t, fs.WriteFile(dir+"/images/notes", []byte("no extension")))

	return dir, fs
}

func TestBuildPlainRoutes(t *testing.T) {
	dir, fs := siteDir(t)

	cat := Build([]config.Route{
		{Path: "/", File: dir + "/index.html", Compress: true},
		{Path: "/robots.txt", File: dir + "/robots.txt", Compress: false},
	}, fs, discard())

	test.AssertEqual(t, 2, cat.Len())

	entry, found := cat.Lookup("/")
	test.AssertTrue(t, found, "root entry present")
	test.AssertEqual(t, "text/html", entry.ContentType)
	test.AssertEqual(t, true, entry.Compressible)
	test.AssertEqual(t, int64(len("<html>index</html>")), entry.Size)

	entry, found = cat.Lookup("/robots.txt")
	test.AssertTrue(t, found, "robots entry present")
	test.AssertEqual(t, "text/plain", entry.ContentType)
	test.AssertEqual(t, false, entry.Compressible)
}

func TestBuildWildcardExpansion(t *testing.T) {
	dir, fs := siteDir(t)

	cat := Build([]config.Route{
		{Path: "/images/*", File: dir + "/images/*", Compress: false},
	}, fs, discard())

	test.AssertEqual(t, 3, cat.Len())

	entry, found := cat.Lookup("/images/logo.png")
	test.AssertTrue(t, found, "expanded entry present")
	test.AssertEqual(t, "image/png", entry.ContentType)

	_, found = cat.Lookup("/images/icons/dot.webp")
	test.AssertTrue(t, found, "nested expanded entry present")

	entry, found = cat.Lookup("/images/notes")
	test.AssertTrue(t, found, "extensionless entry present")
	test.AssertEqual(t, "*/*", entry.ContentType)

	for _, public := range cat.Paths() {
		if strings.HasSuffix(public, "*") {
			t.Errorf("catalog key still carries a wildcard: %s", public)
		}
	}
}

func TestBuildSkipsMissingTargets(t *testing.T) {
	dir, fs := siteDir(t)

	cat := Build([]config.Route{
		{Path: "/", File: dir + "/index.html", Compress: true},
		{Path: "/gone", File: dir + "/missing.html", Compress: true},
		{Path: "/void/*", File: dir + "/void/*", Compress: false},
	}, fs, discard())

	// the server still starts with a partial catalog
	test.AssertEqual(t, 1, cat.Len())

	_, found := cat.Lookup("/gone")
	test.AssertEqual(t, false, found)
}

func TestContentTypeFor(t *testing.T) {
	test.AssertEqual(t, "text/html", ContentTypeFor("www/a.htm"))
	test.AssertEqual(t, "text/css", ContentTypeFor("www/css/styles.css"))
	test.AssertEqual(t, "text/javascript", ContentTypeFor("www/app.js"))
	test.AssertEqual(t, "image/jpeg", ContentTypeFor("www/photo.jpeg"))
	test.AssertEqual(t, "image/x-icon", ContentTypeFor("www/favicon.ico"))
	test.AssertEqual(t, "*/*", ContentTypeFor("www/archive.bin"))
}
