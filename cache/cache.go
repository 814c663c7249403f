// Package cache materializes encoded representations of cataloged resources
// so static content is compressed once, not per request.
package cache

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"log/slog"
	"sync"

	"github.com/andybalholm/brotli"

	"github.com/qubane/webserv/catalog"
	"github.com/qubane/webserv/filesystem"
)

const (
	EncodingIdentity = "identity"
	EncodingGzip     = "gzip"
	EncodingBrotli   = "br"
)

// Variant is one encoded form of a resource.
type Variant struct {
	Encoding string
	Data     []byte
}

// Container owns the variants of a single catalog entry. It is populated at
// most once and is read-shared by all workers afterwards.
type Container struct {
	entry catalog.Entry

	once     sync.Once
	err      error
	identity []byte
	gzipped  []byte
	brotlied []byte
}

func (c *Container) Entry() catalog.Entry {
	return c.entry
}

// Variant returns the requested encoded form. The identity variant always
// exists after a successful build; compressed variants exist only for
// compressible entries (brotli only when precomputed).
func (c *Container) Variant(encoding string) (Variant, bool) {
	switch encoding {
	case EncodingIdentity:
		return Variant{Encoding: EncodingIdentity, Data: c.identity}, true
	case EncodingGzip:
		if c.gzipped == nil {
			return Variant{}, false
		}
		return Variant{Encoding: EncodingGzip, Data: c.gzipped}, true
	case EncodingBrotli:
		if c.brotlied == nil {
			return Variant{}, false
		}
		return Variant{Encoding: EncodingBrotli, Data: c.brotlied}, true
	default:
		return Variant{}, false
	}
}

type Options struct {
	PrecompressDir   string
	PrecomputeBrotli bool
}

// Store resolves public paths to containers. The container map is built
// single-threaded before the listener starts and never mutated afterwards;
// only the per-container build is guarded.
type Store struct {
	fs      filesystem.Filesystem
	logger  *slog.Logger
	opts    Options
	content map[string]*Container
}

func NewStore(cat *catalog.Catalog, fs filesystem.Filesystem, logger *slog.Logger, opts Options) *Store {
	content := make(map[string]*Container, cat.Len())
	for _, public := range cat.Paths() {
		entry, _ := cat.Lookup(public)
		content[public] = &Container{entry: entry}
	}

	return &Store{
		fs:      fs,
		logger:  logger,
		opts:    opts,
		content: content,
	}
}

// Has reports whether the path is cataloged, without triggering a build.
func (s *Store) Has(public string) bool {
	_, found := s.content[public]
	return found
}

// Get returns the populated container for a path. A path whose file could not
// be read on first access stays absent for the process lifetime.
func (s *Store) Get(public string) (*Container, bool) {
	container, found := s.content[public]
	if !found {
		return nil, false
	}

	container.once.Do(func() {
		container.err = s.fill(container)
		if container.err != nil {
			s.logger.Error("resource degraded to absent",
				"path", public, "file", container.entry.File, "error", container.err)
		}
	})
	if container.err != nil {
		return nil, false
	}

	return container, true
}

func (s *Store) fill(container *Container) error {
	data, err := s.fs.ReadFile(container.entry.File)
	if err != nil {
		return fmt.Errorf("cache: read %s: %w", container.entry.File, err)
	}
	container.identity = data

	if !container.entry.Compressible {
		return nil
	}

	gzipped, err := s.gzipVariant(container.entry, data)
	if err != nil {
		return err
	}
	container.gzipped = gzipped

	if s.opts.PrecomputeBrotli {
		brotlied, err := BrotliData(data)
		if err != nil {
			return err
		}
		container.brotlied = brotlied
	}

	return nil
}

// gzipVariant produces the gzip form, going through the on-disk precompress
// store when one is configured. Cached files are keyed by the original path
// and are safe to delete; they are regenerated on the next start.
func (s *Store) gzipVariant(entry catalog.Entry, data []byte) ([]byte, error) {
	if s.opts.PrecompressDir == "" {
		return GzipData(data)
	}

	cached := s.opts.PrecompressDir + "/" + entry.File + ".gz"

	exists, err := s.fs.FileExists(cached)
	if err == nil && exists {
		gzipped, err := s.fs.ReadFile(cached)
		if err == nil {
			return gzipped, nil
		}
		s.logger.Warn("unreadable precompressed file, regenerating", "file", cached, "error", err)
	}

	gzipped, err := GzipData(data)
	if err != nil {
		return nil, err
	}

	if err := s.writeCached(cached, gzipped); err != nil {
		s.logger.Warn("could not persist precompressed file", "file", cached, "error", err)
	}

	return gzipped, nil
}

func (s *Store) writeCached(cached string, gzipped []byte) error {
	if i := lastSlash(cached); i > 0 {
		if err := s.fs.CreateDirectory(cached[:i]); err != nil {
			return err
		}
	}
	return s.fs.WriteFile(cached, gzipped)
}

func lastSlash(path string) int {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return i
		}
	}
	return -1
}

func GzipData(data []byte) ([]byte, error) {
	var buffer bytes.Buffer

	writer, err := gzip.NewWriterLevel(&buffer, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("cache: gzip new writer: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("cache: gzip write: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("cache: gzip close: %w", err)
	}

	return buffer.Bytes(), nil
}

func BrotliData(data []byte) ([]byte, error) {
	var buffer bytes.Buffer

	writer := brotli.NewWriterLevel(&buffer, brotli.BestCompression)
	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("cache: brotli write: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("cache: brotli close: %w", err)
	}

	return buffer.Bytes(), nil
}
