package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
)

var (
	ErrFileNotFound      = fmt.Errorf("filesystem: file not found")
	ErrDirectoryNotFound = fmt.Errorf("filesystem: directory not found")
	ErrInvalidPath       = fmt.Errorf("filesystem: invalid path")
)

// Filesystem is the file access surface the catalog and cache are built on.
// Paths use forward slashes regardless of platform.
type Filesystem interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, content []byte) error

	FileExists(path string) (bool, error)
	FileSize(path string) (int64, error)
	IsDirectory(path string) (bool, error)

	CreateDirectory(path string) error

	// ListFilesRecursive returns every regular file under path. A path that
	// names a regular file is returned as a single-element list.
	ListFilesRecursive(path string) ([]string, error)
}

type localFilesystem struct {
}

func NewLocalFilesystem() Filesystem {
	return &localFilesystem{}
}

func (filesystem *localFilesystem) ReadFile(path string) ([]byte, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}

	content, err := os.ReadFile(filepath.FromSlash(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("filesystem: read %s: %w", path, err)
	}

	return content, nil
}

func (filesystem *localFilesystem) WriteFile(path string, content []byte) error {
	if path == "" {
		return ErrInvalidPath
	}

	if err := os.WriteFile(filepath.FromSlash(path), content, 0o644); err != nil {
		return fmt.Errorf("filesystem: write %s: %w", path, err)
	}

	return nil
}

func (filesystem *localFilesystem) FileExists(path string) (bool, error) {
	if path == "" {
		return false, ErrInvalidPath
	}

	_, err := os.Stat(filepath.FromSlash(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("filesystem: stat %s: %w", path, err)
	}

	return true, nil
}

func (filesystem *localFilesystem) FileSize(path string) (int64, error) {
	if path == "" {
		return 0, ErrInvalidPath
	}

	info, err := os.Stat(filepath.FromSlash(path))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrFileNotFound
		}
		return 0, fmt.Errorf("filesystem: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return 0, ErrInvalidPath
	}

	return info.Size(), nil
}

func (filesystem *localFilesystem) IsDirectory(path string) (bool, error) {
	if path == "" {
		return false, ErrInvalidPath
	}

	info, err := os.Stat(filepath.FromSlash(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, ErrDirectoryNotFound
		}
		return false, fmt.Errorf("filesystem: stat %s: %w", path, err)
	}

	return info.IsDir(), nil
}

func (filesystem *localFilesystem) CreateDirectory(path string) error {
	if path == "" {
		return ErrInvalidPath
	}

	if err := os.MkdirAll(filepath.FromSlash(path), 0o755); err != nil {
		return fmt.Errorf("filesystem: mkdir %s: %w", path, err)
	}

	return nil
}

func (filesystem *localFilesystem) ListFilesRecursive(path string) ([]string, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}

	isDir, err := filesystem.IsDirectory(path)
	if err != nil {
		return nil, err
	}
	if !isDir {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(filepath.FromSlash(path))
	if err != nil {
		return nil, fmt.Errorf("filesystem: list %s: %w", path, err)
	}

	var paths []string
	for _, entry := range entries {
		sub, err := filesystem.ListFilesRecursive(path + "/" + entry.Name())
		if err != nil {
			return nil, err
		}
		paths = append(paths, sub...)
	}

	return paths, nil
}
