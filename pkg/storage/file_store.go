package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileStore serves and saves book files on local disk. It is the fallback
// retrieval path for content stored before object storage was introduced.
type FileStore struct {
	basePath string
}

// NewFileStore creates the base directory if missing.
func NewFileStore(basePath string) (*FileStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// Open returns a reader for a stored file. The key is reduced to its final
// path element so references cannot escape the base directory.
func (f *FileStore) Open(key string) (io.ReadCloser, error) {
	target := filepath.Join(f.basePath, safeFilename(key))
	file, err := os.Open(target)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return file, nil
}

// Save writes a file under the base directory.
func (f *FileStore) Save(key string, r io.Reader) error {
	target := filepath.Join(f.basePath, safeFilename(key))
	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func safeFilename(name string) string {
	name = filepath.Base(filepath.ToSlash(name))
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == string(os.PathSeparator) {
		return "book"
	}
	return name
}
