// Package storage holds proof images. The server only ever records the URL
// a store hands back, so swapping the disk store for a bucket-backed one is
// a wiring change.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ObjectStore persists an uploaded object and returns its public URL.
type ObjectStore interface {
	Put(ctx context.Context, name string, contentType string, r io.Reader) (string, error)
}

// DiskStore writes uploads under a local directory and serves them at
// /uploads/<name>.
type DiskStore struct {
	dir string
}

// NewDiskStore ensures the upload directory exists.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the directory uploads are written to, for the file server.
func (d *DiskStore) Dir() string {
	return d.dir
}

// Put stores the object under a collision-free name derived from the upload
// name and returns its URL path.
func (d *DiskStore) Put(_ context.Context, name, contentType string, r io.Reader) (string, error) {
	filename := uniqueName(name, contentType)
	path := filepath.Join(d.dir, filename)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write upload: %w", err)
	}
	return "/uploads/" + filename, nil
}

// uniqueName builds a timestamped, uuid-suffixed filename, keeping a sane
// extension and discarding any path components in the client-supplied name.
func uniqueName(name, contentType string) string {
	ext := filepath.Ext(filepath.Base(name))
	if ext == "" {
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}
	ext = strings.ToLower(ext)
	return fmt.Sprintf("%s-%s%s", time.Now().Format("20060102-150405"), uuid.NewString()[:8], ext)
}
