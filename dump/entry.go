package dump

import (
	"fmt"
	"io"
	"io/fs"
	"path/filepath"

	"github.com/google/renameio"

	"github.com/toy/git-dump/dump/backend"
)

// Entry is a stored blob at a path, either read from a version or staged in a builder.
type Entry struct {
	store backend.Backend
	path  string
	hash  string
	mode  backend.Mode
}

func newEntry(store backend.Backend, path, hash string, mode backend.Mode) *Entry {
	return &Entry{store: store, path: path, hash: hash, mode: backend.BlobMode(uint32(mode))}
}

func (e *Entry) Path() string { return e.path }
func (e *Entry) Name() string { return baseName(e.path) }
func (e *Entry) Hash() string { return e.hash }

// Mode is 0644 or 0755.
func (e *Entry) Mode() fs.FileMode {
	return e.mode.Perm()
}

// Read returns the whole content.
func (e *Entry) Read() ([]byte, error) {
	return e.store.ReadBlob(e.hash)
}

// WriteTo streams the content to w.
func (e *Entry) WriteTo(w io.Writer) (int64, error) {
	return e.store.ReadBlobTo(e.hash, w)
}

func (e *Entry) Size() (int64, error) {
	return e.store.BlobSize(e.hash)
}

// Extract writes the content to dst with the entry's mode. dst is replaced atomically, so a
// reader never sees a partial file.
func (e *Entry) Extract(dst string) error {
	pending, err := renameio.TempFile(filepath.Dir(dst), dst)
	if err != nil {
		return fmt.Errorf("extract %s: %w", e.path, err)
	}
	defer pending.Cleanup()
	if _, err := e.WriteTo(pending); err != nil {
		return fmt.Errorf("extract %s: %w", e.path, err)
	}
	if err := pending.Chmod(e.Mode()); err != nil {
		return fmt.Errorf("extract %s: %w", e.path, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("extract %s: %w", e.path, err)
	}
	return nil
}
