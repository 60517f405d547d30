// Package dump stores versioned directory snapshots in a git repository.
//
// A Repository hands out VersionBuilders to stage files and directories in memory. Committing
// a builder writes its trees, a commit and an annotated tag; the tag name is the version id.
// Versions read back lazily, one directory listing at a time.
//
// A Repository and everything obtained from it must not be used from several goroutines at
// once.
package dump

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/toy/git-dump/dump/backend"
)

// ErrNotFound is returned by backend reads of unknown objects.
var ErrNotFound = backend.ErrNotFound

type (
	TransferOptions = backend.TransferOptions
	GCOptions       = backend.GCOptions
)

// CreateMode says whether Open may create a missing repository.
type CreateMode int

const (
	CreateNone CreateMode = iota
	CreateBare
	CreateNonBare
)

// ParseCreateMode accepts none, bare and non-bare.
func ParseCreateMode(s string) (CreateMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "false":
		return CreateNone, nil
	case "bare", "true":
		return CreateBare, nil
	case "non-bare", "non_bare", "nonbare":
		return CreateNonBare, nil
	default:
		return CreateNone, fmt.Errorf("unknown create mode %q", s)
	}
}

func (m CreateMode) String() string {
	switch m {
	case CreateBare:
		return "bare"
	case CreateNonBare:
		return "non-bare"
	default:
		return "none"
	}
}

type Options struct {
	Create  CreateMode
	Backend backend.Kind
	// Host defaults to DefaultHost().
	Host *Host
}

// InitError reports a path that cannot be opened as a repository.
type InitError struct {
	Path string
	Err  error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("git dump at %s: %v", e.Path, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

type Repository struct {
	path  string
	store backend.Backend
	host  *Host
}

// Open attaches to the repository at path, creating it first when it is missing and
// opts.Create allows it.
func Open(path string, opts Options) (*Repository, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &InitError{Path: path, Err: err}
	}
	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if opts.Create == CreateNone {
			return nil, &InitError{Path: abs, Err: fmt.Errorf("%w (no create mode given)", fs.ErrNotExist)}
		}
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return nil, &InitError{Path: abs, Err: err}
		}
		if err := backend.Init(opts.Backend, abs, opts.Create == CreateBare); err != nil {
			return nil, &InitError{Path: abs, Err: err}
		}
	case err != nil:
		return nil, &InitError{Path: abs, Err: err}
	case !info.IsDir():
		return nil, &InitError{Path: abs, Err: errors.New("not a directory")}
	}
	store, err := backend.Open(opts.Backend, abs)
	if err != nil {
		return nil, &InitError{Path: abs, Err: err}
	}
	host := opts.Host
	if host == nil {
		host = DefaultHost()
	}
	return &Repository{path: abs, store: store, host: host}, nil
}

// Path is the absolute path the repository was opened at.
func (r *Repository) Path() string { return r.path }

// GitDir is the git directory holding the objects and tags.
func (r *Repository) GitDir() string { return r.store.GitDir() }

// Close stops the backend's helper processes.
func (r *Repository) Close() error {
	return r.store.Close()
}

// NewVersion starts an empty version.
func (r *Repository) NewVersion() *VersionBuilder {
	return &VersionBuilder{repo: r, root: newBuilder(r.store, nil, "")}
}

// Versions lists every version ordered by id.
func (r *Repository) Versions() ([]*Version, error) {
	tags, err := r.store.ListTags()
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	versions := make([]*Version, 0, len(tags))
	for _, tag := range tags {
		versions = append(versions, newVersion(r, tag))
	}
	return versions, nil
}

// Version returns the version named id, or nil when there is none.
func (r *Repository) Version(id string) (*Version, error) {
	versions, err := r.Versions()
	if err != nil {
		return nil, err
	}
	for _, v := range versions {
		if v.id == id {
			return v, nil
		}
	}
	return nil, nil
}

// Fetch copies the version id, and nothing else, from the repository at url.
func (r *Repository) Fetch(url, id string, opts TransferOptions) error {
	if err := r.store.Fetch(url, backend.TagRef(id), opts); err != nil {
		return fmt.Errorf("fetch %s: %w", id, err)
	}
	return nil
}

// RemoteVersionIDs lists the version ids at url without fetching anything.
func (r *Repository) RemoteVersionIDs(url string) ([]string, error) {
	return r.store.ListRemoteTagNames(url)
}

// RemoteVersionIDs lists the version ids at url using the given backend kind.
func RemoteVersionIDs(url string, kind backend.Kind) ([]string, error) {
	return backend.ListRemoteTagNames(kind, url)
}

// GC lets the backend drop objects no version refers to any more.
func (r *Repository) GC(opts GCOptions) error {
	return r.store.CollectGarbage(opts)
}

func (r *Repository) signature(opts CommitOptions) backend.Signature {
	switch {
	case opts.KeepIdentity:
		return backend.Signature{}
	case opts.Identity != nil:
		return backend.Signature{Name: opts.Identity.Name, Email: opts.Identity.Email}
	default:
		return backend.Signature{Name: defaultIdentityName, Email: defaultIdentityName + "@" + r.host.hostname()}
	}
}
