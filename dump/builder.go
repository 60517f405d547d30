package dump

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/toy/git-dump/dump/backend"
)

// Builder is a mutable directory staged in memory. Content is stored as blobs when it is
// put; trees are only written by Hash.
type Builder struct {
	store  backend.Backend
	parent *Builder
	path   string
	nodes  map[string]stagedNode
	// hash memoizes the last built tree; "" once anything below changes.
	hash string
}

// stagedNode holds exactly one of entry and tree.
type stagedNode struct {
	entry *Entry
	tree  *Builder
}

func (n stagedNode) object() Object {
	if n.tree != nil {
		return n.tree
	}
	return n.entry
}

func newBuilder(store backend.Backend, parent *Builder, path string) *Builder {
	return &Builder{store: store, parent: parent, path: path, nodes: make(map[string]stagedNode)}
}

func (b *Builder) Path() string { return b.path }
func (b *Builder) Name() string { return baseName(b.path) }

func (b *Builder) child(name string) (Object, error) {
	n, ok := b.nodes[name]
	if !ok {
		return nil, nil
	}
	return n.object(), nil
}

func (b *Builder) children() ([]Object, error) {
	names := b.sortedNames()
	out := make([]Object, 0, len(names))
	for _, name := range names {
		out = append(out, b.nodes[name].object())
	}
	return out, nil
}

func (b *Builder) sortedNames() []string {
	names := make([]string, 0, len(b.nodes))
	for name := range b.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the *Entry or *Builder at path, or nil when nothing is staged there.
func (b *Builder) Get(path string) (Object, error) {
	return resolve(b, path)
}

func (b *Builder) Each(fn func(Object) error) error {
	return each(b, fn)
}

func (b *Builder) EachRecursive(fn func(*Entry) error) error {
	return eachRecursive(b, fn)
}

func (b *Builder) invalidate() {
	for n := b; n != nil; n = n.parent {
		n.hash = ""
	}
}

// subtree returns the builder for the directory segments, creating missing levels. An entry
// in the way is replaced by a new directory.
func (b *Builder) subtree(segments []string) *Builder {
	cur := b
	for _, name := range segments {
		n, ok := cur.nodes[name]
		if !ok || n.tree == nil {
			n = stagedNode{tree: newBuilder(cur.store, cur, joinPath(cur.path, name))}
			cur.nodes[name] = n
			cur.invalidate()
		}
		cur = n.tree
	}
	return cur
}

// existingSubtree is subtree without creating anything; nil when a level is missing.
func (b *Builder) existingSubtree(segments []string) *Builder {
	cur := b
	for _, name := range segments {
		n, ok := cur.nodes[name]
		if !ok || n.tree == nil {
			return nil
		}
		cur = n.tree
	}
	return cur
}

// writablePath splits p and checks every segment can be stored as a tree entry name.
func writablePath(op, p string) ([]string, error) {
	segments := splitPath(p)
	if len(segments) == 0 {
		return nil, fmt.Errorf("%s %q: %w", op, p, ErrEmptyPath)
	}
	for _, s := range segments {
		if err := backend.ValidateName(s); err != nil {
			return nil, fmt.Errorf("%s %q: %w", op, p, err)
		}
	}
	return segments, nil
}

func (b *Builder) setEntry(segments []string, hash string, mode fs.FileMode) {
	name := segments[len(segments)-1]
	dir := b.subtree(segments[:len(segments)-1])
	dir.nodes[name] = stagedNode{entry: newEntry(b.store, joinPath(dir.path, name), hash, backend.Mode(mode.Perm()))}
	dir.invalidate()
}

// Put stores the content of r at path with mode (only the executable bits matter). Whatever
// was at path, including a whole directory, is replaced.
//
// A nil r deletes path. Like any put it first makes every parent a directory, so a missing
// parent is created and a file in the way becomes an empty directory. Remove leaves parents
// untouched.
func (b *Builder) Put(path string, r io.Reader, mode fs.FileMode) error {
	segments, err := writablePath("put", path)
	if err != nil {
		return err
	}
	if r == nil {
		dir := b.subtree(segments[:len(segments)-1])
		name := segments[len(segments)-1]
		if _, ok := dir.nodes[name]; ok {
			delete(dir.nodes, name)
			dir.invalidate()
		}
		return nil
	}
	hash, err := b.store.StoreBlob(r)
	if err != nil {
		return fmt.Errorf("put %q: %w", path, err)
	}
	b.setEntry(segments, hash, mode)
	return nil
}

// PutBytes stores data at path as a regular file.
func (b *Builder) PutBytes(path string, data []byte) error {
	return b.Put(path, bytes.NewReader(data), 0o644)
}

// PutFile stores the file at src, keeping its executable bit.
func (b *Builder) PutFile(path, src string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("put %q: %w", path, err)
	}
	return b.PutFileMode(path, src, info.Mode())
}

// PutFileMode stores the file at src with an explicit mode.
func (b *Builder) PutFileMode(path, src string, mode fs.FileMode) error {
	segments, err := writablePath("put", path)
	if err != nil {
		return err
	}
	hash, err := b.store.StorePathBlob(src)
	if err != nil {
		return fmt.Errorf("put %q: %w", path, err)
	}
	b.setEntry(segments, hash, mode)
	return nil
}

// PutDir stages every regular file below dir under path. Symlinks and special files are
// skipped.
func (b *Builder) PutDir(path, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			slog.Debug("skipping non-regular file", slog.String("path", p), slog.String("type", d.Type().String()))
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return b.PutFileMode(joinPath(path, filepath.ToSlash(rel)), p, info.Mode())
	})
}

// Remove deletes whatever is staged at path. Removing a missing path is not an error and
// creates nothing.
func (b *Builder) Remove(path string) error {
	segments, err := writablePath("remove", path)
	if err != nil {
		return err
	}
	dir := b.existingSubtree(segments[:len(segments)-1])
	if dir == nil {
		return nil
	}
	name := segments[len(segments)-1]
	if _, ok := dir.nodes[name]; ok {
		delete(dir.nodes, name)
		dir.invalidate()
	}
	return nil
}

// Hash writes the staged directory, and every directory below it, as tree objects and
// returns the root tree hash. The result is reused until the builder changes.
func (b *Builder) Hash() (string, error) {
	if b.hash != "" {
		return b.hash, nil
	}
	entries := make([]backend.TreeEntry, 0, len(b.nodes))
	for _, name := range b.sortedNames() {
		n := b.nodes[name]
		if n.tree != nil {
			hash, err := n.tree.Hash()
			if err != nil {
				return "", err
			}
			entries = append(entries, backend.TreeEntry{Name: name, Hash: hash, Type: backend.TreeObject, Mode: backend.ModeTree})
			continue
		}
		entries = append(entries, backend.TreeEntry{Name: name, Hash: n.entry.hash, Type: backend.BlobObject, Mode: n.entry.mode})
	}
	hash, err := b.store.BuildTree(entries)
	if err != nil {
		return "", fmt.Errorf("build tree %q: %w", b.path, err)
	}
	b.hash = hash
	return hash, nil
}
