package dump

import (
	"fmt"
	"sort"

	"github.com/toy/git-dump/dump/backend"
)

// Tree is a read-only directory of a committed version. Its listing is fetched from the
// store on first access and kept afterwards.
type Tree struct {
	store backend.Backend
	path  string
	hash  string

	loaded  bool
	names   []string
	entries map[string]Object
}

func newTree(store backend.Backend, path, hash string) *Tree {
	return &Tree{store: store, path: path, hash: hash}
}

func (t *Tree) Path() string { return t.path }
func (t *Tree) Name() string { return baseName(t.path) }
func (t *Tree) Hash() string { return t.hash }

func (t *Tree) load() error {
	if t.loaded {
		return nil
	}
	list, err := t.store.ListTree(t.hash)
	if err != nil {
		return fmt.Errorf("tree %q: %w", t.path, err)
	}
	entries := make(map[string]Object, len(list))
	names := make([]string, 0, len(list))
	for _, e := range list {
		p := joinPath(t.path, e.Name)
		switch e.Type {
		case backend.TreeObject:
			entries[e.Name] = newTree(t.store, p, e.Hash)
		default:
			entries[e.Name] = newEntry(t.store, p, e.Hash, e.Mode)
		}
		names = append(names, e.Name)
	}
	sort.Strings(names)
	t.entries, t.names, t.loaded = entries, names, true
	return nil
}

func (t *Tree) child(name string) (Object, error) {
	if err := t.load(); err != nil {
		return nil, err
	}
	return t.entries[name], nil
}

func (t *Tree) children() ([]Object, error) {
	if err := t.load(); err != nil {
		return nil, err
	}
	out := make([]Object, 0, len(t.names))
	for _, name := range t.names {
		out = append(out, t.entries[name])
	}
	return out, nil
}

// Get returns the *Entry or *Tree at path, or nil when nothing is there.
func (t *Tree) Get(path string) (Object, error) {
	return resolve(t, path)
}

// Each calls fn for every immediate child in name order.
func (t *Tree) Each(fn func(Object) error) error {
	return each(t, fn)
}

// EachRecursive calls fn for every entry below t, depth first.
func (t *Tree) EachRecursive(fn func(*Entry) error) error {
	return eachRecursive(t, fn)
}
