package dump

import (
	"errors"
	"path"
	"strings"
)

// ErrEmptyPath is returned when a path to write has no segments.
var ErrEmptyPath = errors.New("empty path")

// splitPath splits on "/" and drops empty segments, so "//a//b//" is ["a", "b"].
func splitPath(p string) []string {
	var segments []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

func baseName(p string) string {
	if p == "" {
		return ""
	}
	return path.Base(p)
}

// Object is a node reachable by path: *Entry, *Tree or *Builder.
type Object interface {
	// Path is the slash separated path from the root, "" for the root itself.
	Path() string
	Name() string
}

// directory is what path resolution and traversal need from Tree and Builder.
type directory interface {
	Object
	child(name string) (Object, error)
	children() ([]Object, error)
}

func resolve(root directory, p string) (Object, error) {
	segments := splitPath(p)
	if len(segments) == 0 {
		return nil, nil
	}
	var cur Object = root
	for _, name := range segments {
		dir, ok := cur.(directory)
		if !ok {
			return nil, nil
		}
		next, err := dir.child(name)
		if err != nil || next == nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

func each(dir directory, fn func(Object) error) error {
	children, err := dir.children()
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

func eachRecursive(dir directory, fn func(*Entry) error) error {
	return each(dir, func(o Object) error {
		switch o := o.(type) {
		case *Entry:
			return fn(o)
		case directory:
			return eachRecursive(o, fn)
		}
		return nil
	})
}
