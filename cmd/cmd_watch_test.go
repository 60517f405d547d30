package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/toy/git-dump/dump"
	"github.com/toy/git-dump/dump/backend"
)

func TestIgnoredWatchPath(t *testing.T) {
	t.Parallel()
	tests := map[string]bool{
		"/w/index.lock":  true,
		"/w/.a.txt.swp":  true,
		"/w/notes.txt~":  true,
		"/w/.#notes.txt": true,
		"/w/notes.txt":   false,
		"/w/lock/file":   false,
	}
	for path, want := range tests {
		if got := ignoredWatchPath(path); got != want {
			t.Errorf("ignoredWatchPath(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestInside(t *testing.T) {
	t.Parallel()
	tests := []struct {
		dir, path string
		want      bool
	}{
		{"/w", "/w", true},
		{"/w", "/w/repo", true},
		{"/w", "/other", false},
		{"/w", "/w2", false},
		{"/w", "/w/..repo", true},
	}
	for _, tt := range tests {
		if got := inside(tt.dir, tt.path); got != tt.want {
			t.Errorf("inside(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func TestSnapshotterSkipsUnchangedTree(t *testing.T) {
	t.Parallel()
	repo, err := dump.Open(filepath.Join(t.TempDir(), "dump"), dump.Options{Create: dump.CreateBare, Backend: backend.KindNative})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer repo.Close()
	dir := writeTree(t, map[string]string{"a": "1"})
	var out bytes.Buffer
	s := &snapshotter{repo: repo, dir: dir, opts: dump.CommitOptions{Tags: []string{"watch"}}, out: &out}

	steps := []struct {
		name   string
		change func()
		want   bool
	}{
		{name: "initial", change: func() {}, want: true},
		{name: "untouched", change: func() {}, want: false},
		{name: "edited", change: func() { mustWrite(t, filepath.Join(dir, "a"), "2") }, want: true},
		{name: "rewritten with same content", change: func() { mustWrite(t, filepath.Join(dir, "a"), "2") }, want: false},
		{name: "file added", change: func() { mustWrite(t, filepath.Join(dir, "b"), "") }, want: true},
	}
	for _, step := range steps {
		step.change()
		got, err := s.snapshot()
		if err != nil {
			t.Fatalf("%s: snapshot() error = %v", step.name, err)
		}
		if got != step.want {
			t.Fatalf("%s: snapshot() stored = %v, want %v", step.name, got, step.want)
		}
	}

	versions, err := repo.Versions()
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 3 {
		t.Fatalf("got %d versions, want 3", len(versions))
	}
	printed := strings.Fields(out.String())
	if len(printed) != 3 {
		t.Fatalf("printed ids %q", printed)
	}
	for _, id := range printed {
		if !strings.Contains(id, "/watch/") {
			t.Errorf("id %q lacks the watch tag", id)
		}
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
