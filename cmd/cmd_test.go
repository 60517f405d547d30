package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/toy/git-dump/dump"
	"github.com/toy/git-dump/internal/config"
)

type cliEnv struct {
	repo   string
	config string
}

// newCLIEnv writes a config file pointing at a bare native repository created on first use.
func newCLIEnv(t *testing.T, extra string) cliEnv {
	t.Helper()
	dir := t.TempDir()
	env := cliEnv{repo: filepath.Join(dir, "dump"), config: filepath.Join(dir, "config.toml")}
	content := fmt.Sprintf("repository = %q\nbackend = \"native\"\ncreate = \"bare\"\n%s", env.repo, extra)
	if err := os.WriteFile(env.config, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func (e cliEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(append([]string{"--config", e.config}, args...))
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.Execute()
	if errOut.Len() > 0 {
		t.Logf("stderr:\n%s", errOut.String())
	}
	return out.String(), err
}

func (e cliEnv) mustRun(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	out, err := e.run(t, stdin, args...)
	if err != nil {
		t.Fatalf("git-dump %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestCommitListCat(t *testing.T) {
	env := newCLIEnv(t, "")
	src := writeTree(t, map[string]string{
		"a.txt":     "alpha\n",
		"sub/b.txt": "beta\n",
	})

	id := strings.TrimSpace(env.mustRun(t, "from stdin",
		"commit", "--tag", "nightly build", "--time", "2024-01-02T03:04:05Z", "-a", "first", src, "notes/in.txt=-"))
	if !strings.HasPrefix(id, "2024-01-02_03-04-05/") || !strings.Contains(id, "/nightly_build/") {
		t.Fatalf("commit printed id %q", id)
	}

	list := env.mustRun(t, "", "list")
	if strings.TrimSpace(list) != id {
		t.Fatalf("list = %q, want %q", list, id)
	}
	long := env.mustRun(t, "", "list", "--long")
	if !strings.Contains(long, "ANNOTATION") || !strings.Contains(long, "first") {
		t.Fatalf("list --long = %q", long)
	}

	for path, want := range map[string]string{
		"a.txt":        "alpha\n",
		"sub/b.txt":    "beta\n",
		"notes/in.txt": "from stdin",
	} {
		if got := env.mustRun(t, "", "cat", "--color", "never", id, path); got != want {
			t.Errorf("cat %s = %q, want %q", path, got, want)
		}
	}
}

func TestLsAndExtract(t *testing.T) {
	env := newCLIEnv(t, "")
	src := writeTree(t, map[string]string{"a": "1", "d/b": "2", "d/e/c": "3"})
	id := strings.TrimSpace(env.mustRun(t, "", "commit", src))

	top := env.mustRun(t, "", "ls", id)
	lines := strings.Split(strings.TrimSpace(top), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "100644 blob ") || !strings.HasSuffix(lines[0], "\ta") ||
		!strings.HasPrefix(lines[1], "040000 tree ") || !strings.HasSuffix(lines[1], "\td") {
		t.Fatalf("ls = %q", top)
	}
	deep := env.mustRun(t, "", "ls", "-R", id, "d")
	if !strings.HasSuffix(strings.TrimSpace(deep), "\td/e/c") || strings.Count(deep, "\n") != 2 {
		t.Fatalf("ls -R d = %q", deep)
	}

	dest := filepath.Join(t.TempDir(), "out")
	env.mustRun(t, "", "extract", id, dest, "d")
	for rel, want := range map[string]string{"b": "2", "e/c": "3"} {
		got, err := os.ReadFile(filepath.Join(dest, rel))
		if err != nil || string(got) != want {
			t.Errorf("extracted %s = %q, %v; want %q", rel, got, err, want)
		}
	}
}

func TestDiffBetweenVersions(t *testing.T) {
	env := newCLIEnv(t, "")
	v1 := strings.TrimSpace(env.mustRun(t, "one\ntwo\n", "commit", "f=-"))
	v2 := strings.TrimSpace(env.mustRun(t, "one\nthree\n", "commit", "f=-", "g="+writeFile(t, "new\n")))
	if v1 == v2 {
		t.Fatalf("two commits share id %q", v1)
	}
	out := env.mustRun(t, "", "diff", v1, v2)
	for _, want := range []string{
		"diff --git a/f b/f\n",
		"-two\n+three\n",
		"diff --git a/g b/g\nnew file mode 100644\n--- /dev/null\n+++ b/g\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("diff output missing %q:\n%s", want, out)
		}
	}
	if same := env.mustRun(t, "", "diff", v1, v1); same != "" {
		t.Errorf("diff of a version with itself = %q", same)
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestRmAndGc(t *testing.T) {
	env := newCLIEnv(t, "")
	id := strings.TrimSpace(env.mustRun(t, "x", "commit", "x=-"))
	if out := env.mustRun(t, "", "rm", "--gc", id); out != "removed "+id+"\n" {
		t.Fatalf("rm = %q", out)
	}
	if out := env.mustRun(t, "", "list"); out != "" {
		t.Fatalf("list after rm = %q", out)
	}
	_, err := env.run(t, "", "rm", id)
	if !errors.Is(err, dump.ErrNotFound) {
		t.Fatalf("rm of a removed version error = %v, want ErrNotFound", err)
	}
	env.mustRun(t, "", "gc", "--aggressive")
}

func TestCommandErrors(t *testing.T) {
	env := newCLIEnv(t, "")
	id := strings.TrimSpace(env.mustRun(t, "x", "commit", "dir/x=-"))
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "stdin without target", args: []string{"commit", "-"}, want: "needs a TARGET"},
		{name: "bad time", args: []string{"commit", "--time", "yesterday", "x=-"}, want: "--time"},
		{name: "missing path", args: []string{"cat", id, "nope"}, want: "no such path"},
		{name: "cat directory", args: []string{"cat", id, "dir"}, want: "is a directory"},
		{name: "bad color", args: []string{"cat", "--color", "sometimes", id, "dir/x"}, want: "--color"},
		{name: "unknown version", args: []string{"ls", "nope"}, want: "version nope"},
		{name: "bad backend flag", args: []string{"--backend", "svn", "list"}, want: "backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.run(t, "", tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	env := newCLIEnv(t, "")
	other := filepath.Join(t.TempDir(), "other")
	id := strings.TrimSpace(env.mustRun(t, "x", "--repo", other, "commit", "x=-"))
	if out := env.mustRun(t, "", "--repo", other, "list"); strings.TrimSpace(out) != id {
		t.Fatalf("list in --repo = %q, want %q", out, id)
	}
	if out := env.mustRun(t, "", "list"); out != "" {
		t.Fatalf("configured repository got versions: %q", out)
	}
}

func TestConfigCreateNone(t *testing.T) {
	env := newCLIEnv(t, "")
	_, err := env.run(t, "", "--create", "none", "list")
	var initErr *dump.InitError
	if !errors.As(err, &initErr) {
		t.Fatalf("list with create none error = %v, want InitError", err)
	}
}

func TestInitExistingEmptyDirectory(t *testing.T) {
	env := newCLIEnv(t, "")
	dir := t.TempDir()
	out := env.mustRun(t, "", "init", "--non-bare", dir)
	if !strings.Contains(out, filepath.Join(dir, ".git")) {
		t.Fatalf("init = %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, ".git", "HEAD")); err != nil {
		t.Fatalf("no work tree repository created: %v", err)
	}
}

func TestConfiguredIdentity(t *testing.T) {
	env := newCLIEnv(t, "[identity]\nname = \"Dumper\"\nemail = \"dumper@example.com\"\n")
	opts, err := commitFlags{}.options(&app{cfg: mustLoad(t, env.config)})
	if err != nil {
		t.Fatal(err)
	}
	if opts.Identity == nil || *opts.Identity != (dump.Identity{Name: "Dumper", Email: "dumper@example.com"}) {
		t.Fatalf("identity = %+v", opts.Identity)
	}
}

func mustLoad(t *testing.T, path string) config.Config {
	t.Helper()
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}

func TestJoinTarget(t *testing.T) {
	t.Parallel()
	tests := []struct{ prefix, target, want string }{
		{"", "a", "a"},
		{"p", "", "p"},
		{"/p/", "/a/b", "p/a/b"},
		{"", "", ""},
	}
	for _, tt := range tests {
		if got := joinTarget(tt.prefix, tt.target); got != tt.want {
			t.Errorf("joinTarget(%q, %q) = %q, want %q", tt.prefix, tt.target, got, tt.want)
		}
	}
}

func TestMissing(t *testing.T) {
	t.Parallel()
	got := missing([]string{"a", "b", "c"}, []string{"b"})
	if strings.Join(got, ",") != "a,c" {
		t.Fatalf("missing = %v", got)
	}
}
