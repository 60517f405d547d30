package buildinfo

import (
	"runtime/debug"
	"testing"
)

func TestSummary(t *testing.T) {
	t.Parallel()

	info := &debug.BuildInfo{
		GoVersion: "go1.25.1",
		Main:      debug.Module{Version: "v1.2.3"},
		Deps: []*debug.Module{
			{Path: "github.com/spf13/cobra", Version: "v1.10.2"},
			{Path: goGitModule, Version: "v5.16.4"},
		},
	}
	tests := []struct {
		name string
		info *debug.BuildInfo
		git  string
		want string
	}{
		{name: "full", info: info, git: "2.47.0", want: "git-dump v1.2.3 (go1.25.1, go-git v5.16.4, git 2.47.0)"},
		{name: "no_git", info: info, want: "git-dump v1.2.3 (go1.25.1, go-git v5.16.4)"},
		{name: "devel", info: &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, want: "git-dump dev"},
		{name: "no_info", git: "2.31.0", want: "git-dump dev (git 2.31.0)"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := summary(tt.info, tt.git); got != tt.want {
				t.Fatalf("summary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDependencyVersionPrefersReplacement(t *testing.T) {
	t.Parallel()

	info := &debug.BuildInfo{Deps: []*debug.Module{{
		Path:    goGitModule,
		Version: "v5.16.4",
		Replace: &debug.Module{Path: "../go-git", Version: "v5.99.0"},
	}}}
	if got := dependencyVersion(info, goGitModule); got != "v5.99.0" {
		t.Fatalf("dependencyVersion() = %q", got)
	}
	if got := dependencyVersion(info, "missing"); got != "" {
		t.Fatalf("dependencyVersion(missing) = %q", got)
	}
}
