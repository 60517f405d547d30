// Package buildinfo reports what the running binary was built from.
package buildinfo

import (
	"fmt"
	"runtime/debug"
	"strings"
)

const goGitModule = "github.com/go-git/go-git/v5"

func read() *debug.BuildInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	return info
}

// Version returns the module version or "dev" when unset.
func Version() string {
	return mainVersion(read())
}

func mainVersion(info *debug.BuildInfo) string {
	if info == nil || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "dev"
	}
	return info.Main.Version
}

// Dependency returns the version of module path linked into the binary, or "".
func Dependency(path string) string {
	return dependencyVersion(read(), path)
}

func dependencyVersion(info *debug.BuildInfo, path string) string {
	if info == nil {
		return ""
	}
	for _, dep := range info.Deps {
		if dep.Path != path {
			continue
		}
		if dep.Replace != nil {
			return dep.Replace.Version
		}
		return dep.Version
	}
	return ""
}

// Summary is the one line printed by the version command.
func Summary(gitVersion string) string {
	return summary(read(), gitVersion)
}

func summary(info *debug.BuildInfo, gitVersion string) string {
	parts := []string{"git-dump " + mainVersion(info)}
	if info != nil && info.GoVersion != "" {
		parts = append(parts, info.GoVersion)
	}
	if v := dependencyVersion(info, goGitModule); v != "" {
		parts = append(parts, "go-git "+v)
	}
	if gitVersion != "" {
		parts = append(parts, "git "+gitVersion)
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return fmt.Sprintf("%s (%s)", parts[0], strings.Join(parts[1:], ", "))
}
