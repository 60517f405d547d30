package backend

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// Oldest git the CLI backend is tested against. mktag only validates its input with fsck
// from 2.31 on, and for-each-ref needs %(refname:strip=N).
var minGitVersion = gitVersion{major: 2, minor: 31}

type gitVersion struct {
	major, minor, patch int
}

func MinGitVersion() string {
	return minGitVersion.String()
}

func (v gitVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.major, v.minor, v.patch)
}

func (v gitVersion) less(other gitVersion) bool {
	if v.major != other.major {
		return v.major < other.major
	}
	if v.minor != other.minor {
		return v.minor < other.minor
	}
	return v.patch < other.patch
}

// parseGitVersionOutput accepts "git version 2.44.0", "git version 2.39.3 (Apple Git-146)"
// and "git version 2.39.3.windows.1".
func parseGitVersionOutput(out string) (gitVersion, bool) {
	s := strings.TrimSpace(out)
	if idx := strings.Index(s, "git version"); idx >= 0 {
		s = strings.TrimSpace(s[idx+len("git version"):])
	}
	start := strings.IndexAny(s, "0123456789")
	if start < 0 {
		return gitVersion{}, false
	}
	s = s[start:]
	end := 0
	for end < len(s) && (s[end] == '.' || (s[end] >= '0' && s[end] <= '9')) {
		end++
	}
	parts := strings.Split(strings.Trim(s[:end], "."), ".")
	if len(parts) < 2 {
		return gitVersion{}, false
	}
	var v gitVersion
	var err error
	if v.major, err = strconv.Atoi(parts[0]); err != nil {
		return gitVersion{}, false
	}
	if v.minor, err = strconv.Atoi(parts[1]); err != nil {
		return gitVersion{}, false
	}
	if len(parts) >= 3 {
		if p, err := strconv.Atoi(parts[2]); err == nil {
			v.patch = p
		}
	}
	return v, true
}

func validateGitVersionOutput(out string) error {
	got, ok := parseGitVersionOutput(out)
	if !ok {
		return fmt.Errorf("unable to parse git version output: %q", strings.TrimSpace(out))
	}
	if got.less(minGitVersion) {
		return fmt.Errorf("git %s is too old; the cli backend requires git >= %s", got, minGitVersion)
	}
	return nil
}

type gitVersionInfo struct {
	out string
	err error
}

var gitVersionInfoCached = sync.OnceValue(func() gitVersionInfo {
	outBytes, err := exec.Command("git", "--version").CombinedOutput()
	out := strings.TrimSpace(string(outBytes))
	if err != nil {
		if out != "" {
			return gitVersionInfo{out: out, err: fmt.Errorf("git --version: %v: %s", err, out)}
		}
		return gitVersionInfo{out: out, err: fmt.Errorf("git --version: %w", err)}
	}
	return gitVersionInfo{out: out}
})

// GitVersion reports the output of git --version.
func GitVersion() (string, error) {
	info := gitVersionInfoCached()
	return info.out, info.err
}

var ensureMinGitVersion = sync.OnceValue(func() error {
	info := gitVersionInfoCached()
	if info.err != nil {
		return info.err
	}
	return validateGitVersionOutput(info.out)
})

// CheckGit reports whether the git executable is usable by the cli backend.
func CheckGit() error {
	return ensureMinGitVersion()
}

// InstalledGitVersion returns the installed git version as "major.minor.patch", or "" when git
// is missing or its output cannot be parsed.
func InstalledGitVersion() string {
	info := gitVersionInfoCached()
	if info.err != nil {
		return ""
	}
	v, ok := parseGitVersionOutput(info.out)
	if !ok {
		return ""
	}
	return v.String()
}
