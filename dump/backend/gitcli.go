package backend

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
)

type gitCLI struct {
	gitDir string

	pathWrite *gitPipe
	treeBuild *gitPipe
	blobRead  *gitPipe
	blobCheck *gitPipe
}

// OpenCLI attaches the git executable backend to the repository rooted at path. The path must
// be the repository itself (bare) or its work tree, not a directory nested inside one.
func OpenCLI(path string) (Backend, error) {
	if err := ensureMinGitVersion(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	res, err := runGit("", "git rev-parse", []string{"rev-parse", "--git-dir"}, runOptions{dir: abs})
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	gitDir := strings.TrimSpace(string(res.stdout))
	if gitDir == "" {
		return nil, fmt.Errorf("open repository: git rev-parse returned empty git dir")
	}
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(abs, gitDir)
	}
	gitDir = filepath.Clean(gitDir)
	if gitDir != abs && gitDir != filepath.Join(abs, ".git") {
		return nil, fmt.Errorf("open repository: %s is inside the repository at %s", abs, gitDir)
	}
	return newGitCLI(gitDir), nil
}

// InitCLI runs git init for a new repository at path.
func InitCLI(path string, bare bool) error {
	args := []string{"init", "-q"}
	if bare {
		args = append(args, "--bare")
	}
	args = append(args, path)
	_, err := runGit("", "git init", args, runOptions{})
	return err
}

func newGitCLI(gitDir string) *gitCLI {
	return &gitCLI{
		gitDir:    gitDir,
		pathWrite: newGitPipe(gitDir, "hash-object --stdin-paths", "hash-object", "-w", "--no-filters", "--stdin-paths"),
		treeBuild: newGitPipe(gitDir, "mktree --batch", "mktree", "--batch"),
		blobRead:  newGitPipe(gitDir, "cat-file --batch", "cat-file", "--batch"),
		blobCheck: newGitPipe(gitDir, "cat-file --batch-check", "cat-file", "--batch-check"),
	}
}

func (g *gitCLI) GitDir() string {
	if g == nil {
		return ""
	}
	return g.gitDir
}

func (g *gitCLI) Close() error {
	return errors.Join(
		g.pathWrite.close(),
		g.treeBuild.close(),
		g.blobRead.close(),
		g.blobCheck.close(),
	)
}

type runOptions struct {
	dir      string
	stdin    io.Reader
	env      []string
	progress io.Writer
	// okExit lists non-zero exit codes that carry an answer instead of a failure.
	okExit []int
}

type runResult struct {
	stdout   []byte
	exitCode int
}

func gitArgs(gitDir string, args []string) []string {
	if gitDir == "" {
		return args
	}
	return append([]string{"--git-dir=" + gitDir}, args...)
}

func (g *gitCLI) run(op string, args []string, opts runOptions) (runResult, error) {
	if g == nil || g.gitDir == "" {
		return runResult{}, fmt.Errorf("repository git dir not set")
	}
	return runGit(g.gitDir, op, args, opts)
}

// runGit runs one git command to completion and captures its output.
func runGit(gitDir, op string, args []string, opts runOptions) (runResult, error) {
	cmdArgs := gitArgs(gitDir, args)
	cmd := exec.Command("git", cmdArgs...)
	cmd.Dir = opts.dir
	if len(opts.env) > 0 {
		cmd.Env = append(os.Environ(), opts.env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdin = opts.stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if opts.progress != nil {
		cmd.Stderr = io.MultiWriter(opts.progress, &stderr)
	}
	slog.Debug("git run", slog.String("op", op), slog.Any("args", cmdArgs))
	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && slices.Contains(opts.okExit, exitErr.ExitCode()) {
			return runResult{stdout: stdout.Bytes(), exitCode: exitErr.ExitCode()}, nil
		}
		cmdErr := &CommandError{
			Op:       op,
			Args:     append([]string{"git"}, cmdArgs...),
			ExitCode: -1,
			Stderr:   strings.TrimSpace(stderr.String()),
		}
		if exitErr != nil {
			cmdErr.ExitCode = exitErr.ExitCode()
		} else {
			cmdErr.Err = err
		}
		return runResult{}, cmdErr
	}
	return runResult{stdout: stdout.Bytes()}, nil
}

func exitedWith(err error, code int, stderrHints ...string) bool {
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) || cmdErr.ExitCode != code {
		return false
	}
	if len(stderrHints) == 0 {
		return true
	}
	for _, hint := range stderrHints {
		if strings.Contains(cmdErr.Stderr, hint) {
			return true
		}
	}
	return false
}
