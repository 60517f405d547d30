package backend

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

// gitPipe is a long-lived git process spoken to with a strict request/response protocol.
// The process is started on first use and kept until Close. Once a request fails in a way
// that may have desynchronized the stream, the pipe stays broken.
type gitPipe struct {
	name string
	args []string

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	w      *bufio.Writer
	r      *bufio.Reader
	stderr bytes.Buffer
	err    error
}

func newGitPipe(gitDir, name string, args ...string) *gitPipe {
	return &gitPipe{name: name, args: gitArgs(gitDir, args)}
}

// intactError is a request failure that left the stream in sync.
type intactError struct {
	err error
}

func (e *intactError) Error() string { return e.err.Error() }
func (e *intactError) Unwrap() error { return e.err }

func intact(err error) error {
	return &intactError{err: err}
}

func (p *gitPipe) start() error {
	cmd := exec.Command("git", p.args...)
	cmd.Stderr = &p.stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%s stdin: %w", p.name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return fmt.Errorf("%s stdout: %w", p.name, err)
	}
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("%s start: %w", p.name, err)
	}
	p.cmd = cmd
	p.stdin = stdin
	p.w = bufio.NewWriter(stdin)
	p.r = bufio.NewReader(stdout)
	slog.Debug("git pipe started", slog.String("pipe", p.name), slog.Int("pid", cmd.Process.Pid))
	return nil
}

// roundTrip runs one exchange on the pipe. fn must flush its request before reading.
func (p *gitPipe) roundTrip(fn func(w *bufio.Writer, r *bufio.Reader) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if p.cmd == nil {
		if err := p.start(); err != nil {
			p.err = p.brokenError(err)
			return p.err
		}
	}
	err := fn(p.w, p.r)
	if err == nil {
		return nil
	}
	var ok *intactError
	if errors.As(err, &ok) {
		return ok.err
	}
	p.err = p.fail(err)
	return p.err
}

// fail tears the process down and builds the sticky error every later request returns.
func (p *gitPipe) fail(cause error) error {
	_ = p.stdin.Close()
	_ = p.cmd.Process.Kill()
	_ = p.cmd.Wait()
	slog.Debug("git pipe broken", slog.String("pipe", p.name), slog.Any("error", cause))
	err := p.brokenError(cause)
	p.cmd = nil
	return err
}

func (p *gitPipe) brokenError(cause error) error {
	exitCode := -1
	if p.cmd != nil && p.cmd.ProcessState != nil {
		exitCode = p.cmd.ProcessState.ExitCode()
	}
	return &CommandError{
		Op:       p.name,
		Args:     append([]string{"git"}, p.args...),
		ExitCode: exitCode,
		Stderr:   strings.TrimSpace(p.stderr.String()),
		Err:      fmt.Errorf("%w: %w", ErrPipeBroken, cause),
	}
}

func (p *gitPipe) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = &CommandError{Op: p.name, Err: fmt.Errorf("%w: closed", ErrPipeBroken)}
	}
	if p.cmd == nil {
		return nil
	}
	cmd := p.cmd
	p.cmd = nil
	if err := p.stdin.Close(); err != nil {
		slog.Debug("git pipe stdin close", slog.String("pipe", p.name), slog.Any("error", err))
	}
	if err := cmd.Wait(); err != nil {
		return &CommandError{
			Op:       p.name,
			Args:     append([]string{"git"}, p.args...),
			ExitCode: cmd.ProcessState.ExitCode(),
			Stderr:   strings.TrimSpace(p.stderr.String()),
			Err:      err,
		}
	}
	slog.Debug("git pipe closed", slog.String("pipe", p.name))
	return nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line == "" {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	return strings.TrimSuffix(line, "\n"), nil
}

// readHash reads one hash line as answered by hash-object and mktree.
func readHash(op string, r *bufio.Reader) (string, error) {
	line, err := readLine(r)
	if err != nil {
		return "", err
	}
	if !validHash(line) {
		return "", protocolErrorf(op, "%q is not an object hash", line)
	}
	return line, nil
}

// sinkWriter keeps consuming after the destination fails so the stream stays framed.
type sinkWriter struct {
	w   io.Writer
	err error
}

func (s *sinkWriter) Write(p []byte) (int, error) {
	if s.err == nil {
		if _, err := s.w.Write(p); err != nil {
			s.err = err
		}
	}
	return len(p), nil
}
