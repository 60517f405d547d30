package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alessio/shellescape"
)

var (
	// ErrNotFound is returned when a blob, tree or tag is unknown to the store.
	ErrNotFound = errors.New("object not found")
	// ErrInvalidHash is returned for anything that is not a 40 character hex sha1.
	ErrInvalidHash = errors.New("invalid object hash")
	ErrInvalidName = errors.New("invalid entry name")
	// ErrPipeBroken is wrapped by every request on a pipe whose process already failed.
	ErrPipeBroken = errors.New("git pipe is broken")
)

// CommandError reports a git invocation or library call that did not succeed.
type CommandError struct {
	Op       string
	Args     []string // nil for in-process calls
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if len(e.Args) > 0 {
		fmt.Fprintf(&b, ": `%s`", shellescape.QuoteCommand(e.Args))
	}
	if e.ExitCode > 0 {
		fmt.Fprintf(&b, " failed with %d", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Stderr != "" {
		fmt.Fprintf(&b, ": %s", e.Stderr)
	}
	return b.String()
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ProtocolError reports backend output that does not match the expected framing.
type ProtocolError struct {
	Op     string
	Detail string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: unexpected output: %s", e.Op, e.Detail)
}

func protocolErrorf(op, format string, args ...any) error {
	return &ProtocolError{Op: op, Detail: fmt.Sprintf(format, args...)}
}
