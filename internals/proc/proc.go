package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/jadenj13/clipper/internals/fault"
)

// maxDiagnostic bounds how much of a failing command's stderr ends up in the error.
const maxDiagnostic = 4000

type Cmd struct {
	Name    string
	Args    []string
	Dir     string
	Timeout time.Duration // zero means no per-command ceiling
}

func (c Cmd) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Runner executes external commands. Media packages take a Runner so tests can
// substitute canned output for the real binaries.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) ([]byte, error)
}

// Local runs commands on the host and returns their stdout.
type Local struct{}

func (Local) Run(ctx context.Context, cmd Cmd) ([]byte, error) {
	runCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	c := exec.CommandContext(runCtx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	if err := c.Run(); err != nil {
		switch {
		case errors.Is(err, exec.ErrNotFound):
			return nil, fault.Wrap(fault.ErrNotFound, cmd.Name, "executable not found in PATH", err)
		case ctx.Err() != nil:
			return nil, fmt.Errorf("run %s: %w", cmd.Name, ctx.Err())
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			return nil, fault.Wrap(fault.ErrTimeout, cmd.Name, fmt.Sprintf("exceeded %s", cmd.Timeout), nil)
		}
		return nil, fault.Wrap(fault.ErrExternalTool, cmd.Name, diagnostic(stderr.String()), err)
	}
	return stdout.Bytes(), nil
}

// diagnostic keeps the tail of stderr, which is where encoders and downloaders
// put the actual failure reason.
func diagnostic(stderr string) string {
	s := strings.TrimSpace(stderr)
	if len(s) > maxDiagnostic {
		s = "…" + s[len(s)-maxDiagnostic:]
	}
	return s
}
