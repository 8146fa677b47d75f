package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

const lockFile = ".clipper.lock"

var ErrBusy = errors.New("workspace is in use by another clipper process")

// Workspace is the directory downloads and renders are written to. A file lock
// inside it keeps two clipper processes from working in it at once.
type Workspace struct {
	dir  string
	lock *flock.Flock
}

func Open(dir string) (*Workspace, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("workspace: empty directory")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{dir: abs, lock: flock.New(filepath.Join(abs, lockFile))}, nil
}

func (w *Workspace) Dir() string { return w.dir }

// Acquire takes the workspace lock without blocking. The returned func
// releases it.
func (w *Workspace) Acquire() (func(), error) {
	ok, err := w.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire workspace lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBusy, w.dir)
	}
	return func() { _ = w.lock.Unlock() }, nil
}
