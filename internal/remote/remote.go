// Package remote runs commands and file operations on the diagnosed host.
// Everything above this package talks to an Executor and never builds
// SSH sessions or shell-quoted file paths itself.
package remote

import (
	"context"
	"io"
	"strings"
	"time"
)

// Result is the outcome of a remote command. A non-zero exit is data, not an error.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// OK reports whether the command exited zero
func (r Result) OK() bool {
	return r.ExitCode == 0
}

// Output returns stdout and stderr combined, the way nginx -t reports on stderr
func (r Result) Output() string {
	out := strings.TrimSpace(r.Stdout)
	errOut := strings.TrimSpace(r.Stderr)
	switch {
	case out == "":
		return errOut
	case errOut == "":
		return out
	default:
		return out + "\n" + errOut
	}
}

// Executor is the only path to the remote host.
// Errors returned are transport or filesystem failures; command exit
// status is reported through Result.
type Executor interface {
	Execute(ctx context.Context, command string) (Result, error)
	FileExists(ctx context.Context, path string) (bool, error)
	// ReadFile returns an error wrapping fs.ErrNotExist for missing files
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte) error
	Rename(ctx context.Context, from, to string) error
	Remove(ctx context.Context, path string) error
	// ListDir returns entry names sorted ascending; a missing directory is empty
	ListDir(ctx context.Context, dir string) ([]string, error)
}

// Session is an Executor bound to one connection
type Session interface {
	Executor
	io.Closer
}

// Dialer opens sessions to the remote host
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// CopyFile copies src to dst through the executor
func CopyFile(ctx context.Context, exec Executor, src, dst string) error {
	data, err := exec.ReadFile(ctx, src)
	if err != nil {
		return err
	}
	return exec.WriteFile(ctx, dst, data)
}
