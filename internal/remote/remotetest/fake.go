// Package remotetest provides an in-memory remote host for tests.
package remotetest

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/daydemir/vhostdoctor/internal/remote"
)

// Handler computes a command result from the fake's current files
type Handler func(h *Host) remote.Result

// Host is a fake remote filesystem plus scripted command results.
// Every mutating call is appended to Mutations.
type Host struct {
	mu        sync.Mutex
	files     map[string][]byte
	commands  map[string]Handler
	writeFail map[string]int
	// TruncateOnFail makes a failed write leave half the data behind
	TruncateOnFail bool
	// Mutations logs "write PATH", "rename A B", "remove PATH"
	Mutations []string
	// Commands logs every command run
	Commands []string
	// TransportErr, when set, is returned by every call
	TransportErr error
	Closed       bool
}

// New returns an empty host
func New() *Host {
	return &Host{
		files:     map[string][]byte{},
		commands:  map[string]Handler{},
		writeFail: map[string]int{},
	}
}

// Put seeds a file without logging a mutation
func (h *Host) Put(p, content string) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.files[p] = []byte(content)
	return h
}

// Get returns a file's content and whether it exists
func (h *Host) Get(p string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	data, ok := h.files[p]
	return string(data), ok
}

// Paths returns all file paths, sorted
func (h *Host) Paths() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.files))
	for p := range h.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// On scripts a fixed result for command
func (h *Host) On(command string, res remote.Result) *Host {
	return h.OnFunc(command, func(*Host) remote.Result { return res })
}

// OnFunc scripts a result computed at call time
func (h *Host) OnFunc(command string, fn Handler) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands[command] = fn
	return h
}

// FailWrites makes the next n writes to p fail
func (h *Host) FailWrites(p string, n int) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.writeFail[p] = n
	return h
}

// MutationCount returns how many mutating calls have been made
func (h *Host) MutationCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.Mutations)
}

// Dialer returns a remote.Dialer that hands out this host
func (h *Host) Dialer() remote.Dialer {
	return dialer{h}
}

type dialer struct{ h *Host }

func (d dialer) Dial(ctx context.Context) (remote.Session, error) {
	if d.h.TransportErr != nil {
		return nil, d.h.TransportErr
	}
	return d.h, nil
}

func (h *Host) Execute(ctx context.Context, command string) (remote.Result, error) {
	if err := h.check(ctx); err != nil {
		return remote.Result{}, err
	}
	h.mu.Lock()
	h.Commands = append(h.Commands, command)
	fn, ok := h.commands[command]
	h.mu.Unlock()
	if !ok {
		return remote.Result{ExitCode: 127, Stderr: "command not found: " + command}, nil
	}
	return fn(h), nil
}

func (h *Host) FileExists(ctx context.Context, p string) (bool, error) {
	if err := h.check(ctx); err != nil {
		return false, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.files[p]
	return ok, nil
}

func (h *Host) ReadFile(ctx context.Context, p string) ([]byte, error) {
	if err := h.check(ctx); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	data, ok := h.files[p]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", p, fs.ErrNotExist)
	}
	return append([]byte(nil), data...), nil
}

func (h *Host) WriteFile(ctx context.Context, p string, data []byte) error {
	if err := h.check(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Mutations = append(h.Mutations, "write "+p)
	if n := h.writeFail[p]; n > 0 {
		h.writeFail[p] = n - 1
		if h.TruncateOnFail {
			h.files[p] = append([]byte(nil), data[:len(data)/2]...)
		}
		return fmt.Errorf("write %s: %w", p, fs.ErrPermission)
	}
	h.files[p] = append([]byte(nil), data...)
	return nil
}

func (h *Host) Rename(ctx context.Context, from, to string) error {
	if err := h.check(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	data, ok := h.files[from]
	if !ok {
		return fmt.Errorf("rename %s: %w", from, fs.ErrNotExist)
	}
	h.Mutations = append(h.Mutations, "rename "+from+" "+to)
	delete(h.files, from)
	h.files[to] = data
	return nil
}

func (h *Host) Remove(ctx context.Context, p string) error {
	if err := h.check(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.files[p]; !ok {
		return fmt.Errorf("remove %s: %w", p, fs.ErrNotExist)
	}
	h.Mutations = append(h.Mutations, "remove "+p)
	delete(h.files, p)
	return nil
}

func (h *Host) ListDir(ctx context.Context, dir string) ([]string, error) {
	if err := h.check(ctx); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	dir = strings.TrimSuffix(dir, "/")
	names := []string{}
	for p := range h.files {
		if path.Dir(p) == dir {
			names = append(names, path.Base(p))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Closed = true
	return nil
}

func (h *Host) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if h.TransportErr != nil {
		return h.TransportErr
	}
	return nil
}

var _ remote.Session = (*Host)(nil)
