package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/daydemir/vhostdoctor/internal/types"
)

var (
	// ErrInterrupted is returned when the run was cancelled by a signal
	ErrInterrupted = errors.New("interrupted")
	// ErrUnresolved is returned when the run finished with failures or aborted
	ErrUnresolved = errors.New("domain not fully resolved")
)

type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

// Exit codes
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitInterrupted = 130
)

// ExitCode prints err to stderr and maps it to a process exit code
func ExitCode(err error) int {
	return exitCode(os.Stderr, err)
}

func exitCode(w io.Writer, err error) int {
	if err == nil {
		return ExitOK
	}
	var ue *usageError
	var ve *types.ValidationErrors
	switch {
	case errors.Is(err, ErrInterrupted):
		fmt.Fprintln(w, "Interrupted")
		return ExitInterrupted
	case errors.Is(err, ErrUnresolved):
		// the summary already explained what failed
		return ExitFailure
	case errors.As(err, &ue):
		fmt.Fprintln(w, "Error:", err)
		return ExitUsage
	case errors.As(err, &ve) && len(ve.Errors) > 1:
		fmt.Fprintln(w, "Error:", err)
		fmt.Fprintln(w, ve.Detail())
		return ExitFailure
	default:
		fmt.Fprintln(w, "Error:", err)
		return ExitFailure
	}
}
