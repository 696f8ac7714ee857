package executor

import (
	"time"

	"github.com/daydemir/vhostdoctor/internal/types"
)

// StepStore is the slice of the state store the executor needs
type StepStore interface {
	IsCompleted(domain, key string) bool
	MarkCompleted(domain, key string, details map[string]string) error
}

// Outcome is the result of applying one step
type Outcome struct {
	Key      string           `json:"key" yaml:"key"`
	Action   types.ActionKind `json:"action" yaml:"action"`
	Status   types.Status     `json:"status" yaml:"status"`
	Message  string           `json:"message,omitempty" yaml:"message,omitempty"`
	Backup   string           `json:"backup,omitempty" yaml:"backup,omitempty"`
	Restored bool             `json:"restored,omitempty" yaml:"restored,omitempty"`
	Duration time.Duration    `json:"duration" yaml:"duration"`
	Err      error            `json:"-" yaml:"-"`
	// Error mirrors Err for reports
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Applied reports whether the step ran and verified in this call
func (o Outcome) Applied() bool {
	return o.Status == types.StatusCompleted
}

// result is what a successful action reports back to Apply
type result struct {
	message string
	backup  string
	noop    bool
}
