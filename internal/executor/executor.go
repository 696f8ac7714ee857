// Package executor applies remediation steps to the remote host.
//
// Every mutating action follows the same sequence: skip if the key is already
// recorded, back up, mutate, verify, and restore the backup when verification
// fails. Only verified steps are recorded as completed.
package executor

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/rs/zerolog"

	"github.com/daydemir/vhostdoctor/internal/nginx"
	"github.com/daydemir/vhostdoctor/internal/remote"
	"github.com/daydemir/vhostdoctor/internal/types"
	"github.com/daydemir/vhostdoctor/internal/utils"
)

// Config holds executor configuration
type Config struct {
	Domain      string
	HostsPath   string
	TestCommand string
	Template    nginx.TemplateOptions
}

// DefaultConfig returns default executor configuration for domain
func DefaultConfig(domain string) *Config {
	return &Config{
		Domain:      utils.NormalizeDomain(domain),
		HostsPath:   "/etc/hosts",
		TestCommand: "nginx -t",
		Template:    nginx.DefaultTemplateOptions(),
	}
}

// Executor applies steps for one domain
type Executor struct {
	config *Config
	remote remote.Executor
	store  StepStore
	now    func() time.Time
	logger zerolog.Logger
}

// New creates a new executor
func New(config *Config, r remote.Executor, store StepStore, logger zerolog.Logger) *Executor {
	return &Executor{
		config: config,
		remote: r,
		store:  store,
		now:    time.Now,
		logger: logger.With().Str("component", "executor").Str("domain", config.Domain).Logger(),
	}
}

// WithClock replaces the time source used for backup names, for tests
func (e *Executor) WithClock(now func() time.Time) *Executor {
	e.now = now
	return e
}

// Apply runs one step. A step whose key is already recorded is skipped
// without touching the remote host. Transport failures are returned in
// Outcome.Err unwrapped so callers can abort the run.
func (e *Executor) Apply(ctx context.Context, step types.RemediationStep) Outcome {
	start := time.Now()
	out := Outcome{Key: step.Key, Action: step.Action.Kind}
	log := e.logger.With().Str("step", step.Key).Str("action", string(step.Action.Kind)).Logger()

	if e.store.IsCompleted(e.config.Domain, step.Key) {
		out.Status = types.StatusSkipped
		out.Message = "already completed"
		log.Debug().Msg("step skipped")
		return out
	}

	if err := step.Validate(); err != nil {
		return e.fail(out, start, &types.RemediationError{Key: step.Key, Err: err}, log)
	}

	var res result
	var err error
	switch step.Action.Kind {
	case types.ActionDisableFragment:
		res, err = e.disableFragment(ctx, step)
	case types.ActionCreateFragment:
		res, err = e.createFragment(ctx, step)
	case types.ActionCommentHostsLine, types.ActionRewriteHostsFile:
		res, err = e.editHosts(ctx, step)
	case types.ActionManualIntervention:
		res, err = e.recheck(ctx, step)
	default:
		err = &types.RemediationError{Key: step.Key, Err: fmt.Errorf("unsupported action %q", step.Action.Kind)}
	}
	if err != nil {
		return e.fail(out, start, err, log)
	}

	details := map[string]string{
		"action":  string(step.Action.Kind),
		"message": res.message,
	}
	if res.backup != "" {
		details["backup"] = res.backup
	}
	if err := e.store.MarkCompleted(e.config.Domain, step.Key, details); err != nil {
		return e.fail(out, start, fmt.Errorf("applied but not recorded: %w", err), log)
	}

	out.Status = types.StatusCompleted
	out.Message = res.message
	out.Backup = res.backup
	out.Duration = time.Since(start)
	log.Info().Str("result", res.message).Bool("noop", res.noop).Msg("step completed")
	return out
}

func (e *Executor) fail(out Outcome, start time.Time, err error, log zerolog.Logger) Outcome {
	out.Status = types.StatusFailed
	out.Err = err
	out.Error = err.Error()
	out.Duration = time.Since(start)
	var re *types.RemediationError
	if errors.As(err, &re) {
		out.Restored = re.Restored
	}
	log.Error().Err(err).Bool("restored", out.Restored).Msg("step failed")
	return out
}

// TestConfig runs the configured nginx test command
func (e *Executor) TestConfig(ctx context.Context) (bool, string, error) {
	res, err := e.remote.Execute(ctx, e.config.TestCommand)
	if err != nil {
		return false, "", err
	}
	return res.OK(), res.Output(), nil
}

func (e *Executor) disableFragment(ctx context.Context, step types.RemediationStep) (result, error) {
	p := step.Action.FragmentPath
	disabled := p + nginx.DisabledSuffix

	exists, err := e.remote.FileExists(ctx, p)
	if err != nil {
		return result{}, err
	}
	if !exists {
		parked, err := e.remote.FileExists(ctx, disabled)
		if err != nil {
			return result{}, err
		}
		if parked {
			return result{message: path.Base(p) + " is already disabled", noop: true}, nil
		}
		return result{}, &types.RemediationError{Key: step.Key, Err: fmt.Errorf("fragment %s not found", p)}
	}

	now := e.now()
	backup := utils.BuildBackupPath(p, now)
	if err := remote.CopyFile(ctx, e.remote, p, backup); err != nil {
		return result{}, e.remediation(step.Key, false, fmt.Errorf("backup %s: %w", p, err))
	}

	if taken, err := e.remote.FileExists(ctx, disabled); err != nil {
		return result{}, err
	} else if taken {
		disabled = p + "." + now.Format(utils.BackupTimeFormat) + nginx.DisabledSuffix
	}

	if err := e.remote.Rename(ctx, p, disabled); err != nil {
		return result{}, e.remediation(step.Key, false, fmt.Errorf("disable %s: %w", p, err))
	}

	ok, output, err := e.TestConfig(ctx)
	if err != nil || !ok {
		restoreErr := e.remote.Rename(ctx, disabled, p)
		if err != nil {
			return result{}, err
		}
		return result{}, e.remediation(step.Key, restoreErr == nil,
			fmt.Errorf("nginx test failed after disabling %s: %s", path.Base(p), output))
	}

	return result{
		message: fmt.Sprintf("disabled %s (now %s)", path.Base(p), path.Base(disabled)),
		backup:  backup,
	}, nil
}

func (e *Executor) createFragment(ctx context.Context, step types.RemediationStep) (result, error) {
	p := step.Action.FragmentPath

	exists, err := e.remote.FileExists(ctx, p)
	if err != nil {
		return result{}, err
	}
	if exists {
		return result{message: path.Base(p) + " already exists", noop: true}, nil
	}

	content, err := nginx.RenderFragment(step.Action.Domain, e.config.Template)
	if err != nil {
		return result{}, e.remediation(step.Key, false, err)
	}

	if err := e.remote.WriteFile(ctx, p, []byte(content)); err != nil {
		if types.IsTransport(err) {
			return result{}, err
		}
		restoreErr := e.removeIfPresent(ctx, p)
		return result{}, e.remediation(step.Key, restoreErr == nil, fmt.Errorf("write %s: %w", p, err))
	}

	ok, output, err := e.TestConfig(ctx)
	if err != nil || !ok {
		restoreErr := e.removeIfPresent(ctx, p)
		if err != nil {
			return result{}, err
		}
		return result{}, e.remediation(step.Key, restoreErr == nil,
			fmt.Errorf("nginx test failed with new %s: %s", path.Base(p), output))
	}

	return result{message: "created " + path.Base(p)}, nil
}

func (e *Executor) removeIfPresent(ctx context.Context, p string) error {
	exists, err := e.remote.FileExists(ctx, p)
	if err != nil || !exists {
		return err
	}
	return e.remote.Remove(ctx, p)
}

func (e *Executor) recheck(ctx context.Context, step types.RemediationStep) (result, error) {
	ok, output, err := e.TestConfig(ctx)
	if err != nil {
		return result{}, err
	}
	if !ok {
		return result{}, e.remediation(step.Key, false,
			fmt.Errorf("manual intervention required: %s", output))
	}
	return result{message: "nginx configuration test passes", noop: true}, nil
}

// remediation wraps a step failure; transport failures pass through untouched
func (e *Executor) remediation(key string, restored bool, err error) error {
	if types.IsTransport(err) {
		return err
	}
	return &types.RemediationError{Key: key, Restored: restored, Err: err}
}
