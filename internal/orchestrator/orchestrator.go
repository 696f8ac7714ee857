// Package orchestrator runs the diagnosis pipeline for one domain:
// connect, analyze, fix hosts, fix vhosts, verify SSL, restart nginx.
//
// Each phase is gated by its key in the state store. A completed phase is
// skipped on the next run; a failed or declined one is offered again. Inside
// the fix phases every step carries its own key, so a resumed phase only
// applies what is still missing.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/daydemir/vhostdoctor/internal/executor"
	"github.com/daydemir/vhostdoctor/internal/nginx"
	"github.com/daydemir/vhostdoctor/internal/remote"
	"github.com/daydemir/vhostdoctor/internal/state"
	"github.com/daydemir/vhostdoctor/internal/types"
	"github.com/daydemir/vhostdoctor/internal/utils"
)

// Options configures one diagnosis run
type Options struct {
	Domain         string
	VhostDir       string
	CertDir        string
	HostsPath      string
	ProblemDomains []string
	TestCommand    string
	RestartCommand string
	Template       nginx.TemplateOptions
	// ProbeServed asks nginx over TLS which certificate it presents
	ProbeServed bool
	// DryRun stops after analysis and records nothing but analysis results
	DryRun bool
}

// DefaultOptions returns options for the aaPanel layout
func DefaultOptions(domain string) Options {
	return Options{
		Domain:         utils.NormalizeDomain(domain),
		VhostDir:       "/www/server/panel/vhost/nginx",
		CertDir:        "/www/server/panel/vhost/cert",
		HostsPath:      "/etc/hosts",
		TestCommand:    "nginx -t",
		RestartCommand: "systemctl restart nginx",
		Template:       nginx.DefaultTemplateOptions(),
		ProbeServed:    true,
	}
}

// Confirmer approves mutating phases
type Confirmer interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// AutoConfirm approves everything
type AutoConfirm struct{}

func (AutoConfirm) Confirm(context.Context, string) (bool, error) { return true, nil }

// Observer is told about progress as it happens
type Observer interface {
	PhaseStarted(s State, key string)
	PhaseFinished(p PhaseResult)
	Analyzed(a *Analysis)
	StepFinished(o executor.Outcome)
}

// NopObserver ignores everything
type NopObserver struct{}

func (NopObserver) PhaseStarted(State, string) {}
func (NopObserver) PhaseFinished(PhaseResult) {}
func (NopObserver) Analyzed(*Analysis) {}
func (NopObserver) StepFinished(executor.Outcome) {}

// errDeclined marks a phase the operator chose not to run
var errDeclined = errors.New("declined by operator")

// Orchestrator drives one domain through the pipeline
type Orchestrator struct {
	opts     Options
	dialer   remote.Dialer
	store    *state.Store
	confirm  Confirmer
	observer Observer
	now      func() time.Time
	logger   zerolog.Logger
}

// New creates an orchestrator. It auto-confirms and observes nothing until told otherwise.
func New(opts Options, dialer remote.Dialer, store *state.Store, logger zerolog.Logger) *Orchestrator {
	opts.Domain = utils.NormalizeDomain(opts.Domain)
	return &Orchestrator{
		opts:     opts,
		dialer:   dialer,
		store:    store,
		confirm:  AutoConfirm{},
		observer: NopObserver{},
		now:      time.Now,
		logger:   logger.With().Str("component", "orchestrator").Str("domain", opts.Domain).Logger(),
	}
}

// WithConfirmer sets who approves mutating phases
func (o *Orchestrator) WithConfirmer(c Confirmer) *Orchestrator {
	o.confirm = c
	return o
}

// WithObserver sets the progress observer
func (o *Orchestrator) WithObserver(obs Observer) *Orchestrator {
	o.observer = obs
	return o
}

// WithClock replaces the time source, for tests
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// VhostPhaseKey is the FixingVhosts key for domain
func VhostPhaseKey(domain string) string {
	return KeyFixVhostPrefix + utils.DomainKey(domain)
}

// run carries one pipeline execution
type run struct {
	report  *Report
	session remote.Session
	exec    *executor.Executor
	logger  zerolog.Logger
}

type phaseFunc func(ctx context.Context, r *run) (string, error)

// Run executes the pipeline. It always returns a report; a connection loss or
// a cancelled ctx ends it in StateAborted with whatever was done so far.
// The remote connection is closed on every path.
func (o *Orchestrator) Run(ctx context.Context) *Report {
	r := &run{
		report: &Report{
			SessionID: uuid.NewString(),
			Domain:    o.opts.Domain,
			DryRun:    o.opts.DryRun,
			StartedAt: o.now(),
			Phases:    []PhaseResult{},
			Steps:     []executor.Outcome{},
		},
	}
	r.logger = o.logger.With().Str("session", r.report.SessionID).Logger()
	r.logger.Info().Bool("dry_run", o.opts.DryRun).Msg("diagnosis started")

	defer func() {
		if r.session != nil {
			if err := r.session.Close(); err != nil {
				r.logger.Warn().Err(err).Msg("closing remote session")
			}
		}
		r.report.FinishedAt = o.now()
		r.logger.Info().
			Str("final", string(r.report.Final)).
			Bool("resolved", r.report.Resolved()).
			Msg("diagnosis finished")
	}()

	if !o.opts.DryRun {
		o.saveSession(r)
	}

	pipeline := []struct {
		state State
		key   string
		fn    phaseFunc
	}{
		{StateConnecting, KeyConnection, o.connect},
		{StateAnalyzing, KeyAnalysis, o.analyzePhase},
		{StateFixingHosts, KeyFixHosts, o.fixHosts},
		{StateFixingVhosts, VhostPhaseKey(o.opts.Domain), o.fixVhosts},
		{StateVerifyingSSL, KeySSLVerify, o.verifySSL},
		{StateRestartingServices, KeyRestart, o.restart},
	}

	for _, p := range pipeline {
		if err := ctx.Err(); err != nil {
			o.abort(r, p.state, err)
			return r.report
		}
		if err := o.phase(ctx, r, p.state, p.key, p.fn); err != nil {
			o.abort(r, p.state, err)
			return r.report
		}
	}

	r.report.Final = StateDone
	return r.report
}

// phase runs one gated phase. Only fatal errors are returned.
func (o *Orchestrator) phase(ctx context.Context, r *run, st State, key string, fn phaseFunc) error {
	o.observer.PhaseStarted(st, key)
	start := time.Now()
	res := PhaseResult{State: st, Key: key}
	log := r.logger.With().Str("phase", key).Logger()

	finish := func() {
		res.Duration = time.Since(start)
		r.report.Phases = append(r.report.Phases, res)
		o.observer.PhaseFinished(res)
	}

	if o.opts.DryRun && st != StateConnecting && st != StateAnalyzing {
		res.Status = types.StatusSkipped
		res.Message = "dry run"
		finish()
		return nil
	}

	// checking the certificate or restarting before every fix is in place
	// would record a verdict about a host that is still broken
	if waitsOnFixes(st) && len(r.report.Declined) > 0 {
		res.Status = types.StatusSkipped
		res.Message = "waiting on declined " + strings.Join(r.report.Declined, ", ")
		log.Info().Msg("phase deferred")
		finish()
		return nil
	}

	// the connection is re-established every run and the analysis of a dry
	// run is always fresh, so neither consults the store
	gated := st != StateConnecting && !o.opts.DryRun
	if gated && o.store.IsCompleted(o.opts.Domain, key) {
		res.Status = types.StatusSkipped
		res.Message = "already completed"
		log.Debug().Msg("phase skipped")
		finish()
		return nil
	}

	msg, err := fn(ctx, r)
	switch {
	case errors.Is(err, errDeclined):
		res.Status = types.StatusSkipped
		res.Message = err.Error()
		r.report.Declined = append(r.report.Declined, key)
		log.Info().Msg("phase declined")
		finish()
		return nil
	case err != nil && fatal(ctx, err):
		res.Status = types.StatusFailed
		res.Error = err.Error()
		finish()
		return err
	case err != nil:
		res.Status = types.StatusFailed
		res.Error = err.Error()
		r.report.Errors = append(r.report.Errors, fmt.Sprintf("%s: %v", key, err))
		log.Error().Err(err).Msg("phase failed")
		finish()
		return nil
	}

	res.Status = types.StatusCompleted
	res.Message = msg
	if !o.opts.DryRun {
		details := map[string]string{"message": msg, "session_id": r.report.SessionID}
		if err := o.store.MarkCompleted(o.opts.Domain, key, details); err != nil {
			r.report.Errors = append(r.report.Errors, fmt.Sprintf("%s: cannot record completion: %v", key, err))
			log.Error().Err(err).Msg("cannot record phase")
		}
	}
	log.Info().Str("result", msg).Msg("phase completed")
	finish()
	return nil
}

func (o *Orchestrator) abort(r *run, st State, err error) {
	r.report.Final = StateAborted
	r.report.AbortedIn = st
	if errors.Is(err, context.Canceled) {
		r.report.Interrupted = true
	}
	r.report.Errors = append(r.report.Errors, fmt.Sprintf("aborted in %s: %v", st, err))
	r.logger.Error().Err(err).Str("state", string(st)).Msg("diagnosis aborted")
}

// waitsOnFixes reports phases that only run once no fix phase was declined
func waitsOnFixes(st State) bool {
	return st == StateVerifyingSSL || st == StateRestartingServices
}

// fatal reports errors after which the session cannot continue
func fatal(ctx context.Context, err error) bool {
	return types.IsTransport(err) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		ctx.Err() != nil
}

// ask consults the confirmer; a "no" becomes errDeclined
func (o *Orchestrator) ask(ctx context.Context, question string) error {
	ok, err := o.confirm.Confirm(ctx, question)
	if err != nil {
		return err
	}
	if !ok {
		return errDeclined
	}
	return nil
}

func (o *Orchestrator) saveSession(r *run) {
	values := map[string]string{
		"last_session_id": r.report.SessionID,
		"last_started_at": r.report.StartedAt.Format(time.RFC3339),
	}
	for k, v := range values {
		if err := o.store.SaveSessionData(o.opts.Domain, k, v); err != nil {
			r.logger.Warn().Err(err).Str("key", k).Msg("cannot save session data")
		}
	}
}

func (o *Orchestrator) connect(ctx context.Context, r *run) (string, error) {
	session, err := o.dialer.Dial(ctx)
	if err != nil {
		if !types.IsTransport(err) && ctx.Err() == nil {
			err = &types.TransportError{Op: "connect", Err: err}
		}
		return "", err
	}
	r.session = session

	cfg := &executor.Config{
		Domain:      o.opts.Domain,
		HostsPath:   o.opts.HostsPath,
		TestCommand: o.opts.TestCommand,
		Template:    o.opts.Template,
	}
	r.exec = executor.New(cfg, session, o.store, o.logger)
	return "connected", nil
}
