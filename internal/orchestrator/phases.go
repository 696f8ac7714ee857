package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/daydemir/vhostdoctor/internal/certs"
	"github.com/daydemir/vhostdoctor/internal/conflict"
	"github.com/daydemir/vhostdoctor/internal/hosts"
	"github.com/daydemir/vhostdoctor/internal/nginx"
	"github.com/daydemir/vhostdoctor/internal/planner"
	"github.com/daydemir/vhostdoctor/internal/types"
)

// analyze reads everything fresh from the host. Nothing is cached between
// phases because an earlier phase (or the operator) may have changed it.
func (o *Orchestrator) analyze(ctx context.Context, r *run) (*Analysis, error) {
	a := &Analysis{}

	passed, output, err := r.exec.TestConfig(ctx)
	if err != nil {
		return nil, err
	}
	a.NginxTestPassed, a.NginxTestOutput = passed, output

	fragments, err := nginx.NewStore(r.session, o.opts.VhostDir, o.logger).ListFragments(ctx, true)
	if err != nil {
		return nil, err
	}
	a.Inventory = nginx.BuildInventory(fragments)
	a.Conflicts = conflict.FindConflicts(o.opts.Domain, fragments)

	analyzer := hosts.NewAnalyzer(r.session, o.opts.HostsPath, o.opts.ProblemDomains, o.logger)
	a.Hosts, err = analyzer.Analyze(ctx)
	if err != nil {
		return nil, err
	}

	a.Findings = []types.ConflictFinding{}
	if f := conflict.SyntaxFinding(passed, output); f != nil {
		a.Findings = append(a.Findings, *f)
	}
	a.Findings = append(a.Findings, a.Conflicts.Findings...)
	a.Findings = append(a.Findings, conflict.FindHostsConflicts(a.Hosts, o.opts.Domain, analyzer.ProblemDomains())...)

	a.Plan = planner.Plan(a.Findings, o.opts.Domain, planner.Options{
		VhostDir:      o.opts.VhostDir,
		MissingConfig: a.Conflicts.MissingConfig,
	})

	r.logger.Debug().
		Int("fragments", len(fragments)).
		Int("findings", len(a.Findings)).
		Int("steps", len(a.Plan)).
		Msg("analysis complete")

	if r.report.Analysis == nil {
		r.report.Analysis = a
	}
	o.observer.Analyzed(a)
	return a, nil
}

func (o *Orchestrator) analyzePhase(ctx context.Context, r *run) (string, error) {
	a, err := o.analyze(ctx, r)
	if err != nil {
		return "", err
	}

	results := map[string]any{
		ResultInventory: a.Inventory,
		ResultHosts:     a.Hosts,
		ResultConflicts: a.Findings,
		ResultPlan:      a.Plan,
	}
	for kind, v := range results {
		if err := o.store.SaveAnalysisResult(o.opts.Domain, kind, v); err != nil {
			r.logger.Warn().Err(err).Str("kind", kind).Msg("cannot save analysis result")
		}
	}

	return fmt.Sprintf("%d finding(s), %d planned step(s)", len(a.Findings), len(a.Plan)), nil
}

func (o *Orchestrator) fixHosts(ctx context.Context, r *run) (string, error) {
	a, err := o.analyze(ctx, r)
	if err != nil {
		return "", err
	}
	return o.applySteps(ctx, r, planner.HostsSteps(a.Plan), "hosts file")
}

func (o *Orchestrator) fixVhosts(ctx context.Context, r *run) (string, error) {
	a, err := o.analyze(ctx, r)
	if err != nil {
		return "", err
	}
	return o.applySteps(ctx, r, planner.VhostSteps(a.Plan), "nginx")
}

// applySteps runs steps in plan order. A failed step does not stop the
// ones after it; a transport failure does.
func (o *Orchestrator) applySteps(ctx context.Context, r *run, steps []types.RemediationStep, what string) (string, error) {
	var pending []types.RemediationStep
	for _, s := range steps {
		if !o.store.IsCompleted(o.opts.Domain, s.Key) {
			pending = append(pending, s)
		}
	}
	if len(pending) == 0 && len(steps) == 0 {
		return "no " + what + " issues", nil
	}

	if len(pending) > 0 {
		keys := make([]string, len(pending))
		for i, s := range pending {
			keys[i] = s.Key
		}
		question := fmt.Sprintf("Apply %d %s fix(es) (%s)?", len(pending), what, strings.Join(keys, ", "))
		if err := o.ask(ctx, question); err != nil {
			return "", err
		}
	}

	var applied, skipped, failed int
	for _, s := range steps {
		out := r.exec.Apply(ctx, s)
		r.report.Steps = append(r.report.Steps, out)
		o.observer.StepFinished(out)

		if out.Err != nil && fatal(ctx, out.Err) {
			return "", out.Err
		}
		switch {
		case out.Applied():
			applied++
		case out.Status == types.StatusSkipped:
			skipped++
		default:
			failed++
		}
	}

	if failed > 0 {
		return "", fmt.Errorf("%d of %d %s step(s) failed", failed, len(steps), what)
	}
	return fmt.Sprintf("%d applied, %d already done", applied, skipped), nil
}

func (o *Orchestrator) verifySSL(ctx context.Context, r *run) (string, error) {
	var prober certs.Prober
	if o.opts.ProbeServed {
		prober = certs.NewOpenSSL(r.session)
	}
	checker := certs.NewChecker(r.session, certs.NewX509(r.session), prober, o.opts.CertDir, o.logger).WithClock(o.now)

	check, err := checker.Check(ctx, o.opts.Domain)
	if err != nil {
		return "", err
	}
	r.report.Certificate = check
	if err := o.store.SaveAnalysisResult(o.opts.Domain, ResultCertificates, check); err != nil {
		r.logger.Warn().Err(err).Msg("cannot save certificate check")
	}

	passed, output, err := r.exec.TestConfig(ctx)
	if err != nil {
		return "", err
	}

	var problems []string
	problems = append(problems, check.Problems...)
	if !passed {
		problems = append(problems, "nginx configuration test failed: "+firstLine(output))
	}
	if len(problems) > 0 {
		return "", fmt.Errorf("%s", strings.Join(problems, "; "))
	}

	msg := "certificate valid"
	if check.Cert != nil {
		msg = fmt.Sprintf("certificate valid for %d more day(s)", check.DaysLeft)
	}
	return msg, nil
}

// restart refuses to touch nginx while its configuration test fails
func (o *Orchestrator) restart(ctx context.Context, r *run) (string, error) {
	if err := o.ask(ctx, "Restart nginx now?"); err != nil {
		return "", err
	}

	passed, output, err := r.exec.TestConfig(ctx)
	if err != nil {
		return "", err
	}
	if !passed {
		return "", fmt.Errorf("refusing to restart, nginx configuration test failed: %s", firstLine(output))
	}

	res, err := r.session.Execute(ctx, o.opts.RestartCommand)
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", fmt.Errorf("%s exited %d: %s", o.opts.RestartCommand, res.ExitCode, firstLine(res.Output()))
	}
	return "nginx restarted", nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
