package certs

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/daydemir/vhostdoctor/internal/remote"
	"github.com/daydemir/vhostdoctor/internal/types"
)

// Panel file names inside {cert_dir}/{domain}/
const (
	FullchainFile = "fullchain.pem"
	KeyFile       = "privkey.pem"
)

// Check is the certificate verdict for one domain
type Check struct {
	Domain          string   `json:"domain" yaml:"domain"`
	Dir             string   `json:"dir" yaml:"dir"`
	FullchainExists bool     `json:"fullchain_exists" yaml:"fullchain_exists"`
	KeyExists       bool     `json:"key_exists" yaml:"key_exists"`
	Cert            *Info    `json:"cert,omitempty" yaml:"cert,omitempty"`
	Served          *Info    `json:"served,omitempty" yaml:"served,omitempty"`
	DaysLeft        int      `json:"days_left" yaml:"days_left"`
	Problems        []string `json:"problems,omitempty" yaml:"problems,omitempty"`
	Warnings        []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// OK reports whether nothing blocks HTTPS for the domain
func (c *Check) OK() bool {
	return len(c.Problems) == 0
}

func (c *Check) problem(format string, args ...any) {
	c.Problems = append(c.Problems, fmt.Sprintf(format, args...))
}

func (c *Check) warn(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

// Checker verifies the panel certificate files and, with a Prober, what nginx serves
type Checker struct {
	remote    remote.Executor
	inspector Inspector
	prober    Prober
	certDir   string
	now       func() time.Time
	logger    zerolog.Logger
}

// NewChecker creates a checker. prober may be nil.
func NewChecker(r remote.Executor, inspector Inspector, prober Prober, certDir string, logger zerolog.Logger) *Checker {
	return &Checker{
		remote:    r,
		inspector: inspector,
		prober:    prober,
		certDir:   certDir,
		now:       time.Now,
		logger:    logger.With().Str("component", "certs").Logger(),
	}
}

// WithClock replaces the time source, for tests
func (c *Checker) WithClock(now func() time.Time) *Checker {
	c.now = now
	return c
}

// Check inspects domain's certificate. Only transport failures are returned
// as errors; everything else ends up in Problems or Warnings.
func (c *Checker) Check(ctx context.Context, domain string) (*Check, error) {
	dir := path.Join(c.certDir, domain)
	check := &Check{Domain: domain, Dir: dir}

	names, err := c.remote.ListDir(ctx, dir)
	if err != nil {
		if types.IsTransport(err) {
			return nil, err
		}
		check.problem("cannot list %s: %v", dir, err)
		return check, nil
	}
	for _, n := range names {
		switch n {
		case FullchainFile:
			check.FullchainExists = true
		case KeyFile:
			check.KeyExists = true
		}
	}
	if !check.FullchainExists {
		check.problem("%s missing in %s", FullchainFile, dir)
	}
	if !check.KeyExists {
		check.problem("%s missing in %s", KeyFile, dir)
	}

	now := c.now()
	if check.FullchainExists {
		info, err := c.inspector.Inspect(ctx, path.Join(dir, FullchainFile))
		switch {
		case types.IsTransport(err):
			return nil, err
		case err != nil:
			check.problem("cannot read certificate: %v", err)
		default:
			check.Cert = info
			c.judge(check, info, now)
		}
	}

	if c.prober != nil {
		served, err := c.prober.Served(ctx, domain)
		var ae *types.AnalysisError
		switch {
		case types.IsTransport(err):
			return nil, err
		case errors.As(err, &ae):
			check.warn("could not probe the served certificate: %v", ae.Err)
		case err != nil:
			return nil, err
		default:
			check.Served = served
			if !served.Covers(domain) {
				check.problem("nginx presents a certificate for %s, not %s",
					strings.Join(served.Names(), ", "), domain)
			}
		}
	}

	c.logger.Debug().
		Str("domain", domain).
		Bool("ok", check.OK()).
		Int("problems", len(check.Problems)).
		Int("warnings", len(check.Warnings)).
		Msg("certificate checked")
	return check, nil
}

func (c *Checker) judge(check *Check, info *Info, now time.Time) {
	check.DaysLeft = info.DaysLeft(now)
	if !info.Covers(check.Domain) {
		check.problem("certificate names %s do not cover %s",
			strings.Join(info.Names(), ", "), check.Domain)
	}
	switch {
	case now.Before(info.NotBefore):
		check.problem("certificate not valid until %s", info.NotBefore.Format(time.DateOnly))
	case now.After(info.NotAfter):
		check.problem("certificate expired on %s", info.NotAfter.Format(time.DateOnly))
	case check.DaysLeft < CriticalDays:
		check.warn("certificate expires in %d days, renew now", check.DaysLeft)
	case check.DaysLeft < WarnDays:
		check.warn("certificate expires in %d days", check.DaysLeft)
	}
}
