package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/daydemir/vhostdoctor/internal/nginx"
	"github.com/daydemir/vhostdoctor/internal/orchestrator"
	"github.com/daydemir/vhostdoctor/internal/remote"
	"github.com/daydemir/vhostdoctor/internal/report"
)

var (
	diagnoseReset          bool
	diagnoseYes            bool
	diagnoseDryRun         bool
	diagnoseOutput         string
	diagnoseReportFile     string
	diagnoseProblemDomains []string
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <domain>",
	Short: "Diagnose and repair a domain's nginx vhost",
	Long: `Connect to the configured host, find why <domain> is not served by its
own vhost, and repair it.

Phases:
  connecting           open SSH and SFTP
  analyzing            nginx -t, vhost inventory, conflicts, hosts file
  fixing_hosts         remove loopback entries for the domain
  fixing_vhosts        disable catch-alls, park duplicates, create the vhost
  verifying_ssl        check the certificate files and what nginx serves
  restarting_services  restart nginx once nginx -t passes

Completed phases and steps are recorded and skipped on the next run.
Use --reset to start over, --dry-run to stop after analysis.`,
	Example: `  vhostdoctor diagnose shop.com --dry-run
  vhostdoctor diagnose shop.com --yes --report /tmp/shop.json
  vhostdoctor diagnose shop.com --output json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, err := domainArg(args[0])
		if err != nil {
			return err
		}
		format, err := report.ParseFormat(diagnoseOutput)
		if err != nil {
			return &usageError{msg: err.Error()}
		}

		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		return runDiagnose(cmd.Context(), e, domain, format)
	},
}

func init() {
	diagnoseCmd.Flags().BoolVar(&diagnoseReset, "reset", false, "forget recorded progress before running")
	diagnoseCmd.Flags().BoolVarP(&diagnoseYes, "yes", "y", false, "apply every phase without asking")
	diagnoseCmd.Flags().BoolVar(&diagnoseDryRun, "dry-run", false, "analyze and show the plan, change nothing")
	diagnoseCmd.Flags().StringVarP(&diagnoseOutput, "output", "o", "text", "output format: text, json or yaml")
	diagnoseCmd.Flags().StringVar(&diagnoseReportFile, "report", "", "also write the report to this file (.json or .yaml)")
	diagnoseCmd.Flags().StringSliceVar(&diagnoseProblemDomains, "problem-domain", nil, "extra domain that must not resolve to loopback (repeatable)")
	rootCmd.AddCommand(diagnoseCmd)
}

func runDiagnose(parent context.Context, e *env, domain string, format report.Format) error {
	if parent == nil {
		parent = context.Background()
	}
	if err := e.cfg.RequireHost(); err != nil {
		return err
	}

	sshCfg := e.cfg.RemoteSSH()
	if sshCfg.Password == "" && sshCfg.KeyFile == "" {
		pw, err := readPassword(fmt.Sprintf("%s@%s password: ", sshCfg.User, sshCfg.Host))
		if err != nil {
			return err
		}
		sshCfg.Password = pw
	}

	store, err := e.store()
	if err != nil {
		return err
	}
	if diagnoseReset {
		if err := store.Reset(domain); err != nil {
			return err
		}
		e.logger.Info().Str("domain", domain).Msg("state reset")
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := orchestrator.New(diagnoseOptions(e, domain), remote.NewSSHDialer(sshCfg, e.logger.Logger), store, e.logger.Logger)
	if diagnoseYes {
		orch.WithConfirmer(orchestrator.AutoConfirm{})
	} else {
		orch.WithConfirmer(newPromptConfirmer(os.Stdin, os.Stderr))
	}

	d := e.display
	if format == report.FormatText {
		orch.WithObserver(displayObserver{d: d})
		mode := "repair"
		if diagnoseDryRun {
			mode = "dry run"
		}
		d.Banner(fmt.Sprintf("Diagnosing %s on %s (%s)", domain, sshCfg.Addr(), mode))
		if sum := store.Summary(domain); len(sum.CompletedSteps) > 0 && !diagnoseDryRun {
			d.Resume(fmt.Sprintf("Resuming: %d step(s) already recorded in %s", len(sum.CompletedSteps), sum.Path))
		}
	}

	r := orch.Run(ctx)

	if err := report.Render(d.Writer(), d, r, format); err != nil {
		return err
	}
	if diagnoseReportFile != "" {
		if err := writeReportFile(diagnoseReportFile, r); err != nil {
			return err
		}
		e.logger.Info().Str("path", diagnoseReportFile).Msg("report written")
	}

	switch {
	case r.Interrupted:
		return ErrInterrupted
	case r.Final == orchestrator.StateAborted:
		return ErrUnresolved
	case r.DryRun:
		return nil
	case !r.Resolved():
		return ErrUnresolved
	}
	return nil
}

func diagnoseOptions(e *env, domain string) orchestrator.Options {
	opts := orchestrator.DefaultOptions(domain)
	opts.VhostDir = e.cfg.Paths.VhostDir
	opts.CertDir = e.cfg.Paths.CertDir
	opts.HostsPath = e.cfg.Paths.HostsFile
	opts.ProblemDomains = append(append([]string{}, e.cfg.Hosts.ProblemDomains...), diagnoseProblemDomains...)
	opts.TestCommand = e.cfg.Nginx.TestCommand
	opts.RestartCommand = e.cfg.Nginx.RestartCommand
	opts.ProbeServed = e.cfg.Nginx.ProbeServed
	opts.DryRun = diagnoseDryRun
	opts.Template = nginx.TemplateOptions{
		WebRoot:   e.cfg.Paths.WebRoot,
		CertDir:   e.cfg.Paths.CertDir,
		LogDir:    e.cfg.Paths.LogDir,
		PHPSocket: e.cfg.Nginx.PHPSocket,
	}
	return opts
}

func writeReportFile(path string, r *orchestrator.Report) error {
	format := report.FormatJSON
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = report.FormatYAML
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create report file: %w", err)
	}
	if err := report.Render(f, nil, r, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
