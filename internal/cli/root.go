package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version  = "0.1.0"
	cfgFile  string
	logLevel string
	noColor  bool
)

var rootCmd = &cobra.Command{
	Use:   "vhostdoctor",
	Short: "Diagnose and repair nginx vhost conflicts over SSH",
	Long: `vhostdoctor finds why a domain is served by the wrong nginx site on an
aaPanel host and repairs it: catch-all fragments, duplicate server_name
claims, loopback entries in /etc/hosts, missing vhost configs and
certificates that do not match.

Every change is backed up, verified with nginx -t and recorded, so an
interrupted run resumes where it stopped.

Get started:
  vhostdoctor init                       Create a workspace config
  vhostdoctor diagnose shop.com --dry-run Show findings and the plan
  vhostdoctor diagnose shop.com          Apply the plan
  vhostdoctor state shop.com             Show recorded progress`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .vhostdoctor/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug also logs to stderr)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.SetVersionTemplate(fmt.Sprintf("vhostdoctor version %s\n", version))
}
