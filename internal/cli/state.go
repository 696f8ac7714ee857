package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/daydemir/vhostdoctor/internal/display"
	"github.com/daydemir/vhostdoctor/internal/report"
	"github.com/daydemir/vhostdoctor/internal/state"
)

var (
	stateReset     bool
	stateClearStep string
	stateClearAll  bool
	stateOutput    string
	stateShow      bool
)

var stateCmd = &cobra.Command{
	Use:   "state <domain>",
	Short: "Show or edit recorded progress for a domain",
	Long: `Show which phases and steps are recorded as completed for <domain>.

Examples:
  vhostdoctor state shop.com                          Show progress
  vhostdoctor state shop.com --show                   Same as above
  vhostdoctor state shop.com --clear-step restart_services  Run one key again
  vhostdoctor state shop.com --clear-all              Run every step again
  vhostdoctor state shop.com --reset                  Delete the state file`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, err := domainArg(args[0])
		if err != nil {
			return err
		}
		if countTrue(stateReset, stateClearAll, stateClearStep != "") > 1 {
			return &usageError{msg: "use only one of --reset, --clear-all, --clear-step"}
		}
		format, err := report.ParseFormat(stateOutput)
		if err != nil {
			return &usageError{msg: err.Error()}
		}

		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		store, err := e.store()
		if err != nil {
			return err
		}
		d := e.display

		switch {
		case stateReset:
			if err := store.Reset(domain); err != nil {
				return err
			}
			d.Success("State reset for " + domain)
			return nil
		case stateClearAll:
			if err := store.ClearAll(domain); err != nil {
				return err
			}
			d.Success("Cleared all completed steps for " + domain)
			return nil
		case stateClearStep != "":
			if !store.IsCompleted(domain, stateClearStep) {
				d.Warning(fmt.Sprintf("%s is not recorded for %s", stateClearStep, domain))
				return nil
			}
			if err := store.Clear(domain, stateClearStep); err != nil {
				return err
			}
			d.Success(fmt.Sprintf("Cleared %s for %s", stateClearStep, domain))
			return nil
		}

		return showState(d, store, domain, format)
	},
}

func init() {
	stateCmd.Flags().BoolVar(&stateReset, "reset", false, "delete the state file")
	stateCmd.Flags().StringVar(&stateClearStep, "clear-step", "", "forget one completed key")
	stateCmd.Flags().BoolVar(&stateClearAll, "clear-all", false, "forget every completed key, keep analysis results")
	stateCmd.Flags().StringVarP(&stateOutput, "output", "o", "text", "output format: text, json or yaml")
	stateCmd.Flags().BoolVar(&stateShow, "show", false, "show progress (the default action)")
	rootCmd.AddCommand(stateCmd)
}

func showState(d *display.Display, store *state.Store, domain string, format report.Format) error {
	recorded := store.Recorded(domain)
	if !recorded && format == report.FormatText {
		d.Info("State", "nothing recorded for "+domain)
		return nil
	}

	sum := state.Summary{
		Domain:         domain,
		CompletedSteps: []string{},
		AnalysisTypes:  []string{},
		SessionKeys:    []string{},
		Path:           store.Path(domain),
	}
	if recorded {
		sum = store.Summary(domain)
	}

	switch format {
	case report.FormatJSON:
		enc := json.NewEncoder(d.Writer())
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	case report.FormatYAML:
		enc := yaml.NewEncoder(d.Writer())
		enc.SetIndent(2)
		if err := enc.Encode(sum); err != nil {
			return err
		}
		return enc.Close()
	}

	lines := []string{
		fmt.Sprintf("File:     %s", sum.Path),
		fmt.Sprintf("Created:  %s", sum.CreatedAt.Local().Format(time.DateTime)),
		fmt.Sprintf("Updated:  %s", sum.LastUpdated.Local().Format(time.DateTime)),
		fmt.Sprintf("Analysis: %v", sum.AnalysisTypes),
	}
	if id, ok := store.SessionData(domain, "last_session_id"); ok {
		lines = append(lines, "Session:  "+id)
	}
	d.Box("STATE "+domain, lines...)

	steps := append([]string{}, sum.CompletedSteps...)
	sort.Strings(steps)
	fmt.Fprintf(d.Writer(), "\n%d completed key(s):\n", len(steps))
	for _, key := range steps {
		rec, _ := store.StepRecord(domain, key)
		line := fmt.Sprintf("%s%s %s", display.Indent, d.Theme().Success(display.SymbolSuccess), key)
		if !rec.CompletedAt.IsZero() {
			line += d.Theme().Dim("  " + rec.CompletedAt.Local().Format(time.DateTime))
		}
		fmt.Fprintln(d.Writer(), line)
	}
	return nil
}

func countTrue(bs ...bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}
