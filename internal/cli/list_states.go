package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/daydemir/vhostdoctor/internal/state"
)

var listStatesCmd = &cobra.Command{
	Use:     "list-states",
	Aliases: []string{"ls"},
	Short:   "List domains with recorded progress",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		infos, err := state.ListStates(e.cfg.State.Dir)
		if err != nil {
			return err
		}
		d := e.display
		if len(infos) == 0 {
			d.Info("State", "no state files in "+e.cfg.State.Dir)
			return nil
		}

		w := d.Writer()
		fmt.Fprintf(w, "%s\n\n", d.Theme().Bold(fmt.Sprintf("%d domain(s) in %s", len(infos), e.cfg.State.Dir)))
		for _, info := range infos {
			if !info.Readable {
				fmt.Fprintf(w, "  %-32s %s\n", info.Domain, d.Theme().Warning("unreadable"))
				continue
			}
			fmt.Fprintf(w, "  %-32s %3d step(s)  %s\n", info.Domain, info.CompletedSteps,
				d.Theme().Dim(info.ModTime.Local().Format(time.DateTime)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listStatesCmd)
}
