package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/daydemir/vhostdoctor/internal/state"
)

var cleanupDays int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete state files older than N days",
	Long: `Delete state files that have not been modified for --days days.
Defaults to state.retention_days from the config.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		days := e.cfg.State.RetentionDays
		if cmd.Flags().Changed("days") {
			days = cleanupDays
		}

		removed, err := state.CleanupOldStates(e.cfg.State.Dir, days, time.Now())
		for _, p := range removed {
			e.display.Detail("removed " + p)
		}
		if err != nil {
			return err
		}
		e.logger.Info().Int("days", days).Int("removed", len(removed)).Msg("state cleanup")
		e.display.Success(fmt.Sprintf("Removed %d state file(s) older than %d day(s)", len(removed), days))
		return nil
	},
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 30, "remove state not modified for this many days")
	rootCmd.AddCommand(cleanupCmd)
}
