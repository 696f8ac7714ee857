package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/daydemir/vhostdoctor/internal/workspace"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a vhostdoctor workspace",
	Long: `Initialize a vhostdoctor workspace in the current directory.

Creates .vhostdoctor/ folder with:
  - config.yaml   SSH target, panel paths, nginx commands
  - state/        Per-domain progress, so runs resume

With --force only config.yaml is rewritten; recorded state is kept.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		return workspace.Init(cwd, initForce, cmd.OutOrStdout())
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing config")
	rootCmd.AddCommand(initCmd)
}
