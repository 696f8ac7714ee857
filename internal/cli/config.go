package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/daydemir/vhostdoctor/internal/config"
	"github.com/daydemir/vhostdoctor/internal/workspace"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "View or modify configuration",
	Long: `View or modify vhostdoctor configuration.

Examples:
  vhostdoctor config                            Show all config
  vhostdoctor config ssh.host                   Get a specific value
  vhostdoctor config ssh.host 203.0.113.10      Set a value
  vhostdoctor config hosts.problem_domains a.com,b.com`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := cfgFile
		if configPath == "" {
			wsDir, err := workspace.Resolve()
			if err != nil {
				return err
			}
			configPath = workspace.ConfigPath(wsDir)
		}

		out := cmd.OutOrStdout()
		switch len(args) {
		case 0:
			return showConfig(out, configPath)
		case 1:
			return getConfigValue(out, configPath, args[0])
		case 2:
			return setConfigValue(out, configPath, args[0], args[1])
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func showConfig(out io.Writer, configPath string) error {
	content, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no config at %s (run 'vhostdoctor init')", configPath)
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	fmt.Fprintln(out, string(content))
	return nil
}

func getConfigValue(out io.Writer, configPath, key string) error {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	value := v.Get(key)
	if value == nil {
		return fmt.Errorf("key not found: %s", key)
	}

	fmt.Fprintln(out, value)
	return nil
}

func setConfigValue(out io.Writer, configPath, key, value string) error {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	// Handle array values (comma-separated)
	if strings.Contains(value, ",") {
		v.Set(key, strings.Split(value, ","))
	} else {
		v.Set(key, value)
	}

	// Refuse to write a config that would not load
	if _, err := config.Decode(v); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(out, "Set %s = %s\n", key, value)
	return nil
}
