package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/floatchat/floatchat/internal/config"
	"github.com/floatchat/floatchat/internal/ui"
)

var initProject bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file interactively",
	Long: `Pick a backend and model and write them to the global config file.
With --project the result is also written to ./floatchat.yaml, which
overrides the global file for commands run in this directory.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := ui.RunSetupWizard()
		if err != nil {
			return err
		}
		if initProject {
			if err := config.WriteProject(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Project config saved to %s\n", config.ProjectPath())
		}
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initProject, "project", false, "Also write ./floatchat.yaml")
	rootCmd.AddCommand(initCmd)
}
