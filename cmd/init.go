package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tanq16/ruget/internal/config"
	"github.com/tanq16/ruget/internal/output"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a commented config template to ~/.rugetrc (or --config)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				path = config.DefaultPath()
			}
			if err := config.WriteTemplate(path); err != nil {
				return configFailure(nil, err)
			}
			output.PrintSuccess("Config template written to " + path)
			return nil
		},
	}
}
