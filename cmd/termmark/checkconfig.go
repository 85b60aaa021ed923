package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckConfigCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "check-config",
		Short: "Validate and print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			if cfg.Source != "" {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", cfg.Source); err != nil {
					return err
				}
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), cfg.String())
			return err
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file (TOML or YAML)")
	return cmd
}
