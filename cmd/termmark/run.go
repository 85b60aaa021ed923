package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"

	"github.com/dshills/termmark/internal/app"
	"github.com/dshills/termmark/internal/config"
	"github.com/dshills/termmark/internal/logging"
)

func newRunCmd() *cobra.Command {
	var cfgPath string
	var showStats bool
	cmd := &cobra.Command{
		Use:   "run <script.lua>",
		Short: "Run a Lua script against a fresh session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}

			logger, err := logging.New(os.Stderr, logging.Config{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
			})
			if err != nil {
				return err
			}

			session, err := app.NewSession(cfg, app.WithLogger(logger))
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()

			pslog.Ctx(cmd.Context()).Debug("running script", "script", args[0], "config", cfg.Source)
			if err := session.RunScript(cmd.Context(), args[0], cmd.OutOrStdout()); err != nil {
				return err
			}

			if showStats {
				st := session.Stats()
				_, err = fmt.Fprintf(cmd.ErrOrStderr(), "lines=%d trimmed=%d marks=%d evicted=%d\n",
					st.Lines, st.Trimmed, st.Marks, st.Evicted)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file (TOML or YAML)")
	cmd.Flags().BoolVar(&showStats, "stats", false, "Print session counters to stderr after the run")
	return cmd
}

// loadConfig resolves the config file, falling back to TERMMARK_CONFIG.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		path = os.Getenv("TERMMARK_CONFIG")
	}
	var opts []config.Option
	if path != "" {
		opts = append(opts, config.WithFile(path))
	}
	return config.Load(opts...)
}
