package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vnykmshr/executors/internal/runner"
)

func newDemoCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "demo [profile...]",
		Short: "Run pool profiles one after another and print what each task did",
		Long: `demo runs the selected profiles sequentially. Without a config file
the profiles are the seven classic demonstrations: fixed, cached, single,
scheduled, single-scheduled, work-stealing and manual.`,
		Example: `  executors demo
  executors demo single manual
  executors demo --config pools.yaml --log-level debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd.Flags())
			if err != nil {
				return err
			}
			pools, err := cfg.Lookup(args...)
			if err != nil {
				return err
			}
			logger, closeLog, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			out := cmd.OutOrStdout()
			r := &runner.Runner{Out: out, Logger: logger}
			for _, p := range pools {
				fmt.Fprintf(out, "== %s (%s) ==\n", p.Name, p.Sizing)
				report, err := r.Run(cmd.Context(), p)
				if err != nil {
					return fmt.Errorf("profile %s: %w", p.Name, err)
				}
				fmt.Fprintln(out, report)
			}
			return nil
		},
	}
}
