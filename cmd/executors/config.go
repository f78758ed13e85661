package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vnykmshr/executors/pkg/scheduling/scheduler"
)

func newConfigCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration, with sizing defaults filled in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd.Flags())
			if err != nil {
				return err
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func newCronCmd() *cobra.Command {
	var (
		count    int
		location string
	)
	cmd := &cobra.Command{
		Use:   "cron EXPRESSION",
		Short: "Show the next activations of a six-field cron expression",
		Example: `  executors cron "0 */5 * * * *"
  executors cron @daily -n 3 --location Europe/Paris`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := time.LoadLocation(location)
			if err != nil {
				return fmt.Errorf("unknown location %q: %w", location, err)
			}
			desc, err := scheduler.DescribeCron(args[0], time.Now().In(loc), count)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n%s (%s)\n", desc.Expression, desc.Description, desc.TimeZone)
			for _, next := range desc.NextRuns {
				fmt.Fprintf(out, "  %s\n", next.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 5, "number of activations to show")
	cmd.Flags().StringVar(&location, "location", "Local", "time zone of the activations")
	return cmd
}
