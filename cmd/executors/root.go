package main

import (
	"fmt"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/vnykmshr/executors/internal/config"
	"github.com/vnykmshr/executors/internal/logging"
)

// loader reads the effective configuration of a command.
type loader func(fs *flag.FlagSet) (config.Config, error)

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "executors",
		Short: "Run and inspect worker pool profiles",
		Long: `executors drives worker pools configured with one of the sizing
policies (fixed, cached, single, work-stealing, custom) and reports how
their tasks were executed, queued, rejected or cancelled.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "YAML file with pool profiles (default: built-in demonstrations)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", logging.FormatConsole, "log format: console or json")
	pf.String("log-file", "", "write logs to this file, rotated, instead of stderr")

	load := func(fs *flag.FlagSet) (config.Config, error) {
		return config.LoadWithFlags(configFile, fs)
	}
	root.AddCommand(
		newDemoCmd(load),
		newRunCmd(load),
		newConfigCmd(load),
		newCronCmd(),
	)
	return root
}

// newLogger builds the logger described by cfg.
func newLogger(cfg config.Config) (*zap.Logger, func() error, error) {
	logger, closeFn, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("error while creating the logger: %w", err)
	}
	return logger, closeFn, nil
}
