package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"winsbygroup.com/keyverify/internal/config"
	"winsbygroup.com/keyverify/internal/logging"
	"winsbygroup.com/keyverify/internal/server"
)

// app is the state shared by every command, filled in before any RunE.
type app struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log *zap.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "keyverify",
		Short:         "Verify signed license keys from the licensing service",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "config.yaml", "path to config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		NewVerifyCommand(a).Command(),
		NewActivateCommand(a).Command(),
		NewGetKeyCommand(a).Command(),
		NewDeactivateCommand(a).Command(),
		NewMachineCodeCommand(a).Command(),
		NewServeCommand(a).Command(),
		NewBackupCommand(a).Command(),
		NewVersionCommand().Command(),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(log)

	a.cfg = cfg
	a.log = log
	return nil
}

func (a *app) services() (*server.Services, error) {
	return server.NewServices(a.cfg, a.log)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
