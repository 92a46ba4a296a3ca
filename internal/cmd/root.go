package cmd

import (
	"context"
	"os"

	"github.com/appstash/appstash/internal/config"
	"github.com/appstash/appstash/internal/engine"
	"github.com/appstash/appstash/internal/history"
	"github.com/appstash/appstash/internal/registry"
	"github.com/appstash/appstash/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd(cfg *config.Config, log *zerolog.Logger, version string) *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:          "appstash",
		Short:        "Registry for non-installable programs",
		Long:         `appstash manages AppImages, scripts, and other standalone executables: it copies them into a managed package store, generates XDG desktop menu entries, and supports backup and reinstall of the whole set.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ui.InitColors()
			if plain {
				ui.DisableColors()
			}
		},
	}

	cmd.PersistentFlags().BoolVar(&plain, "plain", false, "plain line-oriented output without colors or progress bars")

	cmd.AddCommand(NewInstallCmd(cfg, log, &plain))
	cmd.AddCommand(NewDeinstallCmd(cfg, log, &plain))
	cmd.AddCommand(NewListCmd(cfg, log))
	cmd.AddCommand(NewInfoCmd(cfg, log))
	cmd.AddCommand(NewBackupCmd(cfg, log, &plain))
	cmd.AddCommand(NewReinstallCmd(cfg, log, &plain))
	cmd.AddCommand(NewHistoryCmd(cfg, log))
	cmd.AddCommand(NewDoctorCmd(cfg, log))
	cmd.AddCommand(NewCompletionCmd(cfg, log))
	cmd.AddCommand(NewVersionCmd(version))

	return cmd
}

// openStore loads the registry according to the configuration
func openStore(cfg *config.Config, log *zerolog.Logger) (*registry.Store, error) {
	return registry.Open(cfg.Paths.RegistryFile, cfg.Paths.PackagesDirectory, cfg.Paths.DesktopFilesDirectory, log)
}

// newEngine wires a lifecycle engine for one command invocation. The
// returned cleanup closes the history journal and must run on every path.
func newEngine(ctx context.Context, cfg *config.Config, log *zerolog.Logger, plain bool) (*engine.Engine, func(), error) {
	store, err := openStore(cfg, log)
	if err != nil {
		return nil, nil, err
	}

	var journal *history.DB
	if cfg.History.Enabled {
		journal, err = history.New(ctx, cfg.History.DBFile)
		if err != nil {
			// The journal is advisory; a broken one must not block installs
			log.Warn().Err(err).Str("db", cfg.History.DBFile).Msg("history journal unavailable")
			journal = nil
		}
	}

	var reporter engine.Reporter
	if plain {
		reporter = ui.NewPlainReporter(os.Stdout, os.Stderr)
	} else {
		reporter = ui.NewTerminalReporter()
	}

	eng := engine.New(cfg, store, journal, log, reporter)
	cleanup := func() {
		if journal != nil {
			journal.Close()
		}
	}
	return eng, cleanup, nil
}
