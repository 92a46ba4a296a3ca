package cmd

import (
	"context"
	"fmt"

	"github.com/appstash/appstash/internal/config"
	"github.com/appstash/appstash/internal/core"
	"github.com/appstash/appstash/internal/engine"
	"github.com/appstash/appstash/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewDeinstallCmd creates the deinstall command
func NewDeinstallCmd(cfg *config.Config, log *zerolog.Logger, plain *bool) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "deinstall [package-id]",
		Short: "Remove an installed package",
		Long:  `Remove a package: its desktop menu entry, its registry record, and its directory in the package store. Run without arguments for an interactive selector.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eng, cleanup, err := newEngine(ctx, cfg, log, *plain)
			if err != nil {
				ui.PrintError("%v", err)
				return err
			}
			defer cleanup()

			if len(args) == 0 {
				return runInteractiveDeinstall(ctx, eng, log, yes)
			}

			return runSingleDeinstall(ctx, eng, log, args[0])
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}

func runSingleDeinstall(ctx context.Context, eng *engine.Engine, log *zerolog.Logger, id string) error {
	log.Info().Str("package_id", id).Msg("starting deinstallation")

	if _, ok := eng.Store().Get(id); !ok {
		ui.PrintWarning("package %q is not in the registry, cleaning up any leftovers", id)
	}

	if err := eng.Deinstall(ctx, id); err != nil {
		ui.PrintError("deinstallation failed: %v", err)
		return err
	}

	return nil
}

func runInteractiveDeinstall(ctx context.Context, eng *engine.Engine, log *zerolog.Logger, yes bool) error {
	records := eng.Store().List()
	if len(records) == 0 {
		ui.PrintInfo("No packages are currently installed")
		return nil
	}

	options := make([]string, 0, len(records))
	optionMap := make(map[string]core.PackageRecord, len(records))
	for _, rec := range records {
		label := fmt.Sprintf("%s (%s) - %s", rec.Name, rec.ID, rec.InstallDate.Format("2006-01-02"))
		options = append(options, label)
		optionMap[label] = rec
	}

	selected, err := ui.MultiSelectPrompt("Select packages to deinstall", options)
	if err != nil {
		ui.PrintWarning("selection cancelled, nothing was deinstalled")
		return nil
	}
	if len(selected) == 0 {
		ui.PrintInfo("No packages selected, nothing to do")
		return nil
	}

	if !yes {
		confirmed, err := ui.ConfirmPrompt(fmt.Sprintf("Deinstall %d package(s)", len(selected)))
		if err != nil || !confirmed {
			ui.PrintWarning("deinstallation cancelled")
			return nil
		}
	}

	var failures int
	for i, label := range selected {
		rec := optionMap[label]
		ui.PrintStep(i+1, len(selected), "deinstalling %s", rec.ID)

		if err := eng.Deinstall(ctx, rec.ID); err != nil {
			ui.PrintError("deinstall %s: %v", rec.ID, err)
			failures++
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d packages failed to deinstall", failures, len(selected))
	}

	ui.PrintSuccess("deinstalled %d package(s)", len(selected))
	return nil
}
