package cmd

import (
	"github.com/appstash/appstash/internal/bundle"
	"github.com/appstash/appstash/internal/config"
	"github.com/appstash/appstash/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewReinstallCmd creates the reinstall command
func NewReinstallCmd(cfg *config.Config, log *zerolog.Logger, plain *bool) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "reinstall [bundle-file]",
		Short: "Reinstall packages from a bundle",
		Long: `Reinstall packages from a bundle created by 'appstash backup'.

Each package is reinstalled from its original source location. Packages
whose sources have moved or disappeared are reported individually; the
rest of the bundle is still processed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bundlePath := args[0]
			ctx := cmd.Context()

			b, err := bundle.Read(bundlePath)
			if err != nil {
				ui.PrintError("cannot read bundle: %v", err)
				return err
			}

			if len(b.Packages) == 0 {
				ui.PrintInfo("Bundle contains no packages")
				return nil
			}

			eng, cleanup, err := newEngine(ctx, cfg, log, *plain)
			if err != nil {
				ui.PrintError("%v", err)
				return err
			}
			defer cleanup()

			results := eng.Reinstall(ctx, b, replace)

			succeeded := 0
			var firstErr error
			for _, res := range results {
				if res.Err == nil {
					succeeded++
					continue
				}
				if firstErr == nil {
					firstErr = res.Err
				}
			}

			ui.PrintSeparator()
			if succeeded == len(results) {
				ui.PrintSuccess("Reinstalled %d package(s)", succeeded)
				return nil
			}

			ui.PrintWarning("Reinstalled %d of %d package(s)", succeeded, len(results))
			return firstErr
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "replace packages that are already installed")

	return cmd
}
