package cmd

import (
	"strconv"

	"github.com/appstash/appstash/internal/config"
	"github.com/appstash/appstash/internal/core"
	"github.com/appstash/appstash/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewBackupCmd creates the backup command
func NewBackupCmd(cfg *config.Config, log *zerolog.Logger, plain *bool) *cobra.Command {
	var (
		output   string
		ids      []string
		compress bool
	)

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export installed package metadata to a bundle",
		Long: `Export the metadata of installed packages to a bundle file.

The bundle records the original source locations of each package so the
set can later be reinstalled with 'appstash reinstall'. It does not
contain the package files themselves.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eng, cleanup, err := newEngine(ctx, cfg, log, *plain)
			if err != nil {
				ui.PrintError("%v", err)
				return err
			}
			defer cleanup()

			req := core.BackupRequest{
				IDs:         ids,
				Destination: output,
				Compress:    compress,
			}

			b, warnings, err := eng.Backup(ctx, req)
			if err != nil {
				ui.PrintError("backup failed: %v", err)
				return err
			}

			for _, w := range warnings {
				ui.PrintWarning("%s: source no longer reachable: %s", w.ID, w.Source)
			}
			if len(warnings) > 0 {
				ui.PrintInfo("Packages with unreachable sources were included, but reinstalling them will fail until the sources return")
			}

			ui.PrintKeyValue("Bundle", output)
			ui.PrintKeyValue("Packages", strconv.Itoa(len(b.Packages)))

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "bundle file to write (required)")
	cmd.Flags().StringArrayVar(&ids, "id", nil, "package ID to include (repeatable; default: all)")
	cmd.Flags().BoolVarP(&compress, "compress", "z", false, "compress the bundle with xz")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}
