package cmd

import (
	"fmt"

	"github.com/appstash/appstash/internal/config"
	"github.com/appstash/appstash/internal/core"
	"github.com/appstash/appstash/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewInstallCmd creates the install command
func NewInstallCmd(cfg *config.Config, log *zerolog.Logger, plain *bool) *cobra.Command {
	var (
		id          string
		name        string
		genericName string
		comment     string
		files       []string
		icon        string
		categories  []string
		keywords    []string
		terminal    bool
		replace     bool
	)

	cmd := &cobra.Command{
		Use:   "install [executable]",
		Short: "Install a program into the package store",
		Long:  `Copy an executable (AppImage, script, binary) and its auxiliary files into the package store, register it, and create an XDG desktop menu entry.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eng, cleanup, err := newEngine(ctx, cfg, log, *plain)
			if err != nil {
				ui.PrintError("%v", err)
				return err
			}
			defer cleanup()

			req := core.InstallRequest{
				ID:              id,
				Name:            name,
				GenericName:     genericName,
				Comment:         comment,
				ExecutablePath:  args[0],
				AdditionalFiles: files,
				IconPath:        icon,
				Categories:      categories,
				Keywords:        keywords,
				Terminal:        terminal,
				Replace:         replace,
			}

			log.Info().
				Str("package_id", id).
				Str("executable", args[0]).
				Bool("replace", replace).
				Msg("starting installation")

			rec, err := eng.Install(ctx, req)
			if err != nil {
				ui.PrintError("installation failed: %v", err)
				return err
			}

			ui.PrintKeyValue("Name", rec.Name)
			ui.PrintKeyValue("ID", rec.ID)
			ui.PrintKeyValue("Kind", string(rec.Kind))
			ui.PrintKeyValue("Directory", fmt.Sprintf("%s/%s", eng.Store().PackagesDirectory(), rec.ID))

			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "unique package ID, used as directory and desktop file name (required)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "application display name (required)")
	cmd.Flags().StringVar(&genericName, "generic-name", "", "generic name for the desktop entry")
	cmd.Flags().StringVarP(&comment, "comment", "c", "", "desktop entry comment")
	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "additional file or directory to copy alongside the executable (repeatable)")
	cmd.Flags().StringVarP(&icon, "icon", "i", "", "icon file, copied into the package directory")
	cmd.Flags().StringArrayVar(&categories, "category", nil, "desktop menu category (repeatable)")
	cmd.Flags().StringArrayVar(&keywords, "keyword", nil, "desktop menu keyword (repeatable)")
	cmd.Flags().BoolVarP(&terminal, "terminal", "t", false, "program runs inside a terminal")
	cmd.Flags().BoolVar(&replace, "replace", false, "replace an existing package with the same ID")
	cmd.MarkFlagRequired("id")
	cmd.MarkFlagRequired("name")

	return cmd
}
