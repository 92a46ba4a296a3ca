package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/appstash/appstash/internal/config"
	"github.com/appstash/appstash/internal/core"
	"github.com/appstash/appstash/internal/desktop"
	"github.com/appstash/appstash/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewInfoCmd creates the info command
func NewInfoCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "info [package-id or name]",
		Short: "Show package information",
		Long:  `Show detailed information about an installed package. Run without arguments for an interactive selector.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cfg, log)
			if err != nil {
				ui.PrintError("%v", err)
				return err
			}

			var identifier string
			if len(args) == 1 {
				identifier = args[0]
			} else {
				records := store.List()
				if len(records) == 0 {
					ui.PrintInfo("No packages are currently installed")
					return nil
				}

				options := make([]string, 0, len(records))
				for _, candidate := range records {
					options = append(options, fmt.Sprintf("%s (%s)", candidate.Name, candidate.ID))
				}

				idx, _, err := ui.SelectPrompt("Select a package", options)
				if err != nil {
					ui.PrintWarning("selection cancelled")
					return nil
				}
				identifier = records[idx].ID
			}

			rec, ok := store.Get(identifier)
			if !ok {
				// Try finding by name (case-insensitive)
				log.Debug().
					Str("identifier", identifier).
					Msg("not found by ID, trying by name")

				lowerIdentifier := strings.ToLower(identifier)
				for _, candidate := range store.List() {
					if strings.ToLower(candidate.Name) == lowerIdentifier {
						rec = candidate
						ok = true
						break
					}
				}
			}

			if !ok {
				ui.PrintError("package not found: %s", identifier)
				ui.PrintInfo("Use 'appstash list' to see installed packages")
				return core.NewError(core.ErrNotFound, "package not found: %s", identifier)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}

			printPackageInfo(&rec, store.PackagesDirectory(), store.DesktopFilesDirectory())

			log.Info().
				Str("package_id", rec.ID).
				Str("name", rec.Name).
				Msg("displayed package info")

			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	return cmd
}

// printPackageInfo displays detailed package information
func printPackageInfo(rec *core.PackageRecord, packagesDir, desktopDir string) {
	ui.PrintHeader(fmt.Sprintf("Package Information: %s", rec.Name))
	fmt.Println()

	ui.PrintKeyValue("Name", rec.Name)
	ui.PrintKeyValue("ID", rec.ID)
	ui.PrintKeyValue("Kind", ui.ColorizeKind(string(rec.Kind)))

	if rec.GenericName != "" {
		ui.PrintKeyValue("Generic Name", rec.GenericName)
	}
	if rec.Comment != "" {
		ui.PrintKeyValue("Comment", rec.Comment)
	}

	ui.PrintKeyValue("Install Date", rec.InstallDate.Format("2006-01-02 15:04:05"))
	ui.PrintKeyValue("Terminal", fmt.Sprintf("%t", rec.Terminal))

	if len(rec.Categories) > 0 {
		ui.PrintKeyValue("Categories", strings.Join(rec.Categories, ", "))
	}
	if len(rec.Keywords) > 0 {
		ui.PrintKeyValue("Keywords", strings.Join(rec.Keywords, ", "))
	}

	fmt.Println()
	ui.PrintSubheader("Paths")

	ui.PrintKeyValue("Package Directory", filepath.Join(packagesDir, rec.ID))
	ui.PrintKeyValue("Executable", filepath.Join(packagesDir, rec.ID, rec.ExecutablePath))
	ui.PrintKeyValue("Desktop File", desktop.EntryPath(desktopDir, rec.ID))

	if rec.IconPath != "" {
		ui.PrintKeyValue("Icon", rec.IconPath)
	} else {
		ui.PrintKeyValue("Icon", "(none)")
	}

	if len(rec.AdditionalFiles) > 0 {
		fmt.Println()
		ui.PrintKeyValue("Additional Files", "")
		ui.PrintList(rec.AdditionalFiles)
	}

	fmt.Println()
	ui.PrintSubheader("Sources")

	ui.PrintKeyValue("Source Executable", rec.SourceExecutable)
	if rec.SourceIcon != "" {
		ui.PrintKeyValue("Source Icon", rec.SourceIcon)
	}
	if len(rec.SourceAdditional) > 0 {
		ui.PrintKeyValue("Source Additional Files", "")
		ui.PrintList(rec.SourceAdditional)
	}

	fmt.Println()
}
