package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/appstash/appstash/internal/config"
	"github.com/appstash/appstash/internal/core"
	"github.com/appstash/appstash/internal/desktop"
	"github.com/appstash/appstash/internal/fsops"
	"github.com/appstash/appstash/internal/registry"
	"github.com/appstash/appstash/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// NewDoctorCmd creates the doctor command
func NewDoctorCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and registry integrity",
		Long:  `Check directories, the registry file, and installed packages for problems.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ui.PrintHeader("System Diagnostics")
			fmt.Println()

			var issues []string
			var warnings []string

			// 1. Check directory structure
			ui.PrintSubheader("Directories")
			dirs := []struct {
				path string
				name string
			}{
				{cfg.Paths.PackagesDirectory, "Packages directory"},
				{cfg.Paths.DesktopFilesDirectory, "Desktop files directory"},
				{filepath.Dir(cfg.Paths.RegistryFile), "Registry directory"},
				{filepath.Dir(cfg.Paths.LogFile), "Log directory"},
			}

			for _, dir := range dirs {
				if err := checkDirectory(dir.path); err != nil {
					ui.PrintError("%s: NOT ACCESSIBLE (%s)", dir.name, dir.path)
					issues = append(issues, fmt.Sprintf("Directory not accessible: %s (%v)", dir.path, err))
				} else {
					ui.PrintSuccess("%s: %s", dir.name, dir.path)
				}
			}

			fmt.Println()

			// 2. Check registry
			ui.PrintSubheader("Registry")
			store, err := openStore(cfg, log)
			if err != nil {
				if core.IsKind(err, core.ErrCorruptRegistry) {
					ui.PrintError("Registry: CORRUPT (%s)", cfg.Paths.RegistryFile)
				} else {
					ui.PrintError("Registry: NOT ACCESSIBLE")
				}
				issues = append(issues, fmt.Sprintf("Cannot open registry: %v", err))
			} else {
				ui.PrintSuccess("Registry: loaded (%s)", store.Path())
				ui.PrintInfo("Installed packages: %d", store.Len())

				if verbose {
					broken := checkPackageIntegrity(store)
					if len(broken) > 0 {
						ui.PrintWarning("Found %d package(s) with missing files:", len(broken))
						ui.PrintList(broken)
						warnings = append(warnings, fmt.Sprintf("%d packages have missing files", len(broken)))
					} else {
						ui.PrintSuccess("All installed packages have intact files")
					}
				}

				orphans, err := store.Orphans()
				if err != nil {
					ui.PrintWarning("Cannot scan for leftover directories: %v", err)
					warnings = append(warnings, "Cannot scan for leftover directories")
				} else if len(orphans) > 0 {
					ui.PrintWarning("Found %d leftover directory(ies) without a registry record:", len(orphans))
					ui.PrintList(orphans)
					warnings = append(warnings, fmt.Sprintf("%d leftover directories in %s", len(orphans), store.PackagesDirectory()))
				} else if verbose {
					ui.PrintSuccess("No leftover directories")
				}
			}

			fmt.Println()

			// 3. Check history journal
			ui.PrintSubheader("History")
			if !cfg.History.Enabled {
				ui.PrintInfo("History journal: disabled")
			} else if err := checkDirectory(filepath.Dir(cfg.History.DBFile)); err != nil {
				ui.PrintWarning("History directory not accessible: %v", err)
				warnings = append(warnings, "History directory not accessible")
			} else {
				ui.PrintSuccess("History journal: %s", cfg.History.DBFile)
			}

			fmt.Println()

			// Summary
			ui.PrintHeader("Summary")
			fmt.Println()

			if len(issues) == 0 {
				ui.PrintSuccess("All critical checks passed!")
			} else {
				ui.PrintError("Found %d issue(s):", len(issues))
				ui.PrintList(issues)
				fmt.Println()
			}

			if len(warnings) > 0 {
				ui.PrintWarning("Found %d warning(s):", len(warnings))
				ui.PrintList(warnings)
			}

			fmt.Println()

			if len(issues) > 0 {
				return fmt.Errorf("system check failed with %d issue(s)", len(issues))
			}

			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose output with integrity checks")

	return cmd
}

// checkDirectory checks if a directory exists (creating it if missing) and
// is writable
func checkDirectory(path string) error {
	fs := afero.NewOsFs()
	if err := fsops.EnsureDir(fs, path, 0755); err != nil {
		return err
	}
	return fsops.CheckWritable(fs, path)
}

// checkPackageIntegrity reports packages whose files or desktop entries are
// missing on disk
func checkPackageIntegrity(store *registry.Store) []string {
	var broken []string

	for _, rec := range store.List() {
		pkgDir := filepath.Join(store.PackagesDirectory(), rec.ID)
		execPath := filepath.Join(pkgDir, rec.ExecutablePath)
		entryPath := desktop.EntryPath(store.DesktopFilesDirectory(), rec.ID)

		switch {
		case !exists(pkgDir):
			broken = append(broken, fmt.Sprintf("%s: package directory missing (%s)", rec.ID, pkgDir))
		case !exists(execPath):
			broken = append(broken, fmt.Sprintf("%s: executable missing (%s)", rec.ID, execPath))
		case !exists(entryPath):
			broken = append(broken, fmt.Sprintf("%s: desktop entry missing (%s)", rec.ID, entryPath))
		}
	}

	return broken
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
