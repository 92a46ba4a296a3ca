package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/appstash/appstash/internal/config"
	"github.com/appstash/appstash/internal/core"
	"github.com/appstash/appstash/internal/ui"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewListCmd creates the list command
func NewListCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	var (
		jsonOutput  bool
		filterName  string
		sortBy      string
		showDetails bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed packages",
		Long:  `List all installed packages with filtering and sorting options.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cfg, log)
			if err != nil {
				ui.PrintError("%v", err)
				return err
			}

			records := store.List()
			filtered := filterRecords(records, filterName)
			sortRecords(filtered, sortBy)

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(filtered)
			}

			if len(filtered) == 0 {
				if filterName != "" {
					ui.PrintWarning("No packages found matching filter")
				} else {
					ui.PrintInfo("No packages installed")
				}
				return nil
			}

			fmt.Printf("Total: %d package(s)", len(records))
			if len(filtered) != len(records) {
				fmt.Printf(" (showing %d filtered)", len(filtered))
			}
			fmt.Println()
			fmt.Println()

			if showDetails {
				printDetailedTable(cmd, filtered)
			} else {
				printCompactTable(cmd, filtered)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	cmd.Flags().StringVar(&filterName, "name", "", "filter by package name or ID (partial match)")
	cmd.Flags().StringVar(&sortBy, "sort", "id", "sort by: id, name, date")
	cmd.Flags().BoolVarP(&showDetails, "details", "d", false, "show detailed information")

	return cmd
}

func filterRecords(records []core.PackageRecord, filterName string) []core.PackageRecord {
	if filterName == "" {
		return records
	}

	needle := strings.ToLower(filterName)
	filtered := make([]core.PackageRecord, 0)
	for _, rec := range records {
		if strings.Contains(strings.ToLower(rec.Name), needle) ||
			strings.Contains(strings.ToLower(rec.ID), needle) {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

func sortRecords(records []core.PackageRecord, sortBy string) {
	switch strings.ToLower(sortBy) {
	case "name":
		sort.Slice(records, func(i, j int) bool {
			return strings.ToLower(records[i].Name) < strings.ToLower(records[j].Name)
		})
	case "date":
		sort.Slice(records, func(i, j int) bool {
			return records[i].InstallDate.After(records[j].InstallDate)
		})
	default:
		sort.Slice(records, func(i, j int) bool {
			return records[i].ID < records[j].ID
		})
	}
}

func printCompactTable(cmd *cobra.Command, records []core.PackageRecord) {
	table := tablewriter.NewTable(cmd.OutOrStdout(),
		tablewriter.WithHeader([]string{"ID", "Name", "Kind", "Install Date"}),
		tablewriter.WithAlignment(tw.MakeAlign(4, tw.AlignLeft)),
		tablewriter.WithSymbols(tw.NewSymbols(tw.StyleNone)),
	)

	for _, rec := range records {
		table.Append(
			rec.ID,
			rec.Name,
			ui.ColorizeKind(string(rec.Kind)),
			rec.InstallDate.Format("2006-01-02 15:04"),
		)
	}

	table.Render()
}

func printDetailedTable(cmd *cobra.Command, records []core.PackageRecord) {
	table := tablewriter.NewTable(cmd.OutOrStdout(),
		tablewriter.WithHeader([]string{"ID", "Name", "Kind", "Install Date", "Executable", "Source"}),
		tablewriter.WithAlignment(tw.MakeAlign(6, tw.AlignLeft)),
		tablewriter.WithSymbols(tw.NewSymbols(tw.StyleLight)),
	)

	for _, rec := range records {
		source := rec.SourceExecutable
		if len(source) > 40 {
			source = "..." + source[len(source)-37:]
		}

		table.Append(
			rec.ID,
			rec.Name,
			ui.ColorizeKind(string(rec.Kind)),
			rec.InstallDate.Format("2006-01-02"),
			rec.ExecutablePath,
			source,
		)
	}

	table.Render()
}
