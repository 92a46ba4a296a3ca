package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/appstash/appstash/internal/config"
	"github.com/appstash/appstash/internal/history"
	"github.com/appstash/appstash/internal/ui"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command
func NewHistoryCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the operation journal",
		Long:  `Show recent install, deinstall, backup and reinstall operations.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cfg.History.Enabled {
				ui.PrintInfo("History journal is disabled (history.enabled = false)")
				return nil
			}

			ctx := cmd.Context()

			journal, err := history.New(ctx, cfg.History.DBFile)
			if err != nil {
				ui.PrintError("cannot open history journal: %v", err)
				return fmt.Errorf("open history journal: %w", err)
			}
			defer func() { _ = journal.Close() }()

			events, err := journal.List(ctx, limit)
			if err != nil {
				ui.PrintError("cannot read history: %v", err)
				return fmt.Errorf("read history: %w", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(events)
			}

			if len(events) == 0 {
				ui.PrintInfo("No operations recorded yet")
				return nil
			}

			table := tablewriter.NewTable(cmd.OutOrStdout(),
				tablewriter.WithHeader([]string{"Time", "Operation", "Package", "Result"}),
				tablewriter.WithAlignment(tw.MakeAlign(4, tw.AlignLeft)),
				tablewriter.WithSymbols(tw.NewSymbols(tw.StyleNone)),
			)

			for _, ev := range events {
				pkg := ev.PackageID
				if pkg == "" {
					pkg = ev.Name
				}
				result := ui.CheckMark + " ok"
				if !ev.Success {
					result = ui.CrossMark + " failed"
				}
				table.Append(
					ev.Timestamp.Format("2006-01-02 15:04:05"),
					ev.Operation,
					pkg,
					result,
				)
			}

			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of events to show (0 = all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	return cmd
}
