// Package historycmd shows past deployment runs.
package historycmd

import (
	"fmt"
	"time"

	"siteup"
	"siteup/cmd/siteup/ui"
	"siteup/internal/adapter/sqlite"
	"siteup/pkg/sdk/defaults"

	"github.com/spf13/cobra"
)

func Cmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [target]",
		Short: "Show recent deployments",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) == 1 {
				target = args[0]
			}

			store, err := sqlite.Open(defaults.HistoryDBPath())
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(cmd.Context(), target, limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println(ui.InfoMsg("No deployments recorded."))
				return nil
			}

			var rows [][]string
			for _, rec := range records {
				rows = append(rows, []string{
					rec.Target,
					resultCell(rec),
					detailCell(rec),
					rec.FinishedAt.Local().Format("2006-01-02 15:04"),
					rec.Duration().Round(time.Second).String(),
				})
			}
			fmt.Println(ui.Table([]string{"TARGET", "RESULT", "DETAIL", "FINISHED", "TOOK"}, rows))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	return cmd
}

func resultCell(rec siteup.HistoryRecord) string {
	if rec.Success {
		return ui.Success("ok")
	}
	if rec.Phase != "" {
		return ui.ErrorStyle.Render("failed at " + rec.Phase)
	}
	return ui.ErrorStyle.Render("failed")
}

func detailCell(rec siteup.HistoryRecord) string {
	if rec.Success {
		return rec.Endpoint
	}
	return rec.Failure
}
