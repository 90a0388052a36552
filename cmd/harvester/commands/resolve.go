package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"review_harvester/internal/app"
	"review_harvester/internal/shared"
	"review_harvester/internal/storage"
)

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <identifier>...",
		Short: "Print the review URL and output file each identifier resolves to, without fetching.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := shared.Load()
			r, err := app.NewResolver(cfg.SiteBase, storage.Ext)
			if err != nil {
				return &exitError{code: ExitConfigError, err: err}
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Identifier", "Subject", "Source URL", "Output key"})
			bad := 0
			for _, id := range args {
				tg, err := r.Resolve(id)
				if err != nil {
					bad++
					t.AppendRow(table.Row{id, "", "", err.Error()})
					continue
				}
				t.AppendRow(table.Row{tg.Identifier, tg.Subject, tg.SourceURL, tg.OutputKey})
			}
			t.SetStyle(table.StyleLight)
			t.Render()

			if bad == len(args) {
				return &exitError{code: ExitConfigError, err: fmt.Errorf("no identifier resolved")}
			}
			return nil
		},
	}
}
