package main

import (
	"fmt"
	"os"

	"gosobol/adapters/sqlite"
	"gosobol/domain/core"
	"gosobol/internal"
	"gosobol/ports"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newRunsCmd(logger func() *internal.Logger) *cobra.Command {
	var storePath string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect runs recorded with run --store",
	}
	cmd.PersistentFlags().StringVar(&storePath, "store", os.Getenv("GOSOBOL_STORE"), "SQLite run store")

	open := func() (*sqlite.RunStore, error) {
		if storePath == "" {
			return nil, fmt.Errorf("--store is required")
		}
		if _, err := os.Stat(storePath); err != nil {
			return nil, err
		}
		return sqlite.Open(storePath)
	}

	var limit, offset int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), ports.RunFilters{Limit: limit, Offset: offset})
			if err != nil {
				return err
			}
			t := table.NewWriter()
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"ID", "Started", "Scheme", "N", "Rows", "Outputs"})
			for _, r := range runs {
				t.AppendRow(table.Row{r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Scheme, r.BaseSamples, r.Rows, len(r.Outputs)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum runs listed (0 for all)")
	list.Flags().IntVar(&offset, "offset", 0, "runs skipped")

	var format string
	var top int
	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Render a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger()
			defer log.Sync()

			store, err := open()
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.GetRun(cmd.Context(), core.RunID(args[0]))
			if err != nil {
				return err
			}
			log.Debug("loaded run %s from %s", run.ID, storePath)
			return render(cmd.OutOrStdout(), format, run, top)
		},
	}
	show.Flags().StringVar(&format, "format", "ascii", "output format: ascii, markdown, html or json")
	show.Flags().IntVar(&top, "top", 10, "parameters listed per output in ascii format (0 for all)")

	cmd.AddCommand(list, show)
	return cmd
}
