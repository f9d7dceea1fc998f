package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"koosseis/internal/checkpoint"
	"koosseis/internal/pipeline"
	"koosseis/internal/storage"
)

func newSummaryCommand(ctx *commandContext) *cobra.Command {
	var runs int

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Count checkpoint outcomes and list recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results, failed, err := checkpoint.Read(cfg.ResultsFile, cfg.FailedFile)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			counts := pipeline.CountOutcomes(results, failed)
			if len(counts) == 0 {
				fmt.Fprintln(w, "checkpoint is empty")
			} else {
				rows := make([][]string, 0, len(counts)+1)
				for _, c := range counts {
					rows = append(rows, []string{c.Outcome, c.Kind, strconv.Itoa(c.Count)})
				}
				rows = append(rows, []string{"total", "", strconv.Itoa(len(results) + len(failed))})
				fmt.Fprintln(w, renderTable([]string{"Outcome", "Kind", "Count"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight}))
			}

			if runs <= 0 {
				return nil
			}
			return ctx.withDB(func(db *storage.DB) error {
				recent, err := db.ListRuns(runs)
				if err != nil {
					return err
				}
				if len(recent) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(recent))
				for _, r := range recent {
					rows = append(rows, []string{
						r.FinishedAt.Local().Format("2006-01-02 15:04"),
						r.Source,
						strconv.Itoa(r.StartFrom),
						strconv.Itoa(r.Counts["attempted"]),
						strconv.Itoa(r.Counts["results"]),
						strconv.Itoa(r.Counts["failed"]),
						r.TraceID,
					})
				}
				fmt.Fprintln(w, renderTable(
					[]string{"Finished", "Source", "Start", "Attempted", "Results", "Failed", "Trace"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&runs, "runs", 5, "Number of recent runs to list, 0 to skip")

	return cmd
}
