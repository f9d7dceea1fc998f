package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"koosseis/internal/storage/mysqlstore"
	"koosseis/internal/util"
)

func newCleanFieldCommand(ctx *commandContext) *cobra.Command {
	var table, field string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "clean-field",
		Short: "Strip markup and collapse whitespace in a MySQL text column",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if table == "" {
				table = cfg.MySQLSourceTable
			}
			if field == "" {
				field = cfg.MySQLCleanField
			}

			store, err := mysqlstore.Open(cfg.MySQLDSN(), cfg.MySQLSourceTable, cfg.MySQLTargetTable)
			if err != nil {
				return err
			}
			defer store.Close()

			report, err := store.CleanField(cmd.Context(), table, field, dryRun)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if dryRun && len(report.Changes) > 0 {
				rows := make([][]string, 0, len(report.Changes))
				for _, ch := range report.Changes {
					rows = append(rows, []string{ch.ID, util.Truncate(ch.Before, 60), util.Truncate(ch.After, 60)})
				}
				fmt.Fprintln(w, renderTable([]string{"ID", "Before", "After"}, rows, nil))
			}
			verb := "updated"
			if dryRun {
				verb = "would update"
			}
			fmt.Fprintf(w, "%s.%s: %s=%d unchanged=%d\n", table, field, verb, report.Updated, report.Unchanged)
			return nil
		},
	}

	cmd.Flags().StringVar(&table, "table", "", "Table to clean (default MYSQL_SOURCE_TABLE)")
	cmd.Flags().StringVar(&field, "field", "", "Column to clean (default MYSQL_CLEAN_FIELD)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report changes without writing them")

	return cmd
}
