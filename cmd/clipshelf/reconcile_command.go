package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"clipshelf/internal/api"
	"clipshelf/internal/logging"
	"clipshelf/internal/metadata"
	"clipshelf/internal/objectstore"
	"clipshelf/internal/reconcile"
)

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var showLedger bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Sweep orphaned objects and missing payloads against the stores",
		Long: "Reconcile compares the metadata store with object storage directly. " +
			"Unreferenced objects older than the grace period are removed, rows " +
			"without a payload are recorded in the inconsistency ledger, and " +
			"resolved ledger entries are closed. It is safe to run while clipshelfd is serving.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureServerConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := metadata.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			objects, err := objectstore.Open(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			sweeper, err := reconcile.NewFromConfig(cfg, store, objects, logger, dryRun)
			if err != nil {
				return err
			}
			report, err := sweeper.Sweep(cmd.Context())
			if err != nil {
				return fmt.Errorf("reconcile: %w", err)
			}
			entries, err := store.ListInconsistencies(cmd.Context(), true)
			if err != nil {
				return err
			}

			converted := api.FromReconcileReport(report, time.Now())
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{
					"report":          converted,
					"inconsistencies": api.FromInconsistencies(entries),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, summarizeReport(converted))
			for _, key := range report.OrphansRemoved {
				verb := "removed"
				if report.DryRun {
					verb = "would remove"
				}
				fmt.Fprintf(out, "  %s orphan %s\n", verb, key)
			}
			for _, key := range report.OrphansFailed {
				fmt.Fprintf(out, "  failed to remove orphan %s\n", key)
			}
			for _, key := range report.MissingObjects {
				fmt.Fprintf(out, "  missing payload for %s\n", key)
			}
			if showLedger && len(entries) > 0 {
				rows := make([][]string, 0, len(entries))
				for _, entry := range api.FromInconsistencies(entries) {
					rows = append(rows, []string{entry.Kind, entry.ClipUUID, entry.DetectedAt, strings.TrimSpace(entry.Detail)})
				}
				fmt.Fprintln(out, renderTable([]column{
					{title: "Kind"},
					{title: "UUID"},
					{title: "Detected"},
					{title: "Detail", max: 60},
				}, rows))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without deleting or recording anything")
	cmd.Flags().BoolVar(&showLedger, "ledger", false, "Print the open inconsistency ledger after the sweep")
	return cmd
}
