package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clipshelf/internal/api"
	"clipshelf/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server, store, and consistency status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ctx.apiClient()
			if err != nil {
				return err
			}
			status, err := c.Status(cmd.Context())
			if err != nil {
				if ctx.jsonOutput() {
					return wrapClientError(err, c.BaseURL())
				}
				reach := preflight.CheckServer(cmd.Context(), c.BaseURL())
				w := &statusWriter{color: shouldColorize(cmd.OutOrStdout())}
				w.section("Server")
				w.line(reach.Name, statusError, reach.Detail)
				fmt.Fprint(cmd.OutOrStdout(), w.String())
				return wrapClientError(err, c.BaseURL())
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, status)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderStatus(c.BaseURL(), status, shouldColorize(cmd.OutOrStdout())))
			return nil
		},
	}
}

func renderStatus(baseURL string, status *api.ServerStatus, colorize bool) string {
	w := &statusWriter{color: colorize}

	w.section("Server")
	w.line("clipshelfd", statusOK, fmt.Sprintf("%s (pid %d)", baseURL, status.PID))
	w.line("Clips", statusInfo, fmt.Sprintf("%d", status.ClipCount))
	w.line("Signed in", statusInfo, yesNo(status.Authenticated))
	w.line("Active sessions", statusInfo, fmt.Sprintf("%d", status.ActiveSessions))

	w.section("Stores")
	for _, store := range status.Stores {
		message := store.Target
		if store.Detail != "" {
			message = fmt.Sprintf("%s (%s)", store.Target, store.Detail)
		}
		w.line(store.Name, passFail(store.Healthy), message)
	}

	w.section("Consistency")
	if len(status.Inconsistencies) == 0 {
		w.line("Ledger", statusOK, "no open entries")
	} else {
		w.line("Ledger", statusWarn, fmt.Sprintf("%d open entries", len(status.Inconsistencies)))
		for _, entry := range status.Inconsistencies {
			w.line(entry.Kind, statusWarn, strings.TrimSpace(entry.ClipUUID+" "+entry.Detail))
		}
	}
	switch report := status.LastReconcile; {
	case report == nil:
		w.line("Last sweep", statusInfo, "not run yet")
	case len(report.OrphansFailed) > 0 || len(report.MissingObjects) > 0:
		w.line("Last sweep", statusWarn, summarizeReport(*report))
	default:
		w.line("Last sweep", statusOK, summarizeReport(*report))
	}
	return w.String()
}

func summarizeReport(report api.ReconcileReport) string {
	summary := fmt.Sprintf("%d objects, %d clips, %d orphans removed, %d young, %d failed, %d missing",
		report.Objects, report.Clips, len(report.OrphansRemoved), report.OrphansYoung,
		len(report.OrphansFailed), len(report.MissingObjects))
	if report.DryRun {
		summary += " (dry run)"
	}
	if report.CompletedAt != "" {
		summary += " at " + report.CompletedAt
	}
	return summary
}
