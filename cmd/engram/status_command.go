package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"engram/internal/api"
	"engram/internal/job"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and job pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(os.Stdout)

			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, apiErr := client.Status(cmd.Context())
			if apiErr == nil {
				printDaemonStatus(out, status, colorize)
				return nil
			}

			// Daemon unreachable: report what the database alone can tell.
			st, err := ctx.openStore()
			if err != nil {
				return fmt.Errorf("daemon unreachable and store unavailable: %w", err)
			}
			defer st.Close()

			fmt.Fprintln(out, renderSectionHeader("Engram", colorize))
			fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "not running", colorize))
			counts, err := st.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("read job stats: %w", err)
			}
			printJobCounts(out, toCountMap(counts), colorize)
			fmt.Fprintln(out, renderStatusLine("Database", statusInfo, st.Path(), colorize))
			return nil
		},
	}
}

func printDaemonStatus(out io.Writer, status *api.DaemonStatus, colorize bool) {
	fmt.Fprintln(out, renderSectionHeader("Engram", colorize))
	fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, "running", colorize))

	monitorKind, monitorText := statusOK, "watching"
	if !status.MonitorActive {
		monitorKind, monitorText = statusWarn, "inactive"
	}
	fmt.Fprintln(out, renderStatusLine("Disc monitor", monitorKind, monitorText, colorize))

	active := "none"
	if len(status.ActiveJobs) > 0 {
		ids := make([]string, 0, len(status.ActiveJobs))
		for _, id := range status.ActiveJobs {
			ids = append(ids, fmt.Sprintf("#%d", id))
		}
		active = strings.Join(ids, ", ")
	}
	fmt.Fprintln(out, renderStatusLine("Active jobs", statusInfo, active, colorize))

	printJobCounts(out, status.JobCounts, colorize)

	if status.LastError != "" {
		fmt.Fprintln(out, renderStatusLine("Last error", statusError, status.LastError, colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
	fmt.Fprintln(out, renderStatusLine("Lock file", statusInfo, status.LockPath, colorize))
}

func printJobCounts(out io.Writer, counts map[string]int, colorize bool) {
	if len(counts) == 0 {
		return
	}
	states := make([]string, 0, len(counts))
	for state := range counts {
		states = append(states, state)
	}
	sort.Strings(states)

	parts := make([]string, 0, len(states))
	for _, state := range states {
		parts = append(parts, fmt.Sprintf("%s=%d", state, counts[state]))
	}
	kind := statusInfo
	if counts[string(job.StateReviewNeeded)] > 0 {
		kind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Jobs", kind, strings.Join(parts, " "), colorize))
}

func toCountMap(counts map[job.State]int) map[string]int {
	result := make(map[string]int, len(counts))
	for state, count := range counts {
		result[string(state)] = count
	}
	return result
}
