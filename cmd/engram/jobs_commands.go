package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"engram/internal/api"
	"engram/internal/job"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var stateFilters []string

	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "List disc jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := fetchJobs(cmd.Context(), ctx, stateFilters)
			if err != nil {
				return err
			}
			printJobTable(cmd.OutOrStdout(), jobs)
			return nil
		},
	}
	jobsCmd.Flags().StringSliceVar(&stateFilters, "state", nil, "Filter by job state (repeatable)")

	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsClearCommand(ctx))
	return jobsCmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job with its titles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			summary, err := fetchJob(cmd.Context(), ctx, id)
			if err != nil {
				return err
			}
			printJobDetail(cmd.OutOrStdout(), summary)
			return nil
		},
	}
}

func newJobsClearCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove completed and failed jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			var removed int64
			if all {
				removed, err = st.Clear(cmd.Context())
			} else {
				removed, err = st.ClearTerminal(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("clear jobs: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job(s)\n", removed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Remove every job, including unfinished ones")
	return cmd
}

// fetchJobs prefers the daemon API and falls back to the database when the
// daemon is not running.
func fetchJobs(ctx context.Context, cctx *commandContext, states []string) ([]api.JobSummary, error) {
	client, err := cctx.client()
	if err != nil {
		return nil, err
	}
	if jobs, err := client.Jobs(ctx, states...); err == nil {
		return jobs, nil
	}

	st, err := cctx.openStore()
	if err != nil {
		return nil, err
	}
	defer st.Close()

	stored, err := st.ListJobs(ctx, toStates(states)...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	jobs := make([]api.JobSummary, 0, len(stored))
	for _, j := range stored {
		jobs = append(jobs, api.FromJob(j))
	}
	return jobs, nil
}

func fetchJob(ctx context.Context, cctx *commandContext, id int64) (*api.JobSummary, error) {
	client, err := cctx.client()
	if err != nil {
		return nil, err
	}
	if summary, err := client.Job(ctx, id); err == nil {
		return summary, nil
	}

	st, err := cctx.openStore()
	if err != nil {
		return nil, err
	}
	defer st.Close()

	j, err := st.GetJob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if j == nil {
		return nil, fmt.Errorf("job %d not found", id)
	}
	summary := api.FromJob(j)
	return &summary, nil
}

func printJobTable(out io.Writer, jobs []api.JobSummary) {
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs")
		return
	}
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		title := j.DetectedTitle
		if title == "" {
			title = j.VolumeLabel
		}
		rows = append(rows, []string{
			strconv.FormatInt(j.ID, 10),
			j.State,
			j.ContentType,
			title,
			j.DriveID,
			j.UpdatedAt.Local().Format(time.DateTime),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "State", "Type", "Title", "Drive", "Updated"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	))
}

func printJobDetail(out io.Writer, j *api.JobSummary) {
	fmt.Fprintf(out, "Job #%d  %s  (%s)\n", j.ID, j.State, j.ContentType)
	fmt.Fprintf(out, "  Label:   %s on %s\n", j.VolumeLabel, j.DriveID)
	if j.DetectedTitle != "" {
		if j.DetectedSeason > 0 {
			fmt.Fprintf(out, "  Title:   %s (season %d)\n", j.DetectedTitle, j.DetectedSeason)
		} else {
			fmt.Fprintf(out, "  Title:   %s\n", j.DetectedTitle)
		}
	}
	if j.ReviewReason != "" {
		fmt.Fprintf(out, "  Review:  %s\n", j.ReviewReason)
	}
	if j.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:   %s\n", j.ErrorMessage)
	}

	if len(j.Titles) == 0 {
		return
	}
	rows := make([][]string, 0, len(j.Titles))
	for _, t := range j.Titles {
		rows = append(rows, []string{
			strconv.Itoa(t.TitleIndex),
			t.State,
			fmtSeconds(t.DurationSeconds),
			t.Episode,
			fmtConfidence(t.Confidence),
			t.OutputFilename,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Idx", "State", "Duration", "Episode", "Conf", "File"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
	))
}

func toStates(values []string) []job.State {
	states := make([]job.State, 0, len(values))
	for _, value := range values {
		states = append(states, job.State(value))
	}
	return states
}
