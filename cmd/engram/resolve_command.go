package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"engram/internal/api"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var name string
	var season int
	var contentType string
	var titles []int

	cmd := &cobra.Command{
		Use:   "resolve <job-id>",
		Short: "Supply identification for a job parked in review and resume it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			req := api.ResolveRequest{Name: name, Season: season, ContentType: contentType, Titles: titles}
			if err := client.Resolve(cmd.Context(), id, req); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %d resumed\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Show or movie name")
	cmd.Flags().IntVar(&season, "season", 0, "Season number for TV content")
	cmd.Flags().StringVar(&contentType, "type", "", "Content type: tv or movie")
	cmd.Flags().IntSliceVar(&titles, "titles", nil, "Title indices to rip, e.g. --titles 2,5")
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a job, stopping any in-flight work",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.Cancel(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %d cancelled\n", id)
			return nil
		},
	}
}
