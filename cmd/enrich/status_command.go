package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/timmy/tubebench/internal/repository"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status [job-id]",
		Short: "List recent jobs, or show the tasks of one job",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				jobs, err := a.Jobs.List(cmd.Context(), limit, 0)
				if err != nil {
					return err
				}
				writeJobList(out, jobs)
				return nil
			}

			job, err := a.Jobs.GetByID(cmd.Context(), args[0])
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("job %s not found", args[0])
			}
			if err != nil {
				return err
			}
			tasks, err := a.Tasks.ListByJob(cmd.Context(), job.ID)
			if err != nil {
				return err
			}
			writeJob(out, job)
			writeTasks(out, tasks)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of jobs to list")
	return cmd
}
