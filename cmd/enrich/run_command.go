package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/timmy/tubebench/internal/app"
	"github.com/timmy/tubebench/internal/domain"
	"github.com/timmy/tubebench/internal/source/staging"
)

// pipelineForCLI starts a pipeline that runs to completion in-process ("inline")
// or only publishes step messages for a worker ("rabbitmq").
func pipelineForCLI(cmd *cobra.Command, a *app.App, driver string) (*app.Pipeline, error) {
	switch driver {
	case "inline", "rabbitmq":
		return a.StartPipeline(cmd.Context(), driver, false)
	default:
		return nil, fmt.Errorf("unsupported --queue %q (use inline or rabbitmq)", driver)
	}
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var allStaged bool
	var driver string

	cmd := &cobra.Command{
		Use:   "run [channel-id...]",
		Short: "Create an enrichment job for the given channels and run it",
		RunE: func(cmd *cobra.Command, args []string) error {
			channelIDs := args
			if allStaged {
				if ctx.flags.stagingDir == "" {
					return errors.New("--all-staged requires --staging")
				}
				staged, err := staging.ListChannels(ctx.flags.stagingDir)
				if err != nil {
					return fmt.Errorf("list staged channels: %w", err)
				}
				channelIDs = append(channelIDs, staged...)
			}
			if len(channelIDs) == 0 {
				return errors.New("no channel ids given")
			}

			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			pipe, err := pipelineForCLI(cmd, a, driver)
			if err != nil {
				return err
			}
			defer pipe.Close()

			sub, err := a.Enrichment(pipe).Submit(cmd.Context(), channelIDs)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			job, err := a.Jobs.GetByID(cmd.Context(), sub.Job.ID)
			if err != nil {
				return err
			}
			tasks, err := a.Tasks.ListByJob(cmd.Context(), job.ID)
			if err != nil {
				return err
			}
			writeJob(out, job)
			writeTasks(out, tasks)
			if len(sub.Untriggered) > 0 {
				fmt.Fprintf(out, "%d task(s) could not be started; retry them with 'enrich retry <task-id>'\n", len(sub.Untriggered))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&allStaged, "all-staged", false, "Enrich every channel found in the staging directory")
	cmd.Flags().StringVar(&driver, "queue", "inline", "Step hand-off: inline runs here, rabbitmq publishes for a worker")
	return cmd
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	var driver string

	cmd := &cobra.Command{
		Use:   "retry <task-id>",
		Short: "Restart a task from its first step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			pipe, err := pipelineForCLI(cmd, a, driver)
			if err != nil {
				return err
			}
			defer pipe.Close()

			task, err := a.Enrichment(pipe).Retry(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %s: %s (retry %d)\n", task.ID, task.OverallStatus, task.RetryCount)
			writeTasks(cmd.OutOrStdout(), []domain.EnrichmentTask{*task})
			return nil
		},
	}

	cmd.Flags().StringVar(&driver, "queue", "inline", "Step hand-off: inline runs here, rabbitmq publishes for a worker")
	return cmd
}
