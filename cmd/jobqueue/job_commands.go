package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"jobqueue/internal/jobs"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Create, inspect and remove jobs",
	}

	jobCmd.AddCommand(newJobCreateCommand(ctx))
	jobCmd.AddCommand(newJobSubmitCommand(ctx))
	jobCmd.AddCommand(newJobListCommand(ctx))
	jobCmd.AddCommand(newJobShowCommand(ctx))
	jobCmd.AddCommand(newJobDeleteCommand(ctx))

	return jobCmd
}

func newJobCreateCommand(ctx *commandContext) *cobra.Command {
	var submit bool

	cmd := &cobra.Command{
		Use:   "create <id>",
		Short: "Create an empty job in the unassigned bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return ctx.withStore(func(store *jobs.Store) error {
				if err := store.Create(cmd.Context(), id); err != nil {
					if errors.Is(err, jobs.ErrJobExists) {
						return fmt.Errorf("job %s already exists", id)
					}
					return err
				}
				out := cmd.OutOrStdout()
				if !submit {
					fmt.Fprintf(out, "Created job %s\n", id)
					return nil
				}
				moved, err := store.Move(cmd.Context(), id, jobs.BucketQueued)
				if err != nil {
					return err
				}
				if !moved {
					return fmt.Errorf("job %s could not be queued", id)
				}
				fmt.Fprintf(out, "Created and queued job %s\n", id)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&submit, "submit", false, "Queue the job immediately")
	return cmd
}

func newJobSubmitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <id>...",
		Short: "Move unassigned jobs to the queued bucket",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *jobs.Store) error {
				out := cmd.OutOrStdout()
				for _, id := range args {
					bucket, exists, err := store.Locate(cmd.Context(), id)
					if err != nil {
						return err
					}
					switch {
					case !exists:
						fmt.Fprintf(out, "Job %s not found\n", id)
						continue
					case bucket != jobs.BucketUnassigned:
						fmt.Fprintf(out, "Job %s is already %s\n", id, bucket)
						continue
					}
					if _, err := store.Move(cmd.Context(), id, jobs.BucketQueued); err != nil {
						return err
					}
					fmt.Fprintf(out, "Job %s queued\n", id)
				}
				return nil
			})
		},
	}
}

type jobSummary struct {
	ID             string `json:"id"`
	Bucket         string `json:"bucket"`
	Steps          int    `json:"steps"`
	CompletedSteps int    `json:"completed_steps"`
	DateCreated    string `json:"date_created"`
	DateUpdated    string `json:"date_updated,omitempty"`
}

func newJobListCommand(ctx *commandContext) *cobra.Command {
	var bucketFlag string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs by bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			buckets := jobs.AllBuckets()
			if value := strings.TrimSpace(bucketFlag); value != "" {
				bucket, ok := jobs.ParseBucket(value)
				if !ok {
					return fmt.Errorf("unknown bucket %q (use unassigned, queued, failed or completed)", value)
				}
				buckets = []jobs.Bucket{bucket}
			}

			return ctx.withStore(func(store *jobs.Store) error {
				summaries := make([]jobSummary, 0)
				for _, bucket := range buckets {
					ids, err := store.Enumerate(cmd.Context(), bucket)
					if err != nil {
						return err
					}
					for _, id := range ids {
						summary := jobSummary{ID: id, Bucket: string(bucket)}
						job, err := store.Read(cmd.Context(), id)
						if err != nil {
							return err
						}
						if job != nil {
							summary.Steps = len(job.Steps)
							summary.CompletedSteps = job.CompletedSteps()
							summary.DateCreated = job.DateCreated.String()
							if job.DateUpdated != nil {
								summary.DateUpdated = job.DateUpdated.String()
							}
						}
						summaries = append(summaries, summary)
					}
				}

				if jsonOutput {
					return writeJSON(cmd, summaries)
				}
				out := cmd.OutOrStdout()
				if len(summaries) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(summaries))
				for _, s := range summaries {
					rows = append(rows, []string{
						s.ID,
						bucketLabel(jobs.Bucket(s.Bucket), colorize),
						fmt.Sprintf("%d/%d", s.CompletedSteps, s.Steps),
						s.DateCreated,
						s.DateUpdated,
					})
				}
				fmt.Fprintln(out, renderTable([]columnSpec{
					{header: "ID"},
					{header: "Bucket"},
					{header: "Steps", right: true},
					{header: "Created"},
					{header: "Updated"},
				}, rows))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&bucketFlag, "bucket", "b", "", "Only list jobs in this bucket")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}

type jobDetail struct {
	ID       string    `json:"id"`
	Bucket   string    `json:"bucket"`
	Location string    `json:"location"`
	Job      *jobs.Job `json:"job"`
}

func newJobShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a job and its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return ctx.withStore(func(store *jobs.Store) error {
				job, err := store.Read(cmd.Context(), id)
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %s not found", id)
				}
				bucket, _, err := store.Locate(cmd.Context(), id)
				if err != nil {
					return err
				}
				detail := jobDetail{
					ID:       id,
					Bucket:   string(bucket),
					Location: store.Location(cmd.Context(), id),
					Job:      job,
				}
				if jsonOutput {
					return writeJSON(cmd, detail)
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintf(out, "Job:      %s\n", id)
				fmt.Fprintf(out, "Bucket:   %s\n", bucketLabel(bucket, colorize))
				fmt.Fprintf(out, "Location: %s\n", detail.Location)
				fmt.Fprintf(out, "Created:  %s\n", job.DateCreated)
				if job.DateUpdated != nil {
					fmt.Fprintf(out, "Updated:  %s\n", job.DateUpdated)
				}
				fmt.Fprintf(out, "Progress: %d of %d steps completed\n", job.CompletedSteps(), len(job.Steps))
				if len(job.Steps) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(job.Steps))
				for i, step := range job.Steps {
					rows = append(rows, []string{
						strconv.Itoa(i),
						string(step.Action),
						stepStatusLabel(step.Status, colorize),
						strings.Join(step.Args, " "),
					})
				}
				fmt.Fprintln(out, renderTable([]columnSpec{
					{header: "#", right: true},
					{header: "Action"},
					{header: "Status"},
					{header: "Args", maxWidth: 80},
				}, rows))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}

func newJobDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete jobs from whichever bucket holds them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *jobs.Store) error {
				out := cmd.OutOrStdout()
				for _, id := range args {
					deleted, err := store.Delete(cmd.Context(), id)
					if err != nil {
						return err
					}
					if deleted {
						fmt.Fprintf(out, "Job %s deleted\n", id)
					} else {
						fmt.Fprintf(out, "Job %s not found\n", id)
					}
				}
				return nil
			})
		},
	}
}
