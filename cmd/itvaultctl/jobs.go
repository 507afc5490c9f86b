package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/itvault-backend/internal/app"
	"github.com/yungbote/itvault-backend/internal/jobs/queue"
)

func newJobsCmd(load appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect the index job queue",
	}
	cmd.AddCommand(newJobsDepthCmd(load), newJobsDeadCmd(load), newJobsPurgeCmd(load))
	return cmd
}

func newJobsDepthCmd(load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "depth",
		Short: "Print job counts by state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, load, func(a *app.App) error {
				depth, err := a.Services.Queue.Depth(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "backend: %s\n", a.Services.Queue.Backend())
				states := make([]string, 0, len(depth))
				for s := range depth {
					states = append(states, s)
				}
				sort.Strings(states)
				for _, s := range states {
					fmt.Fprintf(out, "  %-18s %d\n", s, depth[s])
				}
				return nil
			})
		},
	}
}

type deadLetterLister interface {
	DeadLetters(ctx context.Context, limit int64) ([]queue.DeadLetter, error)
}

func newJobsDeadCmd(load appLoader) *cobra.Command {
	var limit int64
	cmd := &cobra.Command{
		Use:   "dead",
		Short: "List jobs that exhausted their attempts (redis backend)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, load, func(a *app.App) error {
				lister, ok := a.Services.Queue.(deadLetterLister)
				if !ok {
					return fmt.Errorf("queue backend %s does not keep a dead letter list", a.Services.Queue.Backend())
				}
				dead, err := lister.DeadLetters(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, d := range dead {
					fmt.Fprintf(out, "%s attempts=%d failed_at=%s error=%q\n",
						d.Job.String(), d.Attempts, d.FailedAt.Format(time.RFC3339), d.Error)
				}
				if len(dead) == 0 {
					fmt.Fprintln(out, "no dead letters")
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64VarP(&limit, "limit", "n", 50, "Maximum entries to list")
	return cmd
}

type jobPurger interface {
	Purge(ctx context.Context, olderThan time.Duration) (int64, error)
}

func newJobsPurgeCmd(load appLoader) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete finished job rows older than a cutoff (postgres backend)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			return withApp(cmd, load, func(a *app.App) error {
				p, ok := a.Services.Queue.(jobPurger)
				if !ok {
					return fmt.Errorf("queue backend %s does not keep job rows", a.Services.Queue.Backend())
				}
				n, err := p.Purge(cmd.Context(), olderThan)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged %d job rows\n", n)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "Age cutoff for finished jobs")
	return cmd
}
