package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/itvault-backend/internal/app"
	"github.com/yungbote/itvault-backend/internal/domain/search"
	"github.com/yungbote/itvault-backend/internal/jobs/queue"
)

type enqueueOptions struct {
	org    string
	remove bool
}

func newEnqueueCmd(load appLoader) *cobra.Command {
	var opts enqueueOptions
	cmd := &cobra.Command{
		Use:   "enqueue <type> <id>",
		Short: "Enqueue an index or removal job for one entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := buildJob(args[0], args[1], opts)
			if err != nil {
				return err
			}
			return withApp(cmd, load, func(a *app.App) error {
				if a.Services.Queue.Backend() == queue.BackendMemory {
					return fmt.Errorf("queue backend is memory; jobs enqueued here would be lost on exit")
				}
				if err := a.Services.Queue.Enqueue(cmd.Context(), job); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s on %s\n", job.String(), a.Services.Queue.Backend())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.org, "org", "", "Organization id hint for index jobs")
	cmd.Flags().BoolVar(&opts.remove, "remove", false, "Enqueue a removal instead of an index job")
	return cmd
}

func buildJob(rawType, rawID string, opts enqueueOptions) (search.IndexJob, error) {
	t, err := search.ParseEntityType(rawType)
	if err != nil {
		return search.IndexJob{}, err
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return search.IndexJob{}, fmt.Errorf("entity id: %w", err)
	}
	if opts.remove {
		return search.NewRemoveJob(t, id), nil
	}
	org := uuid.Nil
	if opts.org != "" {
		if org, err = uuid.Parse(opts.org); err != nil {
			return search.IndexJob{}, fmt.Errorf("--org: %w", err)
		}
	}
	return search.NewIndexJob(t, id, org), nil
}
