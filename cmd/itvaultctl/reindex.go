package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/itvault-backend/internal/app"
	"github.com/yungbote/itvault-backend/internal/domain/search"
	"github.com/yungbote/itvault-backend/internal/jobs/queue"
	"github.com/yungbote/itvault-backend/internal/services"
)

type reindexOptions struct {
	types       string
	force       bool
	inline      bool
	concurrency int
}

func newReindexCmd(load appLoader) *cobra.Command {
	var opts reindexOptions
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Re-enqueue every live entity and prune stale index rows",
		Long: `Enumerate every enabled entity per type and enqueue an index job for it
(or index in this process with --inline). Index rows whose entity is gone or
disabled are deleted. --force clears stored hashes so every entry re-embeds.

Examples:
  itvaultctl reindex
  itvaultctl reindex --type document,password --force
  itvaultctl reindex --inline --concurrency 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := search.ParseEntityTypes(opts.types)
			if err != nil {
				return err
			}
			return withApp(cmd, load, func(a *app.App) error {
				if !opts.inline && a.Services.Queue.Backend() == queue.BackendMemory {
					fmt.Fprintln(cmd.ErrOrStderr(), "memory queue does not outlive this process; indexing inline")
					opts.inline = true
				}
				rep, err := a.Services.Reindex.Reindex(cmd.Context(), services.ReindexOptions{
					Types:       types,
					Force:       opts.force,
					Inline:      opts.inline,
					Concurrency: opts.concurrency,
				})
				if rep != nil {
					if werr := writeJSON(cmd.OutOrStdout(), rep); werr != nil && err == nil {
						err = werr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&opts.types, "type", "t", "", "Comma-separated entity types (default: all)")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Clear content hashes so every entry re-embeds")
	cmd.Flags().BoolVar(&opts.inline, "inline", false, "Index in this process instead of enqueueing")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 4, "Parallel inline indexing calls")
	return cmd
}
