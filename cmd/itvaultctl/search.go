package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/itvault-backend/internal/app"
	"github.com/yungbote/itvault-backend/internal/services"
)

type searchOptions struct {
	org    string
	limit  int
	asJSON bool
}

func newSearchCmd(load appLoader) *cobra.Command {
	var opts searchOptions
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a semantic search",
		Long: `Run a query against the index. Without --org the search is platform-wide.

Examples:
  itvaultctl search "core router in DC2"
  itvaultctl search vpn --org 4f6c... --limit 5 --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope := services.CallerScope{PlatformWide: true}
			req := services.SearchRequest{Query: strings.Join(args, " "), Limit: opts.limit}
			if opts.org != "" {
				id, err := uuid.Parse(opts.org)
				if err != nil {
					return fmt.Errorf("--org: %w", err)
				}
				scope = services.CallerScope{OrganizationIDs: []uuid.UUID{id}}
				req.OrganizationID = &id
			}
			return withApp(cmd, load, func(a *app.App) error {
				res, err := a.Services.Search.Search(cmd.Context(), scope, req)
				if err != nil {
					return err
				}
				if opts.asJSON {
					return writeJSON(cmd.OutOrStdout(), res)
				}
				out := cmd.OutOrStdout()
				if len(res.Results) == 0 {
					fmt.Fprintln(out, "no results")
					return nil
				}
				for i, r := range res.Results {
					fmt.Fprintf(out, "%2d. [%.3f] %s %q (%s)\n", i+1, r.Score, r.EntityType, r.Name, r.OrganizationName)
					if r.Snippet != "" {
						fmt.Fprintf(out, "    %s\n", r.Snippet)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.org, "org", "", "Restrict to one organization id")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum results (default: server default)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the raw response")
	return cmd
}
