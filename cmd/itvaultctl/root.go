package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/yungbote/itvault-backend/internal/app"
)

// appLoader builds the application for commands that need it.
type appLoader func(ctx context.Context) (*app.App, error)

func loadApp(ctx context.Context) (*app.App, error) {
	return app.New(ctx, app.Options{Component: "itvaultctl"})
}

func newRootCmd(load appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "itvaultctl",
		Short:         "Operate the itvault search index",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.AddCommand(
		newReindexCmd(load),
		newSearchCmd(load),
		newEnqueueCmd(load),
		newJobsCmd(load),
		newSettingsCmd(load),
	)
	return cmd
}

// withApp loads the app, runs fn, and closes the app.
func withApp(cmd *cobra.Command, load appLoader, fn func(a *app.App) error) error {
	a, err := load(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
