package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yungbote/itvault-backend/internal/app"
)

func newSettingsCmd(load appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and change search settings",
	}
	cmd.AddCommand(
		newSettingsShowCmd(load),
		newSettingsIndexingCmd(load),
		newSettingsModelCmd(load),
		newSettingsAPIKeyCmd(load),
	)
	return cmd
}

func newSettingsShowCmd(load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the index status and effective embeddings settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, load, func(a *app.App) error {
				st, err := a.Services.Search.Status(cmd.Context())
				if err != nil {
					return err
				}
				ec, err := a.Services.Settings.GetEmbeddingsConfig(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "indexing_enabled: %t\n", st.IndexingEnabled)
				fmt.Fprintf(out, "entries:          %d\n", st.Entries)
				fmt.Fprintf(out, "model:            %s\n", ec.Model)
				fmt.Fprintf(out, "dimension:        %d\n", ec.Dimension)
				fmt.Fprintf(out, "api_key_set:      %t\n", ec.APIKey != "")
				fmt.Fprintf(out, "source:           %s\n", ec.Source)
				return nil
			})
		},
	}
}

func newSettingsIndexingCmd(load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:       "indexing <on|off>",
		Short:     "Turn background indexing on or off",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := parseSwitch(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, load, func(a *app.App) error {
				if err := a.Services.Settings.SetIndexingEnabled(cmd.Context(), enabled); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "indexing_enabled: %t\n", enabled)
				return nil
			})
		},
	}
}

func newSettingsModelCmd(load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "model <name>",
		Short: "Override the embeddings model (empty string reverts to env)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, load, func(a *app.App) error {
				return a.Services.Settings.SetEmbeddingsModel(cmd.Context(), strings.TrimSpace(args[0]))
			})
		},
	}
}

func newSettingsAPIKeyCmd(load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "api-key",
		Short: "Store the embeddings API key read from stdin (empty input reverts to env)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			key = strings.TrimSpace(key)
			return withApp(cmd, load, func(a *app.App) error {
				if err := a.Services.Settings.SetEmbeddingsAPIKey(cmd.Context(), key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "api_key_set: %t\n", key != "")
				return nil
			})
		},
	}
}

func parseSwitch(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "on", "enable", "enabled":
		return true, nil
	case "off", "disable", "disabled":
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("expected on or off, got %q", raw)
	}
	return b, nil
}
