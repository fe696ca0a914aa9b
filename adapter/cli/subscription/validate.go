package subscription

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Owl23007/synapse-android-sub000/adapter/cli"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
)

// ErrUnreachable is returned when a checked feed does not answer with 2xx.
var ErrUnreachable = errors.New("feed is not reachable")

var validateCmd = &cobra.Command{
	Use:   "validate <url>",
	Short: "Check that a feed URL answers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		url, err := domain.NormalizeSubscriptionURL(args[0])
		if err != nil {
			return err
		}
		if !app.SubscriptionFetcher.Validate(cmd.Context(), url) {
			return fmt.Errorf("%w: %s", ErrUnreachable, url)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "OK: %s\n", url)
		return nil
	},
}
