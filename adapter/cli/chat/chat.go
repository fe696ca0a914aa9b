// Package chat holds the chat command.
package chat

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Owl23007/synapse-android-sub000/adapter/cli"
)

// Cmd streams one chat exchange to stdout.
var Cmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Ask the assistant",
	Long: `Send a message to the chat service and stream the reply. When the
assistant decides to create a schedule it is saved locally and reported
inline as "[schedule created] <title>".

Requires CHAT_ENDPOINT (and usually CHAT_TOKEN).

Examples:
  synapse chat "Put my network exam on Friday 2pm to 4pm in Hall 3"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		if app.ChatPipeline == nil {
			return fmt.Errorf("chat: %w; set CHAT_ENDPOINT", cli.ErrNotConfigured)
		}

		out := cmd.OutOrStdout()
		message := strings.Join(args, " ")
		for fragment := range app.ChatPipeline.SendMessageStream(cmd.Context(), message, nil) {
			fmt.Fprint(out, fragment)
		}
		fmt.Fprintln(out)
		return nil
	},
}
