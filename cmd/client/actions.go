package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newReplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reply <channel-id> [text...]",
		Short: "Post a reply to a thread",
		Long:  "Post a reply to a thread. Without text the reply is read from stdin.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			replyTo, _ := cmd.Flags().GetString("to")

			content := strings.Join(args[1:], " ")
			if content == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read reply: %w", err)
				}
				content = strings.TrimRight(string(data), "\n")
			}

			a, err := commandApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := a.session.PostReply(cmd.Context(), args[0], replyTo, content)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Posted %s\n", created.ID)
			return nil
		},
	}

	cmd.Flags().String("to", "", "message id to reply to")
	return cmd
}

func newReactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "react <channel-id> <message-id> <emoji-or-tag>",
		Short: "React to a message",
		Long:  "React to a message with a unicode emoji or a tag from [ui] reaction_tags.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := commandApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.session.React(cmd.Context(), args[0], args[1], args[2]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reacted with %s\n", a.session.ResolveReaction(args[2]))
			return nil
		},
	}
}
