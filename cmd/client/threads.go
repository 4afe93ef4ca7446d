package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aeolun/afternoon/pkg/api"
	"github.com/aeolun/afternoon/pkg/client"
	"github.com/aeolun/afternoon/pkg/messages"
	"github.com/aeolun/afternoon/pkg/threads"
)

func newThreadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threads",
		Short: "List the threads of the forum",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			all, _ := cmd.Flags().GetBool("all")

			a, err := commandApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if err := a.session.OpenForum(ctx); err != nil {
				return err
			}

			list := selectThreads(a.session.Threads.State().Threads, a.settings.HiddenThreads(), all, limit)

			// Enrich in the foreground; the engine paces the lookups
			a.session.QueueVisible(list)
			for a.session.Threads.ProcessNext(ctx) {
			}
			list = withEnrichment(list, a.session.Threads.State().Threads)

			printThreads(cmd.OutOrStdout(), list, time.Now())
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "maximum threads to show (0 for all)")
	cmd.Flags().Bool("all", false, "include hidden threads")
	return cmd
}

// selectThreads returns a copy of the first limit threads, without the hidden
// ones unless all is set. Engine snapshots are never modified.
func selectThreads(published []api.Thread, hidden map[string]bool, all bool, limit int) []api.Thread {
	list := published
	if !all {
		list = threads.Visible(list, hidden)
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return slices.Clone(list)
}

// withEnrichment replaces the threads of list by their enriched version in
// latest, returning a new slice
func withEnrichment(list, latest []api.Thread) []api.Thread {
	byID := make(map[string]api.Thread, len(latest))
	for _, th := range latest {
		byID[th.ID] = th
	}
	out := make([]api.Thread, len(list))
	for i, th := range list {
		if e, ok := byID[th.ID]; ok {
			th = e
		}
		out[i] = th
	}
	return out
}

// printThreads writes one line per thread with its preview
func printThreads(w io.Writer, list []api.Thread, now time.Time) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No threads")
		return
	}
	for _, th := range list {
		fmt.Fprintf(w, "%s  %s\n", th.ID, client.FormatThreadItem(th, now))
		if preview := client.ThreadPreview(th, 100); preview != "" {
			fmt.Fprintf(w, "    %s\n", preview)
		}
	}
}

func newThreadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thread <channel-id>",
		Short: "Show a thread as an indented reply tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			absolute, _ := cmd.Flags().GetBool("absolute")

			a, err := commandApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			channelID := args[0]
			store := a.session.Messages

			op, err := store.FetchOriginatingPost(ctx, channelID)
			if err != nil {
				a.logger.Warn().Err(err).Str("channel_id", channelID).Msg("failed to load originating post")
			}
			if err := store.FetchInitial(ctx, channelID, a.session.PageLimit(), op); err != nil {
				return err
			}

			format := "relative"
			if absolute {
				format = "absolute"
			}
			printThread(cmd.OutOrStdout(), store.Snapshot(), format, time.Now())
			return nil
		},
	}

	cmd.Flags().Bool("absolute", false, "show absolute timestamps")
	return cmd
}

// printThread writes the thread view, two spaces per reply level
func printThread(w io.Writer, snap messages.Snapshot, timeFormat string, now time.Time) {
	if len(snap.View) == 0 {
		fmt.Fprintln(w, "No messages")
		return
	}

	opID := ""
	if snap.OriginatingPost != nil {
		opID = snap.OriginatingPost.ID
	}

	for _, entry := range snap.View {
		msg := entry.Message
		indent := strings.Repeat("  ", entry.Indent)

		header := fmt.Sprintf("%s%s  %s  [%s]", indent, msg.Author.DisplayName(), client.FormatMessageTime(msg.Timestamp, timeFormat, now), msg.ID)
		if msg.ID == opID {
			header += " OP"
		}
		fmt.Fprintln(w, header)

		for _, line := range strings.Split(msg.Content, "\n") {
			fmt.Fprintf(w, "%s  %s\n", indent, line)
		}
		if len(msg.Attachments) > 0 {
			fmt.Fprintf(w, "%s  %s\n", indent, client.FormatAttachments(msg.Attachments))
		}
		if len(msg.Reactions) > 0 {
			fmt.Fprintf(w, "%s  %s\n", indent, client.FormatReactions(msg.Reactions))
		}
	}
}
