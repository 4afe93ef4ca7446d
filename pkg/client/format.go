// ABOUTME: Formatting utilities for the terminal UI and CLI output
// ABOUTME: Thread rows, message timestamps, attachment sizes and previews
package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/aeolun/afternoon/pkg/api"
)

// PlaceholderAuthor is shown until a thread has been enriched
const PlaceholderAuthor = "…"

// FormatBytes formats bytes into human-readable form (B, KB, MB, etc.)
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%dB", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// ThreadAuthor returns the author to show for a thread row
func ThreadAuthor(th api.Thread) string {
	if !th.Enriched() || th.Author == "" {
		return PlaceholderAuthor
	}
	return th.Author
}

// ThreadPreview returns the first line of the originating post, or "" before enrichment
func ThreadPreview(th api.Thread, maxChars int) string {
	if th.FirstPost == nil {
		return ""
	}
	preview := ExtractThreadTitle(th.FirstPost.Content, maxChars)
	return strings.ReplaceAll(preview, "\n", " ")
}

// FormatThreadItem formats a thread for display in a list
// Returns: "name · author  time (replies)"
func FormatThreadItem(th api.Thread, now time.Time) string {
	replyCount := ""
	if th.MessageCount > 0 {
		replyCount = fmt.Sprintf(" (%d)", th.MessageCount)
	}
	return fmt.Sprintf("%s · %s  %s%s", th.Name, ThreadAuthor(th), FormatRelativeTimeFrom(th.CreatedAt(), now), replyCount)
}

// ExtractThreadTitle extracts the title from thread content
// Respects the double-newline convention for explicit title separation
func ExtractThreadTitle(content string, maxChars int) string {
	title := content
	if idx := strings.Index(content, "\n\n"); idx >= 0 {
		title = content[:idx]
	}
	return truncateRunes(title, maxChars)
}

// truncateRunes cuts s to at most n runes
func truncateRunes(s string, n int) string {
	if n < 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// FormatRelativeTime formats a timestamp relative to now
// Returns strings like "just now", "5m ago", "2h ago", "3d ago"
func FormatRelativeTime(t time.Time) string {
	return FormatRelativeTimeFrom(t, time.Now())
}

// FormatRelativeTimeFrom is FormatRelativeTime with an explicit clock
func FormatRelativeTimeFrom(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	diff := now.Sub(t)

	if diff < time.Minute {
		return "just now"
	}
	if diff < time.Hour {
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	}
	if diff < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
}

// FormatMessageTime renders a message timestamp in the configured style.
// Unparsable timestamps are returned unchanged.
func FormatMessageTime(ts string, style string, now time.Time) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	if style == "absolute" {
		return t.Local().Format("2006-01-02 15:04")
	}
	return FormatRelativeTimeFrom(t, now)
}

// FormatReactions renders reactions as "👍 3  solved 1"
func FormatReactions(reactions []api.Reaction) string {
	parts := make([]string, 0, len(reactions))
	for _, r := range reactions {
		parts = append(parts, fmt.Sprintf("%s %d", r.Emoji.Name, r.Count))
	}
	return strings.Join(parts, "  ")
}

// FormatAttachments renders attachments as "[file.png 1.2MB]"
func FormatAttachments(attachments []api.Attachment) string {
	parts := make([]string, 0, len(attachments))
	for _, a := range attachments {
		parts = append(parts, fmt.Sprintf("[%s %s]", a.Filename, FormatBytes(uint64(a.Size))))
	}
	return strings.Join(parts, " ")
}
