package slack

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/jadenj13/clipper/internals/agent"
)

type Notifier struct {
	client    *slack.Client
	channelID string // channel to post run summaries to
}

func NewNotifier(botToken, channelID string, opts ...slack.Option) *Notifier {
	return &Notifier{
		client:    slack.New(botToken, opts...),
		channelID: channelID,
	}
}

func (n *Notifier) NotifyRun(ctx context.Context, r agent.Report) error {
	_, _, err := n.client.PostMessageContext(ctx, n.channelID,
		slack.MsgOptionText(formatReport(r), false),
	)
	if err != nil {
		return fmt.Errorf("slack notify: %w", err)
	}
	return nil
}

func formatReport(r agent.Report) string {
	var sb strings.Builder
	if r.Err != nil {
		sb.WriteString(":x: *Run failed*\n")
	} else {
		sb.WriteString(":white_check_mark: *Run finished*\n")
	}
	fmt.Fprintf(&sb, "Request: %s\n", quote(r.Request, 300))
	fmt.Fprintf(&sb, "Agent: %s | tool calls: %d | model turns: %d | took %s\n",
		r.Agent, r.ToolCalls, r.Iterations, r.Elapsed.Round(time.Second))
	if r.Err != nil {
		fmt.Fprintf(&sb, "Error: `%s`", quote(r.Err.Error(), 500))
	} else if r.Reply != "" {
		sb.WriteString(quote(r.Reply, 2000))
	}
	if r.RunID != "" {
		fmt.Fprintf(&sb, "\n_run %s_", r.RunID)
	}
	return sb.String()
}

func quote(s string, n int) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "…"
	}
	return s
}
