// Package notify posts run summaries to Slack.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"spendlens/internal/analysis"
	"spendlens/internal/log"
)

type poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier posts one message per finished run to a channel.
type SlackNotifier struct {
	api     poster
	channel string
	logger  *log.Logger
}

func NewSlackNotifier(token, channelID string, logger *log.Logger) *SlackNotifier {
	return &SlackNotifier{
		api:     slack.New(token),
		channel: channelID,
		logger:  logger.OrDefault().WithComponent(log.ComponentNotify),
	}
}

func (n *SlackNotifier) NotifyRun(ctx context.Context, run analysis.StoredRun) error {
	text := FormatRun(run)
	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil),
	}
	_, ts, err := n.api.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(blocks...))
	if err != nil {
		return fmt.Errorf("post run %s to slack: %w", run.Metadata.ID, err)
	}
	n.logger.InfoContext(ctx, "Run summary posted",
		log.FieldRunID, run.Metadata.ID,
		"channel", n.channel,
		"ts", ts)
	return nil
}

// FormatRun renders a run as Slack markdown.
func FormatRun(run analysis.StoredRun) string {
	meta := run.Metadata
	var b strings.Builder
	fmt.Fprintf(&b, "*Spend analysis %s* (%s, %s)\n", meta.ID, meta.Trigger, meta.Status)
	fmt.Fprintf(&b, "Rows: %d accepted of %d", meta.RowsAccepted, meta.RowsReceived)
	if meta.Source != "" {
		fmt.Fprintf(&b, " from %s", meta.Source)
	}
	b.WriteString("\n")

	r := run.Report
	if r == nil {
		return b.String()
	}
	t := r.Totals
	fmt.Fprintf(&b, "• Duplicate spend: %d vendor pairs, %s/month\n", t.DuplicatePairs, t.DuplicateMonthlySavings.StringFixed(2))
	fmt.Fprintf(&b, "• Yearly switches: %d candidates, %s/year known savings",
		len(r.SwitchRecommendations.Items), t.YearlySwitchSavings.StringFixed(2))
	if t.YearlySavingsUnknown > 0 {
		fmt.Fprintf(&b, " (%d without terms)", t.YearlySavingsUnknown)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "• Substitutions: %d candidates, %s/month\n", len(r.SubstitutionCandidates.Items), t.SubstitutionMonthly.StringFixed(2))
	for _, e := range r.Errors {
		fmt.Fprintf(&b, ":warning: %s failed: %s\n", e.Analyzer, e.Error)
	}
	return b.String()
}
