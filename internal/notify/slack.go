package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"salesforecast/internal/exporter"
)

// SlackNotifier posts a run summary to an incoming webhook
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
	logger     *slog.Logger
}

// NewSlackNotifier creates a webhook notifier. A zero timeout means 10s.
func NewSlackNotifier(webhookURL string, timeout time.Duration, logger *slog.Logger) *SlackNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// RunCompleted implements Notifier
func (n *SlackNotifier) RunCompleted(ctx context.Context, event RunEvent) error {
	msg := slackMessage(event)
	if err := slack.PostWebhookCustomHTTPContext(ctx, n.webhookURL, n.client, msg); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	n.logger.DebugContext(ctx, "run posted to slack", slog.String("run_id", event.RunID))
	return nil
}

// Close implements Notifier
func (n *SlackNotifier) Close() error { return nil }

func slackMessage(e RunEvent) *slack.WebhookMessage {
	mode := "saved"
	if e.DryRun {
		mode = "dry run"
	}
	title := fmt.Sprintf("Sales forecast %s (%s)", e.RunAt.UTC().Format("2006-01-02 15:04 UTC"), mode)

	summary := fmt.Sprintf("*Segments* %d: %d fitted, %d skipped, %d fallback, %d failed\n*Points* %d\n*Source* %s\n*Run* `%s`",
		e.Segments, e.Fitted, e.Skipped, e.Fallback, e.Failed, e.PointsWritten, e.Source, e.RunID)

	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, title, false, false)),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, summary, false, false), nil, nil),
	}
	if len(e.Top) > 0 {
		var b strings.Builder
		b.WriteString("*Best segments by MAPE*\n")
		for _, s := range e.Top {
			fmt.Fprintf(&b, "• %s  MAPE %s  R2 %.3f\n", s.Segment, exporter.FormatMAPE(s.MAPE), s.R2)
		}
		blocks = append(blocks, slack.NewDividerBlock(),
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, b.String(), false, false), nil, nil))
	}

	return &slack.WebhookMessage{
		Text:   title,
		Blocks: &slack.Blocks{BlockSet: blocks},
	}
}
