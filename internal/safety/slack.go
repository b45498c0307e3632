package safety

import (
	"context"
	"fmt"
	"strings"

	slackapi "github.com/slack-go/slack"

	"recap/internal/config"
	"recap/internal/services"
	"recap/internal/store"
)

// SlackPoster is the subset of the Slack client used by SlackMirror.
type SlackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// SlackMirror posts escalations to a Slack channel.
type SlackMirror struct {
	client  SlackPoster
	channel string
}

// NewSlackMirror builds a mirror from configuration. It returns nil when the
// mirror is disabled.
func NewSlackMirror(cfg config.Slack, opts ...slackapi.Option) (*SlackMirror, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if strings.TrimSpace(cfg.BotToken) == "" || strings.TrimSpace(cfg.Channel) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "analyze", "slack mirror", "bot_token and channel are required when slack is enabled", nil)
	}
	return &SlackMirror{
		client:  slackapi.New(cfg.BotToken, opts...),
		channel: cfg.Channel,
	}, nil
}

// NewSlackMirrorWithClient wires an existing poster.
func NewSlackMirrorWithClient(client SlackPoster, channel string) *SlackMirror {
	return &SlackMirror{client: client, channel: channel}
}

// Escalate posts one message with an attachment per flag.
func (m *SlackMirror) Escalate(ctx context.Context, sessionID string, flags []store.Flag) error {
	if m == nil || m.client == nil {
		return nil
	}
	text := fmt.Sprintf(":rotating_light: Session `%s` raised %d safety flag(s)", sessionID, len(flags))
	attachments := make([]slackapi.Attachment, 0, len(flags))
	for _, f := range flags {
		att := slackapi.Attachment{
			Title:    string(f.Type),
			Text:     f.Description,
			Color:    severityColor(f.Severity),
			Fallback: string(f.Type) + ": " + f.Description,
			Fields: []slackapi.AttachmentField{
				{Title: "Severity", Value: string(f.Severity), Short: true},
			},
		}
		if f.Excerpt != "" {
			att.Fields = append(att.Fields, slackapi.AttachmentField{Title: "Excerpt", Value: f.Excerpt})
		}
		attachments = append(attachments, att)
	}
	_, _, err := m.client.PostMessageContext(ctx, m.channel,
		slackapi.MsgOptionText(text, false),
		slackapi.MsgOptionAttachments(attachments...),
	)
	if err != nil {
		return services.Wrap(services.ErrExternal, "analyze", "slack mirror", m.channel, err)
	}
	return nil
}

func severityColor(sev store.Severity) string {
	switch sev {
	case store.SeverityCritical:
		return "danger"
	case store.SeverityHigh, store.SeverityMedium:
		return "warning"
	default:
		return "#439FE0"
	}
}
