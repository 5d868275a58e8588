package slack

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
)

// Slack rejects section blocks with more than ten fields.
const maxSectionFields = 10

type Block map[string]any

type Message struct {
	Channel  string  `json:"channel"`
	Text     string  `json:"text,omitempty"`
	Blocks   []Block `json:"blocks,omitempty"`
	ThreadTS string  `json:"thread_ts,omitempty"`
}

// MessageAck is the delivery acknowledgment returned by chat.postMessage.
type MessageAck struct {
	Channel string `json:"channel"`
	TS      string `json:"ts"`
}

type postMessageResponse struct {
	envelope
	MessageAck
}

// SendMessage posts msg with chat.postMessage. An empty channel falls back
// to the default_channel setting.
func (a *Adapter) SendMessage(ctx context.Context, msg Message) (MessageAck, error) {
	if strings.TrimSpace(msg.Channel) == "" {
		a.mu.RLock()
		msg.Channel = a.defaultChannel
		a.mu.RUnlock()
	}
	if strings.TrimSpace(msg.Channel) == "" {
		return MessageAck{}, core.BadInputError("slack: message channel is required", nil)
	}
	if strings.TrimSpace(msg.Text) == "" && len(msg.Blocks) == 0 {
		return MessageAck{}, core.BadInputError("slack: message text or blocks are required", map[string]any{"channel": msg.Channel})
	}
	var res postMessageResponse
	if err := a.call(ctx, "chat.postMessage", msg, &res); err != nil {
		return MessageAck{}, err
	}
	return res.MessageAck, nil
}

// CRMEvent is a domain event from the CRM, e.g. contact.created or deal.won.
type CRMEvent struct {
	Type       string
	EntityType string
	EntityID   string
	Title      string
	Fields     map[string]any
	URL        string
	Actor      string
	OccurredAt time.Time
}

func (a *Adapter) SendCRMNotification(ctx context.Context, channel string, event CRMEvent) (MessageAck, error) {
	if strings.TrimSpace(event.Type) == "" {
		return MessageAck{}, core.BadInputError("slack: crm event type is required", nil)
	}
	msg := FormatCRMNotification(event)
	msg.Channel = strings.TrimSpace(channel)
	return a.SendMessage(ctx, msg)
}

// FormatCRMNotification renders event as Block Kit with a plain text
// fallback for notifications.
func FormatCRMNotification(event CRMEvent) Message {
	title := strings.TrimSpace(event.Title)
	if title == "" {
		title = humanize(event.Type)
	}
	heading := crmEmoji(event.Type) + " " + title

	blocks := []Block{
		{
			"type": "header",
			"text": map[string]any{"type": "plain_text", "text": heading, "emoji": true},
		},
	}

	if fields := crmFields(event); len(fields) > 0 {
		blocks = append(blocks, Block{"type": "section", "fields": fields})
	}

	contextParts := []string{"`" + event.Type + "`"}
	if event.Actor != "" {
		contextParts = append(contextParts, "by "+event.Actor)
	}
	if !event.OccurredAt.IsZero() {
		stamp := event.OccurredAt.UTC()
		contextParts = append(contextParts, fmt.Sprintf("<!date^%d^{date_short_pretty} {time}|%s>", stamp.Unix(), stamp.Format(time.RFC3339)))
	}
	blocks = append(blocks, Block{
		"type":     "context",
		"elements": []any{map[string]any{"type": "mrkdwn", "text": strings.Join(contextParts, " · ")}},
	})

	if event.URL != "" {
		blocks = append(blocks, Block{
			"type": "actions",
			"elements": []any{map[string]any{
				"type":      "button",
				"action_id": "open_crm_record",
				"text":      map[string]any{"type": "plain_text", "text": "Open in CRM"},
				"url":       event.URL,
				"value":     event.EntityID,
			}},
		})
	}

	return Message{Text: heading, Blocks: blocks}
}

func crmFields(event CRMEvent) []any {
	fields := []any{}
	if event.EntityType != "" {
		entity := humanize(event.EntityType)
		if event.EntityID != "" {
			entity += " " + event.EntityID
		}
		fields = append(fields, mrkdwn("*Record*\n"+entity))
	}
	keys := make([]string, 0, len(event.Fields))
	for key := range event.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if len(fields) == maxSectionFields {
			break
		}
		fields = append(fields, mrkdwn(fmt.Sprintf("*%s*\n%v", humanize(key), event.Fields[key])))
	}
	return fields
}

func mrkdwn(text string) map[string]any {
	return map[string]any{"type": "mrkdwn", "text": text}
}

func crmEmoji(eventType string) string {
	switch {
	case strings.HasSuffix(eventType, ".won"):
		return ":trophy:"
	case strings.HasSuffix(eventType, ".lost"):
		return ":x:"
	case strings.HasSuffix(eventType, ".created"):
		return ":sparkles:"
	case strings.HasSuffix(eventType, ".converted"):
		return ":arrows_counterclockwise:"
	case strings.HasSuffix(eventType, ".deleted"):
		return ":wastebasket:"
	default:
		return ":memo:"
	}
}

// humanize turns deal.won or first_name into "Deal won" / "First name".
func humanize(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	value = strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(value)
	return strings.ToUpper(value[:1]) + value[1:]
}
