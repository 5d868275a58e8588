package zapier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-integrations/core"
)

type Action string

const (
	ActionCreateContact Action = "create_contact"
	ActionUpdateContact Action = "update_contact"
	ActionCreateLead    Action = "create_lead"
	ActionUpdateLead    Action = "update_lead"
	ActionCreateDeal    Action = "create_deal"
	ActionUpdateDeal    Action = "update_deal"
	ActionSendEmail     Action = "send_email"
	ActionImportRecords Action = "import_records"
	ActionSubscribe     Action = "subscribe"
	ActionUnsubscribe   Action = "unsubscribe"
)

// ActionRequest is the body a Zap posts to the inbound webhook.
type ActionRequest struct {
	Action     Action           `json:"action"`
	Data       map[string]any   `json:"data"`
	EntityType string           `json:"entity_type,omitempty"`
	Records    []map[string]any `json:"records,omitempty"`
}

// Translation is the structured result of an entity action.
type Translation struct {
	Entity    string         `json:"entity"`
	Operation string         `json:"operation"`
	ID        string         `json:"id,omitempty"`
	Fields    map[string]any `json:"fields"`
}

func (t Translation) toMap() map[string]any {
	out := map[string]any{
		"entity":    t.Entity,
		"operation": t.Operation,
		"fields":    t.Fields,
	}
	if t.ID != "" {
		out["id"] = t.ID
	}
	return out
}

// entityFields lists the accepted fields per entity and which are required on
// create.
type entityFields struct {
	fields   []string
	required []string
}

var entities = map[string]entityFields{
	"contact": {
		fields:   []string{"email", "first_name", "last_name", "phone", "company", "title"},
		required: []string{"email"},
	},
	"lead": {
		fields:   []string{"email", "name", "company", "source", "status"},
		required: []string{"email"},
	},
	"deal": {
		fields:   []string{"title", "amount", "currency", "stage", "contact_id", "close_date"},
		required: []string{"title"},
	},
}

// HandleWebhook dispatches on the action tag. Unknown actions and invalid
// data are answered with Accepted=false and 422 so the dispatcher does not
// retry them.
func (a *Adapter) HandleWebhook(ctx context.Context, payload core.WebhookPayload) (core.WebhookResult, error) {
	var req ActionRequest
	if err := json.Unmarshal(payload.Data, &req); err != nil {
		return core.WebhookResult{}, core.WrapError(err, goerrors.CategoryBadInput, "zapier: decode action payload", core.ErrorBadInput, nil)
	}
	req.Action = Action(strings.ToLower(strings.TrimSpace(string(req.Action))))

	switch req.Action {
	case ActionCreateContact, ActionUpdateContact,
		ActionCreateLead, ActionUpdateLead,
		ActionCreateDeal, ActionUpdateDeal:
		operation, entity, _ := strings.Cut(string(req.Action), "_")
		translation, problems := TranslateEntity(entity, operation, req.Data)
		if len(problems) > 0 {
			return rejected(req.Action, problems), nil
		}
		data := translation.toMap()
		data["action"] = string(req.Action)
		return core.WebhookResult{Accepted: true, StatusCode: http.StatusOK, Data: data}, nil
	case ActionSendEmail:
		email, problems := TranslateEmail(req.Data)
		if len(problems) > 0 {
			return rejected(req.Action, problems), nil
		}
		email["action"] = string(req.Action)
		return core.WebhookResult{Accepted: true, StatusCode: http.StatusAccepted, Data: email}, nil
	case ActionImportRecords:
		return a.importRecords(ctx, req)
	case ActionSubscribe:
		sub, err := a.Subscribe(ctx, stringField(req.Data, "event"), firstString(req.Data, "target_url", "hookUrl"))
		if err != nil {
			if core.HasErrorCode(err, core.ErrorBadInput) {
				return rejected(req.Action, []string{err.Error()}), nil
			}
			return core.WebhookResult{}, err
		}
		return core.WebhookResult{Accepted: true, StatusCode: http.StatusCreated, Data: sub.toMap()}, nil
	case ActionUnsubscribe:
		id := firstString(req.Data, "id", "subscription_id")
		if err := a.Unsubscribe(ctx, id); err != nil {
			if core.HasErrorCode(err, core.ErrorNotFound) || core.HasErrorCode(err, core.ErrorBadInput) {
				return rejected(req.Action, []string{err.Error()}), nil
			}
			return core.WebhookResult{}, err
		}
		return core.WebhookResult{Accepted: true, StatusCode: http.StatusOK, Data: map[string]any{"id": id, "action": string(req.Action)}}, nil
	default:
		return core.WebhookResult{
			Accepted:   false,
			StatusCode: http.StatusUnprocessableEntity,
			Data:       map[string]any{"action": string(req.Action), "errors": []string{fmt.Sprintf("unknown action %q", req.Action)}},
		}, nil
	}
}

// TranslateEntity normalizes data for a create or update of entity. Update
// requires an id; create requires the entity's mandatory fields.
func TranslateEntity(entity string, operation string, data map[string]any) (Translation, []string) {
	shape, ok := entities[entity]
	if !ok {
		return Translation{}, []string{fmt.Sprintf("unknown entity %q", entity)}
	}
	out := Translation{Entity: entity, Operation: operation, Fields: map[string]any{}}
	problems := []string{}

	if operation == "update" {
		out.ID = firstString(data, "id", entity+"_id")
		if out.ID == "" {
			problems = append(problems, "id is required")
		}
	}
	for _, field := range shape.fields {
		value, ok := data[field]
		if !ok || value == nil {
			continue
		}
		normalized, err := normalizeField(field, value)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		if normalized != "" {
			out.Fields[field] = normalized
		}
	}
	if operation == "create" {
		for _, field := range shape.required {
			if _, ok := out.Fields[field]; !ok {
				problems = append(problems, field+" is required")
			}
		}
	} else if len(out.Fields) == 0 {
		problems = append(problems, "at least one field is required")
	}
	if amount, ok := out.Fields["amount"].(string); ok {
		parsed, err := strconv.ParseFloat(amount, 64)
		if err != nil {
			problems = append(problems, "amount must be numeric")
		} else {
			out.Fields["amount"] = parsed
		}
	}
	return out, problems
}

// TranslateEmail validates a send_email action into a message request.
func TranslateEmail(data map[string]any) (map[string]any, []string) {
	problems := []string{}
	to := stringField(data, "to")
	if to == "" {
		problems = append(problems, "to is required")
	} else if !strings.Contains(to, "@") {
		problems = append(problems, "to must be an email address")
	}
	subject := stringField(data, "subject")
	if subject == "" {
		problems = append(problems, "subject is required")
	}
	body := firstString(data, "body", "html")
	if body == "" {
		problems = append(problems, "body is required")
	}
	if len(problems) > 0 {
		return nil, problems
	}
	out := map[string]any{
		"to":      strings.ToLower(to),
		"subject": subject,
		"body":    body,
	}
	if from := stringField(data, "from"); from != "" {
		out["from"] = from
	}
	return out, nil
}

func normalizeField(field string, value any) (string, error) {
	text := strings.TrimSpace(fmt.Sprint(value))
	switch field {
	case "email":
		text = strings.ToLower(text)
		if text != "" && !strings.Contains(text, "@") {
			return "", fmt.Errorf("email must be an email address")
		}
	case "currency":
		text = strings.ToUpper(text)
	case "amount":
		if number, ok := value.(float64); ok {
			text = strconv.FormatFloat(number, 'f', -1, 64)
		}
	}
	return text, nil
}

func rejected(action Action, problems []string) core.WebhookResult {
	sort.Strings(problems)
	return core.WebhookResult{
		Accepted:   false,
		StatusCode: http.StatusUnprocessableEntity,
		Data:       map[string]any{"action": string(action), "errors": problems},
	}
}

func stringField(data map[string]any, key string) string {
	value, ok := data[key]
	if !ok || value == nil {
		return ""
	}
	if text, ok := value.(string); ok {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func firstString(data map[string]any, keys ...string) string {
	for _, key := range keys {
		if value := stringField(data, key); value != "" {
			return value
		}
	}
	return ""
}
