package core

import "strings"

const RedactedValue = "[REDACTED]"

// secretMarkers are matched as substrings of lower-cased field names, so
// "webhook_secret" and "X-Slack-Signature" are both caught.
var secretMarkers = [...]string{
	"secret",
	"signature",
	"password",
	"token",
	"authorization",
	"api_key",
	"apikey",
	"credential",
	"private_key",
	"cookie",
}

// visibleFields carry identifiers that must stay readable in logs even when
// they happen to contain a marker.
var visibleFields = map[string]struct{}{
	"integration":        {},
	"webhook":            {},
	"event":              {},
	"delivery_id":        {},
	"sync_operation_id":  {},
	"idempotency_key":    {},
	"signature_header":   {},
	"signature_prefix":   {},
	"continuation_token": {},
}

// RedactSensitiveMap returns a copy of fields with secret values replaced.
// Nested maps, slices, header maps and credentials are walked.
func RedactSensitiveMap(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		if IsSensitiveField(key) {
			out[key] = RedactedValue
			continue
		}
		out[key] = redactValue(value)
	}
	return out
}

// RedactHeaders returns a copy of headers safe to log. Signature and
// authorization headers keep their name but lose their value.
func RedactHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for key, value := range headers {
		if IsSensitiveField(key) {
			value = RedactedValue
		}
		out[key] = value
	}
	return out
}

// IsSensitiveField reports whether a field or header name holds a secret.
func IsSensitiveField(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return false
	}
	if _, ok := visibleFields[name]; ok {
		return false
	}
	for _, marker := range secretMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

func redactValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return RedactSensitiveMap(typed)
	case map[string]string:
		return RedactHeaders(typed)
	case []any:
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			out = append(out, redactValue(item))
		}
		return out
	case IntegrationCredentials:
		return typed.Redacted()
	case *IntegrationCredentials:
		if typed == nil {
			return nil
		}
		return typed.Redacted()
	default:
		return value
	}
}
