package core

import "testing"

func TestRedactSensitiveMapKeepsRoutingKeysVisible(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"integration":   "slack",
		"delivery_id":   "d_1",
		"api_key":       "key_1",
		"authorization": "Bearer secret-token",
		"nested":        map[string]any{"webhook_secret": "s3cr3t", "webhook": "zapier"},
		"events":        []any{map[string]any{"access_token": "tok"}},
	})

	if redacted["integration"] != "slack" || redacted["delivery_id"] != "d_1" {
		t.Fatalf("expected routing keys to remain visible, got %#v", redacted)
	}
	if redacted["api_key"] != RedactedValue || redacted["authorization"] != RedactedValue {
		t.Fatalf("expected credentials to be redacted, got %#v", redacted)
	}
	nested, ok := redacted["nested"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested redacted map")
	}
	if nested["webhook_secret"] != RedactedValue || nested["webhook"] != "zapier" {
		t.Fatalf("unexpected nested redaction: %#v", nested)
	}
	events, ok := redacted["events"].([]any)
	if !ok || len(events) != 1 {
		t.Fatalf("expected redacted event list, got %#v", redacted["events"])
	}
	if first, _ := events[0].(map[string]any); first["access_token"] != RedactedValue {
		t.Fatalf("expected list entries to be redacted, got %#v", events[0])
	}
}

func TestIntegrationCredentialsRedactedHidesSecrets(t *testing.T) {
	view := BasicAuthCredentials("ops", "hunter2").Redacted()
	if view["username"] != "ops" {
		t.Fatalf("expected username to remain visible, got %#v", view["username"])
	}
	if view["password"] != RedactedValue {
		t.Fatalf("expected password to be redacted, got %#v", view["password"])
	}
}

func TestRedactSensitiveMapWalksHeadersAndCredentials(t *testing.T) {
	creds := APIKeyCredentials("zap_live_123")
	redacted := RedactSensitiveMap(map[string]any{
		"signature_header": "X-Webhook-Signature",
		"headers": map[string]string{
			"X-Slack-Signature": "v0=abc",
			"Content-Type":      "application/json",
		},
		"config": &creds,
	})
	if redacted["signature_header"] != "X-Webhook-Signature" {
		t.Fatalf("expected header name setting to remain visible, got %#v", redacted["signature_header"])
	}
	headers, ok := redacted["headers"].(map[string]string)
	if !ok {
		t.Fatalf("expected header map, got %#v", redacted["headers"])
	}
	if headers["X-Slack-Signature"] != RedactedValue || headers["Content-Type"] != "application/json" {
		t.Fatalf("unexpected header redaction %#v", headers)
	}
	view, ok := redacted["config"].(map[string]any)
	if !ok || view["api_key"] != RedactedValue || view["kind"] != string(CredentialKindAPIKey) {
		t.Fatalf("expected credentials replaced by their redacted view, got %#v", redacted["config"])
	}
}

func TestIsSensitiveField(t *testing.T) {
	cases := map[string]bool{
		"Authorization":       true,
		"x-webhook-signature": true,
		"refresh_token":       true,
		"continuation_token":  false,
		"delivery_id":         false,
		"":                    false,
	}
	for name, want := range cases {
		if got := IsSensitiveField(name); got != want {
			t.Fatalf("%q: expected %v, got %v", name, want, got)
		}
	}
}
