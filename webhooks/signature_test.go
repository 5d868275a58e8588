package webhooks

import (
	"testing"
	"time"

	"github.com/goliatone/go-integrations/core"
)

func TestSignatureCodec_RoundTrip(t *testing.T) {
	codec := SignatureCodec{}
	body := []byte(`{"event":"deal.won","amount":1200}`)
	signature := codec.Sign("topsecret", body)

	if len(signature) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(signature))
	}
	if signature != codec.Sign("topsecret", body) {
		t.Fatalf("expected deterministic signature")
	}
	if !codec.Verify("topsecret", body, signature, "") {
		t.Fatalf("expected signature to verify")
	}
	if !codec.Verify("topsecret", body, "sha256="+signature, "sha256=") {
		t.Fatalf("expected prefixed signature to verify")
	}
	if codec.Verify("othersecret", body, signature, "") {
		t.Fatalf("expected wrong secret to fail")
	}
	if codec.Verify("topsecret", body, signature, "sha256=") {
		t.Fatalf("expected missing prefix to fail")
	}
}

func TestSignatureCodec_MalformedInputReturnsFalse(t *testing.T) {
	codec := SignatureCodec{}
	for _, provided := range []string{"", "zz-not-hex", "abc", "sha256="} {
		if codec.Verify("secret", []byte("payload"), provided, "") {
			t.Fatalf("expected %q to fail verification", provided)
		}
	}
	if (SignatureCodec{Encoding: EncodingBase64}).Verify("secret", []byte("payload"), "%%%", "") {
		t.Fatalf("expected malformed base64 to fail verification")
	}
}

func TestSignatureCodec_SignJSONSignsTransmittedBytes(t *testing.T) {
	codec := SignatureCodec{}
	body, signature, err := codec.SignJSON("secret", map[string]any{"b": 2, "a": 1})
	if err != nil {
		t.Fatalf("sign json: %v", err)
	}
	if !codec.Verify("secret", body, signature, "") {
		t.Fatalf("expected returned body to verify")
	}
	if _, _, err := codec.SignJSON("secret", map[string]any{"bad": make(chan int)}); err == nil {
		t.Fatalf("expected encode failure for unsupported value")
	}
}

func TestSignatureSchemes(t *testing.T) {
	body := []byte(`{"action":"opened"}`)
	headers := GitHubSignatureScheme.Headers("gh-secret", body)
	value := headers["X-Hub-Signature-256"]
	if !GitHubSignatureScheme.Codec().Verify("gh-secret", body, value, GitHubSignatureScheme.Prefix) {
		t.Fatalf("expected github scheme header to verify, got %q", value)
	}

	shopify := ShopifySignatureScheme.Headers("shop-secret", body)["X-Shopify-Hmac-Sha256"]
	if !ShopifySignatureScheme.Codec().Verify("shop-secret", body, shopify, "") {
		t.Fatalf("expected base64 scheme header to verify, got %q", shopify)
	}

	cfg := GitHubSignatureScheme.Apply(core.WebhookDeliveryConfig{Timeout: time.Second})
	if cfg.Header() != "X-Hub-Signature-256" || cfg.SignaturePrefix != "sha256=" || cfg.SignatureEncoding != EncodingHex {
		t.Fatalf("unexpected applied scheme %#v", cfg)
	}
	if applied := ShopifySignatureScheme.Apply(cfg); applied.SignatureEncoding != EncodingBase64 || applied.SignaturePrefix != "" {
		t.Fatalf("expected shopify scheme to switch encoding, got %#v", applied)
	}
	if SchemeByName("unknown").Name != GenericSignatureScheme.Name {
		t.Fatalf("expected generic fallback")
	}
}

func TestDispatcherVerifiesWithSchemeHeaders(t *testing.T) {
	dispatcher, _ := newTestDispatcher()
	handler := &countingHandler{}
	cfg := GitHubSignatureScheme.Apply(deliveryConfig(0))
	cfg.Secret = "gh-secret"
	if err := dispatcher.Register("github", cfg, handler); err != nil {
		t.Fatalf("register: %v", err)
	}
	body := []byte(`{"action":"opened"}`)
	if _, err := dispatcher.DeliverInbound(t.Context(), "github", body, GitHubSignatureScheme.Headers("gh-secret", body)); err != nil {
		t.Fatalf("deliver inbound: %v", err)
	}
	if handler.calls.Load() != 1 {
		t.Fatalf("expected handler invocation")
	}
}

func TestDispatcherVerifiesEncodingPerRegistration(t *testing.T) {
	dispatcher, _ := newTestDispatcher()
	shop := &countingHandler{}
	cfg := ShopifySignatureScheme.Apply(deliveryConfig(0))
	cfg.Secret = "shop-secret"
	if err := dispatcher.Register("shopify", cfg, shop); err != nil {
		t.Fatalf("register shopify: %v", err)
	}
	generic := &countingHandler{}
	plain := deliveryConfig(0)
	plain.Secret = "crm-secret"
	plain.SignaturePrefix = core.DefaultSignaturePrefix
	if err := dispatcher.Register("crm", plain, generic); err != nil {
		t.Fatalf("register crm: %v", err)
	}

	body := []byte(`{"id":1001,"topic":"orders/create"}`)
	if _, err := dispatcher.DeliverInbound(t.Context(), "shopify", body, ShopifySignatureScheme.Headers("shop-secret", body)); err != nil {
		t.Fatalf("deliver shopify: %v", err)
	}
	if shop.calls.Load() != 1 {
		t.Fatalf("expected shopify handler invocation, got %d", shop.calls.Load())
	}

	hexHeaders := map[string]string{"X-Shopify-Hmac-Sha256": (SignatureCodec{}).Sign("shop-secret", body)}
	if _, err := dispatcher.DeliverInbound(t.Context(), "shopify", body, hexHeaders); !core.HasErrorCode(err, core.ErrorInvalidSignature) {
		t.Fatalf("expected hex digest rejected for base64 registration, got %v", err)
	}

	if _, err := dispatcher.DeliverInbound(t.Context(), "crm", body, GenericSignatureScheme.Headers("crm-secret", body)); err != nil {
		t.Fatalf("deliver crm: %v", err)
	}
	if generic.calls.Load() != 1 {
		t.Fatalf("expected generic handler invocation, got %d", generic.calls.Load())
	}
}

func TestDispatcherUsesRegistrationVerifier(t *testing.T) {
	dispatcher, _ := newTestDispatcher()
	handler := &countingHandler{}
	cfg := deliveryConfig(0)
	cfg.Secret = "signing"
	cfg.SignatureHeader = "X-Vendor-Signature"
	cfg.Verifier = core.RequestVerifierFunc(func(secret string, body []byte, headers map[string]string) bool {
		base := append([]byte(headers["X-Vendor-Timestamp"]+":"), body...)
		return (SignatureCodec{}).Verify(secret, base, headers["X-Vendor-Signature"], "v1=")
	})
	if err := dispatcher.Register("vendor", cfg, handler); err != nil {
		t.Fatalf("register: %v", err)
	}

	body := []byte(`{"type":"ping"}`)
	signed := map[string]string{
		"X-Vendor-Timestamp": "1700000000",
		"X-Vendor-Signature": "v1=" + (SignatureCodec{}).Sign("signing", append([]byte("1700000000:"), body...)),
	}
	if _, err := dispatcher.DeliverInbound(t.Context(), "vendor", body, signed); err != nil {
		t.Fatalf("deliver inbound: %v", err)
	}
	if got := handler.lastPayload().Signature; got != signed["X-Vendor-Signature"] {
		t.Fatalf("expected payload to carry the vendor signature, got %q", got)
	}

	bodyOnly := map[string]string{
		"X-Vendor-Timestamp": "1700000000",
		"X-Vendor-Signature": "v1=" + (SignatureCodec{}).Sign("signing", body),
	}
	if _, err := dispatcher.DeliverInbound(t.Context(), "vendor", body, bodyOnly); !core.HasErrorCode(err, core.ErrorInvalidSignature) {
		t.Fatalf("expected body-only signature rejected by verifier, got %v", err)
	}
	if handler.calls.Load() != 1 {
		t.Fatalf("expected one handler invocation, got %d", handler.calls.Load())
	}
}
