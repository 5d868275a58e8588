package devkit

import (
	"github.com/goliatone/go-integrations/webhooks"
)

// SignedWebhookFixture is a body signed the way a provider would sign it.
type SignedWebhookFixture struct {
	Name    string
	Scheme  webhooks.SignatureScheme
	Secret  string
	Body    []byte
	Headers map[string]string
}

func NewSignedWebhookFixture(name string, scheme webhooks.SignatureScheme, secret string, body []byte) SignedWebhookFixture {
	headers := scheme.Headers(secret, body)
	headers["Content-Type"] = "application/json"
	return SignedWebhookFixture{
		Name:    name,
		Scheme:  scheme,
		Secret:  secret,
		Body:    append([]byte(nil), body...),
		Headers: headers,
	}
}

// NewSignedWebhookFixtures covers every built in signature scheme.
func NewSignedWebhookFixtures() []SignedWebhookFixture {
	return []SignedWebhookFixture{
		NewSignedWebhookFixture("generic", webhooks.GenericSignatureScheme, "generic_secret",
			[]byte(`{"event":"contact.created","data":{"id":"c_1"}}`)),
		NewSignedWebhookFixture("github", webhooks.GitHubSignatureScheme, "github_secret",
			[]byte(`{"action":"opened","number":7}`)),
		NewSignedWebhookFixture("shopify", webhooks.ShopifySignatureScheme, "shopify_secret",
			[]byte(`{"id":820982911946154508,"email":"jon@example.com"}`)),
		NewSignedWebhookFixture("zapier", webhooks.GenericSignatureScheme, "zapier_secret",
			[]byte(`{"action":"create_contact","data":{"email":"ada@example.com"}}`)),
	}
}
