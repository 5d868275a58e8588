package webhooks

import (
	"strings"

	"github.com/goliatone/go-integrations/core"
)

// SignatureScheme names where a vendor puts its signature and how it is
// encoded.
type SignatureScheme struct {
	Name     string
	Header   string
	Prefix   string
	Encoding string
}

var (
	GenericSignatureScheme = SignatureScheme{
		Name:     "generic",
		Header:   core.DefaultSignatureHeader,
		Prefix:   core.DefaultSignaturePrefix,
		Encoding: EncodingHex,
	}
	GitHubSignatureScheme = SignatureScheme{
		Name:     "github",
		Header:   "X-Hub-Signature-256",
		Prefix:   "sha256=",
		Encoding: EncodingHex,
	}
	ShopifySignatureScheme = SignatureScheme{
		Name:     "shopify",
		Header:   "X-Shopify-Hmac-Sha256",
		Encoding: EncodingBase64,
	}
)

func (s SignatureScheme) Codec() SignatureCodec {
	return SignatureCodec{Encoding: s.Encoding}
}

// Apply stamps the scheme's header, prefix and encoding onto a delivery
// config.
func (s SignatureScheme) Apply(cfg core.WebhookDeliveryConfig) core.WebhookDeliveryConfig {
	if header := strings.TrimSpace(s.Header); header != "" {
		cfg.SignatureHeader = header
	}
	cfg.SignaturePrefix = strings.TrimSpace(s.Prefix)
	cfg.SignatureEncoding = s.Codec().encoding()
	return cfg
}

// Headers returns the header set carrying a signature computed for payload.
func (s SignatureScheme) Headers(secret string, payload []byte) map[string]string {
	header := strings.TrimSpace(s.Header)
	if header == "" {
		header = core.DefaultSignatureHeader
	}
	return map[string]string{header: s.Prefix + s.Codec().Sign(secret, payload)}
}

// SchemeByName resolves a preset, falling back to the generic scheme.
func SchemeByName(name string) SignatureScheme {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case GitHubSignatureScheme.Name:
		return GitHubSignatureScheme
	case ShopifySignatureScheme.Name:
		return ShopifySignatureScheme
	default:
		return GenericSignatureScheme
	}
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	if value, ok := headers[key]; ok {
		return strings.TrimSpace(value)
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
