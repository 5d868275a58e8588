package slack

import (
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/webhooks"
)

const (
	HeaderSignature = "X-Slack-Signature"
	HeaderTimestamp = "X-Slack-Request-Timestamp"

	signatureVersion        = "v0"
	DefaultRequestTolerance = 5 * time.Minute
)

// SignRequest computes the v0 signature Slack sends with every request.
func SignRequest(signingSecret string, timestamp string, body []byte) string {
	return signatureVersion + "=" + webhooks.SignatureCodec{}.Sign(signingSecret, baseString(timestamp, body))
}

// VerifyRequest checks a v0 signature and rejects timestamps outside
// tolerance of now to block replays.
func VerifyRequest(signingSecret string, headers map[string]string, body []byte, now time.Time, tolerance time.Duration) error {
	timestamp := header(headers, HeaderTimestamp)
	seconds, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return core.InvalidSignatureError(Name)
	}
	if tolerance <= 0 {
		tolerance = DefaultRequestTolerance
	}
	if skew := now.Sub(time.Unix(seconds, 0)); skew > tolerance || skew < -tolerance {
		return core.InvalidSignatureError(Name)
	}
	signature := header(headers, HeaderSignature)
	if !(webhooks.SignatureCodec{}).Verify(signingSecret, baseString(timestamp, body), signature, signatureVersion+"=") {
		return core.InvalidSignatureError(Name)
	}
	return nil
}

// VerifyWebhook authenticates a request routed through the dispatcher with
// the v0 scheme, using secret as the signing secret.
func (a *Adapter) VerifyWebhook(secret string, body []byte, headers map[string]string) bool {
	return VerifyRequest(secret, headers, body, a.now(), a.cfg.RequestTolerance) == nil
}

var _ core.RequestVerifier = (*Adapter)(nil)

func baseString(timestamp string, body []byte) []byte {
	out := make([]byte, 0, len(signatureVersion)+len(timestamp)+len(body)+2)
	out = append(out, signatureVersion...)
	out = append(out, ':')
	out = append(out, timestamp...)
	out = append(out, ':')
	return append(out, body...)
}

func header(headers map[string]string, key string) string {
	for name, value := range headers {
		if strings.EqualFold(name, key) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
