package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-integrations/core"
)

const (
	EncodingHex    = core.SignatureEncodingHex
	EncodingBase64 = core.SignatureEncodingBase64
)

// SignatureCodec computes and checks HMAC-SHA256 signatures. The zero value
// uses lowercase hex.
type SignatureCodec struct {
	Encoding string
}

func (c SignatureCodec) Sign(secret string, payload []byte) string {
	digest := c.digest(secret, payload)
	if c.encoding() == EncodingBase64 {
		return base64.StdEncoding.EncodeToString(digest)
	}
	return hex.EncodeToString(digest)
}

// Verify strips prefix from provided and compares it to the expected digest
// in constant time. Malformed input yields false.
func (c SignatureCodec) Verify(secret string, payload []byte, provided string, prefix string) bool {
	provided = strings.TrimSpace(provided)
	if prefix = strings.TrimSpace(prefix); prefix != "" {
		if !strings.HasPrefix(provided, prefix) {
			return false
		}
		provided = strings.TrimPrefix(provided, prefix)
	}
	if provided == "" {
		return false
	}

	var decoded []byte
	var err error
	if c.encoding() == EncodingBase64 {
		decoded, err = base64.StdEncoding.DecodeString(provided)
	} else {
		decoded, err = hex.DecodeString(provided)
	}
	if err != nil {
		return false
	}
	return hmac.Equal(decoded, c.digest(secret, payload))
}

// SignJSON serializes v once and signs those bytes. Callers must transmit
// the returned body unchanged.
func (c SignatureCodec) SignJSON(secret string, v any) ([]byte, string, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, "", fmt.Errorf("webhooks: encode payload: %w", err)
	}
	return body, c.Sign(secret, body), nil
}

func (c SignatureCodec) digest(secret string, payload []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return mac.Sum(nil)
}

func (c SignatureCodec) encoding() string {
	if strings.EqualFold(strings.TrimSpace(c.Encoding), EncodingBase64) {
		return EncodingBase64
	}
	return EncodingHex
}
