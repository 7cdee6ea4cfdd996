package notification

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Headers carried on signed webhook requests and their acknowledgments.
const (
	HeaderSignature    = "X-Webhook-Signature"
	HeaderTimestamp    = "X-Webhook-Timestamp"
	HeaderAckSignature = "X-Webhook-Ack-Signature"
)

// Signer signs webhook payloads with a shared HMAC-SHA256 secret and
// verifies acknowledgment bodies signed by the receiving endpoint with
// the same secret.
type Signer struct {
	secret []byte
}

// NewSigner creates a signer over the shared secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the payload signature as "sha256=<hex>".
func (s *Signer) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches the payload.
func (s *Signer) Verify(payload []byte, signature string) bool {
	return hmac.Equal([]byte(s.Sign(payload)), []byte(signature))
}

// Headers returns the signature headers for one outgoing request. The
// signature covers "<unix-timestamp>.<payload>", so a replayed body
// cannot reuse an old signature under a fresh timestamp.
func (s *Signer) Headers(payload []byte, sentAt time.Time) map[string]string {
	ts := strconv.FormatInt(sentAt.Unix(), 10)
	return map[string]string{
		HeaderSignature: s.Sign(append([]byte(ts+"."), payload...)),
		HeaderTimestamp: ts,
	}
}
