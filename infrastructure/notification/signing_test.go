package notification

import (
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestSignerSign(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"template":"offer_extended"}`)
	sig := NewSigner("secret").Sign(payload)
	if !strings.HasPrefix(sig, "sha256=") {
		t.Errorf("signature = %q, want sha256= prefix", sig)
	}
	if sig != NewSigner("secret").Sign(payload) {
		t.Error("signing is not deterministic")
	}
	if sig == NewSigner("other-secret").Sign(payload) {
		t.Error("different secrets produced the same signature")
	}
}

func TestSignerVerify(t *testing.T) {
	t.Parallel()

	signer := NewSigner("secret")
	payload := []byte(`{"template":"offer_extended"}`)
	sig := signer.Sign(payload)

	if !signer.Verify(payload, sig) {
		t.Error("Verify() = false for a valid signature")
	}
	if NewSigner("wrong").Verify(payload, sig) {
		t.Error("Verify() = true under the wrong secret")
	}
	if signer.Verify([]byte("tampered"), sig) {
		t.Error("Verify() = true for a tampered payload")
	}
}

func TestSignerHeaders(t *testing.T) {
	t.Parallel()

	signer := NewSigner("secret")
	payload := []byte(`{"template":"offer_extended"}`)
	sentAt := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	headers := signer.Headers(payload, sentAt)
	if got, want := headers[HeaderTimestamp], strconv.FormatInt(sentAt.Unix(), 10); got != want {
		t.Errorf("timestamp header = %q, want %q", got, want)
	}

	signed := append([]byte(headers[HeaderTimestamp]+"."), payload...)
	if !signer.Verify(signed, headers[HeaderSignature]) {
		t.Error("signature header does not verify over timestamp.payload")
	}

	// The signature binds to the send instant, so a replayed payload
	// cannot carry an old signature under a fresh timestamp.
	later := signer.Headers(payload, sentAt.Add(time.Minute))
	if later[HeaderSignature] == headers[HeaderSignature] {
		t.Error("signature unchanged across timestamps")
	}
}
