// Package notification delivers pipeline notifications to webhook
// endpoints. Circuit breaking and retry pacing live with the caller;
// the sender here makes exactly one attempt.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/hirewire/pipeline-go/domain/notification"
	"github.com/hirewire/pipeline-go/infrastructure/logging"
)

// WebhookConfig configures the webhook notifier.
type WebhookConfig struct {
	// Endpoint is the webhook URL notifications are posted to.
	Endpoint string

	// SigningSecret signs each payload; empty disables signing.
	SigningSecret string

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// Client overrides the HTTP client; nil uses a default client.
	Client *http.Client
}

// DefaultWebhookConfig returns sensible defaults.
func DefaultWebhookConfig() WebhookConfig {
	return WebhookConfig{
		Timeout: 10 * time.Second,
	}
}

// WebhookNotifier posts notification messages to a configured endpoint
// as signed JSON.
type WebhookNotifier struct {
	config WebhookConfig
	client *http.Client
	signer *Signer

	closedMu sync.RWMutex
	closed   bool
}

var _ notification.Notifier = (*WebhookNotifier)(nil)

// NewWebhookNotifier creates a new webhook notifier.
func NewWebhookNotifier(config WebhookConfig) *WebhookNotifier {
	client := config.Client
	if client == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	var signer *Signer
	if config.SigningSecret != "" {
		signer = NewSigner(config.SigningSecret)
	}
	return &WebhookNotifier{
		config: config,
		client: client,
		signer: signer,
	}
}

// Dispatch posts a single message to the endpoint.
func (w *WebhookNotifier) Dispatch(ctx context.Context, msg notification.Message) error {
	w.closedMu.RLock()
	closed := w.closed
	w.closedMu.RUnlock()
	if closed {
		return notification.ErrNotifierClosed
	}

	if msg.Template == "" || len(msg.Recipients) == 0 {
		return fmt.Errorf("%w: template and recipients are required", notification.ErrInvalidMessage)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("%w: %v", notification.ErrInvalidMessage, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", notification.ErrInvalidMessage, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.signer != nil {
		for k, v := range w.signer.Headers(payload, time.Now()) {
			req.Header.Set(k, v)
		}
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", notification.ErrEndpointUnavailable, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if err := w.verifyAck(resp, body); err != nil {
			return err
		}
		logging.Debug().
			Add(logging.Component("webhook")).
			Add(logging.Str("template", msg.Template)).
			Add(logging.CandidateID(msg.CandidateID)).
			Msg("notification delivered")
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// The endpoint understood and refused; retrying cannot help.
		return fmt.Errorf("%w: status %d", notification.ErrEndpointRejected, resp.StatusCode)
	default:
		return fmt.Errorf("%w: status %d", notification.ErrEndpointUnavailable, resp.StatusCode)
	}
}

// verifyAck checks the acknowledgment signature an endpoint may attach
// to a 2xx response. A missing header is fine; a signature that does
// not match the response body means the endpoint does not hold the
// shared secret, which is treated like a rejection.
func (w *WebhookNotifier) verifyAck(resp *http.Response, body []byte) error {
	if w.signer == nil {
		return nil
	}
	sig := resp.Header.Get(HeaderAckSignature)
	if sig == "" {
		return nil
	}
	if !w.signer.Verify(body, sig) {
		return fmt.Errorf("%w: acknowledgment signature mismatch", notification.ErrEndpointRejected)
	}
	return nil
}

// Close marks the notifier closed. Subsequent dispatches fail.
func (w *WebhookNotifier) Close() error {
	w.closedMu.Lock()
	w.closed = true
	w.closedMu.Unlock()
	return nil
}
