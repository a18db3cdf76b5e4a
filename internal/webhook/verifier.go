// Package webhook verifies and dispatches signed payment-provider events.
//
// Verification runs over the untouched request bytes before any parsing:
// the signature covers the raw payload, so re-serializing a decoded
// structure would break it.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"

	"haggle-api/internal/model"
)

// Event is a decoded provider event. Data and Payload are kept raw;
// handlers decode what they need.
type Event struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Receipt acknowledges a processed event. EventType is exposed for
// metrics, not serialized.
type Receipt struct {
	Received  bool   `json:"received"`
	EventType string `json:"-"`
}

// Handler processes one verified event type.
type Handler func(ctx context.Context, event *Event) error

// Verifier checks event signatures and routes verified events to
// registered handlers by type. Unknown types are logged and acknowledged;
// rejecting them would make every new provider event a delivery failure.
type Verifier struct {
	secret   string
	handlers map[string]Handler
	logger   *slog.Logger
}

// New creates a Verifier with the given shared secret.
// An empty secret is tolerated at construction so the service can boot in
// development, but every verification attempt will fail with a
// configuration error until one is set.
func New(secret string, logger *slog.Logger) *Verifier {
	return &Verifier{
		secret:   secret,
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Handle registers a handler for an event type, replacing any previous one.
func (v *Verifier) Handle(eventType string, h Handler) {
	v.handlers[eventType] = h
}

// VerifyAndDispatch validates the signature over raw, then decodes and
// routes the event. Order matters: nothing is parsed before the signature
// checks out.
func (v *Verifier) VerifyAndDispatch(ctx context.Context, raw []byte, signature string) (*Receipt, error) {
	if signature == "" {
		return nil, model.NewSignatureError(model.ErrMissingSignature, "missing signature header")
	}
	if v.secret == "" {
		return nil, model.NewConfigurationError("webhook signing secret")
	}

	if !verifyHMAC(v.secret, raw, signature) {
		return nil, model.NewSignatureError(model.ErrInvalidSignature, "signature mismatch")
	}

	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, model.NewValidationError("payload", "not valid JSON")
	}

	if h, ok := v.handlers[event.Type]; ok {
		if err := h(ctx, &event); err != nil {
			return nil, model.NewInternalError(err)
		}
	} else {
		v.logger.InfoContext(ctx, "unhandled webhook event type",
			slog.String("type", event.Type),
			slog.String("id", event.ID),
		)
	}

	return &Receipt{Received: true, EventType: event.Type}, nil
}

// verifyHMAC checks a lowercase-hex HMAC-SHA256 signature over the raw
// body. hmac.Equal keeps the comparison constant-time.
func verifyHMAC(secret string, body []byte, provided string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	// Compare the hex strings, not decoded bytes: the header must match
	// the lowercase digest exactly, so an uppercase rendering is rejected.
	return hmac.Equal([]byte(expected), []byte(provided))
}

// Sign returns the lowercase-hex HMAC-SHA256 of body. Used by the test
// client to produce valid signatures against a local server.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
