// Package events implements the idempotent publish/subscribe bus used to
// notify listeners of action outcomes. An event's identity is the content
// hash of its canonical serialization: two envelopes with identical type,
// timestamp, tenant, and payload are the same event, and a duplicate
// publish inside the replay window runs no handlers.
package events

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"
)

// Envelope carries one event.
type Envelope struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	TenantID  string         `json:"tenant_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Hash returns the event's content identity: the SHA-256 hex digest of
// the RFC 8785 canonical JSON of (type, timestamp, tenant, payload).
// The timestamp is normalized to UTC so equal instants hash equally.
func (e Envelope) Hash() (string, error) {
	normalized := Envelope{
		Type:      e.Type,
		Timestamp: e.Timestamp.UTC(),
		TenantID:  e.TenantID,
		Payload:   e.Payload,
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("events: marshal envelope: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("events: canonicalize envelope: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
