// Package audit reports admission decisions and rejections to a
// persistent sink. Reporting is fire-and-forget: the kernel logs sink
// failures and never lets them block admission.
package audit

import (
	"context"
	"log/slog"
	"time"
)

// Entry is one recorded admission decision.
type Entry struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Principal  string    `json:"principal"`
	TenantID   string    `json:"tenant_id"`
	Engine     string    `json:"engine"`
	Action     string    `json:"action"`
	Stage      string    `json:"stage"`
	Allowed    bool      `json:"allowed"`
	Reason     string    `json:"reason,omitempty"`
	AuditLevel string    `json:"audit_level,omitempty"`
}

// Sink persists audit entries.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

// SlogSink writes entries to a structured logger.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink over logger (slog.Default() when nil).
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// Record logs the entry at Info level.
func (s *SlogSink) Record(ctx context.Context, entry Entry) error {
	s.logger.InfoContext(ctx, "admission decision",
		"id", entry.ID,
		"principal", entry.Principal,
		"tenant", entry.TenantID,
		"engine", entry.Engine,
		"action", entry.Action,
		"stage", entry.Stage,
		"allowed", entry.Allowed,
		"reason", entry.Reason,
		"audit_level", entry.AuditLevel,
	)
	return nil
}

// MultiSink fans an entry out to several sinks, returning the first error
// after attempting all of them.
type MultiSink []Sink

// Record delivers the entry to every sink.
func (m MultiSink) Record(ctx context.Context, entry Entry) error {
	var first error
	for _, sink := range m {
		if err := sink.Record(ctx, entry); err != nil && first == nil {
			first = err
		}
	}
	return first
}
