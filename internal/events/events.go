// Package events publishes sanitize completion events.
//
// Events carry request metadata only (category, levels, mode, word counts).
// User text and context never leave the process through this channel.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the NATS subject completion events are published to.
const DefaultSubject = "bouncer.sanitize.completed"

// Processing modes recorded on events.
const (
	ModeProvider = "provider"
	ModeCache    = "cache"
	ModeLocal    = "local"
)

// Completed describes one finished sanitize request.
type Completed struct {
	RequestID      string    `json:"request_id,omitempty"`
	Category       string    `json:"category"`
	Ambiguity      int       `json:"ambiguity"`
	Noise          int       `json:"noise"`
	Mode           string    `json:"mode"`
	Provider       string    `json:"provider,omitempty"`
	FallbackReason string    `json:"fallback_reason,omitempty"`
	OriginalWords  int       `json:"original_words"`
	ProcessedWords int       `json:"processed_words"`
	DurationMS     int64     `json:"duration_ms"`
	Timestamp      time.Time `json:"timestamp"`
}

// Publisher delivers completion events.
type Publisher interface {
	PublishCompleted(ctx context.Context, ev Completed) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

// PublishCompleted implements Publisher.
func (Nop) PublishCompleted(context.Context, Completed) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }

// NATSPublisher publishes events as JSON on a NATS subject.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
	owned   bool
}

// NewNATSPublisher wraps an existing connection. The caller keeps ownership
// of nc; Close only flushes.
func NewNATSPublisher(nc *nats.Conn, subject string) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{nc: nc, subject: subject}
}

// Connect dials url and returns a publisher that owns the connection.
func Connect(url, subject string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("bouncer"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	p := NewNATSPublisher(nc, subject)
	p.owned = true
	return p, nil
}

// Subject returns the subject events are published to.
func (p *NATSPublisher) Subject() string { return p.subject }

// PublishCompleted implements Publisher.
func (p *NATSPublisher) PublishCompleted(ctx context.Context, ev Completed) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal completed event: %w", err)
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish completed event: %w", err)
	}
	return nil
}

// Close flushes pending events and closes the connection if owned.
func (p *NATSPublisher) Close() error {
	if p.owned {
		err := p.nc.Drain()
		if err != nil {
			p.nc.Close()
		}
		return err
	}
	return p.nc.Flush()
}
