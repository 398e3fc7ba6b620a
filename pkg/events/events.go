// Package events announces store changes to downstream consumers.
package events

import (
	"context"
	"time"
)

// Event types, also used as AMQP routing keys.
const (
	TypeMessageCreated = "message.created"
	TypeMessageLiked   = "message.liked"
)

// Event is one store change.
type Event struct {
	Type          string    `json:"type"`
	MessageID     string    `json:"messageId"`
	RecipientName string    `json:"recipientName,omitempty"`
	Likes         int       `json:"likes"`
	At            time.Time `json:"at"`
}

// Publisher delivers events. Callers treat delivery as best effort.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish discards ev.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }
