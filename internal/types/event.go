package types

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus represents the lifecycle state of a handled webhook event.
type EventStatus string

const (
	EventStatusReceived  EventStatus = "received"
	EventStatusIgnored   EventStatus = "ignored"
	EventStatusDuplicate EventStatus = "duplicate"
	EventStatusReplied   EventStatus = "replied"
	EventStatusFailed    EventStatus = "failed"
)

// SourceKind identifies who sent an inbound message.
type SourceKind string

const (
	SourceUser  SourceKind = "user"
	SourceGroup SourceKind = "group"
	SourceRoom  SourceKind = "room"
)

// Inbound is one text message extracted from a channel's webhook body.
type Inbound struct {
	// DeliveryID is the platform's identifier for the delivery; redeliveries reuse it.
	DeliveryID string
	ReplyToken string
	Source     SourceKind
	SourceID   string
	Text       string
	Timestamp  time.Time
}

// MultiParty reports whether the message came from a group or room.
func (in Inbound) MultiParty() bool {
	return in.Source == SourceGroup || in.Source == SourceRoom
}

// Event is the record kept for every inbound message the gateway saw.
type Event struct {
	ID         uuid.UUID   `json:"id"`
	DeliveryID string      `json:"delivery_id,omitempty"`
	ChannelID  string      `json:"channel_id"`
	Source     SourceKind  `json:"source"`
	SourceID   string      `json:"source_id,omitempty"`
	Text       string      `json:"text"`
	Intent     string      `json:"intent,omitempty"`
	Replies    int         `json:"replies"`
	Status     EventStatus `json:"status"`
	Timestamp  time.Time   `json:"timestamp"`
}
