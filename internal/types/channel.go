package types

import (
	"context"
	"net/http"
)

// Channel defines a messaging platform the gateway receives webhooks from
// and sends replies through.
type Channel interface {
	Name() string
	// ValidateRequest authenticates a webhook. body is the raw request body.
	ValidateRequest(r *http.Request, body []byte) error
	// ParseRequest extracts the text messages carried by a validated body.
	ParseRequest(body []byte) ([]Inbound, error)
	// Reply answers one inbound message. A reply token is single use.
	Reply(ctx context.Context, replyToken string, msgs []Message) error
	// Push sends messages to a known user or group without a reply token.
	Push(ctx context.Context, to string, msgs []Message) error
}
