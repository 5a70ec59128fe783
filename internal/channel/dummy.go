package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/youmna-rabie/line-assistant/internal/types"
)

// DummyChannel accepts plain JSON messages and keeps outbound replies in
// memory. It is meant for local development and tests.
type DummyChannel struct {
	name   string
	logger *slog.Logger

	mu   sync.Mutex
	sent []Sent
}

// Sent is one outbound delivery recorded by DummyChannel.
type Sent struct {
	// To is the reply token or push target.
	To       string
	Messages []types.Message
}

// NewDummyChannel creates a DummyChannel with the given name.
func NewDummyChannel(name string, logger *slog.Logger) *DummyChannel {
	return &DummyChannel{name: name, logger: logger}
}

func (d *DummyChannel) Name() string {
	return d.name
}

func (d *DummyChannel) ValidateRequest(r *http.Request, _ []byte) error {
	if r.Method != http.MethodPost {
		return fmt.Errorf("method %s not allowed, expected POST", r.Method)
	}
	return nil
}

type dummyMessage struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Source   string `json:"source"`
	SourceID string `json:"source_id"`
}

// ParseRequest accepts one message object or an array of them.
func (d *DummyChannel) ParseRequest(body []byte) ([]types.Inbound, error) {
	var batch []dummyMessage
	if err := json.Unmarshal(body, &batch); err != nil {
		var one dummyMessage
		if err := json.Unmarshal(body, &one); err != nil {
			return nil, fmt.Errorf("decoding message: %w", err)
		}
		batch = []dummyMessage{one}
	}

	out := make([]types.Inbound, 0, len(batch))
	for _, m := range batch {
		source := types.SourceKind(m.Source)
		if source == "" {
			source = types.SourceUser
		}
		out = append(out, types.Inbound{
			DeliveryID: m.ID,
			ReplyToken: uuid.NewString(),
			Source:     source,
			SourceID:   m.SourceID,
			Text:       m.Text,
			Timestamp:  time.Now(),
		})
	}
	return out, nil
}

func (d *DummyChannel) Reply(_ context.Context, replyToken string, msgs []types.Message) error {
	return d.record(replyToken, msgs)
}

func (d *DummyChannel) Push(_ context.Context, to string, msgs []types.Message) error {
	return d.record(to, msgs)
}

func (d *DummyChannel) record(to string, msgs []types.Message) error {
	if len(msgs) > MaxMessages {
		return fmt.Errorf("%d messages exceeds the limit of %d", len(msgs), MaxMessages)
	}
	d.mu.Lock()
	d.sent = append(d.sent, Sent{To: to, Messages: msgs})
	d.mu.Unlock()

	for _, m := range msgs {
		d.logger.Info("dummy send", "channel", d.name, "to", to, "kind", m.Kind, "text", m.Summary())
	}
	return nil
}

// Sent returns every delivery recorded so far.
func (d *DummyChannel) Sent() []Sent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Sent(nil), d.sent...)
}
