package channel

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/youmna-rabie/line-assistant/internal/types"
)

// SignatureHeader carries the webhook body signature.
const SignatureHeader = "X-Line-Signature"

// MaxMessages is the most messages one reply or push may carry.
const MaxMessages = 5

// ErrBadSignature is returned when a webhook signature does not verify.
var ErrBadSignature = errors.New("invalid webhook signature")

// LineChannel receives LINE Messaging API webhooks and sends replies.
type LineChannel struct {
	name   string
	secret string
	api    *messaging_api.MessagingApiAPI
}

// NewLineChannel creates a LINE channel. secret verifies webhooks and token
// authorizes outbound calls. An empty apiBase uses the public endpoint.
func NewLineChannel(name, secret, token, apiBase string, client *http.Client) (*LineChannel, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	opts := []messaging_api.MessagingApiAPIOption{messaging_api.WithHTTPClient(client)}
	if apiBase != "" {
		opts = append(opts, messaging_api.WithEndpoint(strings.TrimSuffix(apiBase, "/")))
	}
	api, err := messaging_api.NewMessagingApiAPI(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating messaging client for %s: %w", name, err)
	}
	return &LineChannel{name: name, secret: secret, api: api}, nil
}

func (l *LineChannel) Name() string {
	return l.name
}

// Sign returns the signature LINE sends for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (l *LineChannel) ValidateRequest(r *http.Request, body []byte) error {
	if r.Method != http.MethodPost {
		return fmt.Errorf("method %s not allowed, expected POST", r.Method)
	}
	sig := r.Header.Get(SignatureHeader)
	if sig == "" || !webhook.ValidateSignature(l.secret, sig, body) {
		return ErrBadSignature
	}
	return nil
}

func (l *LineChannel) ParseRequest(body []byte) ([]types.Inbound, error) {
	var cb webhook.CallbackRequest
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, fmt.Errorf("decoding webhook: %w", err)
	}

	var out []types.Inbound
	for _, e := range cb.Events {
		var ev webhook.MessageEvent
		switch v := e.(type) {
		case webhook.MessageEvent:
			ev = v
		case *webhook.MessageEvent:
			ev = *v
		default:
			continue
		}
		text, ok := textOf(ev.Message)
		if !ok {
			continue
		}
		in := types.Inbound{
			DeliveryID: ev.WebhookEventId,
			ReplyToken: ev.ReplyToken,
			Text:       text,
			Timestamp:  time.UnixMilli(ev.Timestamp),
		}
		in.Source, in.SourceID = sourceOf(ev.Source)
		out = append(out, in)
	}
	return out, nil
}

func textOf(m webhook.MessageContentInterface) (string, bool) {
	switch v := m.(type) {
	case webhook.TextMessageContent:
		return v.Text, true
	case *webhook.TextMessageContent:
		return v.Text, true
	}
	return "", false
}

func sourceOf(s webhook.SourceInterface) (types.SourceKind, string) {
	switch v := s.(type) {
	case webhook.GroupSource:
		return types.SourceGroup, v.GroupId
	case *webhook.GroupSource:
		return types.SourceGroup, v.GroupId
	case webhook.RoomSource:
		return types.SourceRoom, v.RoomId
	case *webhook.RoomSource:
		return types.SourceRoom, v.RoomId
	case webhook.UserSource:
		return types.SourceUser, v.UserId
	case *webhook.UserSource:
		return types.SourceUser, v.UserId
	}
	return types.SourceUser, ""
}

func (l *LineChannel) Reply(ctx context.Context, replyToken string, msgs []types.Message) error {
	out, err := lineMessages(msgs)
	if err != nil {
		return err
	}
	api := *l.api
	if _, err := api.WithContext(ctx).ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   out,
	}); err != nil {
		return fmt.Errorf("reply: %w", err)
	}
	return nil
}

func (l *LineChannel) Push(ctx context.Context, to string, msgs []types.Message) error {
	out, err := lineMessages(msgs)
	if err != nil {
		return err
	}
	api := *l.api
	if _, err := api.WithContext(ctx).PushMessage(&messaging_api.PushMessageRequest{
		To:       to,
		Messages: out,
	}, ""); err != nil {
		return fmt.Errorf("push to %s: %w", to, err)
	}
	return nil
}

// lineMessages converts replies to the Messaging API models.
func lineMessages(msgs []types.Message) ([]messaging_api.MessageInterface, error) {
	if len(msgs) == 0 {
		return nil, fmt.Errorf("no messages to send")
	}
	if len(msgs) > MaxMessages {
		return nil, fmt.Errorf("%d messages exceeds the limit of %d", len(msgs), MaxMessages)
	}
	out := make([]messaging_api.MessageInterface, 0, len(msgs))
	for _, m := range msgs {
		switch m.Kind {
		case types.MessageText:
			out = append(out, &messaging_api.TextMessage{Text: m.Text})
		case types.MessageFlex:
			if m.Contents == nil {
				return nil, fmt.Errorf("flex message %q has no contents", m.AltText)
			}
			out = append(out, &messaging_api.FlexMessage{AltText: m.AltText, Contents: m.Contents})
		default:
			return nil, fmt.Errorf("unknown message kind %q", m.Kind)
		}
	}
	return out, nil
}
