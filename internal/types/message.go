package types

import (
	"encoding/json"
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// MessageKind tags the variant held by a Message.
type MessageKind string

const (
	MessageText MessageKind = "text"
	MessageFlex MessageKind = "flex"
)

// Message is an outbound reply: either plain text or a rich flex payload.
type Message struct {
	Kind MessageKind
	// Text is set for text messages.
	Text string
	// AltText and Contents are set for flex messages.
	AltText  string
	Contents messaging_api.FlexContainerInterface
}

// TextMessage builds a plain text reply.
func TextMessage(text string) Message {
	return Message{Kind: MessageText, Text: text}
}

// FlexMessage builds a rich reply with a fallback text for notifications.
func FlexMessage(altText string, contents messaging_api.FlexContainerInterface) Message {
	return Message{Kind: MessageFlex, AltText: altText, Contents: contents}
}

// Summary returns the text a user would see in a notification.
func (m Message) Summary() string {
	if m.Kind == MessageFlex {
		return m.AltText
	}
	return m.Text
}

// MarshalJSON encodes the message in the messaging platform's wire format.
func (m Message) MarshalJSON() ([]byte, error) {
	switch m.Kind {
	case MessageText:
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{"text", m.Text})
	case MessageFlex:
		return json.Marshal(struct {
			Type     string                               `json:"type"`
			AltText  string                               `json:"altText"`
			Contents messaging_api.FlexContainerInterface `json:"contents"`
		}{"flex", m.AltText, m.Contents})
	default:
		return nil, fmt.Errorf("unknown message kind %q", m.Kind)
	}
}
