package server

import (
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/youmna-rabie/line-assistant/internal/types"
)

// gate applies the wake-word rule. One-to-one messages always pass. Group
// and room messages pass only when they start with the channel's wake word,
// which is stripped together with the whitespace after it. A channel
// without a wake word ignores group and room messages.
func (s *Server) gate(channelName string, in types.Inbound) (string, bool) {
	text := strings.TrimSpace(in.Text)
	if !in.MultiParty() {
		return text, text != ""
	}

	cc, _ := s.cfg.Channel(channelName)
	if cc.WakeWord == "" || !strings.HasPrefix(text, cc.WakeWord) {
		return "", false
	}
	text = strings.TrimLeftFunc(text[len(cc.WakeWord):], unicode.IsSpace)
	return text, text != ""
}

func newEventID() uuid.UUID {
	return uuid.New()
}
