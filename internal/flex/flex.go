// Package flex builds the rich message bubbles sent for calendar replies.
package flex

import (
	"sort"
	"strings"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

const (
	colorBrand     = "#2B3467"
	colorSuccess   = "#1DB446"
	colorImportant = "#E63946"
	colorText      = "#111111"
	colorMuted     = "#888888"
	colorSubtle    = "#666666"
	colorNotice    = "#B36B00"
)

const calendarURL = "https://calendar.google.com"

var importantMarkers = []string{"Important", "重要"}

// Entry is one event shown in an overview.
type Entry struct {
	Title    string
	Start    time.Time
	AllDay   bool
	Location string
}

// Important reports whether the entry is highlighted.
func (e Entry) Important() bool {
	for _, m := range importantMarkers {
		if strings.Contains(e.Title, m) {
			return true
		}
	}
	return false
}

// EventCard is the bubble shown after an event is created. A non-empty
// notice is rendered below the event time.
func EventCard(headline, title string, start time.Time, loc *time.Location, notice string) *messaging_api.FlexBubble {
	local := start.In(loc)
	contents := []messaging_api.FlexComponentInterface{
		&messaging_api.FlexText{Text: headline, Weight: messaging_api.FlexTextWEIGHT_BOLD, Color: colorSuccess, Size: "sm"},
		&messaging_api.FlexText{Text: title, Weight: messaging_api.FlexTextWEIGHT_BOLD, Size: "xl", Margin: "md", Wrap: true},
		&messaging_api.FlexBox{
			Layout: messaging_api.FlexBoxLAYOUT_HORIZONTAL,
			Margin: "md",
			Contents: []messaging_api.FlexComponentInterface{
				&messaging_api.FlexText{Text: local.Format("01/02 (Mon)"), Size: "sm", Color: colorSubtle, Flex: 1},
				&messaging_api.FlexText{Text: local.Format("15:04"), Size: "sm", Color: colorText, Weight: messaging_api.FlexTextWEIGHT_BOLD, Flex: 1},
			},
		},
	}
	if notice != "" {
		contents = append(contents,
			&messaging_api.FlexSeparator{Margin: "md"},
			&messaging_api.FlexText{Text: notice, Size: "xs", Color: colorNotice, Margin: "md", Wrap: true},
		)
	}

	return &messaging_api.FlexBubble{
		Size: messaging_api.FlexBubbleSIZE_MEGA,
		Body: &messaging_api.FlexBox{
			Layout:     messaging_api.FlexBoxLAYOUT_VERTICAL,
			PaddingAll: "20px",
			Contents:   contents,
		},
	}
}

// Overview is a timeline of entries grouped by local date.
func Overview(title string, entries []Entry, loc *time.Location) *messaging_api.FlexBubble {
	if len(entries) == 0 {
		return &messaging_api.FlexBubble{
			Body: vbox(&messaging_api.FlexText{Text: "📅 No events found"}),
		}
	}

	groups := map[string][]Entry{}
	for _, e := range entries {
		key := e.Start.In(loc).Format(time.DateOnly)
		groups[key] = append(groups[key], e)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var body []messaging_api.FlexComponentInterface
	for i, key := range keys {
		label := groups[key][0].Start.In(loc).Format("01/02 (Mon)")
		margin := "xl"
		if i == 0 {
			margin = "none"
		}
		dateHeader := vbox(
			&messaging_api.FlexText{Text: label, Weight: messaging_api.FlexTextWEIGHT_BOLD, Size: "sm", Color: colorBrand},
			&messaging_api.FlexSeparator{Margin: "sm", Color: colorBrand},
		)
		dateHeader.Margin = margin
		body = append(body, dateHeader)

		for _, e := range groups[key] {
			body = append(body, row(e, loc))
		}
	}

	first := groups[keys[0]][0].Start.In(loc).Format("01/02 (Mon)")
	last := groups[keys[len(keys)-1]][0].Start.In(loc).Format("01/02 (Mon)")

	header := vbox(
		&messaging_api.FlexText{Text: title, Weight: messaging_api.FlexTextWEIGHT_BOLD, Color: "#ffffff", Size: "lg"},
		&messaging_api.FlexText{Text: first + " - " + last, Color: "#b7c0ce", Size: "xs", Margin: "sm"},
	)
	header.BackgroundColor = colorBrand
	header.PaddingAll = "20px"
	header.PaddingBottom = "15px"

	footer := vbox(&messaging_api.FlexButton{
		Action: &messaging_api.UriAction{Label: "Open Google Calendar", Uri: calendarURL},
		Style:  messaging_api.FlexButtonSTYLE_PRIMARY,
		Color:  colorBrand,
	})
	footer.BackgroundColor = "#f8f9fa"

	return &messaging_api.FlexBubble{
		Size:   messaging_api.FlexBubbleSIZE_MEGA,
		Header: header,
		Body:   vbox(body...),
		Footer: footer,
	}
}

func row(e Entry, loc *time.Location) *messaging_api.FlexBox {
	when := e.Start.In(loc).Format("15:04")
	if e.AllDay {
		when = "All Day"
	}
	titleColor, timeColor, weight := colorText, colorMuted, messaging_api.FlexTextWEIGHT_REGULAR
	if e.Important() {
		titleColor, timeColor, weight = colorImportant, colorImportant, messaging_api.FlexTextWEIGHT_BOLD
	}
	name := e.Title
	if name == "" {
		name = "(No Title)"
	}

	detail := vbox(&messaging_api.FlexText{Text: name, Size: "sm", Color: titleColor, Wrap: true, Weight: weight})
	if e.Location != "" {
		detail.Contents = append(detail.Contents,
			&messaging_api.FlexText{Text: e.Location, Size: "xs", Color: "#aaaaaa", Margin: "xs", Wrap: true})
	}
	detail.Flex = 4
	detail.Margin = "md"

	return &messaging_api.FlexBox{
		Layout: messaging_api.FlexBoxLAYOUT_HORIZONTAL,
		Margin: "lg",
		Contents: []messaging_api.FlexComponentInterface{
			&messaging_api.FlexText{Text: when, Size: "sm", Color: timeColor, Weight: messaging_api.FlexTextWEIGHT_BOLD, Margin: "xs", Flex: 1},
			detail,
		},
	}
}

func vbox(contents ...messaging_api.FlexComponentInterface) *messaging_api.FlexBox {
	return &messaging_api.FlexBox{Layout: messaging_api.FlexBoxLAYOUT_VERTICAL, Contents: contents}
}
