package calendar

import (
	"time"

	"github.com/youmna-rabie/line-assistant/internal/skill"
)

func timeArg(args skill.Args, key string, loc *time.Location) (time.Time, bool, error) {
	s, err := args.String(key)
	if err != nil {
		return time.Time{}, false, err
	}
	t, allDay, err := ParseTime(s, loc)
	if err != nil {
		return time.Time{}, false, &skill.ParamError{Field: key, Reason: err.Error()}
	}
	return t, allDay, nil
}

func optTimeArg(args skill.Args, key string, loc *time.Location) (time.Time, error) {
	if !args.Has(key) {
		return time.Time{}, nil
	}
	if s, _ := args.OptString(key, ""); s == "" {
		return time.Time{}, nil
	}
	t, _, err := timeArg(args, key, loc)
	return t, err
}

// eventArgs reads an event from args using the given field names.
func eventArgs(args skill.Args, titleKey, startKey, endKey string, loc *time.Location) (Event, error) {
	title, err := args.String(titleKey)
	if err != nil {
		return Event{}, err
	}
	start, allDay, err := timeArg(args, startKey, loc)
	if err != nil {
		return Event{}, err
	}
	end, _, err := timeArg(args, endKey, loc)
	if err != nil {
		return Event{}, err
	}
	if allDay && end.Equal(start) {
		end = start.AddDate(0, 0, 1)
	}
	if end.Before(start) {
		return Event{}, &skill.ParamError{Field: endKey, Reason: "is before " + startKey}
	}
	location, err := args.OptString("location", "")
	if err != nil {
		return Event{}, err
	}
	description, err := args.OptString("description", "")
	if err != nil {
		return Event{}, err
	}
	return Event{
		Title:       title,
		Start:       start,
		End:         end,
		AllDay:      allDay,
		Location:    location,
		Description: description,
	}, nil
}
