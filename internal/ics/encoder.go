package ics

import (
	"io"
	"strings"
	"time"

	"calimport/internal/models"

	"github.com/emersion/go-ical"
)

// Write encodes events as an iCalendar document, the same format the
// decoder consumes. Used by the fetch command to stage events from a
// remote calendar as a local export file.
func Write(w io.Writer, events []models.CalendarEvent) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//calimport//EN")
	for i := range events {
		cal.Children = append(cal.Children, toComponent(&events[i]))
	}
	return ical.NewEncoder(w).Encode(cal)
}

// toComponent converts an internal event to an ical.Component (VEvent).
func toComponent(ev *models.CalendarEvent) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, ev.ID)
	ve.Props.SetText(ical.PropSummary, ev.Summary)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	if ev.StartTime != nil {
		ve.Props.SetDateTime(ical.PropDateTimeStart, *ev.StartTime)
	} else {
		ve.Props.SetDateTime(ical.PropDateTimeStart, ev.Date)
	}
	if ev.EndTime != nil {
		ve.Props.SetDateTime(ical.PropDateTimeEnd, *ev.EndTime)
	}

	if ev.Description != "" {
		ve.Props.SetText(ical.PropDescription, ev.Description)
	}
	if ev.Location != "" {
		ve.Props.SetText(ical.PropLocation, ev.Location)
	}
	if ev.Organizer != "" {
		p := ical.NewProp(ical.PropOrganizer)
		p.SetText(ev.Organizer)
		ve.Props.Add(p)
	}
	for _, attendee := range ev.Attendees {
		ve.Props.Add(attendeeProp(attendee))
	}
	return ve
}

// attendeeProp rebuilds an attendee property from its flattened string
// form, splitting a leading CN= display name back into a parameter.
func attendeeProp(raw string) *ical.Prop {
	p := ical.NewProp(ical.PropAttendee)
	value := raw
	if strings.HasPrefix(raw, "CN=") {
		if i := strings.Index(raw, ":"); i > 0 {
			p.Params.Set(ical.ParamCommonName, raw[len("CN="):i])
			value = raw[i+1:]
		}
	}
	p.SetText(value)
	return p
}
