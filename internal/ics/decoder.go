package ics

import (
	"fmt"
	"io"
	"time"

	"calimport/internal/models"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
)

// ParseError reports a calendar document whose top-level structure
// could not be read. No events are returned alongside it.
type ParseError struct {
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid calendar document: %v", e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// Decode parses a calendar-export document into events. Malformed
// single events are tolerated where possible (a missing start time is
// substituted with the current instant), but a document that cannot be
// parsed at all fails with a *ParseError. Recurrence rules are not
// expanded; a recurring event yields its single stored occurrence.
func Decode(r io.Reader) ([]models.CalendarEvent, error) {
	dec := ical.NewDecoder(r)
	events := []models.CalendarEvent{}
	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Cause: err}
		}
		for _, ve := range cal.Events() {
			events = append(events, FromComponent(ve))
		}
	}
	return events, nil
}

// FromComponent converts one VEVENT into the internal event model.
func FromComponent(ve ical.Event) models.CalendarEvent {
	var ev models.CalendarEvent

	ev.Summary, _ = ve.Props.Text(ical.PropSummary)
	if ev.Summary == "" {
		ev.Summary = "Unbenannter Termin"
	}
	ev.Description, _ = ve.Props.Text(ical.PropDescription)
	ev.Location, _ = ve.Props.Text(ical.PropLocation)

	if prop := ve.Props.Get(ical.PropUID); prop != nil {
		ev.UID = prop.Value
	}
	ev.ID = ev.UID
	if ev.ID == "" {
		ev.ID = "event-" + uuid.New().String()
	}

	if start, err := ve.DateTimeStart(time.Local); err == nil && !start.IsZero() {
		ev.Date = start
		ev.StartTime = &start
	} else {
		// Keep the event rather than dropping the whole block.
		ev.Date = time.Now()
	}
	if end, err := ve.DateTimeEnd(time.Local); err == nil && !end.IsZero() {
		ev.EndTime = &end
	}

	for _, p := range ve.Props.Values(ical.PropAttendee) {
		ev.Attendees = append(ev.Attendees, flattenAttendee(p))
	}
	if prop := ve.Props.Get(ical.PropOrganizer); prop != nil {
		ev.Organizer = prop.Value
	}

	return ev
}

// flattenAttendee renders an attendee property back to the raw string
// form the extractor understands, keeping the CN= display name.
func flattenAttendee(p ical.Prop) string {
	if cn := p.Params.Get(ical.ParamCommonName); cn != "" {
		return fmt.Sprintf("CN=%s:%s", cn, p.Value)
	}
	return p.Value
}
