package models

import "time"

// CalendarEvent represents one appointment from a calendar export.
// This is an internal representation, independent of any specific calendar provider.
// It is created by the decoder, enriched once by the extractor and
// treated as read-only afterwards.
type CalendarEvent struct {
	ID           string     // Stable identifier, the iCalendar UID or a synthesized one
	Summary      string     // Title text of the appointment
	Description  string     // Detailed description of the appointment
	Location     string     // Location text, doubles as the customer's from-address
	Date         time.Time  // Calendar day of the event
	StartTime    *time.Time // Start instant, if the export carries one
	EndTime      *time.Time // End instant, if the export carries one
	CustomerName string     // Populated by the extractor
	Phone        string     // Populated by the extractor, normalized
	Email        string     // Populated by the extractor
	Attendees    []string   // Raw attendee property values, CN= parameter preserved
	Organizer    string     // Raw organizer property value
	UID          string     // The iCalendar UID as found in the source
}

// EventRecord is the appointment record written back to the store when
// an event is imported, linked to the customer it was bound to.
type EventRecord struct {
	Title           string     `json:"title"`
	Date            time.Time  `json:"date"`
	StartTime       *time.Time `json:"startTime,omitempty"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	Type            string     `json:"type"`
	CustomerID      string     `json:"customerId"`
	CustomerName    string     `json:"customerName,omitempty"`
	Description     string     `json:"description,omitempty"`
	Location        string     `json:"location,omitempty"`
	Source          string     `json:"source"`
	OriginalEventID string     `json:"originalEventId,omitempty"`
}
