package models

import "time"

// CustomerRecord is an existing customer as held by the customer store.
type CustomerRecord struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone,omitempty"`
	Email       string    `json:"email,omitempty"`
	FromAddress string    `json:"fromAddress,omitempty"`
	ToAddress   string    `json:"toAddress,omitempty"`
	MovingDate  time.Time `json:"movingDate,omitempty"`
	Apartment   Apartment `json:"apartment"`
	Services    []string  `json:"services,omitempty"`
	Source      string    `json:"source,omitempty"`
	Notes       string    `json:"notes,omitempty"`
}

// Apartment carries the dwelling details a quote is based on.
type Apartment struct {
	Rooms       int  `json:"rooms"`
	Area        int  `json:"area"`
	Floor       int  `json:"floor"`
	HasElevator bool `json:"hasElevator"`
}

// CustomerPayload is the shape of a new customer created from an event.
type CustomerPayload struct {
	Name        string
	Phone       string
	Email       string
	FromAddress string
	ToAddress   string
	MovingDate  time.Time
	Apartment   Apartment
	Services    []string
	Source      string
	Notes       string
}

// CustomerPatch is a partial update of an existing customer. Nil fields
// are left untouched.
type CustomerPatch struct {
	Phone      *string
	Email      *string
	MovingDate *time.Time
}

// CustomerMatch scores one roster customer against one event. It is
// ephemeral and never mutated after the matcher returns it.
type CustomerMatch struct {
	Customer     CustomerRecord
	Score        float64  // in (0, 1]
	MatchReasons []string // deduplicated justification strings
}

// EventPreview is the decision-time aggregate the user reviews before
// an import run. Matches are sorted by score descending.
type EventPreview struct {
	Event              CalendarEvent
	Selected           bool
	Matches            []CustomerMatch
	SelectedCustomerID string
	IsNewCustomer      bool
}

// Undecided reports whether no binding has been chosen for the preview.
// An undecided item is skipped by the importer.
func (p EventPreview) Undecided() bool {
	return !p.IsNewCustomer && p.SelectedCustomerID == ""
}

// ImportStats aggregates the outcome of one import run.
type ImportStats struct {
	TotalEvents  int
	Imported     int
	Matched      int
	NewCustomers int
	Errors       int
	Skipped      int
}
