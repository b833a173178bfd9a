// Package preview holds the mutable staging state between matching and
// import execution. It performs no validation of its own; whether an
// item is actually importable is decided by the importer.
package preview

import (
	"time"

	"calimport/internal/extract"
	"calimport/internal/match"
	"calimport/internal/models"
)

// Session is the reviewable decision surface for one parsed export.
// It is mutated only by the single review phase before an import run.
type Session struct {
	Previews []models.EventPreview
}

// New extracts and matches every event against the roster snapshot and
// stages each as selected with no binding chosen yet.
func New(extractCfg extract.Config, matchCfg match.Config, events []models.CalendarEvent, roster []models.CustomerRecord) *Session {
	previews := make([]models.EventPreview, 0, len(events))
	for _, ev := range events {
		enriched := extract.Extract(extractCfg, ev)
		previews = append(previews, models.EventPreview{
			Event:    enriched,
			Selected: true,
			Matches:  match.Find(matchCfg, enriched, roster),
		})
	}
	return &Session{Previews: previews}
}

// ToggleSelected flips the inclusion choice for one preview. Out of
// range indices are ignored.
func (s *Session) ToggleSelected(i int) {
	if i < 0 || i >= len(s.Previews) {
		return
	}
	s.Previews[i].Selected = !s.Previews[i].Selected
}

// ChooseCustomer binds a preview to an existing customer id. An empty
// id means the event should create a new customer.
func (s *Session) ChooseCustomer(i int, customerID string) {
	if i < 0 || i >= len(s.Previews) {
		return
	}
	s.Previews[i].SelectedCustomerID = customerID
	s.Previews[i].IsNewCustomer = customerID == ""
}

// Confirmed returns the selected subset, in input order.
func (s *Session) Confirmed() []models.EventPreview {
	var confirmed []models.EventPreview
	for _, p := range s.Previews {
		if p.Selected {
			confirmed = append(confirmed, p)
		}
	}
	return confirmed
}

// FilterFromDate keeps only events on or after the calendar day of
// from. A zero from keeps everything.
func FilterFromDate(events []models.CalendarEvent, from time.Time) []models.CalendarEvent {
	if from.IsZero() {
		return events
	}
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	var out []models.CalendarEvent
	for _, ev := range events {
		if !ev.Date.Before(day) {
			out = append(out, ev)
		}
	}
	return out
}
