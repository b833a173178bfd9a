// Package importer executes a confirmed batch of event previews
// against the customer store, creating or updating one customer per
// item. Customer creation is not idempotent at the store boundary, so
// the run is strictly sequential; one item's failure does not abort
// the rest of the batch.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"calimport/internal/extract"
	"calimport/internal/models"
)

// SourceTag marks customers and event records created by this import
// pipeline.
const SourceTag = "Apple Calendar Import"

// ErrStoreUnavailable marks a systemic store failure. An item error
// wrapping it aborts the remaining batch instead of being isolated.
var ErrStoreUnavailable = errors.New("customer store unavailable")

// CustomerStore is the collaborator that owns the customer roster.
type CustomerStore interface {
	ListCustomers(ctx context.Context) ([]models.CustomerRecord, error)
	CreateCustomer(ctx context.Context, payload models.CustomerPayload) (string, error)
	GetCustomer(ctx context.Context, id string) (*models.CustomerRecord, error)
	UpdateCustomer(ctx context.Context, id string, patch models.CustomerPatch) error
}

// EventWriter is an optional store capability: keeping an appointment
// record linked to the customer an event was imported for.
type EventWriter interface {
	AddEvent(ctx context.Context, record models.EventRecord) error
}

// Importer runs confirmed previews against a customer store.
type Importer struct {
	store  CustomerStore
	logger *slog.Logger

	// Source overrides the tag written on created customers and event
	// records.
	Source string
	// OnProgress, when set, is called after each item with the number
	// of items finished and the batch size.
	OnProgress func(done, total int)
}

// New creates an Importer for the given store.
func New(store CustomerStore, logger *slog.Logger) *Importer {
	return &Importer{store: store, logger: logger, Source: SourceTag}
}

// Run walks the confirmed previews in input order. Per item it either
// creates a new customer, patches the chosen existing one, or skips an
// undecided entry. Item failures are logged and counted; a failure
// wrapping ErrStoreUnavailable aborts the loop and is returned next to
// the stats accumulated so far.
func (imp *Importer) Run(ctx context.Context, previews []models.EventPreview) (models.ImportStats, error) {
	stats := models.ImportStats{TotalEvents: len(previews)}

	for i, p := range previews {
		var err error
		switch {
		case p.IsNewCustomer:
			err = imp.createCustomer(ctx, p.Event)
			if err == nil {
				stats.NewCustomers++
				stats.Imported++
			}
		case p.SelectedCustomerID != "":
			err = imp.updateCustomer(ctx, p.SelectedCustomerID, p.Event)
			if err == nil {
				stats.Matched++
				stats.Imported++
			}
		default:
			stats.Skipped++
		}

		if err != nil {
			if errors.Is(err, ErrStoreUnavailable) {
				return stats, fmt.Errorf("import aborted after %d of %d items: %w", i, len(previews), err)
			}
			imp.logger.Error("Failed to import event", "summary", p.Event.Summary, "error", err)
			stats.Errors++
		}

		if imp.OnProgress != nil {
			imp.OnProgress(i+1, len(previews))
		}
	}

	return stats, nil
}

// createCustomer builds a new customer from the event's extracted
// fields and records the appointment against the fresh id.
func (imp *Importer) createCustomer(ctx context.Context, ev models.CalendarEvent) error {
	name := ev.CustomerName
	if name == "" {
		name = extract.UnknownName
	}
	payload := models.CustomerPayload{
		Name:        name,
		Phone:       ev.Phone,
		Email:       ev.Email,
		FromAddress: ev.Location,
		MovingDate:  ev.Date,
		Apartment:   models.Apartment{Rooms: 3, Area: 60},
		Services:    []string{"Umzug"},
		Source:      imp.Source,
		Notes:       ev.Description,
	}

	id, err := imp.store.CreateCustomer(ctx, payload)
	if err != nil {
		return fmt.Errorf("create customer: %w", err)
	}
	imp.logger.Info("Created customer from event", "customer", name, "id", id)

	return imp.recordEvent(ctx, ev, id, name)
}

// updateCustomer patches the chosen customer: only currently empty
// phone and email fields are filled from the event, the moving date is
// always refreshed.
func (imp *Importer) updateCustomer(ctx context.Context, id string, ev models.CalendarEvent) error {
	customer, err := imp.store.GetCustomer(ctx, id)
	if err != nil {
		return fmt.Errorf("get customer %s: %w", id, err)
	}

	name := ev.CustomerName
	if customer != nil {
		patch := models.CustomerPatch{MovingDate: &ev.Date}
		if customer.Phone == "" && ev.Phone != "" {
			patch.Phone = &ev.Phone
		}
		if customer.Email == "" && ev.Email != "" {
			patch.Email = &ev.Email
		}
		if err := imp.store.UpdateCustomer(ctx, id, patch); err != nil {
			return fmt.Errorf("update customer %s: %w", id, err)
		}
		imp.logger.Info("Updated customer from event", "customer", customer.Name, "id", id)
		if name == "" {
			name = customer.Name
		}
	}

	return imp.recordEvent(ctx, ev, id, name)
}

// recordEvent writes the imported appointment when the store supports
// it. Stores without event records are fine; nothing is written.
func (imp *Importer) recordEvent(ctx context.Context, ev models.CalendarEvent, customerID, customerName string) error {
	writer, ok := imp.store.(EventWriter)
	if !ok {
		return nil
	}
	record := models.EventRecord{
		Title:           ev.Summary,
		Date:            ev.Date,
		StartTime:       ev.StartTime,
		EndTime:         ev.EndTime,
		Type:            "imported",
		CustomerID:      customerID,
		CustomerName:    customerName,
		Description:     ev.Description,
		Location:        ev.Location,
		Source:          imp.Source,
		OriginalEventID: ev.UID,
	}
	if err := writer.AddEvent(ctx, record); err != nil {
		return fmt.Errorf("record imported event: %w", err)
	}
	return nil
}
