package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"calimport/internal/models"
)

// fakeStore records calls and fails on demand.
type fakeStore struct {
	customers map[string]models.CustomerRecord
	created   []models.CustomerPayload
	patches   map[string][]models.CustomerPatch
	events    []models.EventRecord

	failCreateOn int   // 1-based call index that fails, 0 = never
	createCalls  int
	systemicErr  error // returned by every mutating call when set
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		customers: map[string]models.CustomerRecord{},
		patches:   map[string][]models.CustomerPatch{},
	}
}

func (s *fakeStore) ListCustomers(ctx context.Context) ([]models.CustomerRecord, error) {
	var out []models.CustomerRecord
	for _, c := range s.customers {
		out = append(out, c)
	}
	return out, nil
}

func (s *fakeStore) CreateCustomer(ctx context.Context, payload models.CustomerPayload) (string, error) {
	s.createCalls++
	if s.systemicErr != nil {
		return "", s.systemicErr
	}
	if s.failCreateOn == s.createCalls {
		return "", errors.New("boom")
	}
	id := fmt.Sprintf("id-%d", s.createCalls)
	s.created = append(s.created, payload)
	s.customers[id] = models.CustomerRecord{ID: id, Name: payload.Name, Phone: payload.Phone, Email: payload.Email}
	return id, nil
}

func (s *fakeStore) GetCustomer(ctx context.Context, id string) (*models.CustomerRecord, error) {
	if s.systemicErr != nil {
		return nil, s.systemicErr
	}
	if c, ok := s.customers[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (s *fakeStore) UpdateCustomer(ctx context.Context, id string, patch models.CustomerPatch) error {
	if s.systemicErr != nil {
		return s.systemicErr
	}
	s.patches[id] = append(s.patches[id], patch)
	return nil
}

func (s *fakeStore) AddEvent(ctx context.Context, record models.EventRecord) error {
	s.events = append(s.events, record)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPreview(summary string) models.EventPreview {
	return models.EventPreview{
		Event:         models.CalendarEvent{Summary: summary, CustomerName: summary, Date: time.Now()},
		Selected:      true,
		IsNewCustomer: true,
	}
}

func TestRun_FailureIsolation(t *testing.T) {
	st := newFakeStore()
	st.failCreateOn = 2
	imp := New(st, testLogger())

	previews := []models.EventPreview{newPreview("a"), newPreview("b"), newPreview("c")}
	stats, err := imp.Run(context.Background(), previews)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := models.ImportStats{TotalEvents: 3, Imported: 2, NewCustomers: 2, Errors: 1}
	if stats != want {
		t.Fatalf("got %+v, want %+v", stats, want)
	}
	if st.createCalls != 3 {
		t.Fatalf("expected all 3 items attempted, got %d", st.createCalls)
	}
}

func TestRun_SkipsUndecided(t *testing.T) {
	st := newFakeStore()
	imp := New(st, testLogger())

	undecided := models.EventPreview{
		Event:    models.CalendarEvent{Summary: "offen"},
		Selected: true,
	}
	stats, err := imp.Run(context.Background(), []models.EventPreview{undecided, newPreview("a")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.Skipped != 1 || stats.Imported != 1 || stats.Errors != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.TotalEvents != stats.Imported+stats.Errors+stats.Skipped {
		t.Fatalf("inconsistent aggregate %+v", stats)
	}
}

func TestRun_CreatePayload(t *testing.T) {
	st := newFakeStore()
	imp := New(st, testLogger())

	day := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	p := models.EventPreview{
		Event: models.CalendarEvent{
			Summary:      "Müller, 15.6",
			CustomerName: "Müller",
			Phone:        "+491512345678",
			Email:        "m@example.com",
			Location:     "Hauptstraße 5",
			Date:         day,
			UID:          "uid-1",
		},
		Selected:      true,
		IsNewCustomer: true,
	}

	stats, err := imp.Run(context.Background(), []models.EventPreview{p})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.NewCustomers != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	payload := st.created[0]
	if payload.Name != "Müller" || payload.Phone != "+491512345678" || payload.FromAddress != "Hauptstraße 5" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if !payload.MovingDate.Equal(day) {
		t.Fatalf("unexpected moving date %v", payload.MovingDate)
	}
	if payload.Source != SourceTag {
		t.Fatalf("unexpected source %q", payload.Source)
	}

	if len(st.events) != 1 {
		t.Fatalf("expected one event record, got %d", len(st.events))
	}
	if st.events[0].Type != "imported" || st.events[0].OriginalEventID != "uid-1" {
		t.Fatalf("unexpected event record %+v", st.events[0])
	}
	if st.events[0].CustomerID != "id-1" {
		t.Fatalf("event record not linked to created customer: %+v", st.events[0])
	}
}

func TestRun_MinimalPatch(t *testing.T) {
	st := newFakeStore()
	st.customers["c1"] = models.CustomerRecord{ID: "c1", Name: "Weber", Phone: "030123456"}
	imp := New(st, testLogger())

	day := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
	p := models.EventPreview{
		Event: models.CalendarEvent{
			Summary:      "Weber",
			CustomerName: "Weber",
			Phone:        "+4930999999",
			Email:        "weber@example.com",
			Date:         day,
		},
		Selected:           true,
		SelectedCustomerID: "c1",
	}

	stats, err := imp.Run(context.Background(), []models.EventPreview{p})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Matched != 1 || stats.Imported != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	patches := st.patches["c1"]
	if len(patches) != 1 {
		t.Fatalf("expected one patch, got %d", len(patches))
	}
	patch := patches[0]
	if patch.Phone != nil {
		t.Fatalf("phone already set, must not be patched: %v", *patch.Phone)
	}
	if patch.Email == nil || *patch.Email != "weber@example.com" {
		t.Fatal("empty email should be filled from the event")
	}
	if patch.MovingDate == nil || !patch.MovingDate.Equal(day) {
		t.Fatal("moving date must always be refreshed")
	}
}

func TestRun_SystemicFailureAborts(t *testing.T) {
	st := newFakeStore()
	imp := New(st, testLogger())

	previews := []models.EventPreview{newPreview("a"), newPreview("b"), newPreview("c")}

	// First item succeeds, then the store goes away.
	done := 0
	imp.OnProgress = func(d, total int) {
		done = d
		if d == 1 {
			st.systemicErr = fmt.Errorf("%w: connection refused", ErrStoreUnavailable)
		}
	}

	stats, err := imp.Run(context.Background(), previews)
	if err == nil {
		t.Fatal("expected a top-level error")
	}
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if stats.Imported != 1 || stats.Errors != 0 {
		t.Fatalf("expected partial stats from before the failure, got %+v", stats)
	}
	if done != 1 {
		t.Fatalf("expected abort right after item 2 failed, progress %d", done)
	}
	if st.createCalls != 2 {
		t.Fatalf("item 3 must not be attempted, got %d create calls", st.createCalls)
	}
}
