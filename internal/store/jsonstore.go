// Package store provides a JSON-file backed customer store: the local
// working copy of the back-office roster the import run reconciles
// against.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"calimport/internal/importer"
	"calimport/internal/models"

	"github.com/google/uuid"
)

// document is the on-disk shape: the roster plus the appointment
// records written by imports.
type document struct {
	Customers []models.CustomerRecord `json:"customers"`
	Events    []models.EventRecord    `json:"events,omitempty"`
}

// FileStore implements the customer store on a single JSON file. The
// whole document is loaded once and rewritten on every mutation.
type FileStore struct {
	path   string
	logger *slog.Logger
	data   document
}

var _ importer.CustomerStore = (*FileStore)(nil)
var _ importer.EventWriter = (*FileStore)(nil)

// Open loads the store file. A missing file starts an empty roster; an
// unreadable one is a systemic failure.
func Open(logger *slog.Logger, path string) (*FileStore, error) {
	s := &FileStore{path: path, logger: logger}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("No customer file found, starting with an empty roster.", "file", path)
			return s, nil
		}
		return nil, fmt.Errorf("%w: reading %s: %v", importer.ErrStoreUnavailable, path, err)
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", importer.ErrStoreUnavailable, path, err)
	}
	return s, nil
}

// ListCustomers returns a copy of the roster snapshot.
func (s *FileStore) ListCustomers(ctx context.Context) ([]models.CustomerRecord, error) {
	roster := make([]models.CustomerRecord, len(s.data.Customers))
	copy(roster, s.data.Customers)
	return roster, nil
}

// CreateCustomer appends a new customer and returns its id.
func (s *FileStore) CreateCustomer(ctx context.Context, payload models.CustomerPayload) (string, error) {
	record := models.CustomerRecord{
		ID:          uuid.New().String(),
		Name:        payload.Name,
		Phone:       payload.Phone,
		Email:       payload.Email,
		FromAddress: payload.FromAddress,
		ToAddress:   payload.ToAddress,
		MovingDate:  payload.MovingDate,
		Apartment:   payload.Apartment,
		Services:    payload.Services,
		Source:      payload.Source,
		Notes:       payload.Notes,
	}
	s.data.Customers = append(s.data.Customers, record)
	if err := s.save(); err != nil {
		s.data.Customers = s.data.Customers[:len(s.data.Customers)-1]
		return "", err
	}
	return record.ID, nil
}

// GetCustomer returns the customer with the given id, or nil when it
// does not exist.
func (s *FileStore) GetCustomer(ctx context.Context, id string) (*models.CustomerRecord, error) {
	for i := range s.data.Customers {
		if s.data.Customers[i].ID == id {
			customer := s.data.Customers[i]
			return &customer, nil
		}
	}
	return nil, nil
}

// UpdateCustomer applies a partial update to an existing customer.
func (s *FileStore) UpdateCustomer(ctx context.Context, id string, patch models.CustomerPatch) error {
	for i := range s.data.Customers {
		if s.data.Customers[i].ID != id {
			continue
		}
		if patch.Phone != nil {
			s.data.Customers[i].Phone = *patch.Phone
		}
		if patch.Email != nil {
			s.data.Customers[i].Email = *patch.Email
		}
		if patch.MovingDate != nil {
			s.data.Customers[i].MovingDate = *patch.MovingDate
		}
		return s.save()
	}
	return fmt.Errorf("customer %s not found", id)
}

// AddEvent appends an imported appointment record.
func (s *FileStore) AddEvent(ctx context.Context, record models.EventRecord) error {
	s.data.Events = append(s.data.Events, record)
	if err := s.save(); err != nil {
		s.data.Events = s.data.Events[:len(s.data.Events)-1]
		return err
	}
	return nil
}

// save rewrites the store file. A write failure is systemic: nothing
// later in the batch could succeed either.
func (s *FileStore) save() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store document: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0644); err != nil {
		return fmt.Errorf("%w: writing %s: %v", importer.ErrStoreUnavailable, s.path, err)
	}
	return nil
}
