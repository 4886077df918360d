package customers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service provides business logic for customer records.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Create registers a new active customer. Email addresses are unique
// across customers when present.
func (s *Service) Create(ctx context.Context, req CreateCustomerRequest) (*Customer, error) {
	if req.Email != nil {
		existing, err := s.store.GetByEmail(ctx, *req.Email)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("check existing customer: %w", err)
		}
		if existing != nil {
			return nil, fmt.Errorf("%w: email %s", ErrAlreadyExists, *req.Email)
		}
	}

	now := s.now()
	c := &Customer{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		TaxID:        req.TaxID,
		AddressLine1: req.AddressLine1,
		AddressLine2: req.AddressLine2,
		City:         req.City,
		PostalCode:   req.PostalCode,
		Country:      req.Country,
		Notes:        req.Notes,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return c, nil
}

// Update applies the non-nil fields of req to an existing customer.
func (s *Service) Update(ctx context.Context, id string, req UpdateCustomerRequest) (*Customer, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}
	if req.Email != nil {
		existing.Email = req.Email
	}
	if req.Phone != nil {
		existing.Phone = req.Phone
	}
	if req.TaxID != nil {
		existing.TaxID = req.TaxID
	}
	if req.AddressLine1 != nil {
		existing.AddressLine1 = req.AddressLine1
	}
	if req.AddressLine2 != nil {
		existing.AddressLine2 = req.AddressLine2
	}
	if req.City != nil {
		existing.City = req.City
	}
	if req.PostalCode != nil {
		existing.PostalCode = req.PostalCode
	}
	if req.Country != nil {
		existing.Country = req.Country
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}
	if req.Notes != nil {
		existing.Notes = req.Notes
	}
	existing.UpdatedAt = s.now()

	if err := s.store.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return existing, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Customer, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	return s.store.List(ctx, req)
}

// Delete removes a customer record. Customers referenced by billing
// documents cannot be deleted; deactivate them instead.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	return nil
}
