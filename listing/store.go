package listing

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound signals that the referenced property does not exist.
	ErrNotFound = errors.New("listing: property not found")
	// ErrUnauthorized signals that the caller does not own the property.
	ErrUnauthorized = errors.New("listing: caller is not the property owner")
	// ErrMissingOwner signals a create call without an owner id.
	ErrMissingOwner = errors.New("listing: owner id required")
	// ErrInvalidPrice signals a create call with a non-positive price.
	ErrInvalidPrice = errors.New("listing: price must be positive")
)

// Store is the single source of truth for property records and owner
// portfolios. All mutation goes through it; one lock guards every
// check-then-act sequence.
type Store struct {
	mu         sync.RWMutex
	properties map[string]*Property
	order      []*Property
	portfolios map[string][]string

	idGenerator func() string
	now         func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		properties:  make(map[string]*Property),
		portfolios:  make(map[string][]string),
		idGenerator: uuid.NewString,
		now:         time.Now,
	}
}

func (s *Store) WithIDGenerator(gen func() string) *Store {
	s.idGenerator = gen
	return s
}

func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Create stores a new available property owned by ownerID and returns its id.
// The store keeps its own copy of details.
func (s *Store) Create(ownerID string, details Details) (string, error) {
	if ownerID == "" {
		return "", ErrMissingOwner
	}
	if details.Price <= 0 {
		return "", ErrInvalidPrice
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prop := &Property{
		ID:        s.idGenerator(),
		OwnerID:   ownerID,
		Details:   details.clone(),
		Status:    StatusAvailable,
		CreatedAt: s.now(),
	}
	s.properties[prop.ID] = prop
	s.order = append(s.order, prop)
	s.portfolios[ownerID] = append(s.portfolios[ownerID], prop.ID)

	return prop.ID, nil
}

// UpdateStatus overwrites the status of propertyID when callerID owns it.
func (s *Store) UpdateStatus(propertyID, status, callerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prop, ok := s.properties[propertyID]
	if !ok {
		return ErrNotFound
	}
	if prop.OwnerID != callerID {
		return ErrUnauthorized
	}
	prop.Status = status
	return nil
}

// ListByOwner returns the owner's available properties in portfolio order.
func (s *Store) ListByOwner(ownerID string) []Property {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.portfolios[ownerID]
	out := make([]Property, 0, len(ids))
	for _, id := range ids {
		prop := s.properties[id]
		if prop.IsAvailable() {
			out = append(out, prop.snapshot())
		}
	}
	return out
}

// Get returns a copy of a single property.
func (s *Store) Get(propertyID string) (Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prop, ok := s.properties[propertyID]
	if !ok {
		return Property{}, ErrNotFound
	}
	return prop.snapshot(), nil
}

// Len returns the number of stored properties.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// scan returns copies of the properties accepted by keep, in creation order.
func (s *Store) scan(keep func(*Property) bool) []Property {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Property{}
	for _, prop := range s.order {
		if keep(prop) {
			out = append(out, prop.snapshot())
		}
	}
	return out
}

// mutate runs fn on propertyID under the write lock.
func (s *Store) mutate(propertyID string, fn func(*Property) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prop, ok := s.properties[propertyID]
	if !ok {
		return ErrNotFound
	}
	return fn(prop)
}
