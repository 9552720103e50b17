package store

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"regform/internal/registration/models"
	"regform/pkg/email"
)

// InMemoryStore keeps registrations in process memory, in insertion order.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []models.Registration
	emails  map[string]struct{}
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{emails: make(map[string]struct{})}
}

// Create assigns an ID when reg has none and appends the record.
func (s *InMemoryStore) Create(_ context.Context, reg *models.Registration) error {
	key := email.Normalize(reg.Email)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.emails[key]; taken {
		return conflict("create registration", reg.Email)
	}
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	s.emails[key] = struct{}{}
	s.records = append(s.records, *reg)
	return nil
}

// List returns a copy of every registration, oldest first.
func (s *InMemoryStore) List(_ context.Context) ([]models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records), nil
}
