package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/suite"

	"regform/internal/registration/models"
	"regform/internal/validation"
	"regform/pkg/platform/sentinel"
)

type registrationStore interface {
	Create(ctx context.Context, reg *models.Registration) error
	List(ctx context.Context) ([]models.Registration, error)
}

// contractSuite holds the behaviour every backend shares. Backend suites
// embed it and set store in SetupTest.
type contractSuite struct {
	suite.Suite
	store registrationStore
}

var baseTime = time.Date(2025, time.March, 2, 10, 0, 0, 0, time.UTC)

func newRegistration(first, mail string, offset time.Duration) *models.Registration {
	reg := models.NewRegistration(models.Person{
		FirstName:  first,
		LastName:   "Dupont",
		Email:      mail,
		BirthDate:  validation.NewDate(1980, time.May, 12),
		City:       "Paris",
		PostalCode: "75001",
	}, baseTime.Add(offset))
	return &reg
}

func (s *contractSuite) TestCreateAssignsIDAndLists() {
	ctx := context.Background()
	jean := newRegistration("Jean", "jean.dupont@example.com", 0)
	s.Require().NoError(s.store.Create(ctx, jean))
	s.NotEmpty(jean.ID)

	list, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(jean.ID, list[0].ID)
	s.Equal(jean.Person, list[0].Person)
	s.True(jean.Timestamp.Equal(list[0].Timestamp))
}

func (s *contractSuite) TestKeepsProvidedID() {
	ctx := context.Background()
	reg := newRegistration("Jean", "jean@example.com", 0)
	reg.ID = "11"
	s.Require().NoError(s.store.Create(ctx, reg))
	s.Equal("11", reg.ID)
}

func (s *contractSuite) TestListsOldestFirst() {
	ctx := context.Background()
	for i, name := range []string{"Anne", "Bruno", "Chloe"} {
		reg := newRegistration(name, fmt.Sprintf("%s@example.com", name), time.Duration(i)*time.Minute)
		s.Require().NoError(s.store.Create(ctx, reg))
	}

	list, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 3)
	s.Equal([]string{"Anne", "Bruno", "Chloe"}, []string{list[0].FirstName, list[1].FirstName, list[2].FirstName})
}

func (s *contractSuite) TestEmptyList() {
	list, err := s.store.List(context.Background())
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *contractSuite) TestDuplicateEmailIsConflict() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, newRegistration("Jean", "jean.dupont@example.com", 0)))

	err := s.store.Create(ctx, newRegistration("Jeanne", "Jean.Dupont@Example.com", time.Second))
	s.ErrorIs(err, sentinel.ErrConflict)

	list, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Len(list, 1)
}

func (s *contractSuite) TestConcurrentSameEmail() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var successCount atomic.Int32
	var conflictCount atomic.Int32
	for i := range goroutines {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			err := s.store.Create(ctx, newRegistration("Jean", "race@example.com", time.Duration(idx)*time.Millisecond))
			switch {
			case err == nil:
				successCount.Add(1)
			case isConflict(err):
				conflictCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one create should succeed")
	s.Equal(int32(goroutines-1), conflictCount.Load(), "all others should conflict")
}
