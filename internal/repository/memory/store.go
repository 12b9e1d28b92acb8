// Package memory provides an in-process repository.Store. Transactions are
// serialized by a single mutex and rolled back by restoring a snapshot, which
// gives the same observable guarantees as row locks plus the partial unique
// index on pending transfers.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/pet-registry/internal/domain"
	"github.com/spec-kit/pet-registry/internal/repository"
)

type record[T any] struct {
	value T
	seq   int64
}

type state struct {
	seq         int64
	users       map[string]record[domain.User]
	pets        map[string]record[domain.Pet]
	transfers   map[string]record[domain.PetTransfer]
	codes       map[string]record[domain.VerificationCode]
	animalTypes map[string]domain.AnimalType
	breeds      map[string]domain.Breed
}

func (s *state) clone() *state {
	return &state{
		seq:         s.seq,
		users:       maps.Clone(s.users),
		pets:        maps.Clone(s.pets),
		transfers:   maps.Clone(s.transfers),
		codes:       maps.Clone(s.codes),
		animalTypes: maps.Clone(s.animalTypes),
		breeds:      maps.Clone(s.breeds),
	}
}

func (s *state) next() int64 {
	s.seq++
	return s.seq
}

// Store is a goroutine-safe in-memory repository.Store.
type Store struct {
	mu   *sync.Mutex
	data **state
	inTx bool
	now  func() time.Time
}

var _ repository.Store = (*Store)(nil)

// NewStore returns an empty store seeded with reference data.
func NewStore() *Store {
	data := &state{
		users:       map[string]record[domain.User]{},
		pets:        map[string]record[domain.Pet]{},
		transfers:   map[string]record[domain.PetTransfer]{},
		codes:       map[string]record[domain.VerificationCode]{},
		animalTypes: map[string]domain.AnimalType{},
		breeds:      map[string]domain.Breed{},
	}
	seedReferenceData(data)
	return &Store{mu: &sync.Mutex{}, data: &data, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Users() repository.UserRepository {
	return &userRepository{s: s}
}

func (s *Store) Pets() repository.PetRepository {
	return &petRepository{s: s}
}

func (s *Store) Transfers() repository.PetTransferRepository {
	return &transferRepository{s: s}
}

func (s *Store) Codes() repository.VerificationCodeRepository {
	return &codeRepository{s: s}
}

func (s *Store) References() repository.ReferenceRepository {
	return &referenceRepository{s: s}
}

// WithinTx implements repository.Store.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := (*s.data).clone()
	tx := &Store{mu: s.mu, data: s.data, inTx: true, now: s.now}
	if err := fn(tx); err != nil {
		*s.data = snapshot
		return err
	}
	return nil
}

// AnimalTypeBySlug looks up seeded reference data.
func (s *Store) AnimalTypeBySlug(slug string) (domain.AnimalType, bool) {
	unlock := s.lock()
	defer unlock()
	for _, at := range s.state().animalTypes {
		if at.Slug == slug {
			return at, true
		}
	}
	return domain.AnimalType{}, false
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) state() *state {
	return *s.data
}

func newID() string {
	return uuid.NewString()
}

func seedReferenceData(data *state) {
	seed := []struct {
		slug, name string
		breeds     []string
	}{
		{"dog", "Dog", []string{"Mixed", "Labrador Retriever", "German Shepherd", "Chihuahua"}},
		{"cat", "Cat", []string{"Mixed", "Siamese", "Persian"}},
		{"bird", "Bird", []string{"Canary"}},
		{"rabbit", "Rabbit", []string{"Mixed"}},
	}
	for _, t := range seed {
		at := domain.AnimalType{ID: newID(), Slug: t.slug, Name: t.name, IsActive: true}
		data.animalTypes[at.ID] = at
		for _, name := range t.breeds {
			b := domain.Breed{ID: newID(), AnimalTypeID: at.ID, Name: name, IsActive: true}
			data.breeds[b.ID] = b
		}
	}
}
