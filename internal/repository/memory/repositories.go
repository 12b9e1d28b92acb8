package memory

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/spec-kit/pet-registry/internal/domain"
	"github.com/spec-kit/pet-registry/internal/repository"
)

var errSameUser = errors.New("memory: from_user_id must differ from to_user_id")

// newestFirst orders by created_at DESC, then insertion order DESC.
func newestFirst[T any](created func(T) time.Time) func(a, b record[T]) int {
	return func(a, b record[T]) int {
		if c := created(b.value).Compare(created(a.value)); c != 0 {
			return c
		}
		return cmp.Compare(b.seq, a.seq)
	}
}

type userRepository struct{ s *Store }

func (r *userRepository) Create(_ context.Context, user *domain.User) error {
	unlock := r.s.lock()
	defer unlock()

	st := r.s.state()
	for _, rec := range st.users {
		if rec.value.Username == user.Username || strings.EqualFold(rec.value.Email, user.Email) {
			return repository.ErrConflict
		}
	}
	now := r.s.now()
	user.ID = newID()
	user.CreatedAt = now
	user.UpdatedAt = now
	st.users[user.ID] = record[domain.User]{value: *user, seq: st.next()}
	return nil
}

func (r *userRepository) Update(_ context.Context, user *domain.User) error {
	unlock := r.s.lock()
	defer unlock()

	st := r.s.state()
	rec, ok := st.users[user.ID]
	if !ok {
		return repository.ErrNotFound
	}
	for id, other := range st.users {
		if id != user.ID && (other.value.Username == user.Username || strings.EqualFold(other.value.Email, user.Email)) {
			return repository.ErrConflict
		}
	}
	user.PasswordHash = rec.value.PasswordHash
	user.CreatedAt = rec.value.CreatedAt
	user.UpdatedAt = r.s.now()
	rec.value = *user
	st.users[user.ID] = rec
	return nil
}

func (r *userRepository) UpdatePassword(_ context.Context, id, passwordHash string) error {
	unlock := r.s.lock()
	defer unlock()

	st := r.s.state()
	rec, ok := st.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	rec.value.PasswordHash = passwordHash
	rec.value.UpdatedAt = r.s.now()
	st.users[id] = rec
	return nil
}

func (r *userRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	unlock := r.s.lock()
	defer unlock()

	rec, ok := r.s.state().users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	user := rec.value
	return &user, nil
}

func (r *userRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *userRepository) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Username == username })
}

func (r *userRepository) find(match func(domain.User) bool) (*domain.User, error) {
	unlock := r.s.lock()
	defer unlock()

	for _, rec := range r.s.state().users {
		if match(rec.value) {
			user := rec.value
			return &user, nil
		}
	}
	return nil, repository.ErrNotFound
}

type petRepository struct{ s *Store }

func (r *petRepository) Create(_ context.Context, pet *domain.Pet) error {
	unlock := r.s.lock()
	defer unlock()

	st := r.s.state()
	now := r.s.now()
	pet.ID = newID()
	pet.CreatedAt = now
	pet.UpdatedAt = now
	st.pets[pet.ID] = record[domain.Pet]{value: *pet, seq: st.next()}
	return nil
}

func (r *petRepository) Update(_ context.Context, pet *domain.Pet) error {
	unlock := r.s.lock()
	defer unlock()

	st := r.s.state()
	rec, ok := st.pets[pet.ID]
	if !ok || !rec.value.IsActive {
		return repository.ErrNotFound
	}
	updated := rec.value
	updated.Name = pet.Name
	updated.AnimalTypeID = pet.AnimalTypeID
	updated.BreedID = pet.BreedID
	updated.Sex = pet.Sex
	updated.BirthDate = pet.BirthDate
	updated.EmergencyPhone = pet.EmergencyPhone
	updated.Address = pet.Address
	updated.Tattoos = pet.Tattoos
	updated.Microchip = pet.Microchip
	updated.Neutered = pet.Neutered
	updated.Notes = pet.Notes
	updated.CURP = pet.CURP
	updated.WeightKg = pet.WeightKg
	updated.HeightCm = pet.HeightCm
	updated.UpdatedAt = r.s.now()
	rec.value = updated
	st.pets[pet.ID] = rec
	pet.UpdatedAt = updated.UpdatedAt
	return nil
}

func (r *petRepository) GetByID(_ context.Context, id string) (*domain.Pet, error) {
	unlock := r.s.lock()
	defer unlock()

	rec, ok := r.s.state().pets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	pet := rec.value
	return &pet, nil
}

// GetForUpdate relies on the transaction mutex for exclusion.
func (r *petRepository) GetForUpdate(ctx context.Context, id string) (*domain.Pet, error) {
	return r.GetByID(ctx, id)
}

func (r *petRepository) List(_ context.Context, filter repository.PetFilter) ([]domain.Pet, error) {
	unlock := r.s.lock()
	defer unlock()

	search := strings.ToLower(filter.Search)
	var recs []record[domain.Pet]
	for _, rec := range r.s.state().pets {
		p := rec.value
		if filter.OwnerID != nil && p.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.AnimalTypeID != nil && p.AnimalTypeID != *filter.AnimalTypeID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		if !filter.IncludeInactive && !p.IsActive {
			continue
		}
		recs = append(recs, rec)
	}
	slices.SortFunc(recs, newestFirst(func(p domain.Pet) time.Time { return p.CreatedAt }))

	if filter.Offset > 0 {
		if filter.Offset >= uint64(len(recs)) {
			return nil, nil
		}
		recs = recs[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < uint64(len(recs)) {
		recs = recs[:filter.Limit]
	}

	pets := make([]domain.Pet, 0, len(recs))
	for _, rec := range recs {
		pets = append(pets, rec.value)
	}
	return pets, nil
}

func (r *petRepository) TransferOwnership(_ context.Context, petID, newOwnerID string, at time.Time) error {
	return r.modify(petID, false, func(p *domain.Pet) {
		p.OwnerID = newOwnerID
		p.LastTransferredAt = &at
		p.UpdatedAt = at
	})
}

func (r *petRepository) Deactivate(_ context.Context, id string) error {
	return r.modify(id, true, func(p *domain.Pet) {
		p.IsActive = false
		p.UpdatedAt = r.s.now()
	})
}

func (r *petRepository) SetPhoto(_ context.Context, id, key string) error {
	return r.modify(id, true, func(p *domain.Pet) {
		p.PhotoKey = &key
		p.UpdatedAt = r.s.now()
	})
}

func (r *petRepository) modify(id string, activeOnly bool, fn func(*domain.Pet)) error {
	unlock := r.s.lock()
	defer unlock()

	st := r.s.state()
	rec, ok := st.pets[id]
	if !ok || (activeOnly && !rec.value.IsActive) {
		return repository.ErrNotFound
	}
	fn(&rec.value)
	st.pets[id] = rec
	return nil
}

type transferRepository struct{ s *Store }

func (r *transferRepository) Create(_ context.Context, transfer *domain.PetTransfer) error {
	unlock := r.s.lock()
	defer unlock()

	if transfer.FromUserID == transfer.ToUserID {
		return errSameUser
	}
	st := r.s.state()
	if transfer.Status == domain.TransferStatusPending {
		for _, rec := range st.transfers {
			if rec.value.PetID == transfer.PetID && rec.value.Status == domain.TransferStatusPending {
				return repository.ErrConflict
			}
		}
	}
	transfer.ID = newID()
	st.transfers[transfer.ID] = record[domain.PetTransfer]{value: *transfer, seq: st.next()}
	return nil
}

func (r *transferRepository) HasPending(_ context.Context, petID string) (bool, error) {
	unlock := r.s.lock()
	defer unlock()

	for _, rec := range r.s.state().transfers {
		if rec.value.PetID == petID && rec.value.Status == domain.TransferStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (r *transferRepository) FindPendingForUpdate(_ context.Context, petID, toUserID, code string) (*domain.PetTransfer, error) {
	unlock := r.s.lock()
	defer unlock()

	for _, rec := range r.s.state().transfers {
		t := rec.value
		if t.PetID == petID && t.ToUserID == toUserID && t.Code == code && t.Status == domain.TransferStatusPending {
			return &t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *transferRepository) MarkAccepted(_ context.Context, id string, at time.Time) error {
	return r.transition(id, func(t *domain.PetTransfer) {
		t.Status = domain.TransferStatusAccepted
		t.AcceptedAt = &at
	})
}

func (r *transferRepository) MarkCancelled(_ context.Context, id string, at time.Time) error {
	return r.transition(id, func(t *domain.PetTransfer) {
		t.Status = domain.TransferStatusCancelled
		t.CancelledAt = &at
	})
}

func (r *transferRepository) transition(id string, fn func(*domain.PetTransfer)) error {
	unlock := r.s.lock()
	defer unlock()

	st := r.s.state()
	rec, ok := st.transfers[id]
	if !ok || rec.value.Status != domain.TransferStatusPending {
		return repository.ErrNotFound
	}
	fn(&rec.value)
	st.transfers[id] = rec
	return nil
}

func (r *transferRepository) CancelPendingForPet(_ context.Context, petID string, at time.Time) (int64, error) {
	unlock := r.s.lock()
	defer unlock()

	st := r.s.state()
	var n int64
	for id, rec := range st.transfers {
		if rec.value.PetID == petID && rec.value.Status == domain.TransferStatusPending {
			rec.value.Status = domain.TransferStatusCancelled
			rec.value.CancelledAt = &at
			st.transfers[id] = rec
			n++
		}
	}
	return n, nil
}

func (r *transferRepository) ListByPet(_ context.Context, petID string) ([]domain.PetTransfer, error) {
	return r.list(func(t domain.PetTransfer) bool { return t.PetID == petID }), nil
}

func (r *transferRepository) ListPendingForRecipient(_ context.Context, userID string) ([]domain.PetTransfer, error) {
	return r.list(func(t domain.PetTransfer) bool {
		return t.ToUserID == userID && t.Status == domain.TransferStatusPending
	}), nil
}

func (r *transferRepository) list(match func(domain.PetTransfer) bool) []domain.PetTransfer {
	unlock := r.s.lock()
	defer unlock()

	var recs []record[domain.PetTransfer]
	for _, rec := range r.s.state().transfers {
		if match(rec.value) {
			recs = append(recs, rec)
		}
	}
	slices.SortFunc(recs, newestFirst(func(t domain.PetTransfer) time.Time { return t.CreatedAt }))

	out := make([]domain.PetTransfer, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.value)
	}
	return out
}

type codeRepository struct{ s *Store }

func (r *codeRepository) Create(_ context.Context, code *domain.VerificationCode) error {
	unlock := r.s.lock()
	defer unlock()

	st := r.s.state()
	code.ID = newID()
	st.codes[code.ID] = record[domain.VerificationCode]{value: *code, seq: st.next()}
	return nil
}

func (r *codeRepository) HasUnusedSince(_ context.Context, userID string, since time.Time) (bool, error) {
	unlock := r.s.lock()
	defer unlock()

	for _, rec := range r.s.state().codes {
		c := rec.value
		if c.UserID == userID && !c.Used && c.IsActive && !c.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (r *codeRepository) DeleteCreatedBefore(_ context.Context, userID string, before time.Time) (int64, error) {
	unlock := r.s.lock()
	defer unlock()

	st := r.s.state()
	var n int64
	for id, rec := range st.codes {
		if rec.value.UserID == userID && rec.value.CreatedAt.Before(before) {
			delete(st.codes, id)
			n++
		}
	}
	return n, nil
}

func (r *codeRepository) FindLatestForUpdate(_ context.Context, userID, code string) (*domain.VerificationCode, error) {
	unlock := r.s.lock()
	defer unlock()

	var recs []record[domain.VerificationCode]
	for _, rec := range r.s.state().codes {
		if rec.value.UserID == userID && rec.value.Code == code {
			recs = append(recs, rec)
		}
	}
	if len(recs) == 0 {
		return nil, repository.ErrNotFound
	}
	slices.SortFunc(recs, newestFirst(func(c domain.VerificationCode) time.Time { return c.CreatedAt }))
	latest := recs[0].value
	return &latest, nil
}

func (r *codeRepository) MarkUsed(_ context.Context, id string) error {
	unlock := r.s.lock()
	defer unlock()

	st := r.s.state()
	rec, ok := st.codes[id]
	if !ok || rec.value.Used {
		return repository.ErrNotFound
	}
	rec.value.Used = true
	st.codes[id] = rec
	return nil
}

type referenceRepository struct{ s *Store }

func (r *referenceRepository) ListAnimalTypes(_ context.Context) ([]domain.AnimalType, error) {
	unlock := r.s.lock()
	defer unlock()

	var out []domain.AnimalType
	for _, at := range r.s.state().animalTypes {
		if at.IsActive {
			out = append(out, at)
		}
	}
	slices.SortFunc(out, func(a, b domain.AnimalType) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (r *referenceRepository) GetAnimalType(_ context.Context, id string) (*domain.AnimalType, error) {
	unlock := r.s.lock()
	defer unlock()

	at, ok := r.s.state().animalTypes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &at, nil
}

func (r *referenceRepository) ListBreeds(_ context.Context, animalTypeID string) ([]domain.Breed, error) {
	unlock := r.s.lock()
	defer unlock()

	var out []domain.Breed
	for _, b := range r.s.state().breeds {
		if b.AnimalTypeID == animalTypeID && b.IsActive {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b domain.Breed) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (r *referenceRepository) GetBreed(_ context.Context, id string) (*domain.Breed, error) {
	unlock := r.s.lock()
	defer unlock()

	b, ok := r.s.state().breeds[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}
