package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/pet-registry/internal/auth"
	"github.com/spec-kit/pet-registry/internal/domain"
	"github.com/spec-kit/pet-registry/internal/repository"
	"github.com/spec-kit/pet-registry/internal/storage"
	apperrors "github.com/spec-kit/pet-registry/pkg/util/errorutil"
)

const (
	defaultPetPageSize = 50
	maxPetPageSize     = 200
)

var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// PetService manages pet records and their photos. Ownership never changes
// here; see TransferService.
type PetService struct {
	store         repository.Store
	photos        storage.BlobStore
	logger        *zap.Logger
	maxPhotoBytes int64
	photoURLTTL   time.Duration
}

// PetDependencies encapsulates collaborators of the pet service. Photos may be
// nil when object storage is not configured.
type PetDependencies struct {
	Store         repository.Store
	Photos        storage.BlobStore
	Logger        *zap.Logger
	MaxPhotoBytes int64
	PhotoURLTTL   time.Duration
}

// NewPetService builds the service.
func NewPetService(deps PetDependencies) *PetService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := deps.PhotoURLTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &PetService{
		store:         deps.Store,
		photos:        deps.Photos,
		logger:        logger,
		maxPhotoBytes: deps.MaxPhotoBytes,
		photoURLTTL:   ttl,
	}
}

// PetInput carries the writable attributes of a pet.
type PetInput struct {
	Name           string
	AnimalTypeID   string
	BreedID        *string
	Sex            domain.Sex
	BirthDate      *time.Time
	EmergencyPhone string
	Address        string
	Tattoos        bool
	Microchip      bool
	Neutered       bool
	Notes          string
	CURP           string
	WeightKg       *float64
	HeightCm       *float64
}

// PetPatch is a partial update; nil fields are left untouched.
type PetPatch struct {
	Name           *string
	AnimalTypeID   *string
	BreedID        *string
	ClearBreed     bool
	Sex            *domain.Sex
	BirthDate      *time.Time
	EmergencyPhone *string
	Address        *string
	Tattoos        *bool
	Microchip      *bool
	Neutered       *bool
	Notes          *string
	CURP           *string
	WeightKg       *float64
	HeightCm       *float64
}

// PetQuery filters List. OwnerID is honored for clinical roles only.
type PetQuery struct {
	OwnerID      string
	AnimalTypeID string
	Search       string
	Limit        int
	Offset       int
}

// Create registers a pet owned by actor.
func (s *PetService) Create(ctx context.Context, actor *domain.User, in PetInput) (*domain.Pet, error) {
	pet := &domain.Pet{
		OwnerID:        actor.ID,
		Name:           strings.TrimSpace(in.Name),
		AnimalTypeID:   strings.TrimSpace(in.AnimalTypeID),
		BreedID:        in.BreedID,
		Sex:            in.Sex,
		BirthDate:      in.BirthDate,
		EmergencyPhone: strings.TrimSpace(in.EmergencyPhone),
		Address:        strings.TrimSpace(in.Address),
		Tattoos:        in.Tattoos,
		Microchip:      in.Microchip,
		Neutered:       in.Neutered,
		Notes:          in.Notes,
		CURP:           strings.TrimSpace(in.CURP),
		WeightKg:       in.WeightKg,
		HeightCm:       in.HeightCm,
		IsActive:       true,
	}
	if err := s.validate(ctx, pet); err != nil {
		return nil, err
	}
	if err := s.store.Pets().Create(ctx, pet); err != nil {
		return nil, fmt.Errorf("create pet: %w", err)
	}
	return pet, nil
}

// Get returns a pet visible to actor.
func (s *PetService) Get(ctx context.Context, actor *domain.User, petID string) (*domain.Pet, error) {
	pet, err := s.load(ctx, petID)
	if err != nil {
		return nil, err
	}
	if !auth.CanViewPet(actor, pet) {
		return nil, errPetNotFound()
	}
	return pet, nil
}

// Update applies patch to a pet owned by actor.
func (s *PetService) Update(ctx context.Context, actor *domain.User, petID string, patch PetPatch) (*domain.Pet, error) {
	var updated *domain.Pet
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if !isID(petID) {
			return errPetNotFound()
		}
		pet, err := tx.Pets().GetForUpdate(ctx, petID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errPetNotFound()
			}
			return fmt.Errorf("lock pet: %w", err)
		}
		if !auth.CanManagePet(actor, pet) {
			return errPetNotFound()
		}

		patch.apply(pet)
		if err := s.validateWith(ctx, tx, pet); err != nil {
			return err
		}
		if err := tx.Pets().Update(ctx, pet); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errPetNotFound()
			}
			return fmt.Errorf("update pet: %w", err)
		}
		updated = pet
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (p PetPatch) apply(pet *domain.Pet) {
	if p.Name != nil {
		pet.Name = strings.TrimSpace(*p.Name)
	}
	if p.AnimalTypeID != nil {
		pet.AnimalTypeID = strings.TrimSpace(*p.AnimalTypeID)
	}
	if p.ClearBreed {
		pet.BreedID = nil
	} else if p.BreedID != nil {
		pet.BreedID = p.BreedID
	}
	if p.Sex != nil {
		pet.Sex = *p.Sex
	}
	if p.BirthDate != nil {
		pet.BirthDate = p.BirthDate
	}
	if p.EmergencyPhone != nil {
		pet.EmergencyPhone = strings.TrimSpace(*p.EmergencyPhone)
	}
	if p.Address != nil {
		pet.Address = strings.TrimSpace(*p.Address)
	}
	if p.Tattoos != nil {
		pet.Tattoos = *p.Tattoos
	}
	if p.Microchip != nil {
		pet.Microchip = *p.Microchip
	}
	if p.Neutered != nil {
		pet.Neutered = *p.Neutered
	}
	if p.Notes != nil {
		pet.Notes = *p.Notes
	}
	if p.CURP != nil {
		pet.CURP = strings.TrimSpace(*p.CURP)
	}
	if p.WeightKg != nil {
		pet.WeightKg = p.WeightKg
	}
	if p.HeightCm != nil {
		pet.HeightCm = p.HeightCm
	}
}

// Deactivate soft-deletes a pet owned by actor and cancels any pending
// transfer for it.
func (s *PetService) Deactivate(ctx context.Context, actor *domain.User, petID string) error {
	return s.store.WithinTx(ctx, func(tx repository.Store) error {
		if !isID(petID) {
			return errPetNotFound()
		}
		pet, err := tx.Pets().GetForUpdate(ctx, petID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errPetNotFound()
			}
			return fmt.Errorf("lock pet: %w", err)
		}
		if !auth.CanManagePet(actor, pet) {
			return errPetNotFound()
		}
		if _, err := tx.Transfers().CancelPendingForPet(ctx, pet.ID, time.Now().UTC()); err != nil {
			return fmt.Errorf("cancel pending transfer: %w", err)
		}
		if err := tx.Pets().Deactivate(ctx, pet.ID); err != nil {
			return fmt.Errorf("deactivate pet: %w", err)
		}
		return nil
	})
}

// List returns active pets. Customers only see their own pets; clinical roles
// see every pet and may filter by owner.
func (s *PetService) List(ctx context.Context, actor *domain.User, q PetQuery) ([]domain.Pet, error) {
	filter := repository.PetFilter{Search: strings.TrimSpace(q.Search)}
	if actor.Role.IsClinical() {
		if owner := strings.TrimSpace(q.OwnerID); owner != "" {
			filter.OwnerID = &owner
		}
	} else {
		filter.OwnerID = &actor.ID
	}
	if animalType := strings.TrimSpace(q.AnimalTypeID); animalType != "" {
		filter.AnimalTypeID = &animalType
	}

	switch {
	case q.Limit <= 0:
		filter.Limit = defaultPetPageSize
	case q.Limit > maxPetPageSize:
		filter.Limit = maxPetPageSize
	default:
		filter.Limit = uint64(q.Limit)
	}
	if q.Offset > 0 {
		filter.Offset = uint64(q.Offset)
	}

	pets, err := s.store.Pets().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list pets: %w", err)
	}
	return pets, nil
}

// UploadPhoto stores a photo for a pet owned by actor and records its key.
func (s *PetService) UploadPhoto(ctx context.Context, actor *domain.User, petID, contentType string, body []byte) (*domain.Pet, error) {
	if s.photos == nil {
		return nil, errStorageDisabled()
	}
	if len(body) == 0 {
		return nil, apperrors.NewValidationError("photo is empty", map[string]any{"field": "photo"})
	}
	if s.maxPhotoBytes > 0 && int64(len(body)) > s.maxPhotoBytes {
		return nil, apperrors.NewValidationError("photo is too large", map[string]any{
			"field":     "photo",
			"max_bytes": s.maxPhotoBytes,
		})
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(body)
	}
	contentType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	ext, ok := photoExtensions[contentType]
	if !ok {
		return nil, apperrors.NewValidationError("unsupported photo type", map[string]any{
			"field":        "photo",
			"content_type": contentType,
		})
	}

	pet, err := s.load(ctx, petID)
	if err != nil {
		return nil, err
	}
	if !auth.CanManagePet(actor, pet) {
		return nil, errPetNotFound()
	}

	key := fmt.Sprintf("pets/%s/%s%s", pet.ID, uuid.NewString(), ext)
	if err := s.photos.Put(ctx, key, contentType, body); err != nil {
		return nil, fmt.Errorf("store photo: %w", err)
	}
	if err := s.store.Pets().SetPhoto(ctx, pet.ID, key); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errPetNotFound()
		}
		return nil, fmt.Errorf("record photo: %w", err)
	}
	s.logger.Info("pet photo stored", zap.String("pet_id", pet.ID), zap.String("key", key), zap.Int("bytes", len(body)))
	pet.PhotoKey = &key
	return pet, nil
}

// PhotoURL returns a short-lived download URL for the pet's photo.
func (s *PetService) PhotoURL(ctx context.Context, actor *domain.User, petID string) (string, time.Duration, error) {
	if s.photos == nil {
		return "", 0, errStorageDisabled()
	}
	pet, err := s.Get(ctx, actor, petID)
	if err != nil {
		return "", 0, err
	}
	if pet.PhotoKey == nil {
		return "", 0, errPhotoNotFound()
	}
	url, err := s.photos.PresignGet(ctx, *pet.PhotoKey, s.photoURLTTL)
	if err != nil {
		return "", 0, fmt.Errorf("presign photo: %w", err)
	}
	return url, s.photoURLTTL, nil
}

// ListAnimalTypes returns the active animal types.
func (s *PetService) ListAnimalTypes(ctx context.Context) ([]domain.AnimalType, error) {
	types, err := s.store.References().ListAnimalTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list animal types: %w", err)
	}
	return types, nil
}

// ListBreeds returns the active breeds of an animal type.
func (s *PetService) ListBreeds(ctx context.Context, animalTypeID string) ([]domain.Breed, error) {
	if !isID(animalTypeID) {
		return nil, apperrors.NewNotFound("animal type", map[string]any{"id": animalTypeID})
	}
	if _, err := s.store.References().GetAnimalType(ctx, animalTypeID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("animal type", map[string]any{"id": animalTypeID})
		}
		return nil, fmt.Errorf("load animal type: %w", err)
	}
	breeds, err := s.store.References().ListBreeds(ctx, animalTypeID)
	if err != nil {
		return nil, fmt.Errorf("list breeds: %w", err)
	}
	return breeds, nil
}

func (s *PetService) load(ctx context.Context, petID string) (*domain.Pet, error) {
	if !isID(petID) {
		return nil, errPetNotFound()
	}
	pet, err := s.store.Pets().GetByID(ctx, petID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errPetNotFound()
		}
		return nil, fmt.Errorf("load pet: %w", err)
	}
	return pet, nil
}

func (s *PetService) validate(ctx context.Context, pet *domain.Pet) error {
	return s.validateWith(ctx, s.store, pet)
}

// validateWith checks field rules and that the breed belongs to the animal
// type.
func (s *PetService) validateWith(ctx context.Context, store repository.Store, pet *domain.Pet) error {
	if pet.Name == "" {
		return apperrors.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	if !pet.Sex.Valid() {
		return apperrors.NewValidationError("sex must be M or F", map[string]any{"field": "sex"})
	}
	if pet.WeightKg != nil && *pet.WeightKg < 0 {
		return apperrors.NewValidationError("weight cannot be negative", map[string]any{"field": "weight_kg"})
	}
	if pet.HeightCm != nil && *pet.HeightCm < 0 {
		return apperrors.NewValidationError("height cannot be negative", map[string]any{"field": "height_cm"})
	}
	if pet.BirthDate != nil && pet.BirthDate.After(time.Now()) {
		return apperrors.NewValidationError("birth date cannot be in the future", map[string]any{"field": "birth_date"})
	}
	if pet.AnimalTypeID == "" {
		return apperrors.NewValidationError("animal_type_id is required", map[string]any{"field": "animal_type_id"})
	}
	if !isID(pet.AnimalTypeID) {
		return errInvalidReference("unknown animal type", "animal_type_id")
	}
	if pet.BreedID != nil && !isID(*pet.BreedID) {
		return errInvalidReference("unknown breed", "breed_id")
	}

	animalType, err := store.References().GetAnimalType(ctx, pet.AnimalTypeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errInvalidReference("unknown animal type", "animal_type_id")
		}
		return fmt.Errorf("load animal type: %w", err)
	}
	if !animalType.IsActive {
		return errInvalidReference("unknown animal type", "animal_type_id")
	}

	if pet.BreedID == nil {
		return nil
	}
	breed, err := store.References().GetBreed(ctx, *pet.BreedID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errInvalidReference("unknown breed", "breed_id")
		}
		return fmt.Errorf("load breed: %w", err)
	}
	if breed.AnimalTypeID != animalType.ID {
		return errInvalidReference("breed does not belong to the animal type", "breed_id")
	}
	return nil
}

// isID reports whether id is a well-formed UUID. Malformed ids are treated as
// missing rows instead of reaching the database.
func isID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
