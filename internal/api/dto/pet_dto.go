package dto

import (
	"time"

	"github.com/spec-kit/pet-registry/internal/domain"
	"github.com/spec-kit/pet-registry/internal/service"
)

const dateLayout = "2006-01-02"

// PetRequest is the create payload. Dates use YYYY-MM-DD.
type PetRequest struct {
	Name           string     `json:"name"`
	AnimalTypeID   string     `json:"animal_type_id"`
	BreedID        *string    `json:"breed_id"`
	Sex            domain.Sex `json:"sex"`
	BirthDate      *string    `json:"birth_date"`
	EmergencyPhone string     `json:"emergency_phone"`
	Address        string     `json:"address"`
	Tattoos        bool       `json:"tattoos"`
	Microchip      bool       `json:"microchip"`
	Neutered       bool       `json:"neutered"`
	Notes          string     `json:"notes"`
	CURP           string     `json:"curp"`
	WeightKg       *float64   `json:"weight_kg"`
	HeightCm       *float64   `json:"height_cm"`
}

// ToInput converts the request, parsing the birth date.
func (r PetRequest) ToInput() (service.PetInput, error) {
	birth, err := parseDate(r.BirthDate)
	if err != nil {
		return service.PetInput{}, err
	}
	return service.PetInput{
		Name:           r.Name,
		AnimalTypeID:   r.AnimalTypeID,
		BreedID:        emptyToNil(r.BreedID),
		Sex:            r.Sex,
		BirthDate:      birth,
		EmergencyPhone: r.EmergencyPhone,
		Address:        r.Address,
		Tattoos:        r.Tattoos,
		Microchip:      r.Microchip,
		Neutered:       r.Neutered,
		Notes:          r.Notes,
		CURP:           r.CURP,
		WeightKg:       r.WeightKg,
		HeightCm:       r.HeightCm,
	}, nil
}

// PetPatchRequest is a partial update; absent fields are left untouched. An
// empty breed_id clears the breed.
type PetPatchRequest struct {
	Name           *string     `json:"name"`
	AnimalTypeID   *string     `json:"animal_type_id"`
	BreedID        *string     `json:"breed_id"`
	Sex            *domain.Sex `json:"sex"`
	BirthDate      *string     `json:"birth_date"`
	EmergencyPhone *string     `json:"emergency_phone"`
	Address        *string     `json:"address"`
	Tattoos        *bool       `json:"tattoos"`
	Microchip      *bool       `json:"microchip"`
	Neutered       *bool       `json:"neutered"`
	Notes          *string     `json:"notes"`
	CURP           *string     `json:"curp"`
	WeightKg       *float64    `json:"weight_kg"`
	HeightCm       *float64    `json:"height_cm"`
}

// ToPatch converts the request.
func (r PetPatchRequest) ToPatch() (service.PetPatch, error) {
	birth, err := parseDate(r.BirthDate)
	if err != nil {
		return service.PetPatch{}, err
	}
	patch := service.PetPatch{
		Name:           r.Name,
		AnimalTypeID:   r.AnimalTypeID,
		Sex:            r.Sex,
		BirthDate:      birth,
		EmergencyPhone: r.EmergencyPhone,
		Address:        r.Address,
		Tattoos:        r.Tattoos,
		Microchip:      r.Microchip,
		Neutered:       r.Neutered,
		Notes:          r.Notes,
		CURP:           r.CURP,
		WeightKg:       r.WeightKg,
		HeightCm:       r.HeightCm,
	}
	if r.BreedID != nil {
		if *r.BreedID == "" {
			patch.ClearBreed = true
		} else {
			patch.BreedID = r.BreedID
		}
	}
	return patch, nil
}

// PetResponse is the single public shape of a pet.
type PetResponse struct {
	ID                string     `json:"id"`
	OwnerID           string     `json:"owner_id"`
	Name              string     `json:"name"`
	AnimalTypeID      string     `json:"animal_type_id"`
	BreedID           *string    `json:"breed_id"`
	Sex               domain.Sex `json:"sex"`
	BirthDate         *string    `json:"birth_date"`
	EmergencyPhone    string     `json:"emergency_phone"`
	Address           string     `json:"address"`
	Tattoos           bool       `json:"tattoos"`
	Microchip         bool       `json:"microchip"`
	Neutered          bool       `json:"neutered"`
	Notes             string     `json:"notes"`
	CURP              string     `json:"curp"`
	WeightKg          *float64   `json:"weight_kg"`
	HeightCm          *float64   `json:"height_cm"`
	HasPhoto          bool       `json:"has_photo"`
	LastTransferredAt *time.Time `json:"last_transferred_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NewPetResponse maps a domain pet.
func NewPetResponse(p *domain.Pet) PetResponse {
	resp := PetResponse{
		ID:                p.ID,
		OwnerID:           p.OwnerID,
		Name:              p.Name,
		AnimalTypeID:      p.AnimalTypeID,
		BreedID:           p.BreedID,
		Sex:               p.Sex,
		EmergencyPhone:    p.EmergencyPhone,
		Address:           p.Address,
		Tattoos:           p.Tattoos,
		Microchip:         p.Microchip,
		Neutered:          p.Neutered,
		Notes:             p.Notes,
		CURP:              p.CURP,
		WeightKg:          p.WeightKg,
		HeightCm:          p.HeightCm,
		HasPhoto:          p.PhotoKey != nil,
		LastTransferredAt: p.LastTransferredAt,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
	if p.BirthDate != nil {
		formatted := p.BirthDate.Format(dateLayout)
		resp.BirthDate = &formatted
	}
	return resp
}

// NewPetResponses maps a list.
func NewPetResponses(pets []domain.Pet) []PetResponse {
	out := make([]PetResponse, 0, len(pets))
	for i := range pets {
		out = append(out, NewPetResponse(&pets[i]))
	}
	return out
}

// PhotoURLResponse points at a short-lived download URL.
type PhotoURLResponse struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

// AnimalTypeResponse is reference data.
type AnimalTypeResponse struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// BreedResponse is reference data.
type BreedResponse struct {
	ID           string `json:"id"`
	AnimalTypeID string `json:"animal_type_id"`
	Name         string `json:"name"`
}

// NewAnimalTypeResponses maps reference data.
func NewAnimalTypeResponses(types []domain.AnimalType) []AnimalTypeResponse {
	out := make([]AnimalTypeResponse, 0, len(types))
	for _, t := range types {
		out = append(out, AnimalTypeResponse{ID: t.ID, Slug: t.Slug, Name: t.Name})
	}
	return out
}

// NewBreedResponses maps reference data.
func NewBreedResponses(breeds []domain.Breed) []BreedResponse {
	out := make([]BreedResponse, 0, len(breeds))
	for _, b := range breeds {
		out = append(out, BreedResponse{ID: b.ID, AnimalTypeID: b.AnimalTypeID, Name: b.Name})
	}
	return out
}

func parseDate(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dateLayout, *raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
