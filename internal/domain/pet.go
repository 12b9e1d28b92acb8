package domain

import "time"

// Sex of a pet; empty means unspecified.
type Sex string

const (
	SexUnspecified Sex = ""
	SexMale        Sex = "M"
	SexFemale      Sex = "F"
)

func (s Sex) Valid() bool {
	return s == SexUnspecified || s == SexMale || s == SexFemale
}

// AnimalType is reference data (dog, cat, bird...).
type AnimalType struct {
	ID       string
	Slug     string
	Name     string
	IsActive bool
}

// Breed belongs to exactly one AnimalType.
type Breed struct {
	ID           string
	AnimalTypeID string
	Name         string
	IsActive     bool
}

// Pet is owned by exactly one user at a time. Ownership only changes through
// an accepted PetTransfer, which also stamps LastTransferredAt.
type Pet struct {
	ID           string
	OwnerID      string
	Name         string
	AnimalTypeID string
	BreedID      *string
	Sex          Sex

	BirthDate      *time.Time
	EmergencyPhone string
	Address        string

	Tattoos   bool
	Microchip bool
	Neutered  bool

	Notes    string
	CURP     string
	WeightKg *float64
	HeightCm *float64

	PhotoKey *string

	IsActive          bool
	LastTransferredAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
