package auth

import "github.com/spec-kit/pet-registry/internal/domain"

// Capability checks. Callers translate a false result into the
// not-found error for the resource so that unauthorized and missing are
// indistinguishable.

// CanManagePet reports whether actor may edit, deactivate, or attach photos
// to pet.
func CanManagePet(actor *domain.User, pet *domain.Pet) bool {
	return actor != nil && pet != nil && pet.IsActive && actor.IsActive && pet.OwnerID == actor.ID
}

// CanViewPet allows the owner and clinic personnel.
func CanViewPet(actor *domain.User, pet *domain.Pet) bool {
	if actor == nil || pet == nil || !pet.IsActive {
		return false
	}
	return pet.OwnerID == actor.ID || actor.Role.IsClinical()
}

func CanStartTransfer(actor *domain.User, pet *domain.Pet) bool {
	return CanManagePet(actor, pet)
}

func CanCancelTransfer(actor *domain.User, pet *domain.Pet) bool {
	return actor != nil && pet != nil && pet.OwnerID == actor.ID
}

// CanAcceptTransfer requires the actor to be the addressed recipient.
func CanAcceptTransfer(actor *domain.User, transfer *domain.PetTransfer) bool {
	return actor != nil && transfer != nil && actor.IsActive && transfer.ToUserID == actor.ID
}

// CanListTransfers limits a pet's transfer history to its current owner.
func CanListTransfers(actor *domain.User, pet *domain.Pet) bool {
	return CanCancelTransfer(actor, pet)
}
