package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/pet-registry/internal/api/dto"
	"github.com/spec-kit/pet-registry/internal/service"
	apperrors "github.com/spec-kit/pet-registry/pkg/util/errorutil"
)

// PetsHandler exposes pet records, photos, and reference data.
type PetsHandler struct {
	pets *service.PetService
}

// NewPetsHandler constructs handler.
func NewPetsHandler(pets *service.PetService) *PetsHandler {
	return &PetsHandler{pets: pets}
}

// Create handles POST /api/pets.
func (h *PetsHandler) Create(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.PetRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	in, err := req.ToInput()
	if err != nil {
		return invalidDate()
	}

	pet, err := h.pets.Create(c.UserContext(), actor, in)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.NewPetResponse(pet))
}

// List handles GET /api/pets.
func (h *PetsHandler) List(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	pets, err := h.pets.List(c.UserContext(), actor, service.PetQuery{
		OwnerID:      c.Query("owner_id"),
		AnimalTypeID: c.Query("animal_type_id"),
		Search:       c.Query("search"),
		Limit:        c.QueryInt("limit", 0),
		Offset:       c.QueryInt("offset", 0),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewPetResponses(pets)})
}

// Get handles GET /api/pets/:id.
func (h *PetsHandler) Get(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	pet, err := h.pets.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewPetResponse(pet))
}

// Update handles PATCH /api/pets/:id.
func (h *PetsHandler) Update(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.PetPatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	patch, err := req.ToPatch()
	if err != nil {
		return invalidDate()
	}

	pet, err := h.pets.Update(c.UserContext(), actor, c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewPetResponse(pet))
}

// Delete handles DELETE /api/pets/:id as a soft delete.
func (h *PetsHandler) Delete(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.pets.Deactivate(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// UploadPhoto handles PUT /api/pets/:id/photo. The raw request body is the
// image.
func (h *PetsHandler) UploadPhoto(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	body := append([]byte(nil), c.Body()...)
	pet, err := h.pets.UploadPhoto(c.UserContext(), actor, c.Params("id"), c.Get(fiber.HeaderContentType), body)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewPetResponse(pet))
}

// Photo handles GET /api/pets/:id/photo.
func (h *PetsHandler) Photo(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	url, ttl, err := h.pets.PhotoURL(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.PhotoURLResponse{URL: url, ExpiresIn: int(ttl.Seconds())})
}

// AnimalTypes handles GET /api/animal-types.
func (h *PetsHandler) AnimalTypes(c *fiber.Ctx) error {
	types, err := h.pets.ListAnimalTypes(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAnimalTypeResponses(types)})
}

// Breeds handles GET /api/animal-types/:id/breeds.
func (h *PetsHandler) Breeds(c *fiber.Ctx) error {
	breeds, err := h.pets.ListBreeds(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewBreedResponses(breeds)})
}

func invalidDate() error {
	return apperrors.NewValidationError("birth_date must use YYYY-MM-DD", map[string]any{"field": "birth_date"})
}
