package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/pet-registry/internal/api/dto"
	"github.com/spec-kit/pet-registry/internal/service"
)

// TransfersHandler exposes the ownership transfer protocol.
type TransfersHandler struct {
	transfers *service.TransferService
}

// NewTransfersHandler constructs handler.
func NewTransfersHandler(transfers *service.TransferService) *TransfersHandler {
	return &TransfersHandler{transfers: transfers}
}

// Start handles POST /api/pets/:id/transfers.
func (h *TransfersHandler) Start(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.StartTransferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	transfer, err := h.transfers.Start(c.UserContext(), actor, c.Params("id"), service.StartTransferInput{
		ToUserID: req.ToUserID,
		ToEmail:  req.ToEmail,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.NewTransferStartedResponse(transfer))
}

// Accept handles POST /api/pets/:id/transfers/accept.
func (h *TransfersHandler) Accept(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.AcceptTransferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	if _, err := h.transfers.Accept(c.UserContext(), actor, c.Params("id"), req.Code); err != nil {
		return err
	}
	return c.JSON(dto.DetailResponse{Detail: "transfer accepted"})
}

// Cancel handles POST /api/pets/:id/transfers/cancel.
func (h *TransfersHandler) Cancel(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.transfers.Cancel(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(dto.DetailResponse{Detail: "transfer cancelled"})
}

// ListForPet handles GET /api/pets/:id/transfers.
func (h *TransfersHandler) ListForPet(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	items, err := h.transfers.ListForPet(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTransferResponses(items)})
}

// Incoming handles GET /api/transfers/incoming.
func (h *TransfersHandler) Incoming(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return err
	}
	items, err := h.transfers.ListIncoming(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTransferResponses(items)})
}
