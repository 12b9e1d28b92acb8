package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/pet-registry/internal/api/dto"
	"github.com/spec-kit/pet-registry/internal/auth"
	"github.com/spec-kit/pet-registry/internal/service"
	apperrors "github.com/spec-kit/pet-registry/pkg/util/errorutil"
)

// VerificationHandler exposes the email code and password change flow.
type VerificationHandler struct {
	verification *service.VerificationService
	exposeCode   bool
}

// NewVerificationHandler constructs handler. exposeCode echoes issued codes in
// the response and must stay off outside local development.
func NewVerificationHandler(verification *service.VerificationService, exposeCode bool) *VerificationHandler {
	return &VerificationHandler{verification: verification, exposeCode: exposeCode}
}

// Request handles POST /api/auth/verification/request.
func (h *VerificationHandler) Request(c *fiber.Ctx) error {
	var req dto.VerificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	code, err := h.verification.RequestCode(c.UserContext(), req.Email)
	if err != nil {
		return err
	}

	resp := dto.VerificationRequestResponse{
		Message: "verification code sent",
		UserID:  code.UserID,
	}
	if h.exposeCode {
		resp.Code = code.Code
	}
	return c.JSON(resp)
}

// Verify handles POST /api/auth/verification/verify.
func (h *VerificationHandler) Verify(c *fiber.Ctx) error {
	var req dto.VerifyCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	token, err := h.verification.VerifyCode(c.UserContext(), req.UserID, req.Code)
	if err != nil {
		return err
	}
	return c.JSON(dto.TemporaryTokenResponse{Token: token.Token, ExpiresIn: token.ExpiresIn})
}

// ChangePassword handles POST /api/auth/password/change. It only runs behind
// the temporary token middleware.
func (h *VerificationHandler) ChangePassword(c *fiber.Ctx) error {
	claims, ok := auth.TemporaryClaimsFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("password change token required")
	}

	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	if err := h.verification.ChangePassword(c.UserContext(), claims, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "password updated"})
}
