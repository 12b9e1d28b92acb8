package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/pet-registry/internal/auth"
	"github.com/spec-kit/pet-registry/internal/domain"
	apperrors "github.com/spec-kit/pet-registry/pkg/util/errorutil"
)

func currentUser(c *fiber.Ctx) (*domain.User, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal.User, nil
}
