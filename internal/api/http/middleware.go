package http

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/spec-kit/pet-registry/internal/observability"
	apperrors "github.com/spec-kit/pet-registry/pkg/util/errorutil"
)

// RegisterMiddlewares attaches global middlewares. The request logger wraps the
// error middleware so it observes the rendered status.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	app.Use(requestid.New())
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics))
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("request_id", observability.RequestID(c)))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				domainErr := toDomainError(err)
				route := c.Route().Path
				if route == "" {
					route = c.Path()
				}
				metrics.RecordError(route, c.Method(), domainErr.Code)

				body := fiber.Map{
					"code":    domainErr.Code,
					"message": domainErr.Message,
				}
				if len(domainErr.Details) > 0 {
					body["details"] = domainErr.Details
				}
				if domainErr.HTTPStatus >= http.StatusInternalServerError {
					logger.Error("request failed",
						zap.String("request_id", observability.RequestID(c)),
						zap.String("code", domainErr.Code),
						zap.Error(domainErr))
				}
				c.Status(domainErr.HTTPStatus)
				_ = c.JSON(fiber.Map{"error": body, "detail": domainErr.Message})
				err = nil
			}
		}()
		return c.Next()
	}
}

// toDomainError also classifies fiber's own errors (bad payloads, unknown
// routes, body limits) by their status.
func toDomainError(err error) *apperrors.DomainError {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErrorToDomain(fiberErr)
	}
	return apperrors.ToDomainError(err)
}

func fiberErrorToDomain(e *fiber.Error) *apperrors.DomainError {
	switch {
	case e.Code == http.StatusNotFound:
		return apperrors.NewDomainError(apperrors.KindNotFound, "NOT_FOUND", e.Message, e.Code, nil)
	case e.Code == http.StatusUnauthorized:
		return apperrors.NewDomainError(apperrors.KindUnauthorized, "UNAUTHORIZED", e.Message, e.Code, nil)
	case e.Code == http.StatusForbidden:
		return apperrors.NewDomainError(apperrors.KindForbidden, "FORBIDDEN", e.Message, e.Code, nil)
	case e.Code >= http.StatusInternalServerError:
		return apperrors.ToDomainError(apperrors.NewInternalError(e))
	default:
		return apperrors.NewDomainError(apperrors.KindValidation, "BAD_REQUEST", e.Message, e.Code, nil)
	}
}
