package serverutils

import (
	"errors"

	"sanbot-be/pkg/delta"
	"sanbot-be/pkg/tabular"

	"github.com/gofiber/fiber/v2"
)

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func SuccessResponse(message string, data interface{}) Response {
	return Response{Success: true, Message: message, Data: data}
}

func ErrorResponse(err error) Response {
	return Response{Success: false, Error: err.Error()}
}

// ErrorHandlerMiddleware maps domain errors escaping a controller to JSON
// responses with a suitable status code.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		status := fiber.StatusInternalServerError
		var parseErr *tabular.ParseError
		var schemaErr *delta.SchemaError
		var compErr *delta.ComputationError
		var fiberErr *fiber.Error
		switch {
		case errors.Is(err, tabular.ErrUnsupportedFormat):
			status = fiber.StatusBadRequest
		case errors.As(err, &parseErr),
			errors.As(err, &schemaErr),
			errors.As(err, &compErr):
			status = fiber.StatusUnprocessableEntity
		case errors.As(err, &fiberErr):
			status = fiberErr.Code
		}

		return ctx.Status(status).JSON(ErrorResponse(err))
	}
}
