package utils

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/rajivgeraev/bazaar-api/internal/apperr"
)

// StatusCode HTTP-статус для вида ошибки
func StatusCode(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return fiber.StatusBadRequest
	case apperr.KindNotFound:
		return fiber.StatusNotFound
	case apperr.KindConflict:
		return fiber.StatusConflict
	case apperr.KindUnauthorized:
		return fiber.StatusUnauthorized
	case apperr.KindForbidden:
		return fiber.StatusForbidden
	case apperr.KindNetwork:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// SendError отправляет ошибку в JSON: {"error": ..., "kind": ...}.
// Дополнительные поля добавляются в тело ответа.
func SendError(c fiber.Ctx, err error, extra ...fiber.Map) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message, "kind": kindForStatus(fe.Code)})
	}

	kind := apperr.KindOf(err)
	status := StatusCode(kind)
	if status >= fiber.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.Path()).Error("Ошибка обработки запроса")
	}

	body := fiber.Map{"error": apperr.Message(err), "kind": kind}
	if fields := GetValidationErrors(err); len(fields) > 0 {
		body["fields"] = fields
	}
	for _, m := range extra {
		for k, v := range m {
			body[k] = v
		}
	}
	return c.Status(status).JSON(body)
}

func kindForStatus(code int) apperr.Kind {
	switch code {
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity, fiber.StatusRequestEntityTooLarge:
		return apperr.KindValidation
	case fiber.StatusNotFound:
		return apperr.KindNotFound
	case fiber.StatusConflict:
		return apperr.KindConflict
	case fiber.StatusUnauthorized:
		return apperr.KindUnauthorized
	case fiber.StatusForbidden:
		return apperr.KindForbidden
	default:
		return apperr.KindUnknown
	}
}

// BindBody разбирает JSON-тело запроса; ошибки разбора становятся validation
func BindBody(c fiber.Ctx, v any) error {
	if err := c.Bind().Body(v); err != nil {
		if apperr.KindOf(err) == apperr.KindValidation {
			return err
		}
		return apperr.Wrap(apperr.KindValidation, "Неверный формат данных", err)
	}
	return nil
}
