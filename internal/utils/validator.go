package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rajivgeraev/bazaar-api/internal/apperr"
)

var validate *validator.Validate

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.]+$`)

func init() {
	validate = validator.New()
	validate.RegisterValidation("username", validateUsername)
	validate.RegisterValidation("notblank", validateNotBlank)
}

// ValidationError описание ошибки одного поля
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ValidateStruct проверяет структуру и возвращает ошибку вида validation
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	fields := GetValidationErrors(err)
	if len(fields) == 0 {
		return apperr.Wrap(apperr.KindValidation, "некорректные данные", err)
	}

	msgs := make([]string, len(fields))
	for i, f := range fields {
		msgs[i] = f.Message
	}
	return apperr.Wrap(apperr.KindValidation, strings.Join(msgs, "; "), err)
}

func validateUsername(fl validator.FieldLevel) bool {
	username := fl.Field().String()
	if len(username) < 3 || len(username) > 50 {
		return false
	}
	return usernamePattern.MatchString(username)
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// GetValidationErrors переводит ошибки validator в читаемый вид
func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return nil
	}

	for _, e := range errs {
		field := strings.ToLower(e.Field())
		validationErrors = append(validationErrors, ValidationError{
			Field:   field,
			Tag:     e.Tag(),
			Message: validationMessage(field, e),
		})
	}
	return validationErrors
}

func validationMessage(field string, e validator.FieldError) string {
	switch e.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "username":
		return fmt.Sprintf("%s must be 3-50 letters, digits, dots or underscores", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
