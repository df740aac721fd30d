package client

import (
	"errors"
	"fmt"
)

// Kind вид ошибки, совпадает с полем kind в ответах API
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindNetwork      Kind = "network"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindRateLimited  Kind = "rate_limited"
	KindUnknown      Kind = "unknown"
)

// FieldError ошибка валидации одного поля
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// Error ошибка API или транспорта
type Error struct {
	Kind         Kind         `json:"kind"`
	Message      string       `json:"error"`
	StatusCode   int          `json:"-"`
	Fields       []FieldError `json:"fields,omitempty"`
	OrphanedURLs []string     `json:"orphaned_urls,omitempty"`
	Err          error        `json:"-"`
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf возвращает вид ошибки клиента
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	if err == nil {
		return ""
	}
	return KindUnknown
}

// IsKind проверяет вид ошибки
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func kindForStatus(status int) Kind {
	switch {
	case status == 400:
		return KindValidation
	case status == 401:
		return KindUnauthorized
	case status == 403:
		return KindForbidden
	case status == 404:
		return KindNotFound
	case status == 409:
		return KindConflict
	case status == 429:
		return KindRateLimited
	case status == 502 || status == 503 || status == 504:
		return KindNetwork
	default:
		return KindUnknown
	}
}
