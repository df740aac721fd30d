// Package apperr сводит ошибки хранилища, сети и валидации к фиксированному набору видов.
package apperr

import (
	"context"
	"database/sql"
	"errors"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Kind вид ошибки
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindNetwork      Kind = "network"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindUnknown      Kind = "unknown"
)

// Коды ошибок PostgreSQL, которые мы различаем
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
	pgInvalidText         = "22P02"
	pgStringTooLong       = "22001"
	pgNumericOutOfRange   = "22003"
)

// Error ошибка с видом и читаемым сообщением
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New создаёт ошибку заданного вида
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap оборачивает причину
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error   { return New(KindValidation, message) }
func NotFound(message string) *Error     { return New(KindNotFound, message) }
func Conflict(message string) *Error     { return New(KindConflict, message) }
func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }
func Forbidden(message string) *Error    { return New(KindForbidden, message) }

// KindOf возвращает вид ошибки; для «сырых» ошибок KindUnknown
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// Is проверяет вид ошибки
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message возвращает сообщение для пользователя
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}

// FromDB нормализует ошибку базы данных на границе репозитория
func FromDB(err error, message string) error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, sql.ErrNoRows) {
		return Wrap(KindNotFound, message, err)
	}

	if code := pgCode(err); code != "" {
		switch code {
		case pgUniqueViolation:
			return Wrap(KindConflict, message, err)
		case pgForeignKeyViolation, pgNotNullViolation, pgCheckViolation,
			pgInvalidText, pgStringTooLong, pgNumericOutOfRange:
			return Wrap(KindValidation, message, err)
		}
		// Класс 08: ошибки соединения
		if len(code) == 5 && code[:2] == "08" {
			return Wrap(KindNetwork, message, err)
		}
		return Wrap(KindUnknown, message, err)
	}

	if isNetwork(err) {
		return Wrap(KindNetwork, message, err)
	}

	return Wrap(KindUnknown, message, err)
}

// IsUniqueViolation сообщает, нарушено ли ограничение уникальности
func IsUniqueViolation(err error) bool {
	return pgCode(err) == pgUniqueViolation
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isNetwork(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
