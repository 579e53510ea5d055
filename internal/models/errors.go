package models

import (
	"errors"
	"fmt"
)

// ErrorKind классифицирует ошибки бизнес-логики.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"     // Некорректные входные данные
	KindStateConflict ErrorKind = "state_conflict" // Переход из недопустимого состояния
	KindTokenInvalid  ErrorKind = "token_invalid"  // Токен отсутствует, не совпадает или истёк
	KindNotFound      ErrorKind = "not_found"      // Сущность не найдена
)

var (
	ErrValidation    = &Error{Kind: KindValidation, Message: "validation error"}
	ErrStateConflict = &Error{Kind: KindStateConflict, Message: "state conflict"}
	ErrTokenInvalid  = &Error{Kind: KindTokenInvalid, Message: "access token is invalid or expired"}
	ErrNotFound      = &Error{Kind: KindNotFound, Message: "not found"}
)

// Error - типизированная ошибка операции.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is сравнивает ошибки по виду, чтобы errors.Is(err, ErrStateConflict) работал для любых сообщений.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewValidationError создает ошибку валидации.
func NewValidationError(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewStateConflict создает ошибку недопустимого перехода.
func NewStateConflict(format string, args ...any) error {
	return &Error{Kind: KindStateConflict, Message: fmt.Sprintf(format, args...)}
}

// NewNotFound создает ошибку отсутствующей сущности.
func NewNotFound(entity, id string) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// KindOf возвращает вид ошибки или пустую строку для инфраструктурных ошибок.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ErrorResponse описывает ошибку с HTTP-кодом, заданным явно.
type ErrorResponse struct {
	StatusCode int    `json:"-"`
	Message    string `json:"reason"`
}

// NewErrorResponse создает новую ошибку с кодом и сообщением.
func NewErrorResponse(statusCode int, message string) *ErrorResponse {
	return &ErrorResponse{StatusCode: statusCode, Message: message}
}

func (e *ErrorResponse) Error() string {
	return e.Message
}
