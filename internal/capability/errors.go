package capability

import (
	"context"
	"errors"
	"fmt"
)

// Error — ошибка вызова внешней capability.
//
// Retryable разделяет транзиентные ошибки (сетевой сбой, rate limit,
// 5xx) и постоянные (некорректный запрос, отклонённый контент).
// Транзиентные ошибки повторяет Step Executor; постоянные сразу
// становятся отказом этапа.
type Error struct {
	// Retryable — имеет ли смысл повтор.
	Retryable bool

	// StatusCode — HTTP-код ответа bridge (0 для сетевых ошибок).
	StatusCode int

	// Message — текст ошибки.
	Message string
}

// Error реализует error.
func (e *Error) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "transient"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("capability %s error (HTTP %d): %s", kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("capability %s error: %s", kind, e.Message)
}

// Transient создаёт транзиентную ошибку.
func Transient(statusCode int, message string) *Error {
	return &Error{Retryable: true, StatusCode: statusCode, Message: message}
}

// Permanent создаёт постоянную ошибку.
func Permanent(statusCode int, message string) *Error {
	return &Error{Retryable: false, StatusCode: statusCode, Message: message}
}

// IsRetryable возвращает true, если ошибку имеет смысл повторить.
// Превышение дедлайна контекста считается транзиентным: повтор
// с новым дедлайном может успеть.
func IsRetryable(err error) bool {
	var capErr *Error
	if errors.As(err, &capErr) {
		return capErr.Retryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

// classifyStatus определяет retryability по HTTP-коду.
// 408/429 и 5xx — транзиентные, остальные 4xx — постоянные.
func classifyStatus(statusCode int) bool {
	switch {
	case statusCode == 408 || statusCode == 429:
		return true
	case statusCode >= 500:
		return true
	default:
		return false
	}
}
