package domain

import (
	"errors"
	"time"
)

// ErrorCode é a etiqueta de máquina de um erro do núcleo.
type ErrorCode string

const (
	CodeInvalidInput       ErrorCode = "INVALID_INPUT"
	CodeRateLimited        ErrorCode = "RATE_LIMITED"
	CodeConflictInProgress ErrorCode = "CONFLICT_IN_PROGRESS"
	CodeStoreUnavailable   ErrorCode = "STORE_UNAVAILABLE"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	CodeForbidden          ErrorCode = "FORBIDDEN"
)

// Error é um erro tipado do núcleo. RetryAfter > 0 é orientação para o cliente.
type Error struct {
	Code       ErrorCode
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is compara apenas o código, então errors.Is(err, ErrStoreUnavailable) funciona
// para qualquer erro embrulhado com o mesmo código.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrInvalidInput       = &Error{Code: CodeInvalidInput, Message: "invalid input"}
	ErrRateLimited        = &Error{Code: CodeRateLimited, Message: "rate limited"}
	ErrConflictInProgress = &Error{Code: CodeConflictInProgress, Message: "request with this idempotency key is still in progress"}
	ErrStoreUnavailable   = &Error{Code: CodeStoreUnavailable, Message: "store unavailable"}
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "not found"}
)

// Wrap cria um Error com causa.
func Wrap(code ErrorCode, msg string, err error) error {
	return &Error{Code: code, Message: msg, Err: err}
}

// StoreUnavailable embrulha uma falha de I/O com o store.
func StoreUnavailable(op string, err error) error {
	return &Error{Code: CodeStoreUnavailable, Message: "store unavailable (" + op + ")", Err: err}
}

// RateLimited carrega o atraso até o fim da janela.
func RateLimited(retryAfter time.Duration) error {
	return &Error{Code: CodeRateLimited, Message: "tenant quota exhausted for current window", RetryAfter: retryAfter}
}

// ConflictInProgress carrega a espera sugerida antes de repetir a requisição.
func ConflictInProgress(retryAfter time.Duration) error {
	return &Error{Code: CodeConflictInProgress, Message: ErrConflictInProgress.Message, RetryAfter: retryAfter}
}

// CodeOf retorna o ErrorCode de err (vazio se não for um Error).
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// RetryAfterOf retorna a orientação de espera carregada por err.
func RetryAfterOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}
