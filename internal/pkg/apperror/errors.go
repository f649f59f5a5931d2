package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNoPendingOTP       ErrorCode = "NO_PENDING_OTP"
	ErrCodeOTPExpired         ErrorCode = "OTP_EXPIRED"
	ErrCodeOTPMismatch        ErrorCode = "OTP_MISMATCH"
	ErrCodeProfileNotFound    ErrorCode = "PROFILE_NOT_FOUND"
	ErrCodeGatewayUnavailable ErrorCode = "GATEWAY_UNAVAILABLE"
	ErrCodeGatewayProtocol    ErrorCode = "GATEWAY_PROTOCOL"
	ErrCodeTokenMintFailed    ErrorCode = "TOKEN_MINT_FAILED"
	ErrCodeBadRequest         ErrorCode = "BAD_REQUEST"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// AppError — ошибка приложения с кодом из таксономии и HTTP статусом.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду, чтобы errors.Is работал между sentinel
// значениями и обёрнутыми через Wrap экземплярами.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	// Пользовательские исходы проверки кода: клиент может повторить попытку.
	case ErrCodeNoPendingOTP, ErrCodeOTPExpired, ErrCodeOTPMismatch:
		return http.StatusUnauthorized
	case ErrCodeProfileNotFound:
		return http.StatusNotFound
	case ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeGatewayUnavailable, ErrCodeGatewayProtocol:
		return http.StatusBadGateway
	default:
		// TOKEN_MINT_FAILED и всё неклассифицированное — серверная ошибка.
		return http.StatusInternalServerError
	}
}

// HTTPStatus возвращает статус для произвольной ошибки.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// UserMessage возвращает сообщение, пригодное для ответа клиенту. Для
// неклассифицированных ошибок содержимое маскируется, чтобы не раскрывать
// внутренние детали.
func UserMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}

var (
	// Исходы погашения кода. Формулировки не раскрывают, известен ли номер
	// системе — только состояние конкретной попытки входа.
	ErrNoPendingOTP = New(ErrCodeNoPendingOTP, "no pending verification code, request a new one")
	ErrOTPExpired   = New(ErrCodeOTPExpired, "verification code expired, request a new one")
	ErrOTPMismatch  = New(ErrCodeOTPMismatch, "incorrect verification code")

	// Логин без зарегистрированного аккаунта — клиенту нужно пройти регистрацию.
	ErrProfileNotFound = New(ErrCodeProfileNotFound, "no account found for this number, please register first")

	// Выпуск сессионного токена не удался — фатально для запроса.
	ErrTokenMintFailed = New(ErrCodeTokenMintFailed, "failed to issue session token")
)

// GatewayUnavailable — сетевой сбой или таймаут SMS-провайдера.
func GatewayUnavailable(err error) *AppError {
	return Wrap(err, ErrCodeGatewayUnavailable, "sms provider is unavailable, try again later")
}

// GatewayProtocol — провайдер ответил, но ответ не соответствует контракту.
func GatewayProtocol(err error, detail string) *AppError {
	msg := "sms provider rejected the request"
	if detail != "" {
		msg = msg + ": " + detail
	}
	return Wrap(err, ErrCodeGatewayProtocol, msg)
}

// IsGatewayError сообщает, относится ли ошибка к SMS-провайдеру.
func IsGatewayError(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == ErrCodeGatewayUnavailable || appErr.Code == ErrCodeGatewayProtocol
}
