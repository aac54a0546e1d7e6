// apierrors стандартизирует ответы об ошибках HTTP-слоя auth-сервиса.
// На вход принимает ошибку сервиса, на выход даёт:
//   - HTTP-статус по коду первой доменной ошибки;
//   - код и описание доменной ошибки без деталей инфраструктуры.
//
// Ошибка, не несущая доменного кода, считается сбоем и отдаётся как 500.
package apierrors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pribylovaa/go-fitness-tracker/internal/service"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// Коды ответов, которые не соответствуют доменным ошибкам.
const (
	CodeInternal = "General.InternalServerError"
	CodeTimeout  = "General.Timeout"
	CodeCanceled = "General.Canceled"
)

// APIError — единый формат для фронта.
// Code — стабильный доменный код (например, Auth.LoginFailed).
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// statusByCode сопоставляет доменные коды HTTP-статусам.
var statusByCode = map[string]int{
	service.ErrLoginFailed.Code:                     http.StatusUnauthorized,
	service.ErrJwt.Code:                             http.StatusUnauthorized,
	service.ErrExpiredToken.Code:                    http.StatusUnauthorized,
	service.ErrUnauthorized.Code:                    http.StatusUnauthorized,
	service.ErrAccountLocked.Code:                   http.StatusForbidden,
	service.ErrEmailAlreadyExists.Code:              http.StatusConflict,
	service.ErrUsernameAlreadyExists.Code:           http.StatusConflict,
	service.ErrUserNotFound.Code:                    http.StatusNotFound,
	service.ErrInvalidInput.Code:                    http.StatusBadRequest,
	service.ErrInvalidCurrentPassword.Code:          http.StatusBadRequest,
	service.ErrPasswordTooShort.Code:                http.StatusBadRequest,
	service.ErrPasswordRequiresDigit.Code:           http.StatusBadRequest,
	service.ErrPasswordRequiresUpper.Code:           http.StatusBadRequest,
	service.ErrPasswordRequiresNonAlphanumeric.Code: http.StatusBadRequest,
	service.ErrRegistrationFailed.Code:              http.StatusInternalServerError,
	service.ErrInvariantViolation.Code:              http.StatusInternalServerError,
}

// ToHTTP конвертирует ошибку сервиса в HTTP-статус и тело ответа.
//
// Поведение:
//   - err == nil — программная ошибка вызова: 500, чтобы не отдать "200 OK"
//     с телом ошибки;
//   - доменная ошибка — статус по коду первой из них;
//   - отмена/дедлайн контекста — 499/504;
//   - прочее — 500 без деталей.
func ToHTTP(err error) (int, ErrorResponse) {
	if err == nil {
		return http.StatusInternalServerError, internal()
	}

	if errs := service.Errors(err); len(errs) > 0 {
		first := errs[0]

		status := http.StatusInternalServerError
		switch {
		case first == service.ErrRefreshTokenMissing:
			// Тот же код, что и у ErrJwt, но это ошибка запроса.
			status = http.StatusBadRequest
		default:
			if s, ok := statusByCode[first.Code]; ok {
				status = s
			}
		}

		return status, ErrorResponse{Error: APIError{Code: first.Code, Message: first.Description}}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorResponse{Error: APIError{Code: CodeTimeout, Message: "deadline exceeded"}}
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, ErrorResponse{Error: APIError{Code: CodeCanceled, Message: "canceled"}}
	}

	return http.StatusInternalServerError, internal()
}

func internal() ErrorResponse {
	return ErrorResponse{Error: APIError{Code: CodeInternal, Message: "internal error"}}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет статус и тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
