package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-fitness-tracker/internal/models"
	"github.com/pribylovaa/go-fitness-tracker/internal/service"
)

// AuthService — операции жизненного цикла сессии, нужные хендлерам.
type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (*models.AuthResult, error)
	Login(ctx context.Context, email, password string) (*models.AuthResult, error)
	RotateTokens(ctx context.Context, presented string) (*models.AuthResult, error)
	Logout(ctx context.Context, presented string) error
	ChangePassword(ctx context.Context, accountID uuid.UUID, current, next string) error
	Account(ctx context.Context, id uuid.UUID) (*models.AccountView, error)
}

// Handlers агрегирует зависимости хендлеров.
type Handlers struct {
	Auth   AuthService
	Cookie CookieOptions
}

func New(svc AuthService, cookie CookieOptions) *Handlers {
	if cookie.Name == "" {
		cookie.Name = DefaultCookieName
	}

	return &Handlers{Auth: svc, Cookie: cookie}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}
