package handlers

import (
	"net/http"

	"github.com/pribylovaa/go-fitness-tracker/internal/service"
	"github.com/pribylovaa/go-fitness-tracker/internal/transport/http/apierrors"
	"github.com/pribylovaa/go-fitness-tracker/internal/transport/http/middleware"
)

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, service.ErrInvalidInput)
		return
	}

	res, err := h.Auth.Register(r.Context(), in.toInput())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.setRefreshCookie(w, res.Tokens.RefreshToken, res.Tokens.RefreshExpiresAt)
	writeJSON(w, http.StatusOK, authFromResult(res))
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, service.ErrInvalidInput)
		return
	}

	res, err := h.Auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.setRefreshCookie(w, res.Tokens.RefreshToken, res.Tokens.RefreshExpiresAt)
	writeJSON(w, http.StatusOK, authFromResult(res))
}

// RefreshToken ротирует пару по refresh-токену из cookie.
func (h *Handlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	res, err := h.Auth.RotateTokens(r.Context(), h.refreshFromCookie(r))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.setRefreshCookie(w, res.Tokens.RefreshToken, res.Tokens.RefreshExpiresAt)
	writeJSON(w, http.StatusOK, authFromResult(res))
}

// Logout завершает сессию. Cookie очищается при любом исходе.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	err := h.Auth.Logout(r.Context(), h.refreshFromCookie(r))
	h.clearRefreshCookie(w)

	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrUnauthorized)
		return
	}

	var in changePasswordRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, service.ErrInvalidInput)
		return
	}

	if err := h.Auth.ChangePassword(r.Context(), claims.Subject, in.CurrentPassword, in.NewPassword); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrUnauthorized)
		return
	}

	view, err := h.Auth.Account(r.Context(), claims.Subject)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, accountFromView(view))
}
