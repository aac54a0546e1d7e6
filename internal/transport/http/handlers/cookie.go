package handlers

import (
	"net/http"
	"time"
)

// DefaultCookieName — имя cookie с refresh-токеном.
const DefaultCookieName = "refreshToken"

// CookieOptions — параметры cookie с refresh-токеном.
type CookieOptions struct {
	Name string
}

// setRefreshCookie кладёт refresh-токен в HttpOnly cookie.
// Access-токен в cookie не попадает никогда.
func (h *Handlers) setRefreshCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.Cookie.Name,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt.UTC(),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

func (h *Handlers) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.Cookie.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

// refreshFromCookie возвращает refresh-токен из cookie или "".
func (h *Handlers) refreshFromCookie(r *http.Request) string {
	c, err := r.Cookie(h.Cookie.Name)
	if err != nil {
		return ""
	}

	return c.Value
}
