package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/pribylovaa/go-fitness-tracker/internal/service"
	"github.com/pribylovaa/go-fitness-tracker/internal/tokens"
	"github.com/pribylovaa/go-fitness-tracker/internal/transport/http/apierrors"
)

// Authenticator проверяет access-токен.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*tokens.Claims, error)
}

type claimsKey struct{}

// AuthBearer требует заголовок "Authorization: Bearer <token>", проверяет
// токен и кладёт claims в контекст. Без валидного токена отвечает 401.
func AuthBearer(a Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				apierrors.WriteError(w, r, service.ErrUnauthorized)
				return
			}

			claims, err := a.Authenticate(r.Context(), token)
			if err != nil {
				apierrors.WriteError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFrom возвращает claims, положенные AuthBearer.
func ClaimsFrom(ctx context.Context) (*tokens.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*tokens.Claims)
	return c, ok && c != nil
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}

	token := strings.TrimSpace(header[len(prefix):])

	return token, token != ""
}
