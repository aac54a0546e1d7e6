package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pribylovaa/go-fitness-tracker/internal/pkg/log"
	"github.com/pribylovaa/go-fitness-tracker/internal/transport/http/apierrors"
)

var errPanic = errors.New("panic")

// Recover перехватывает panic и отвечает 500 в едином формате.
// Детали паники не утекают на клиент.
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}

					log.From(r.Context()).
						LogAttrs(r.Context(), slog.LevelError, "panic",
							slog.String("path", r.URL.Path),
							slog.Any("reason", rec),
						)
					apierrors.WriteError(w, r, errPanic)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
