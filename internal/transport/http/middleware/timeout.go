package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/pribylovaa/go-fitness-tracker/internal/pkg/log"
	"github.com/pribylovaa/go-fitness-tracker/internal/transport/http/apierrors"
)

// Timeout ограничивает время обработки запроса значением d, если у контекста
// ещё нет дедлайна. Значение <=0 отключает мидлвар.
//
// Если дедлайн истёк, а хендлер так ничего и не записал, клиент получает
// 504 General.Timeout в едином формате ошибок.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := r.Context().Deadline(); ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r.WithContext(ctx))

			if err := ctx.Err(); errors.Is(err, context.DeadlineExceeded) && !sw.wrote {
				log.From(ctx).LogAttrs(ctx, slog.LevelWarn, "request_timeout",
					slog.String("path", r.URL.Path),
					slog.Duration("limit", d),
				)
				apierrors.WriteError(sw, r, err)
			}
		})
	}
}
