package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/go-fitness-tracker/internal/metrics"
	"github.com/pribylovaa/go-fitness-tracker/internal/pkg/log"
)

// Logging кладёт request-scoped логгер в контекст, пишет запись о запросе
// и наблюдает длительность в metrics.HTTPRequestDuration.
func Logging(l *slog.Logger) Middleware {
	if l == nil {
		l = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := l
			if rid := r.Header.Get("X-Request-Id"); rid != "" {
				reqLogger = reqLogger.With(slog.String("request_id", rid))
			}
			r = r.WithContext(log.Into(r.Context(), reqLogger))

			sw := newStatusWriter(w)
			start := time.Now()
			next.ServeHTTP(sw, r)
			dur := time.Since(start)

			if sw.status == 0 {
				sw.status = http.StatusOK
			}

			metrics.HTTPRequestDuration.
				WithLabelValues(r.Method, routePattern(r), strconv.Itoa(sw.status)).
				Observe(dur.Seconds())

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sw.status),
				slog.Duration("dur", dur),
				slog.Int("bytes", sw.count),
			}

			log.From(r.Context()).LogAttrs(r.Context(), slog.LevelInfo, "http", attrs...)
		})
	}
}

// routePattern — шаблон маршрута chi; для несматченных запросов "unmatched",
// чтобы путь не раздувал кардинальность метрики.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}

	return "unmatched"
}
