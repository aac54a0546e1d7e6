package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/go-fitness-tracker/internal/transport/http/handlers"
	"github.com/pribylovaa/go-fitness-tracker/internal/transport/http/middleware"
)

// Service — зависимости роутера: операции сессии и проверка access-токена.
type Service interface {
	handlers.AuthService
	middleware.Authenticator
}

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger     *slog.Logger
	Timeout    time.Duration
	BasePath   string // например, "/api"; если пустой — роуты регистрируются на корне.
	CookieName string
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc Service, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),
		middleware.RequestID(), // до логирования
		middleware.Logging(opts.Logger),
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout))
	}

	h := handlers.New(svc, handlers.CookieOptions{Name: opts.CookieName})
	bearer := middleware.AuthBearer(svc)

	if opts.BasePath != "" {
		sub := chi.NewRouter()
		registerRoutes(sub, h, bearer)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, h, bearer)
	return root
}

// registerRoutes — единая точка регистрации REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers, bearer middleware.Middleware) {
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/refresh-token", h.RefreshToken)
	r.Post("/auth/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(bearer)
		r.Post("/auth/password", h.ChangePassword)
		r.Get("/auth/me", h.Me)
	})
}
