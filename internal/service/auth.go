package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-fitness-tracker/internal/metrics"
	"github.com/pribylovaa/go-fitness-tracker/internal/models"
	"github.com/pribylovaa/go-fitness-tracker/internal/pkg/log"
	"github.com/pribylovaa/go-fitness-tracker/internal/pkg/redact"
	"github.com/pribylovaa/go-fitness-tracker/internal/storage"
	"github.com/pribylovaa/go-fitness-tracker/internal/tokens"
)

// RegisterInput — данные регистрации.
type RegisterInput struct {
	FirstName string
	LastName  string
	Username  string
	Email     string
	Password  string
}

// Register создаёт учётную запись, назначает роль по умолчанию и открывает сессию.
// Если роль назначить или сессию открыть не удалось, учётная запись удаляется.
func (s *Service) Register(ctx context.Context, in RegisterInput) (res *models.AuthResult, err error) {
	const op = "service.auth.Register"

	defer func() { metrics.RecordAuth("register", resultLabel(err)) }()

	email, ok := normalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)
	if !ok || username == "" || in.Password == "" {
		return nil, fail(ErrInvalidInput)
	}

	ctx, lg := log.With(ctx, slog.String("op", op), slog.String("email", redact.Email(email)))

	acc, err := s.store.CreateAccount(ctx, models.Profile{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Username:  username,
		Email:     email,
	}, in.Password)
	if err != nil {
		if f, ok := fromStorage(err); ok {
			lg.Info("register_rejected", slog.String("reason", f.Error()))
			return nil, f
		}

		lg.Error("create_account_failed", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if acc.ID == uuid.Nil {
		lg.Error("invariant_violation", slog.String("reason", "created account without id"))
		return nil, fail(ErrInvariantViolation)
	}

	if err := s.attachDefaultRole(ctx, acc); err != nil {
		s.rollbackAccount(ctx, acc, err)
		return nil, fail(ErrRegistrationFailed)
	}

	pair, err := s.startSession(ctx, acc)
	if err != nil {
		s.rollbackAccount(ctx, acc, err)
		return nil, fail(ErrRegistrationFailed)
	}

	lg.Info("account_registered", slog.String("account_id", acc.ID.String()))

	return &models.AuthResult{Tokens: *pair, Account: acc.View()}, nil
}

// Login проверяет e-mail и пароль и открывает новую сессию, вытесняя прежнюю.
// Для неизвестного e-mail и неверного пароля ответ одинаковый.
func (s *Service) Login(ctx context.Context, email, password string) (res *models.AuthResult, err error) {
	const op = "service.auth.Login"

	defer func() { metrics.RecordAuth("login", resultLabel(err)) }()

	norm, ok := normalizeEmail(email)
	if !ok || password == "" {
		return nil, fail(ErrLoginFailed)
	}

	ctx, lg := log.With(ctx, slog.String("op", op), slog.String("email", redact.Email(norm)))

	acc, err := s.store.FindByEmail(ctx, norm)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("login_failed", slog.String("reason", "account not found"))
			return nil, fail(ErrLoginFailed)
		}

		lg.Error("find_account_failed", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	match, err := s.store.VerifyPassword(ctx, acc, password)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fail(ErrLoginFailed)
		}

		lg.Error("verify_password_failed", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !match {
		lg.Warn("login_failed", slog.String("reason", "wrong password"))
		return nil, fail(ErrLoginFailed)
	}

	if acc.Status == models.AccountStatusLocked {
		lg.Warn("login_failed", slog.String("reason", "account locked"))
		return nil, fail(ErrAccountLocked)
	}

	pair, err := s.startSession(ctx, acc)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			lg.Warn("login_failed", slog.String("reason", "account deleted during login"))
			return nil, fail(ErrLoginFailed)
		}

		return nil, err
	}

	lg.Info("login_ok", slog.String("account_id", acc.ID.String()))

	return &models.AuthResult{Tokens: *pair, Account: acc.View()}, nil
}

// RotateTokens обменивает refresh-токен на новую пару. Предъявленный токен
// становится недействительным в момент успешной записи нового.
func (s *Service) RotateTokens(ctx context.Context, presented string) (res *models.AuthResult, err error) {
	const op = "service.auth.RotateTokens"

	defer func() { metrics.RecordAuth("rotate", resultLabel(err)) }()

	if presented == "" {
		return nil, fail(ErrJwt)
	}

	hash := tokens.HashRefreshToken(presented)
	ctx, lg := log.With(ctx, slog.String("op", op), slog.String("token", redact.Fingerprint(hash)))

	if s.revokedInCache(ctx, hash) {
		lg.Warn("refresh_reuse_detected")
		return nil, fail(ErrJwt)
	}

	acc, err := s.store.FindByRefreshToken(ctx, hash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("refresh_lookup_not_found")
			return nil, fail(ErrJwt)
		}

		lg.Error("refresh_lookup_failed", slog.String("err", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if acc.ID == uuid.Nil {
		lg.Error("invariant_violation", slog.String("reason", "account without id"))
		return nil, fail(ErrInvariantViolation)
	}

	if acc.Refresh == nil || acc.Refresh.Hash != hash {
		lg.Warn("refresh_missing", slog.String("account_id", acc.ID.String()))
		return nil, fail(ErrJwt)
	}

	if acc.Refresh.Expired(s.now().UTC()) {
		lg.Warn("refresh_expired", slog.String("account_id", acc.ID.String()))
		return nil, fail(ErrExpiredToken)
	}

	pair, err := s.issueSession(ctx, acc, hash)
	if err != nil {
		if errors.Is(err, errStaleSession) {
			metrics.RotationConflicts.Inc()
			lg.Warn("refresh_rotation_conflict", slog.String("account_id", acc.ID.String()))
			return nil, fail(ErrJwt)
		}
		if errors.Is(err, ErrUserNotFound) {
			lg.Warn("refresh_account_gone", slog.String("account_id", acc.ID.String()))
			return nil, fail(ErrJwt)
		}

		return nil, err
	}

	lg.Info("refresh_rotated", slog.String("account_id", acc.ID.String()))

	return &models.AuthResult{Tokens: *pair}, nil
}

// Logout очищает refresh-токен учётной записи, которой принадлежит presented.
// Повторный вызов с тем же токеном возвращает ErrUserNotFound.
func (s *Service) Logout(ctx context.Context, presented string) (err error) {
	const op = "service.auth.Logout"

	defer func() { metrics.RecordAuth("logout", resultLabel(err)) }()

	if presented == "" {
		return fail(ErrRefreshTokenMissing)
	}

	hash := tokens.HashRefreshToken(presented)
	ctx, lg := log.With(ctx, slog.String("op", op), slog.String("token", redact.Fingerprint(hash)))

	acc, err := s.store.FindByRefreshToken(ctx, hash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("logout_token_not_found")
			return fail(ErrUserNotFound)
		}

		lg.Error("refresh_lookup_failed", slog.String("err", err.Error()))
		return fmt.Errorf("%s: %w", op, err)
	}

	ok, err := s.endSession(ctx, acc, hash)
	if err != nil {
		return err
	}

	if !ok {
		// Токен ротирован или очищен между чтением и записью.
		lg.Warn("logout_token_changed", slog.String("account_id", acc.ID.String()))
		return fail(ErrUserNotFound)
	}

	lg.Info("logout_ok", slog.String("account_id", acc.ID.String()))

	return nil
}

// ChangePassword меняет пароль и завершает текущую сессию учётной записи.
func (s *Service) ChangePassword(ctx context.Context, accountID uuid.UUID, current, next string) (err error) {
	const op = "service.auth.ChangePassword"

	defer func() { metrics.RecordAuth("change_password", resultLabel(err)) }()

	ctx, lg := log.With(ctx, slog.String("op", op), slog.String("account_id", accountID.String()))

	if accountID == uuid.Nil {
		lg.Error("invariant_violation", slog.String("reason", "nil account id"))
		return fail(ErrInvariantViolation)
	}

	acc, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fail(ErrUserNotFound)
		}

		lg.Error("find_account_failed", slog.String("err", err.Error()))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.store.ChangePassword(ctx, acc, current, next); err != nil {
		if f, ok := fromStorage(err); ok {
			lg.Info("change_password_rejected", slog.String("reason", f.Error()))
			return f
		}

		lg.Error("change_password_failed", slog.String("err", err.Error()))
		return fmt.Errorf("%s: %w", op, err)
	}

	// Пароль уже сменён: сессию нужно снять, даже если её параллельно ротировали.
	for attempt := 0; acc.Refresh != nil; attempt++ {
		if attempt == maxSwapAttempts {
			lg.Error("session_clear_conflict_exceeded")
			return fmt.Errorf("%s: %w", op, errStaleSession)
		}

		ok, err := s.endSession(ctx, acc, acc.Refresh.Hash)
		if err != nil {
			return err
		}

		if ok {
			break
		}

		if acc, err = s.store.FindByID(ctx, accountID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	lg.Info("password_changed")

	return nil
}

// Authenticate проверяет access-токен.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*tokens.Claims, error) {
	claims, err := s.signer.Verify(accessToken)
	if err != nil {
		log.From(ctx).Debug("access_token_rejected", slog.String("err", err.Error()))
		return nil, fail(ErrUnauthorized)
	}

	return claims, nil
}

// Account возвращает публичное представление учётной записи.
func (s *Service) Account(ctx context.Context, id uuid.UUID) (*models.AccountView, error) {
	const op = "service.auth.Account"

	if id == uuid.Nil {
		return nil, fail(ErrInvariantViolation)
	}

	acc, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fail(ErrUserNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return acc.View(), nil
}

// PurgeExpiredSessions очищает refresh-токены, срок которых истёк.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	const op = "service.auth.PurgeExpiredSessions"

	n, err := s.store.ClearExpiredRefreshTokens(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	metrics.SessionsPurged.Add(float64(n))

	return n, nil
}

// normalizeEmail обрезает пробелы, проверяет формат и приводит к нижнему регистру.
func normalizeEmail(raw string) (string, bool) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", false
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", false
	}

	return strings.ToLower(email), true
}
