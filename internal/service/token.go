package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-fitness-tracker/internal/cache"
	"github.com/pribylovaa/go-fitness-tracker/internal/metrics"
	"github.com/pribylovaa/go-fitness-tracker/internal/models"
	"github.com/pribylovaa/go-fitness-tracker/internal/pkg/log"
	"github.com/pribylovaa/go-fitness-tracker/internal/pkg/redact"
	"github.com/pribylovaa/go-fitness-tracker/internal/storage"
	"github.com/pribylovaa/go-fitness-tracker/internal/tokens"
)

const (
	// maxCollisionAttempts — попытки сгенерировать refresh-токен с уникальным хэшем.
	maxCollisionAttempts = 5
	// maxSwapAttempts — попытки переписать сессию при входе, если её
	// параллельно изменил другой запрос.
	maxSwapAttempts = 3
)

// errStaleSession — условная запись refresh-токена не прошла: сохранённое
// значение изменилось после чтения.
var errStaleSession = errors.New("refresh token changed concurrently")

// issueSession выпускает пару токенов и записывает новый refresh-токен
// при условии, что в хранилище всё ещё лежит expectedHash.
// Access-токен подписывается до записи: после успешной записи отказов нет.
func (s *Service) issueSession(ctx context.Context, acc *models.Account, expectedHash string) (*models.TokenPair, error) {
	const op = "service.token.issueSession"

	lg := log.From(ctx)

	if acc == nil || acc.ID == uuid.Nil {
		lg.Error("invariant_violation", slog.String("op", op), slog.String("reason", "account without id"))
		return nil, fail(ErrInvariantViolation)
	}

	claims := s.signer.NewClaims(acc.ID, acc.Email, acc.Roles)
	access, err := s.signer.Sign(claims, claims.ExpiresAt)
	if err != nil {
		lg.Error("access_token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now().UTC()

	for attempt := 0; attempt < maxCollisionAttempts; attempt++ {
		plain, err := s.refresh.Generate()
		if err != nil {
			lg.Error("refresh_rand_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		next := &models.RefreshToken{
			Hash:      tokens.HashRefreshToken(plain),
			ExpiresAt: now.Add(tokens.RefreshTokenTTL),
		}

		ok, err := s.store.SaveRefreshToken(ctx, acc.ID, expectedHash, next)
		if err != nil {
			if errors.Is(err, storage.ErrTokenCollision) {
				// Редкая коллизия — пробуем сгенерировать заново.
				continue
			}
			if errors.Is(err, storage.ErrNotFound) {
				return nil, fail(ErrUserNotFound)
			}

			lg.Error("save_refresh_token_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if !ok {
			return nil, errStaleSession
		}

		s.cacheIssued(ctx, acc.ID, expectedHash, next)

		return &models.TokenPair{
			AccessToken:      access,
			RefreshToken:     plain,
			AccessExpiresAt:  claims.ExpiresAt,
			RefreshExpiresAt: next.ExpiresAt,
		}, nil
	}

	lg.Error("refresh_collision_exceeded", slog.String("op", op))

	return nil, fmt.Errorf("%s: %w", op, storage.ErrTokenCollision)
}

// startSession выпускает сессию при входе/регистрации, вытесняя текущую.
// Если текущую параллельно поменяли, перечитывает учётную запись и повторяет.
func (s *Service) startSession(ctx context.Context, acc *models.Account) (*models.TokenPair, error) {
	const op = "service.token.startSession"

	for attempt := 0; attempt < maxSwapAttempts; attempt++ {
		pair, err := s.issueSession(ctx, acc, acc.RefreshHash())
		if !errors.Is(err, errStaleSession) {
			return pair, err
		}

		metrics.RotationConflicts.Inc()

		fresh, err := s.store.FindByID(ctx, acc.ID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, fail(ErrUserNotFound)
			}

			return nil, fmt.Errorf("%s: %w", op, err)
		}
		acc = fresh
	}

	return nil, fmt.Errorf("%s: %w", op, errStaleSession)
}

// endSession очищает refresh-токен учётной записи, если он всё ещё равен hash.
func (s *Service) endSession(ctx context.Context, acc *models.Account, hash string) (bool, error) {
	const op = "service.token.endSession"

	ok, err := s.store.SaveRefreshToken(ctx, acc.ID, hash, nil)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, fail(ErrUserNotFound)
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	if ok {
		var ttl time.Duration
		if acc.Refresh != nil {
			ttl = acc.Refresh.ExpiresAt.Sub(s.now())
		}
		s.cacheRevoked(ctx, hash, ttl)
	}

	return ok, nil
}

// cacheIssued отражает выпуск нового токена в кэше. Ошибки кэша не фатальны.
func (s *Service) cacheIssued(ctx context.Context, accountID uuid.UUID, oldHash string, next *models.RefreshToken) {
	if s.rcache == nil {
		return
	}

	entry := &cache.RefreshEntry{AccountID: accountID, ExpiresAt: next.ExpiresAt}
	if err := s.rcache.Set(ctx, next.Hash, entry, next.ExpiresAt.Sub(s.now())); err != nil {
		log.From(ctx).Warn("refresh_cache_set_failed", slog.String("err", err.Error()))
	}

	if oldHash != "" {
		s.cacheRevoked(ctx, oldHash, tokens.RefreshTokenTTL)
	}
}

func (s *Service) cacheRevoked(ctx context.Context, hash string, ttl time.Duration) {
	if s.rcache == nil || hash == "" {
		return
	}

	if ttl <= 0 {
		ttl = time.Minute
	}

	if err := s.rcache.MarkRevoked(ctx, hash, ttl); err != nil {
		log.From(ctx).Warn("refresh_cache_revoke_failed",
			slog.String("token", redact.Fingerprint(hash)),
			slog.String("err", err.Error()),
		)
	}
}

// revokedInCache сообщает, что кэш уже знает токен как использованный.
func (s *Service) revokedInCache(ctx context.Context, hash string) bool {
	if s.rcache == nil {
		return false
	}

	e, ok, err := s.rcache.Get(ctx, hash)
	if err != nil {
		log.From(ctx).Warn("refresh_cache_get_failed", slog.String("err", err.Error()))
		return false
	}

	return ok && e.Revoked
}
