package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/go-fitness-tracker/internal/models"
	"github.com/pribylovaa/go-fitness-tracker/internal/storage"
)

// FindByRefreshToken находит учётную запись по хэшу refresh-токена.
func (s *Storage) FindByRefreshToken(ctx context.Context, hash string) (*models.Account, error) {
	const op = "storage.postgres.FindByRefreshToken"

	if hash == "" {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	acc, err := s.queryAccount(ctx, selectAccount+` WHERE a.refresh_token_hash = $1`, hash)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return acc, nil
}

// SaveRefreshToken заменяет refresh-токен одним условным UPDATE:
// запись меняется, только если в строке всё ещё лежит expectedHash.
//
//	(true, nil)  — токен записан;
//	(false, nil) — значение изменилось конкурентно (ротация/logout/вход);
//	(false, ErrNotFound) — учётной записи нет.
func (s *Storage) SaveRefreshToken(ctx context.Context, accountID uuid.UUID, expectedHash string, next *models.RefreshToken) (bool, error) {
	const op = "storage.postgres.SaveRefreshToken"

	var (
		expected  *string
		newHash   *string
		newExpiry *time.Time
	)
	if expectedHash != "" {
		expected = &expectedHash
	}
	if next != nil {
		h, exp := next.Hash, next.ExpiresAt.UTC()
		newHash, newExpiry = &h, &exp
	}

	const upd = `
		UPDATE accounts
		SET refresh_token_hash = $3, refresh_token_expires_at = $4, updated_at = now()
		WHERE id = $1 AND refresh_token_hash IS NOT DISTINCT FROM $2::text
	`

	tag, err := s.db.Exec(ctx, upd, accountID, expected, newHash, newExpiry)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return false, fmt.Errorf("%s: %w", op, storage.ErrTokenCollision)
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if !exists {
		return false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return false, nil
}

// ClearExpiredRefreshTokens очищает просроченные refresh-токены.
func (s *Storage) ClearExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.postgres.ClearExpiredRefreshTokens"

	query := `
		UPDATE accounts
		SET refresh_token_hash = NULL, refresh_token_expires_at = NULL, updated_at = now()
		WHERE refresh_token_expires_at < $1
	`

	tag, err := s.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}
