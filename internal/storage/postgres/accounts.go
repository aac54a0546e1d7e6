package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/go-fitness-tracker/internal/models"
	"github.com/pribylovaa/go-fitness-tracker/internal/storage"
)

const selectAccount = `
	SELECT a.id, a.first_name, a.last_name, a.username, a.email, a.password_hash,
	       a.status, a.refresh_token_hash, a.refresh_token_expires_at,
	       a.created_at, a.updated_at,
	       ARRAY(SELECT r.role_name FROM account_roles r WHERE r.account_id = a.id ORDER BY r.role_name)
	FROM accounts a
`

// CreateAccount создает учётную запись.
func (s *Storage) CreateAccount(ctx context.Context, profile models.Profile, password string) (*models.Account, error) {
	const op = "storage.postgres.CreateAccount"

	if err := s.policy.Validate(password); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := storage.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	acc := &models.Account{
		ID:           uuid.New(),
		FirstName:    profile.FirstName,
		LastName:     profile.LastName,
		Username:     strings.TrimSpace(profile.Username),
		Email:        strings.ToLower(strings.TrimSpace(profile.Email)),
		PasswordHash: hash,
		Status:       models.AccountStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	query := `
		INSERT INTO accounts(id, first_name, last_name, username, email, password_hash, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = s.db.Exec(ctx, query,
		acc.ID,
		acc.FirstName,
		acc.LastName,
		acc.Username,
		acc.Email,
		acc.PasswordHash,
		string(acc.Status),
		acc.CreatedAt,
		acc.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			switch pgErr.ConstraintName {
			case "accounts_username_key":
				return nil, fmt.Errorf("%s: %w", op, storage.ErrUsernameTaken)
			default:
				return nil, fmt.Errorf("%s: %w", op, storage.ErrEmailTaken)
			}
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return acc, nil
}

// VerifyPassword сверяет пароль с хэшем из БД.
func (s *Storage) VerifyPassword(ctx context.Context, account *models.Account, password string) (bool, error) {
	const op = "storage.postgres.VerifyPassword"

	var hash string
	err := s.db.QueryRow(ctx, `SELECT password_hash FROM accounts WHERE id = $1`, account.ID).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	return storage.CheckPassword(hash, password), nil
}

// ChangePassword меняет пароль. Обновление условно по старому хэшу,
// поэтому параллельная смена пароля не будет тихо перезаписана.
func (s *Storage) ChangePassword(ctx context.Context, account *models.Account, current, next string) error {
	const op = "storage.postgres.ChangePassword"

	if err := s.policy.Validate(next); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var oldHash string
	err := s.db.QueryRow(ctx, `SELECT password_hash FROM accounts WHERE id = $1`, account.ID).Scan(&oldHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if !storage.CheckPassword(oldHash, current) {
		return fmt.Errorf("%s: %w", op, storage.ErrInvalidPassword)
	}

	newHash, err := storage.HashPassword(next)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `
		UPDATE accounts
		SET password_hash = $3, updated_at = now()
		WHERE id = $1 AND password_hash = $2
	`

	tag, err := s.db.Exec(ctx, query, account.ID, oldHash, newHash)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrInvalidPassword)
	}

	return nil
}

// FindByEmail находит учётную запись по email.
func (s *Storage) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	const op = "storage.postgres.FindByEmail"

	acc, err := s.queryAccount(ctx, selectAccount+` WHERE a.email = $1`, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return acc, nil
}

// FindByID находит учётную запись по ID.
func (s *Storage) FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	const op = "storage.postgres.FindByID"

	acc, err := s.queryAccount(ctx, selectAccount+` WHERE a.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return acc, nil
}

// DeleteAccount удаляет учётную запись; назначения ролей удаляются каскадом.
func (s *Storage) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	const op = "storage.postgres.DeleteAccount"

	tag, err := s.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

func (s *Storage) queryAccount(ctx context.Context, query string, args ...any) (*models.Account, error) {
	var (
		acc       models.Account
		status    string
		rtHash    *string
		rtExpires *time.Time
	)

	err := s.db.QueryRow(ctx, query, args...).Scan(
		&acc.ID,
		&acc.FirstName,
		&acc.LastName,
		&acc.Username,
		&acc.Email,
		&acc.PasswordHash,
		&status,
		&rtHash,
		&rtExpires,
		&acc.CreatedAt,
		&acc.UpdatedAt,
		&acc.Roles,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, err
	}

	acc.Status = models.AccountStatus(status)
	if rtHash != nil && rtExpires != nil {
		acc.Refresh = &models.RefreshToken{Hash: *rtHash, ExpiresAt: rtExpires.UTC()}
	}

	return &acc, nil
}
