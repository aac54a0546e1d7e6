package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/go-fitness-tracker/internal/storage"
)

// RoleExists проверяет, заведена ли роль.
func (s *Storage) RoleExists(ctx context.Context, name string) (bool, error) {
	const op = "storage.postgres.RoleExists"

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM roles WHERE name = $1)`, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}

// CreateRole заводит роль.
func (s *Storage) CreateRole(ctx context.Context, name string) error {
	const op = "storage.postgres.CreateRole"

	_, err := s.db.Exec(ctx, `INSERT INTO roles(name) VALUES ($1)`, name)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrRoleExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// AssignRole назначает роль учётной записи.
func (s *Storage) AssignRole(ctx context.Context, accountID uuid.UUID, role string) error {
	const op = "storage.postgres.AssignRole"

	query := `
		INSERT INTO account_roles(account_id, role_name)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`

	_, err := s.db.Exec(ctx, query, accountID, role)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
