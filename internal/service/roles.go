package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pribylovaa/go-fitness-tracker/internal/models"
	"github.com/pribylovaa/go-fitness-tracker/internal/pkg/log"
	"github.com/pribylovaa/go-fitness-tracker/internal/storage"
)

// EnsureDefaultRole заводит роль по умолчанию, если её ещё нет. Идемпотентна:
// проигранная гонка с параллельным созданием считается успехом.
func (s *Service) EnsureDefaultRole(ctx context.Context) error {
	const op = "service.roles.EnsureDefaultRole"

	exists, err := s.store.RoleExists(ctx, models.DefaultRole)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if exists {
		return nil
	}

	if err := s.store.CreateRole(ctx, models.DefaultRole); err != nil && !errors.Is(err, storage.ErrRoleExists) {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("default_role_created", slog.String("role", models.DefaultRole))

	return nil
}

// attachDefaultRole назначает новой учётной записи роль по умолчанию.
func (s *Service) attachDefaultRole(ctx context.Context, acc *models.Account) error {
	const op = "service.roles.attachDefaultRole"

	if err := s.EnsureDefaultRole(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.store.AssignRole(ctx, acc.ID, models.DefaultRole); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	acc.Roles = append(acc.Roles, models.DefaultRole)

	return nil
}

// rollbackAccount удаляет недостроенную учётную запись. Выполняется и после
// отмены запроса, чтобы не оставить учётную запись без роли.
func (s *Service) rollbackAccount(ctx context.Context, acc *models.Account, cause error) {
	lg := log.From(ctx)

	if err := s.store.DeleteAccount(context.WithoutCancel(ctx), acc.ID); err != nil {
		lg.Error("registration_rollback_failed",
			slog.String("account_id", acc.ID.String()),
			slog.String("cause", cause.Error()),
			slog.String("err", err.Error()),
		)
		return
	}

	lg.Warn("registration_rolled_back",
		slog.String("account_id", acc.ID.String()),
		slog.String("cause", cause.Error()),
	)
}
