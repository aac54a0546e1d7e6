// storage описывает контракт хранилища учётных данных: учётные записи,
// пароли, роли и единственный refresh-токен на учётную запись.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-fitness-tracker/internal/models"
)

var (
	// ErrNotFound — запись не найдена (учётная запись/роль).
	ErrNotFound = errors.New("not found")
	// ErrEmailTaken — e-mail уже занят.
	ErrEmailTaken = errors.New("email already taken")
	// ErrUsernameTaken — username уже занят.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrRoleExists — роль с таким именем уже есть.
	ErrRoleExists = errors.New("role already exists")
	// ErrInvalidPassword — текущий пароль не совпадает.
	ErrInvalidPassword = errors.New("invalid current password")
	// ErrTokenCollision — хэш refresh-токена уже принадлежит другой учётной записи.
	ErrTokenCollision = errors.New("refresh token collision")
)

// AccountStorage выполняет операции над учётными записями и паролями.
type AccountStorage interface {
	// CreateAccount создаёт учётную запись со статусом active и хэшем пароля.
	// Пароль проверяется политикой до записи.
	CreateAccount(ctx context.Context, profile models.Profile, password string) (*models.Account, error)
	// VerifyPassword сверяет пароль с сохранённым хэшем.
	VerifyPassword(ctx context.Context, account *models.Account, password string) (bool, error)
	// ChangePassword меняет пароль при совпадении текущего.
	ChangePassword(ctx context.Context, account *models.Account, current, next string) error
	// FindByEmail находит учётную запись по e-mail (без учёта регистра).
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	// FindByID находит учётную запись по идентификатору.
	FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	// DeleteAccount удаляет учётную запись вместе с назначенными ролями.
	DeleteAccount(ctx context.Context, id uuid.UUID) error
}

// RefreshTokenStorage хранит единственный refresh-токен учётной записи.
type RefreshTokenStorage interface {
	// FindByRefreshToken находит учётную запись по точному совпадению хэша токена.
	FindByRefreshToken(ctx context.Context, hash string) (*models.Account, error)
	// SaveRefreshToken атомарно заменяет refresh-токен учётной записи при
	// условии, что сейчас сохранён expectedHash ("" — токена нет).
	// next == nil очищает хэш и срок действия вместе.
	// Возвращает false, если сохранённое значение уже изменилось.
	SaveRefreshToken(ctx context.Context, accountID uuid.UUID, expectedHash string, next *models.RefreshToken) (bool, error)
	// ClearExpiredRefreshTokens очищает токены, истёкшие к моменту now.
	ClearExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

// RoleStorage хранит роли и их назначения.
type RoleStorage interface {
	// RoleExists сообщает, заведена ли роль.
	RoleExists(ctx context.Context, name string) (bool, error)
	// CreateRole заводит роль; ErrRoleExists, если она уже есть.
	CreateRole(ctx context.Context, name string) error
	// AssignRole назначает роль учётной записи (повторное назначение — no-op).
	AssignRole(ctx context.Context, accountID uuid.UUID, role string) error
}

//go:generate mockgen -destination=../../mocks/credential_store.go -package=mocks github.com/pribylovaa/go-fitness-tracker/internal/storage CredentialStore

// CredentialStore — общий контракт хранилища учётных данных.
type CredentialStore interface {
	AccountStorage
	RefreshTokenStorage
	RoleStorage
	Close()
}
