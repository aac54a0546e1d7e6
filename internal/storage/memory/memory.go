// memory — хранилище учётных данных в памяти процесса. Используется
// в окружении local без PostgreSQL и в сценарных тестах.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-fitness-tracker/internal/models"
	"github.com/pribylovaa/go-fitness-tracker/internal/storage"
)

type Storage struct {
	policy     storage.PasswordPolicy
	accounts   map[uuid.UUID]*models.Account
	byEmail    map[string]uuid.UUID
	byUsername map[string]uuid.UUID
	byRefresh  map[string]uuid.UUID
	roles      map[string]struct{}
	mu         sync.RWMutex
}

// New создаёт пустое хранилище с заданной политикой паролей.
func New(policy storage.PasswordPolicy) *Storage {
	return &Storage{
		policy:     policy,
		accounts:   make(map[uuid.UUID]*models.Account),
		byEmail:    make(map[string]uuid.UUID),
		byUsername: make(map[string]uuid.UUID),
		byRefresh:  make(map[string]uuid.UUID),
		roles:      make(map[string]struct{}),
	}
}

func (s *Storage) CreateAccount(ctx context.Context, profile models.Profile, password string) (*models.Account, error) {
	const op = "storage.memory.CreateAccount"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.policy.Validate(password); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := storage.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	email := strings.ToLower(strings.TrimSpace(profile.Email))
	username := strings.ToLower(strings.TrimSpace(profile.Username))

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrEmailTaken)
	}
	if _, ok := s.byUsername[username]; ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrUsernameTaken)
	}

	now := time.Now().UTC()
	acc := &models.Account{
		ID:           uuid.New(),
		FirstName:    profile.FirstName,
		LastName:     profile.LastName,
		Username:     strings.TrimSpace(profile.Username),
		Email:        email,
		PasswordHash: hash,
		Status:       models.AccountStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.accounts[acc.ID] = acc
	s.byEmail[email] = acc.ID
	s.byUsername[username] = acc.ID

	return clone(acc), nil
}

func (s *Storage) VerifyPassword(ctx context.Context, account *models.Account, password string) (bool, error) {
	const op = "storage.memory.VerifyPassword"

	s.mu.RLock()
	acc, ok := s.accounts[account.ID]
	var hash string
	if ok {
		hash = acc.PasswordHash
	}
	s.mu.RUnlock()

	if !ok {
		return false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return storage.CheckPassword(hash, password), nil
}

func (s *Storage) ChangePassword(ctx context.Context, account *models.Account, current, next string) error {
	const op = "storage.memory.ChangePassword"

	if err := s.policy.Validate(next); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	hash, err := storage.HashPassword(next)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[account.ID]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	if !storage.CheckPassword(acc.PasswordHash, current) {
		return fmt.Errorf("%s: %w", op, storage.ErrInvalidPassword)
	}

	acc.PasswordHash = hash
	acc.UpdatedAt = time.Now().UTC()

	return nil
}

func (s *Storage) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	const op = "storage.memory.FindByEmail"

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return clone(s.accounts[id]), nil
}

func (s *Storage) FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	const op = "storage.memory.FindByID"

	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return clone(acc), nil
}

func (s *Storage) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	const op = "storage.memory.DeleteAccount"

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	delete(s.byEmail, acc.Email)
	delete(s.byUsername, strings.ToLower(acc.Username))
	if acc.Refresh != nil {
		delete(s.byRefresh, acc.Refresh.Hash)
	}
	delete(s.accounts, id)

	return nil
}

func (s *Storage) FindByRefreshToken(ctx context.Context, hash string) (*models.Account, error) {
	const op = "storage.memory.FindByRefreshToken"

	if hash == "" {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byRefresh[hash]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return clone(s.accounts[id]), nil
}

func (s *Storage) SaveRefreshToken(ctx context.Context, accountID uuid.UUID, expectedHash string, next *models.RefreshToken) (bool, error) {
	const op = "storage.memory.SaveRefreshToken"

	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[accountID]
	if !ok {
		return false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	if acc.RefreshHash() != expectedHash {
		return false, nil
	}

	if next != nil {
		if owner, taken := s.byRefresh[next.Hash]; taken && owner != accountID {
			return false, fmt.Errorf("%s: %w", op, storage.ErrTokenCollision)
		}
	}

	if acc.Refresh != nil {
		delete(s.byRefresh, acc.Refresh.Hash)
	}

	acc.Refresh = nil
	if next != nil {
		rt := *next
		acc.Refresh = &rt
		s.byRefresh[rt.Hash] = accountID
	}
	acc.UpdatedAt = time.Now().UTC()

	return true, nil
}

func (s *Storage) ClearExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, acc := range s.accounts {
		if acc.Refresh != nil && acc.Refresh.Expired(now) {
			delete(s.byRefresh, acc.Refresh.Hash)
			acc.Refresh = nil
			n++
		}
	}

	return n, nil
}

func (s *Storage) RoleExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.roles[name]
	return ok, nil
}

func (s *Storage) CreateRole(ctx context.Context, name string) error {
	const op = "storage.memory.CreateRole"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[name]; ok {
		return fmt.Errorf("%s: %w", op, storage.ErrRoleExists)
	}
	s.roles[name] = struct{}{}

	return nil
}

func (s *Storage) AssignRole(ctx context.Context, accountID uuid.UUID, role string) error {
	const op = "storage.memory.AssignRole"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[role]; !ok {
		return fmt.Errorf("%s: role %q: %w", op, role, storage.ErrNotFound)
	}

	acc, ok := s.accounts[accountID]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	if !slices.Contains(acc.Roles, role) {
		acc.Roles = append(acc.Roles, role)
	}

	return nil
}

// Close — no-op.
func (s *Storage) Close() {}

func clone(a *models.Account) *models.Account {
	out := *a
	out.Roles = slices.Clone(a.Roles)
	if a.Refresh != nil {
		rt := *a.Refresh
		out.Refresh = &rt
	}

	return &out
}

// Проверка на соответствие интерфейсу CredentialStore.
var _ storage.CredentialStore = (*Storage)(nil)
