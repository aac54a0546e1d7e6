package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AccountStatus — состояние учётной записи.
type AccountStatus string

const (
	// AccountStatusActive — статус по умолчанию для новых учётных записей.
	AccountStatusActive AccountStatus = "active"
	// AccountStatusLocked — учётная запись заблокирована.
	AccountStatusLocked AccountStatus = "locked"
)

// DefaultRole — роль, которая назначается каждой новой учётной записи.
const DefaultRole = "User"

// Profile — данные, которые пользователь указывает при регистрации.
type Profile struct {
	FirstName string
	LastName  string
	Username  string
	Email     string
}

// Account — учётная запись пользователя.
//
// Refresh == nil означает, что активной сессии нет: хэш refresh-токена
// и срок его действия хранятся и очищаются только вместе.
type Account struct {
	ID           uuid.UUID
	FirstName    string
	LastName     string
	Username     string
	Email        string
	PasswordHash string
	Roles        []string
	Status       AccountStatus
	Refresh      *RefreshToken
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RefreshHash возвращает хэш текущего refresh-токена или "" если сессии нет.
func (a *Account) RefreshHash() string {
	if a == nil || a.Refresh == nil {
		return ""
	}

	return a.Refresh.Hash
}

// FullName склеивает имя и фамилию.
func (a *Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// View формирует публичное представление учётной записи.
func (a *Account) View() *AccountView {
	roles := make([]string, len(a.Roles))
	copy(roles, a.Roles)

	return &AccountView{
		ID:           a.ID,
		FullName:     a.FullName(),
		Username:     a.Username,
		Email:        a.Email,
		Roles:        roles,
		Status:       a.Status,
		RegisteredAt: a.CreatedAt,
	}
}

// AccountView — публичные данные учётной записи, безопасные для отдачи клиенту.
type AccountView struct {
	ID           uuid.UUID
	FullName     string
	Username     string
	Email        string
	Roles        []string
	Status       AccountStatus
	RegisteredAt time.Time
}
