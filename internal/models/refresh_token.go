package models

import "time"

// RefreshToken — сохранённое состояние refresh-токена учётной записи.
// Открытое значение токена не хранится, только его хэш.
type RefreshToken struct {
	Hash      string
	ExpiresAt time.Time
}

// Expired сообщает, истёк ли срок действия токена к моменту now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}
