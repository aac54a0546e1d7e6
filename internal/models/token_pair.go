package models

import "time"

// TokenPair — пара токенов, выдаваемая при регистрации, входе и ротации.
//
// Описание:
//   - AccessToken — короткоживущий JWT для доступа к API;
//   - RefreshToken — случайный секрет, который клиент хранит в cookie
//     и предъявляет для ротации; на сервере хранится только его хэш;
//   - AccessExpiresAt и RefreshExpiresAt — моменты истечения (UTC).
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// AuthResult — результат успешной регистрации, входа или ротации.
// Account заполняется только при регистрации и входе.
type AuthResult struct {
	Tokens  TokenPair
	Account *AccountView
}
