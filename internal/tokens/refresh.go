package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"time"
)

const (
	// RefreshTokenBytes — энтропия refresh-токена (256 бит).
	RefreshTokenBytes = 32
	// RefreshTokenTTL — фиксированный срок жизни refresh-токена.
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// RefreshGenerator выпускает непрозрачные refresh-токены из
// криптографически стойкого источника.
type RefreshGenerator struct {
	src io.Reader
}

// NewRefreshGenerator использует crypto/rand.
func NewRefreshGenerator() *RefreshGenerator {
	return &RefreshGenerator{src: rand.Reader}
}

// Generate возвращает новый токен в base64url без паддинга (cookie-safe).
func (g *RefreshGenerator) Generate() (string, error) {
	const op = "tokens.RefreshGenerator.Generate"

	src := g.src
	if src == nil {
		src = rand.Reader
	}

	b := make([]byte, RefreshTokenBytes)
	if _, err := io.ReadFull(src, b); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashRefreshToken — ключ, под которым refresh-токен хранится в БД и кэше.
func HashRefreshToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
