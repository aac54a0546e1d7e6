// tokens выпускает и проверяет access-токены (JWT, HS256) и генерирует
// непрозрачные refresh-токены.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrEmptyKey — ключ подписи не задан.
	ErrEmptyKey = errors.New("signing key is empty")
	// ErrInvalidToken — токен повреждён, подписан чужим ключом или выпущен
	// не для этого issuer/audience.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired — срок действия токена истёк.
	ErrTokenExpired = errors.New("token expired")
)

// Claims — данные, которые кладутся в access-токен.
type Claims struct {
	Subject   uuid.UUID
	Email     string
	TokenID   string
	Roles     []string
	Issuer    string
	Audience  []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type accessClaims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// SignerConfig — параметры Signer.
type SignerConfig struct {
	Key      string
	Issuer   string
	Audience []string
	TTL      time.Duration
}

// Signer подписывает и проверяет access-токены.
// Экземпляр неизменяем и безопасен для конкурентного использования.
type Signer struct {
	key      []byte
	issuer   string
	audience []string
	ttl      time.Duration
	now      func() time.Time
}

// Option настраивает Signer.
type Option func(*Signer)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSigner создаёт Signer. Пустой ключ недопустим.
func NewSigner(cfg SignerConfig, opts ...Option) (*Signer, error) {
	const op = "tokens.NewSigner"

	if cfg.Key == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyKey)
	}

	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("%s: non-positive access token ttl %s", op, cfg.TTL)
	}

	s := &Signer{
		key:      []byte(cfg.Key),
		issuer:   cfg.Issuer,
		audience: append([]string(nil), cfg.Audience...),
		ttl:      cfg.TTL,
		now:      time.Now,
	}

	for _, o := range opts {
		o(s)
	}

	return s, nil
}

// TTL — время жизни выпускаемых access-токенов.
func (s *Signer) TTL() time.Duration { return s.ttl }

// Now — текущее время по часам Signer (UTC).
func (s *Signer) Now() time.Time { return s.now().UTC() }

// NewClaims собирает claims для учётной записи со сроком now+TTL и свежим jti.
func (s *Signer) NewClaims(subject uuid.UUID, email string, roles []string) Claims {
	now := s.Now()

	return Claims{
		Subject:   subject,
		Email:     email,
		TokenID:   uuid.NewString(),
		Roles:     append([]string(nil), roles...),
		Issuer:    s.issuer,
		Audience:  append([]string(nil), s.audience...),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
}

// Sign подписывает claims, срок действия берётся из expiresAt.
// Пустые Issuer/Audience/TokenID заполняются значениями Signer.
func (s *Signer) Sign(c Claims, expiresAt time.Time) (string, error) {
	const op = "tokens.Signer.Sign"

	if len(s.key) == 0 {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyKey)
	}

	if c.Subject == uuid.Nil {
		return "", fmt.Errorf("%s: empty subject", op)
	}

	if c.TokenID == "" {
		c.TokenID = uuid.NewString()
	}
	if c.Issuer == "" {
		c.Issuer = s.issuer
	}
	if len(c.Audience) == 0 {
		c.Audience = s.audience
	}
	if c.IssuedAt.IsZero() {
		c.IssuedAt = s.Now()
	}

	claims := accessClaims{
		Email: c.Email,
		Roles: c.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.Subject.String(),
			ID:        c.TokenID,
			Issuer:    c.Issuer,
			Audience:  jwt.ClaimStrings(c.Audience),
			IssuedAt:  jwt.NewNumericDate(c.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// Verify проверяет подпись, issuer, audience и срок действия без допуска
// на рассинхронизацию часов: токен недействителен начиная с момента exp.
func (s *Signer) Verify(token string) (*Claims, error) {
	const op = "tokens.Signer.Verify"

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(0),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	}
	if len(s.audience) > 0 {
		opts = append(opts, jwt.WithAudience(s.audience...))
	}

	parsed, err := jwt.ParseWithClaims(token, &accessClaims{},
		func(t *jwt.Token) (any, error) {
			return s.key, nil
		},
		opts...,
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	ac, ok := parsed.Claims.(*accessClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	sub, err := uuid.Parse(ac.Subject)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	out := &Claims{
		Subject:  sub,
		Email:    ac.Email,
		TokenID:  ac.ID,
		Roles:    ac.Roles,
		Issuer:   ac.Issuer,
		Audience: []string(ac.Audience),
	}
	if ac.IssuedAt != nil {
		out.IssuedAt = ac.IssuedAt.Time.UTC()
	}
	if ac.ExpiresAt != nil {
		out.ExpiresAt = ac.ExpiresAt.Time.UTC()
	}

	return out, nil
}
