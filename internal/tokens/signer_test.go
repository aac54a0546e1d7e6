package tokens

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testSignerCfg() SignerConfig {
	return SignerConfig{
		Key:      "unit-test-secret",
		Issuer:   "fitness-auth",
		Audience: []string{"fitness-api"},
		TTL:      15 * time.Minute,
	}
}

// clock — управляемые часы для проверки границы exp.
type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestSigner(t *testing.T, c *clock) *Signer {
	t.Helper()
	s, err := NewSigner(testSignerCfg(), WithClock(c.now))
	require.NoError(t, err)
	return s
}

func TestNewSigner_EmptyKey(t *testing.T) {
	t.Parallel()

	cfg := testSignerCfg()
	cfg.Key = ""

	_, err := NewSigner(cfg)
	require.ErrorIs(t, err, ErrEmptyKey)
}

func TestNewSigner_NonPositiveTTL(t *testing.T) {
	t.Parallel()

	cfg := testSignerCfg()
	cfg.TTL = 0

	_, err := NewSigner(cfg)
	require.Error(t, err)
}

func TestSign_Verify_RoundTrip(t *testing.T) {
	t.Parallel()

	c := &clock{t: time.Now().UTC().Truncate(time.Second)}
	s := newTestSigner(t, c)

	uid := uuid.New()
	claims := s.NewClaims(uid, "user@example.com", []string{"User"})

	tok, err := s.Sign(claims, claims.ExpiresAt)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	got, err := s.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, uid, got.Subject)
	require.Equal(t, "user@example.com", got.Email)
	require.Equal(t, claims.TokenID, got.TokenID)
	require.Equal(t, []string{"User"}, got.Roles)
	require.Equal(t, "fitness-auth", got.Issuer)
	require.Equal(t, []string{"fitness-api"}, got.Audience)
	require.True(t, claims.ExpiresAt.Equal(got.ExpiresAt))
}

func TestVerify_FailsAtAndAfterExpiry(t *testing.T) {
	t.Parallel()

	c := &clock{t: time.Now().UTC().Truncate(time.Second)}
	s := newTestSigner(t, c)

	exp := c.t.Add(time.Minute)
	tok, err := s.Sign(s.NewClaims(uuid.New(), "a@b.c", nil), exp)
	require.NoError(t, err)

	c.t = exp.Add(-time.Second)
	_, err = s.Verify(tok)
	require.NoError(t, err)

	c.t = exp
	_, err = s.Verify(tok)
	require.ErrorIs(t, err, ErrTokenExpired)

	c.t = exp.Add(time.Second)
	_, err = s.Verify(tok)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestSign_FreshTokenIDPerClaims(t *testing.T) {
	t.Parallel()

	s, err := NewSigner(testSignerCfg())
	require.NoError(t, err)

	uid := uuid.New()
	c1 := s.NewClaims(uid, "a@b.c", nil)
	c2 := s.NewClaims(uid, "a@b.c", nil)
	require.NotEqual(t, c1.TokenID, c2.TokenID)

	// Пустой jti заполняется при подписи.
	c1.TokenID = ""
	tok, err := s.Sign(c1, c1.ExpiresAt)
	require.NoError(t, err)

	got, err := s.Verify(tok)
	require.NoError(t, err)
	require.NotEmpty(t, got.TokenID)
}

func TestSign_NilSubject(t *testing.T) {
	t.Parallel()

	s, err := NewSigner(testSignerCfg())
	require.NoError(t, err)

	_, err = s.Sign(Claims{Email: "a@b.c"}, time.Now().Add(time.Minute))
	require.Error(t, err)
}

func TestVerify_Rejects(t *testing.T) {
	t.Parallel()

	cfg := testSignerCfg()
	s, err := NewSigner(cfg)
	require.NoError(t, err)

	uid := uuid.New()
	now := time.Now().UTC()

	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub":   uid.String(),
			"email": "a@b.c",
			"jti":   uuid.NewString(),
			"iss":   cfg.Issuer,
			"aud":   cfg.Audience,
			"exp":   now.Add(cfg.TTL).Unix(),
			"iat":   now.Unix(),
		}
	}

	sign := func(t *testing.T, m jwt.SigningMethod, key string, c jwt.MapClaims) string {
		t.Helper()
		tok, err := jwt.NewWithClaims(m, c).SignedString([]byte(key))
		require.NoError(t, err)
		return tok
	}

	t.Run("wrong alg", func(t *testing.T) {
		_, err := s.Verify(sign(t, jwt.SigningMethodHS512, cfg.Key, base()))
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong key", func(t *testing.T) {
		_, err := s.Verify(sign(t, jwt.SigningMethodHS256, "other-secret", base()))
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		c := base()
		c["iss"] = "another-issuer"
		_, err := s.Verify(sign(t, jwt.SigningMethodHS256, cfg.Key, c))
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong audience", func(t *testing.T) {
		c := base()
		c["aud"] = []string{"unexpected-aud"}
		_, err := s.Verify(sign(t, jwt.SigningMethodHS256, cfg.Key, c))
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("no exp", func(t *testing.T) {
		c := base()
		delete(c, "exp")
		_, err := s.Verify(sign(t, jwt.SigningMethodHS256, cfg.Key, c))
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("bad subject", func(t *testing.T) {
		c := base()
		c["sub"] = "not-a-uuid"
		_, err := s.Verify(sign(t, jwt.SigningMethodHS256, cfg.Key, c))
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := s.Verify("not.a.jwt")
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}
