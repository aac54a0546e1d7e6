package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pribylovaa/go-fitness-tracker/internal/models"
	"github.com/pribylovaa/go-fitness-tracker/internal/storage"
)

// Интеграционные тесты пакета postgres:
//   - поднимают PostgreSQL через testcontainers-go (postgres:16-alpine);
//   - применяют встроенные миграции goose (Storage.Migrate);
//   - проверяют уникальность email/username, условную запись refresh-токена,
//     роли и очистку просроченных токенов.
//
// Запуск локально:
//   GO_TEST_INTEGRATION=1 go test ./internal/storage/postgres -v -race -count=1

// startPostgres поднимает временный PostgreSQL и возвращает мигрированное хранилище.
// Если GO_TEST_INTEGRATION не установлена — тест пропускается.
func startPostgres(t *testing.T) *Storage {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_USER": "user", "POSTGRES_PASSWORD": "pass", "POSTGRES_DB": "db"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://user:pass@%s:%s/db?sslmode=disable", host, port.Port())

	var st *Storage
	require.Eventually(t, func() bool {
		st, err = New(ctx, dsn, storage.DefaultPasswordPolicy())
		return err == nil
	}, 30*time.Second, 500*time.Millisecond)
	t.Cleanup(st.Close)

	require.NoError(t, st.Migrate(ctx))
	return st
}

func profile(email, username string) models.Profile {
	return models.Profile{FirstName: "Ann", LastName: "Lee", Username: username, Email: email}
}

func TestIntegration_CreateAccount_FindByEmail_CaseInsensitive(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	acc, err := st.CreateAccount(ctx, profile("Ann@Example.com", "ann"), "Abcdef1!")
	require.NoError(t, err)
	require.Equal(t, "ann@example.com", acc.Email)

	got, err := st.FindByEmail(ctx, "ANN@EXAMPLE.COM")
	require.NoError(t, err)
	require.Equal(t, acc.ID, got.ID)
	require.Equal(t, models.AccountStatusActive, got.Status)
	require.Empty(t, got.Roles)
	require.Nil(t, got.Refresh)

	ok, err := st.VerifyPassword(ctx, got, "Abcdef1!")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestIntegration_CreateAccount_UniqueViolations(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	_, err := st.CreateAccount(ctx, profile("a@b.c", "ann"), "Abcdef1!")
	require.NoError(t, err)

	_, err = st.CreateAccount(ctx, profile("A@B.C", "bob"), "Abcdef1!")
	require.ErrorIs(t, err, storage.ErrEmailTaken)

	_, err = st.CreateAccount(ctx, profile("x@b.c", "ANN"), "Abcdef1!")
	require.ErrorIs(t, err, storage.ErrUsernameTaken)
}

func TestIntegration_FindByID_NotFound(t *testing.T) {
	st := startPostgres(t)

	_, err := st.FindByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_SaveRefreshToken_Conditional(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	acc, err := st.CreateAccount(ctx, profile("a@b.c", "ann"), "Abcdef1!")
	require.NoError(t, err)

	exp := time.Now().UTC().Add(7 * 24 * time.Hour)
	ok, err := st.SaveRefreshToken(ctx, acc.ID, "", &models.RefreshToken{Hash: "h1", ExpiresAt: exp})
	require.NoError(t, err)
	require.True(t, ok)

	got, err := st.FindByRefreshToken(ctx, "h1")
	require.NoError(t, err)
	require.Equal(t, acc.ID, got.ID)
	require.WithinDuration(t, exp, got.Refresh.ExpiresAt, time.Millisecond)

	ok, err = st.SaveRefreshToken(ctx, acc.ID, "stale", &models.RefreshToken{Hash: "h2", ExpiresAt: exp})
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = st.SaveRefreshToken(ctx, acc.ID, "h1", nil)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = st.FindByRefreshToken(ctx, "h1")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = st.SaveRefreshToken(ctx, uuid.New(), "", nil)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_SaveRefreshToken_ConcurrentSingleWinner(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	acc, err := st.CreateAccount(ctx, profile("a@b.c", "ann"), "Abcdef1!")
	require.NoError(t, err)

	exp := time.Now().UTC().Add(time.Hour)
	_, err = st.SaveRefreshToken(ctx, acc.ID, "", &models.RefreshToken{Hash: "seed", ExpiresAt: exp})
	require.NoError(t, err)

	const n = 16
	var wins, fails atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := st.SaveRefreshToken(ctx, acc.ID, "seed", &models.RefreshToken{Hash: uuid.NewString(), ExpiresAt: exp})
			switch {
			case err != nil:
				fails.Add(1)
			case ok:
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Zero(t, fails.Load())
	require.EqualValues(t, 1, wins.Load())
}

func TestIntegration_Roles_AndDeleteCascade(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	acc, err := st.CreateAccount(ctx, profile("a@b.c", "ann"), "Abcdef1!")
	require.NoError(t, err)

	require.ErrorIs(t, st.AssignRole(ctx, acc.ID, models.DefaultRole), storage.ErrNotFound)

	require.NoError(t, st.CreateRole(ctx, models.DefaultRole))
	require.ErrorIs(t, st.CreateRole(ctx, models.DefaultRole), storage.ErrRoleExists)

	exists, err := st.RoleExists(ctx, models.DefaultRole)
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, st.AssignRole(ctx, acc.ID, models.DefaultRole))
	require.NoError(t, st.AssignRole(ctx, acc.ID, models.DefaultRole))

	got, err := st.FindByID(ctx, acc.ID)
	require.NoError(t, err)
	require.Equal(t, []string{models.DefaultRole}, got.Roles)

	require.NoError(t, st.DeleteAccount(ctx, acc.ID))
	require.ErrorIs(t, st.DeleteAccount(ctx, acc.ID), storage.ErrNotFound)
}

func TestIntegration_ChangePassword(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()

	acc, err := st.CreateAccount(ctx, profile("a@b.c", "ann"), "Abcdef1!")
	require.NoError(t, err)

	require.ErrorIs(t, st.ChangePassword(ctx, acc, "nope", "Newpass1!"), storage.ErrInvalidPassword)
	require.NoError(t, st.ChangePassword(ctx, acc, "Abcdef1!", "Newpass1!"))

	ok, err := st.VerifyPassword(ctx, acc, "Newpass1!")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestIntegration_ClearExpiredRefreshTokens(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC()

	a1, err := st.CreateAccount(ctx, profile("a@b.c", "a"), "Abcdef1!")
	require.NoError(t, err)
	a2, err := st.CreateAccount(ctx, profile("b@b.c", "b"), "Abcdef1!")
	require.NoError(t, err)

	_, err = st.SaveRefreshToken(ctx, a1.ID, "", &models.RefreshToken{Hash: "old", ExpiresAt: now.Add(-time.Minute)})
	require.NoError(t, err)
	_, err = st.SaveRefreshToken(ctx, a2.ID, "", &models.RefreshToken{Hash: "new", ExpiresAt: now.Add(time.Hour)})
	require.NoError(t, err)

	n, err := st.ClearExpiredRefreshTokens(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = st.FindByRefreshToken(ctx, "old")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_CanceledContext(t *testing.T) {
	st := startPostgres(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := st.FindByEmail(ctx, "a@b.c")
	require.ErrorIs(t, err, context.Canceled)
}
