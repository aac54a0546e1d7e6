package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-fitness-tracker/internal/models"
	"github.com/pribylovaa/go-fitness-tracker/internal/storage"
	"github.com/pribylovaa/go-fitness-tracker/internal/tokens"
	"github.com/pribylovaa/go-fitness-tracker/mocks"
)

func testSigner(t *testing.T) *tokens.Signer {
	t.Helper()

	s, err := tokens.NewSigner(tokens.SignerConfig{
		Key:      "unit-secret",
		Issuer:   "fitness-auth",
		Audience: []string{"fitness-api"},
		TTL:      15 * time.Minute,
	})
	require.NoError(t, err)

	return s
}

func newMockSvc(t *testing.T) (*Service, *mocks.MockCredentialStore) {
	t.Helper()

	ctrl := gomock.NewController(t)
	st := mocks.NewMockCredentialStore(ctrl)

	return New(st, testSigner(t)), st
}

func newAccount() *models.Account {
	return &models.Account{
		ID:        uuid.New(),
		Username:  "runner",
		Email:     "user@example.com",
		Roles:     []string{models.DefaultRole},
		Status:    models.AccountStatusActive,
		CreatedAt: time.Now().UTC(),
	}
}

func withSession(acc *models.Account, hash string, expiresAt time.Time) *models.Account {
	acc.Refresh = &models.RefreshToken{Hash: hash, ExpiresAt: expiresAt}
	return acc
}

func validInput() RegisterInput {
	return RegisterInput{
		FirstName: "Ann",
		LastName:  "Lee",
		Username:  "runner",
		Email:     "User@Example.com",
		Password:  "Abcdef1!",
	}
}

func TestRegister_OK(t *testing.T) {
	t.Parallel()

	svc, st := newMockSvc(t)
	acc := newAccount()
	acc.Roles = nil

	gomock.InOrder(
		st.EXPECT().CreateAccount(gomock.Any(), gomock.Any(), "Abcdef1!").
			DoAndReturn(func(_ context.Context, p models.Profile, _ string) (*models.Account, error) {
				require.Equal(t, "user@example.com", p.Email)
				require.Equal(t, "runner", p.Username)
				return acc, nil
			}),
		st.EXPECT().RoleExists(gomock.Any(), models.DefaultRole).Return(true, nil),
		st.EXPECT().AssignRole(gomock.Any(), acc.ID, models.DefaultRole).Return(nil),
		st.EXPECT().SaveRefreshToken(gomock.Any(), acc.ID, "", gomock.Any()).Return(true, nil),
	)

	res, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)
	require.NotEmpty(t, res.Tokens.AccessToken)
	require.NotEmpty(t, res.Tokens.RefreshToken)
	require.Equal(t, acc.ID, res.Account.ID)
	require.Equal(t, []string{models.DefaultRole}, res.Account.Roles)
	require.WithinDuration(t, time.Now().Add(tokens.RefreshTokenTTL), res.Tokens.RefreshExpiresAt, time.Second)
}

func TestRegister_InvalidInput(t *testing.T) {
	t.Parallel()

	svc, _ := newMockSvc(t)

	cases := map[string]func(in *RegisterInput){
		"bad email":      func(in *RegisterInput) { in.Email = "not-an-email" },
		"empty username": func(in *RegisterInput) { in.Username = "  " },
		"empty password": func(in *RegisterInput) { in.Password = "" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			mutate(&in)

			_, err := svc.Register(context.Background(), in)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestRegister_EmailTaken(t *testing.T) {
	t.Parallel()

	svc, st := newMockSvc(t)
	st.EXPECT().CreateAccount(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, storage.ErrEmailTaken)

	_, err := svc.Register(context.Background(), validInput())
	require.ErrorIs(t, err, ErrEmailAlreadyExists)
}

func TestRegister_PasswordPolicy_AllViolations(t *testing.T) {
	t.Parallel()

	svc, st := newMockSvc(t)
	st.EXPECT().CreateAccount(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.Join(storage.ErrPasswordTooShort, storage.ErrPasswordRequiresDigit))

	_, err := svc.Register(context.Background(), validInput())
	require.ErrorIs(t, err, ErrPasswordTooShort)
	require.ErrorIs(t, err, ErrPasswordRequiresDigit)
	require.Len(t, Errors(err), 2)
}

func TestRegister_RoleAssignFails_RollsBack(t *testing.T) {
	t.Parallel()

	svc, st := newMockSvc(t)
	acc := newAccount()

	st.EXPECT().CreateAccount(gomock.Any(), gomock.Any(), gomock.Any()).Return(acc, nil)
	st.EXPECT().RoleExists(gomock.Any(), models.DefaultRole).Return(true, nil)
	st.EXPECT().AssignRole(gomock.Any(), acc.ID, models.DefaultRole).Return(errors.New("db down"))
	st.EXPECT().DeleteAccount(gomock.Any(), acc.ID).Return(nil)

	_, err := svc.Register(context.Background(), validInput())
	require.ErrorIs(t, err, ErrRegistrationFailed)
}

func TestRegister_SessionFails_RollsBack(t *testing.T) {
	t.Parallel()

	svc, st := newMockSvc(t)
	acc := newAccount()

	st.EXPECT().CreateAccount(gomock.Any(), gomock.Any(), gomock.Any()).Return(acc, nil)
	st.EXPECT().RoleExists(gomock.Any(), models.DefaultRole).Return(false, nil)
	st.EXPECT().CreateRole(gomock.Any(), models.DefaultRole).Return(storage.ErrRoleExists)
	st.EXPECT().AssignRole(gomock.Any(), acc.ID, models.DefaultRole).Return(nil)
	st.EXPECT().SaveRefreshToken(gomock.Any(), acc.ID, "", gomock.Any()).Return(false, errors.New("db down"))
	st.EXPECT().DeleteAccount(gomock.Any(), acc.ID).Return(nil)

	_, err := svc.Register(context.Background(), validInput())
	require.ErrorIs(t, err, ErrRegistrationFailed)
}

func TestLogin_StorageError_Propagated(t *testing.T) {
	t.Parallel()

	svc, st := newMockSvc(t)
	st.EXPECT().FindByEmail(gomock.Any(), "user@example.com").Return(nil, errors.New("db down"))

	_, err := svc.Login(context.Background(), "user@example.com", "Abcdef1!")
	require.Error(t, err)
	require.Nil(t, Errors(err))
}

func TestLogin_Locked(t *testing.T) {
	t.Parallel()

	svc, st := newMockSvc(t)
	acc := newAccount()
	acc.Status = models.AccountStatusLocked

	st.EXPECT().FindByEmail(gomock.Any(), acc.Email).Return(acc, nil)
	st.EXPECT().VerifyPassword(gomock.Any(), acc, "Abcdef1!").Return(true, nil)

	_, err := svc.Login(context.Background(), acc.Email, "Abcdef1!")
	require.ErrorIs(t, err, ErrAccountLocked)
}

func TestLogin_ConcurrentSessionChange_Rereads(t *testing.T) {
	t.Parallel()

	svc, st := newMockSvc(t)
	acc := withSession(newAccount(), "h-old", time.Now().Add(time.Hour))
	fresh := withSession(newAccount(), "h-other", time.Now().Add(time.Hour))
	fresh.ID = acc.ID

	gomock.InOrder(
		st.EXPECT().FindByEmail(gomock.Any(), acc.Email).Return(acc, nil),
		st.EXPECT().VerifyPassword(gomock.Any(), acc, "Abcdef1!").Return(true, nil),
		st.EXPECT().SaveRefreshToken(gomock.Any(), acc.ID, "h-old", gomock.Any()).Return(false, nil),
		st.EXPECT().FindByID(gomock.Any(), acc.ID).Return(fresh, nil),
		st.EXPECT().SaveRefreshToken(gomock.Any(), acc.ID, "h-other", gomock.Any()).Return(true, nil),
	)

	res, err := svc.Login(context.Background(), acc.Email, "Abcdef1!")
	require.NoError(t, err)
	require.NotEmpty(t, res.Tokens.RefreshToken)
}

func TestLogin_AccountDeletedMidway_LoginFailed(t *testing.T) {
	t.Parallel()

	svc, st := newMockSvc(t)
	acc := newAccount()

	st.EXPECT().FindByEmail(gomock.Any(), acc.Email).Return(acc, nil)
	st.EXPECT().VerifyPassword(gomock.Any(), acc, "Abcdef1!").Return(true, nil)
	st.EXPECT().SaveRefreshToken(gomock.Any(), acc.ID, "", gomock.Any()).Return(false, storage.ErrNotFound)

	_, err := svc.Login(context.Background(), acc.Email, "Abcdef1!")
	require.ErrorIs(t, err, ErrLoginFailed)
	require.NotErrorIs(t, err, ErrUserNotFound)
}

func TestRotateTokens_Empty(t *testing.T) {
	t.Parallel()

	svc, _ := newMockSvc(t)

	_, err := svc.RotateTokens(context.Background(), "")
	require.ErrorIs(t, err, ErrJwt)
}

func TestRotateTokens_StaleWrite_JwtError(t *testing.T) {
	t.Parallel()

	svc, st := newMockSvc(t)
	hash := tokens.HashRefreshToken("presented")
	acc := withSession(newAccount(), hash, time.Now().Add(time.Hour))

	st.EXPECT().FindByRefreshToken(gomock.Any(), hash).Return(acc, nil)
	st.EXPECT().SaveRefreshToken(gomock.Any(), acc.ID, hash, gomock.Any()).Return(false, nil)

	_, err := svc.RotateTokens(context.Background(), "presented")
	require.ErrorIs(t, err, ErrJwt)
}

func TestRotateTokens_Collision_Retries(t *testing.T) {
	t.Parallel()

	svc, st := newMockSvc(t)
	hash := tokens.HashRefreshToken("presented")
	acc := withSession(newAccount(), hash, time.Now().Add(time.Hour))

	st.EXPECT().FindByRefreshToken(gomock.Any(), hash).Return(acc, nil)
	gomock.InOrder(
		st.EXPECT().SaveRefreshToken(gomock.Any(), acc.ID, hash, gomock.Any()).Return(false, storage.ErrTokenCollision),
		st.EXPECT().SaveRefreshToken(gomock.Any(), acc.ID, hash, gomock.Any()).Return(true, nil),
	)

	res, err := svc.RotateTokens(context.Background(), "presented")
	require.NoError(t, err)
	require.NotEqual(t, "presented", res.Tokens.RefreshToken)
	require.Nil(t, res.Account)
}

func TestRotateTokens_AccountDeletedMidway_JwtError(t *testing.T) {
	t.Parallel()

	svc, st := newMockSvc(t)
	hash := tokens.HashRefreshToken("presented")
	acc := withSession(newAccount(), hash, time.Now().Add(time.Hour))

	st.EXPECT().FindByRefreshToken(gomock.Any(), hash).Return(acc, nil)
	st.EXPECT().SaveRefreshToken(gomock.Any(), acc.ID, hash, gomock.Any()).Return(false, storage.ErrNotFound)

	_, err := svc.RotateTokens(context.Background(), "presented")
	require.ErrorIs(t, err, ErrJwt)
	require.NotErrorIs(t, err, ErrUserNotFound)
}

func TestRotateTokens_NilAccountID_InvariantViolation(t *testing.T) {
	t.Parallel()

	svc, st := newMockSvc(t)
	hash := tokens.HashRefreshToken("presented")
	acc := withSession(newAccount(), hash, time.Now().Add(time.Hour))
	acc.ID = uuid.Nil

	st.EXPECT().FindByRefreshToken(gomock.Any(), hash).Return(acc, nil)

	_, err := svc.RotateTokens(context.Background(), "presented")
	require.ErrorIs(t, err, ErrInvariantViolation)
}

func TestRotateTokens_StorageError_Propagated(t *testing.T) {
	t.Parallel()

	svc, st := newMockSvc(t)
	st.EXPECT().FindByRefreshToken(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))

	_, err := svc.RotateTokens(context.Background(), "presented")
	require.Error(t, err)
	require.Nil(t, Errors(err))
}

func TestLogout_Empty_Missing(t *testing.T) {
	t.Parallel()

	svc, _ := newMockSvc(t)

	err := svc.Logout(context.Background(), "")
	require.ErrorIs(t, err, ErrRefreshTokenMissing)
	require.Equal(t, "Refresh token is missing", Errors(err)[0].Description)
}

func TestLogout_RotatedConcurrently_NotFound(t *testing.T) {
	t.Parallel()

	svc, st := newMockSvc(t)
	hash := tokens.HashRefreshToken("presented")
	acc := withSession(newAccount(), hash, time.Now().Add(time.Hour))

	st.EXPECT().FindByRefreshToken(gomock.Any(), hash).Return(acc, nil)
	st.EXPECT().SaveRefreshToken(gomock.Any(), acc.ID, hash, nil).Return(false, nil)

	err := svc.Logout(context.Background(), "presented")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestChangePassword_NilID(t *testing.T) {
	t.Parallel()

	svc, _ := newMockSvc(t)

	err := svc.ChangePassword(context.Background(), uuid.Nil, "Abcdef1!", "Ghijkl2@")
	require.ErrorIs(t, err, ErrInvariantViolation)
}

func TestChangePassword_ClearsRotatedSession(t *testing.T) {
	t.Parallel()

	svc, st := newMockSvc(t)
	acc := withSession(newAccount(), "h1", time.Now().Add(time.Hour))
	rotated := withSession(newAccount(), "h2", time.Now().Add(time.Hour))
	rotated.ID = acc.ID

	gomock.InOrder(
		st.EXPECT().FindByID(gomock.Any(), acc.ID).Return(acc, nil),
		st.EXPECT().ChangePassword(gomock.Any(), acc, "Abcdef1!", "Ghijkl2@").Return(nil),
		st.EXPECT().SaveRefreshToken(gomock.Any(), acc.ID, "h1", nil).Return(false, nil),
		st.EXPECT().FindByID(gomock.Any(), acc.ID).Return(rotated, nil),
		st.EXPECT().SaveRefreshToken(gomock.Any(), acc.ID, "h2", nil).Return(true, nil),
	)

	require.NoError(t, svc.ChangePassword(context.Background(), acc.ID, "Abcdef1!", "Ghijkl2@"))
}

func TestChangePassword_NoSession_OK(t *testing.T) {
	t.Parallel()

	svc, st := newMockSvc(t)
	acc := newAccount()

	st.EXPECT().FindByID(gomock.Any(), acc.ID).Return(acc, nil)
	st.EXPECT().ChangePassword(gomock.Any(), acc, "Abcdef1!", "Ghijkl2@").Return(nil)

	require.NoError(t, svc.ChangePassword(context.Background(), acc.ID, "Abcdef1!", "Ghijkl2@"))
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	t.Parallel()

	svc, st := newMockSvc(t)
	acc := newAccount()

	st.EXPECT().FindByID(gomock.Any(), acc.ID).Return(acc, nil)
	st.EXPECT().ChangePassword(gomock.Any(), acc, "wrong", "Ghijkl2@").
		Return(storage.ErrInvalidPassword)

	err := svc.ChangePassword(context.Background(), acc.ID, "wrong", "Ghijkl2@")
	require.ErrorIs(t, err, ErrInvalidCurrentPassword)
}

func TestEnsureDefaultRole_CreatesOnce(t *testing.T) {
	t.Parallel()

	svc, st := newMockSvc(t)
	gomock.InOrder(
		st.EXPECT().RoleExists(gomock.Any(), models.DefaultRole).Return(false, nil),
		st.EXPECT().CreateRole(gomock.Any(), models.DefaultRole).Return(nil),
		st.EXPECT().RoleExists(gomock.Any(), models.DefaultRole).Return(true, nil),
	)

	require.NoError(t, svc.EnsureDefaultRole(context.Background()))
	require.NoError(t, svc.EnsureDefaultRole(context.Background()))
}

func TestPurgeExpiredSessions(t *testing.T) {
	t.Parallel()

	svc, st := newMockSvc(t)
	st.EXPECT().ClearExpiredRefreshTokens(gomock.Any(), gomock.Any()).Return(int64(3), nil)

	n, err := svc.PurgeExpiredSessions(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}

func TestErrors_InfrastructureIsNil(t *testing.T) {
	t.Parallel()

	require.Nil(t, Errors(errors.New("boom")))
	require.Equal(t, []*Error{ErrJwt}, Errors(fail(ErrJwt)))
	require.ErrorIs(t, fail(ErrRefreshTokenMissing), ErrJwt)
}
