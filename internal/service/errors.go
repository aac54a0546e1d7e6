package service

import (
	"errors"
	"strings"

	"github.com/pribylovaa/go-fitness-tracker/internal/metrics"
	"github.com/pribylovaa/go-fitness-tracker/internal/storage"
)

// Error — типизированная доменная ошибка. Сравнение через errors.Is идёт
// по Code, Description может уточняться в конкретном месте.
type Error struct {
	Code        string
	Description string
}

func (e *Error) Error() string { return e.Code + ": " + e.Description }

// Is сравнивает ошибки по коду.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Доменные ошибки. Сопоставление с HTTP-статусами — в internal/transport/http.
var (
	// ErrLoginFailed — неверная пара e-mail/пароль. Одинаковое сообщение для
	// «нет такого пользователя» и «неверный пароль». HTTP 401.
	ErrLoginFailed = &Error{"Auth.LoginFailed", "Incorrect email or password"}

	// ErrAccountLocked — учётная запись заблокирована. HTTP 403.
	ErrAccountLocked = &Error{"Auth.AccountLocked", "Account is locked"}

	// ErrJwt — refresh-токен отсутствует, не найден или уже использован. HTTP 401.
	ErrJwt = &Error{"Auth.JwtError", "Failed to regenerate auth tokens"}

	// ErrRefreshTokenMissing — пустой refresh-токен при logout. HTTP 400.
	ErrRefreshTokenMissing = &Error{"Auth.JwtError", "Refresh token is missing"}

	// ErrExpiredToken — refresh-токен найден, но истёк. HTTP 401.
	ErrExpiredToken = &Error{"Auth.ExpiredToken", "Refresh token has expired"}

	// ErrUnauthorized — access-токен недействителен или истёк. HTTP 401.
	ErrUnauthorized = &Error{"Auth.Unauthorized", "Access token is invalid or expired"}

	// ErrRegistrationFailed — регистрацию не удалось завершить, учётная запись
	// откатана. HTTP 500.
	ErrRegistrationFailed = &Error{"Auth.RegistrationFailed", "Unexpected error happened during registration"}

	// ErrInvalidCurrentPassword — текущий пароль не совпал. HTTP 400.
	ErrInvalidCurrentPassword = &Error{"Auth.InvalidCurrentPassword", "Entered password does not match the current password"}

	// Нарушения политики паролей. HTTP 400.
	ErrPasswordTooShort                = &Error{"Auth.PasswordTooShort", "Password is too short"}
	ErrPasswordRequiresDigit           = &Error{"Auth.PasswordRequiresDigit", "Password must contain at least one digit ('0'-'9')"}
	ErrPasswordRequiresUpper           = &Error{"Auth.PasswordRequiresUpper", "Password must contain at least one uppercase letter ('A'-'Z')"}
	ErrPasswordRequiresNonAlphanumeric = &Error{"Auth.PasswordRequiresNonAlphanumeric", "Password must contain at least one special character"}

	// ErrEmailAlreadyExists — e-mail занят. HTTP 409.
	ErrEmailAlreadyExists = &Error{"User.EmailAlreadyExists", "Email is taken"}

	// ErrUsernameAlreadyExists — username занят. HTTP 409.
	ErrUsernameAlreadyExists = &Error{"User.UsernameAlreadyExists", "Username is taken"}

	// ErrUserNotFound — учётная запись не найдена. HTTP 404.
	ErrUserNotFound = &Error{"User.NotFound", "User not found"}

	// ErrInvalidInput — входные данные не прошли проверку. HTTP 400.
	ErrInvalidInput = &Error{"Validation.InvalidInput", "The provided input is invalid"}

	// ErrInvariantViolation — нарушено предусловие вызова (например, пустой
	// идентификатор). Ошибка программы, а не пользователя. HTTP 500.
	ErrInvariantViolation = &Error{"General.InvariantViolation", "Internal invariant violated"}
)

// Failure — один или несколько типизированных отказов операции.
// Любая ошибка сервиса, не являющаяся Failure, — инфраструктурный сбой.
type Failure struct {
	Errors []*Error
}

func (f *Failure) Error() string {
	parts := make([]string, 0, len(f.Errors))
	for _, e := range f.Errors {
		parts = append(parts, e.Error())
	}

	return strings.Join(parts, "; ")
}

// Unwrap открывает все ошибки для errors.Is / errors.As.
func (f *Failure) Unwrap() []error {
	out := make([]error, 0, len(f.Errors))
	for _, e := range f.Errors {
		out = append(out, e)
	}

	return out
}

func fail(errs ...*Error) error {
	return &Failure{Errors: errs}
}

// Errors возвращает доменные ошибки из err или nil, если err —
// инфраструктурный сбой.
func Errors(err error) []*Error {
	var f *Failure
	if errors.As(err, &f) {
		return f.Errors
	}

	var e *Error
	if errors.As(err, &e) {
		return []*Error{e}
	}

	return nil
}

// fromStorage переводит ошибки хранилища в доменные.
// ok == false — ошибка не ожидаемая и должна уйти наверх как сбой.
func fromStorage(err error) (*Failure, bool) {
	var errs []*Error

	switch {
	case errors.Is(err, storage.ErrEmailTaken):
		errs = append(errs, ErrEmailAlreadyExists)
	case errors.Is(err, storage.ErrUsernameTaken):
		errs = append(errs, ErrUsernameAlreadyExists)
	case errors.Is(err, storage.ErrInvalidPassword):
		errs = append(errs, ErrInvalidCurrentPassword)
	case errors.Is(err, storage.ErrNotFound):
		errs = append(errs, ErrUserNotFound)
	}

	// Нарушения политики паролей приходят пачкой через errors.Join.
	policy := []struct {
		src error
		dst *Error
	}{
		{storage.ErrPasswordTooShort, ErrPasswordTooShort},
		{storage.ErrPasswordRequiresDigit, ErrPasswordRequiresDigit},
		{storage.ErrPasswordRequiresUpper, ErrPasswordRequiresUpper},
		{storage.ErrPasswordRequiresNonAlphanumeric, ErrPasswordRequiresNonAlphanumeric},
	}
	for _, p := range policy {
		if errors.Is(err, p.src) {
			errs = append(errs, p.dst)
		}
	}

	if len(errs) == 0 {
		return nil, false
	}

	return &Failure{Errors: errs}, true
}

// resultLabel — значение label result для метрик.
func resultLabel(err error) string {
	if err == nil {
		return metrics.ResultOK
	}

	if errs := Errors(err); len(errs) > 0 {
		return errs[0].Code
	}

	return metrics.ResultInternal
}
