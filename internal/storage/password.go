package storage

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrPasswordTooShort — пароль короче минимальной длины.
	ErrPasswordTooShort = errors.New("password is too short")
	// ErrPasswordRequiresDigit — нет цифры.
	ErrPasswordRequiresDigit = errors.New("password requires a digit")
	// ErrPasswordRequiresUpper — нет заглавной буквы.
	ErrPasswordRequiresUpper = errors.New("password requires an uppercase letter")
	// ErrPasswordRequiresNonAlphanumeric — нет спецсимвола.
	ErrPasswordRequiresNonAlphanumeric = errors.New("password requires a non-alphanumeric character")
)

// PasswordPolicy — требования к сложности пароля.
type PasswordPolicy struct {
	MinLength              int
	RequireDigit           bool
	RequireUpper           bool
	RequireNonAlphanumeric bool
}

// DefaultPasswordPolicy — политика по умолчанию.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:              8,
		RequireDigit:           true,
		RequireUpper:           true,
		RequireNonAlphanumeric: true,
	}
}

// Validate возвращает все нарушения политики сразу (errors.Join)
// или nil, если пароль подходит.
func (p PasswordPolicy) Validate(pw string) error {
	var hasDigit, hasUpper, hasSpecial bool
	for _, r := range pw {
		switch {
		case isASCIIDigit(r):
			hasDigit = true
		case isASCIIUpper(r):
			hasUpper = true
		case !isASCIILower(r):
			hasSpecial = true
		}
	}

	var errs []error
	if len([]rune(pw)) < p.MinLength {
		errs = append(errs, ErrPasswordTooShort)
	}
	if p.RequireDigit && !hasDigit {
		errs = append(errs, ErrPasswordRequiresDigit)
	}
	if p.RequireUpper && !hasUpper {
		errs = append(errs, ErrPasswordRequiresUpper)
	}
	if p.RequireNonAlphanumeric && !hasSpecial {
		errs = append(errs, ErrPasswordRequiresNonAlphanumeric)
	}

	return errors.Join(errs...)
}

// Классы символов считаются только в диапазоне ASCII: 'é' или '٣'
// не засчитываются как буква или цифра и проходят как спецсимвол.
func isASCIIDigit(r rune) bool { return r >= '0' && r <= '9' }
func isASCIIUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
func isASCIILower(r rune) bool { return r >= 'a' && r <= 'z' }

// HashPassword хэширует пароль bcrypt.
func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// CheckPassword сравнивает пароль с bcrypt-хэшем.
func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}
