// service содержит жизненный цикл сессии auth-сервиса: регистрацию, вход,
// ротацию refresh-токена, выход и смену пароля.
//
// Основные аспекты:
//   - Service не хранит состояние запроса и безопасен для конкурентного
//     использования; всё общее состояние живёт в хранилище учётных данных.
//   - На учётную запись приходится ровно один refresh-токен. Каждая запись
//     токена условная (storage.SaveRefreshToken с ожидаемым старым хэшем),
//     поэтому из двух параллельных ротаций одного токена успешна только одна.
//   - Ожидаемые отказы возвращаются как *Failure с типизированными *Error;
//     всё остальное — инфраструктурный сбой, который транспорт отдаёт как 500.
package service

import (
	"time"

	"github.com/pribylovaa/go-fitness-tracker/internal/cache"
	"github.com/pribylovaa/go-fitness-tracker/internal/storage"
	"github.com/pribylovaa/go-fitness-tracker/internal/tokens"
)

// RefreshGenerator выпускает открытые значения refresh-токенов.
type RefreshGenerator interface {
	Generate() (string, error)
}

// Service описывает бизнес-логику auth-сервиса.
type Service struct {
	store   storage.CredentialStore
	signer  *tokens.Signer
	refresh RefreshGenerator
	rcache  cache.RefreshCache // может быть nil, если кэш не сконфигурирован
	now     func() time.Time
}

// Option настраивает Service.
type Option func(*Service)

// WithRefreshGenerator подменяет генератор refresh-токенов.
func WithRefreshGenerator(g RefreshGenerator) Option {
	return func(s *Service) {
		if g != nil {
			s.refresh = g
		}
	}
}

// WithClock подменяет источник времени для сроков refresh-токенов.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New создаёт новый экземпляр Service.
func New(store storage.CredentialStore, signer *tokens.Signer, opts ...Option) *Service {
	s := &Service{
		store:   store,
		signer:  signer,
		refresh: tokens.NewRefreshGenerator(),
		now:     time.Now,
	}

	for _, o := range opts {
		o(s)
	}

	return s
}

// SetRefreshCache устанавливает кэш refresh-токенов (опционально).
func (s *Service) SetRefreshCache(c cache.RefreshCache) {
	s.rcache = c
}
