// config предоставляет структуру конфигурации сервиса и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Драйверы хранилища учётных данных.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config — корневая конфигурация сервиса.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл local.yaml из рабочей директории;
//  4. переменные окружения (cleanenv).
type Config struct {
	Env      string        `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig    `yaml:"http"`
	GRPC     GRPCConfig    `yaml:"grpc"`
	Auth     AuthConfig    `yaml:"auth"`
	DB       DBConfig      `yaml:"db"`
	Redis    RedisConfig   `yaml:"redis"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
	Janitor  JanitorConfig `yaml:"janitor"`
}

// TimeoutConfig — таймауты сервиса.
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"5s"`
}

// HTTPConfig — сетевые настройки HTTP API.
type HTTPConfig struct {
	Host     string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port     string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	BasePath string `yaml:"base_path" env:"HTTP_BASE_PATH" env-default:"/api"`
}

// GRPCConfig — сетевые настройки gRPC health-сервера.
type GRPCConfig struct {
	Host string `yaml:"host" env:"GRPC_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"GRPC_PORT" env-default:"50051"`
}

// Addr возвращает адрес в формате host:port.
func (g HTTPConfig) Addr() string {
	return net.JoinHostPort(g.Host, g.Port)
}

// Addr возвращает адрес в формате host:port.
func (g GRPCConfig) Addr() string {
	return net.JoinHostPort(g.Host, g.Port)
}

// AuthConfig содержит параметры выпуска и проверки токенов.
// Срок жизни refresh-токена фиксирован (7 дней) и не настраивается.
type AuthConfig struct {
	JWTSecret          string         `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	AccessTokenMinutes int            `yaml:"access_token_minutes" env:"ACCESS_TOKEN_MINUTES" env-default:"15"`
	Issuer             string         `yaml:"issuer" env:"JWT_ISSUER" env-default:"fitness-auth"`
	Audience           []string       `yaml:"audience" env:"JWT_AUDIENCE" env-default:"fitness-api"`
	CookieName         string         `yaml:"cookie_name" env:"REFRESH_COOKIE_NAME" env-default:"refreshToken"`
	Password           PasswordConfig `yaml:"password"`
}

// AccessTokenTTL — время жизни access-токена.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenMinutes) * time.Minute
}

// PasswordConfig — политика сложности паролей.
// У булевых флагов нет env-default: cleanenv подставляет дефолт поверх
// нулевого значения, и false из YAML было бы не выставить.
type PasswordConfig struct {
	MinLength              int  `yaml:"min_length" env:"PASSWORD_MIN_LENGTH" env-default:"8"`
	RequireDigit           bool `yaml:"require_digit" env:"PASSWORD_REQUIRE_DIGIT"`
	RequireUpper           bool `yaml:"require_upper" env:"PASSWORD_REQUIRE_UPPER"`
	RequireNonAlphanumeric bool `yaml:"require_non_alphanumeric" env:"PASSWORD_REQUIRE_NON_ALPHANUMERIC"`
}

// DBConfig — настройки хранилища учётных данных.
type DBConfig struct {
	Driver      string `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"`
	DatabaseURL string `yaml:"db_url" env:"DATABASE_URL"`
	SkipMigrate bool   `yaml:"skip_migrate" env:"DB_SKIP_MIGRATE"`
}

// RedisConfig — кэш refresh-токенов; пустой URL отключает кэш.
type RedisConfig struct {
	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`
	Prefix   string `yaml:"prefix" env:"REDIS_PREFIX" env-default:"auth:rt:"`
}

// JanitorConfig — фоновая очистка просроченных refresh-токенов.
type JanitorConfig struct {
	Period time.Duration `yaml:"period" env:"JANITOR_PERIOD" env-default:"30m"`
}

// Validate проверяет согласованность значений после загрузки.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}

	if c.Auth.AccessTokenMinutes <= 0 {
		return fmt.Errorf("auth.access_token_minutes must be positive, got %d", c.Auth.AccessTokenMinutes)
	}

	switch c.DB.Driver {
	case DriverPostgres:
		if c.DB.DatabaseURL == "" {
			return errors.New("db.db_url is required for postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown db.driver %q", c.DB.Driver)
	}

	return nil
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// После чтения файла ENV-переменные накладываются поверх значений из YAML.
func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %q: %w", p, err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}

		return &cfg, nil
	}

	// 1) Явный путь.
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH.
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml.
	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	// 4) Только ENV.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
