// Package config загружает конфигурацию сервиса наград из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Драйверы хранилища
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Источники присутствия (кто сейчас в эфире / смотрит)
const (
	PresenceMemory = "memory"
	PresenceRedis  = "redis"
)

// Config содержит ВСЕ настройки приложения.
// Настройки самих наград (суммы, длительности, порог пула) живут в БД
// и меняются через админку, здесь только то, что нужно для запуска.
type Config struct {
	// --- Database ---
	DBDriver   string `envconfig:"DB_DRIVER" default:"postgres"`
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"rewards"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"stream_rewards"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`
	// Путь к файлу SQLite (для DB_DRIVER=sqlite, локальный запуск)
	SQLitePath string `envconfig:"SQLITE_PATH" default:"stream_rewards.db"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	// Если задан: логи дублируются в файл с ротацией
	LogFile       string `envconfig:"LOG_FILE"`
	LogMaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"100"`
	LogMaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"5"`

	// --- HTTP ---
	HTTPAddr            string        `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`

	// --- Admin ---
	AdminUser         string `envconfig:"ADMIN_USER" default:"admin"`
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH" required:"true"`

	// --- Notifications ---
	// Пустой токен: уведомления только пишутся в лог
	TelegramBotToken string        `envconfig:"TELEGRAM_BOT_TOKEN"`
	NotifyTimeout    time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"5s"`

	// --- Presence ---
	PresenceBackend string        `envconfig:"PRESENCE_BACKEND" default:"memory"`
	RedisAddr       string        `envconfig:"REDIS_ADDR" default:"redis:6379"`
	RedisPassword   string        `envconfig:"REDIS_PASSWORD"`
	RedisDB         int           `envconfig:"REDIS_DB" default:"0"`
	LivenessTimeout time.Duration `envconfig:"LIVENESS_TIMEOUT" default:"3s"`

	// --- Rewards ---
	// YAML с начальными значениями настроек наград (применяется к ещё не сохранённым ключам)
	RewardsSettingsFile string `envconfig:"REWARDS_SETTINGS_FILE"`
	// Баланс пула при самом первом запуске (записывается как genesis-пополнение)
	PoolInitialBalance int64 `envconfig:"POOL_INITIAL_BALANCE" default:"1000000"`
	// Политика щедрости: при недоступности источника данных считаем проверку пройденной
	RewardsFailOpen  bool          `envconfig:"REWARDS_FAIL_OPEN_LOOKUPS" default:"true"`
	SettingsCacheTTL time.Duration `envconfig:"SETTINGS_CACHE_TTL" default:"30s"`

	// --- Rate Limiting ---
	RateLimitRequests int `envconfig:"RATE_LIMIT_REQUESTS" default:"30"`
	RateLimitBurst    int `envconfig:"RATE_LIMIT_BURST" default:"10"`

	// Лимит на /admin по адресу клиента: каждая проверка пароля стоит 64 MB Argon2id
	AdminRateLimitRequests int `envconfig:"ADMIN_RATE_LIMIT_REQUESTS" default:"10"`
	AdminRateLimitBurst    int `envconfig:"ADMIN_RATE_LIMIT_BURST" default:"5"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres:
		if c.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD обязателен для DB_DRIVER=postgres")
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
		}
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH не задан")
		}
	default:
		return fmt.Errorf("неизвестный DB_DRIVER %q (postgres или sqlite)", c.DBDriver)
	}
	if strings.TrimSpace(c.AdminPasswordHash) == "" {
		return fmt.Errorf("ADMIN_PASSWORD_HASH не задан")
	}
	switch c.PresenceBackend {
	case PresenceMemory, PresenceRedis:
	default:
		return fmt.Errorf("неизвестный PRESENCE_BACKEND %q (memory или redis)", c.PresenceBackend)
	}
	if c.PoolInitialBalance < 0 {
		return fmt.Errorf("POOL_INITIAL_BALANCE не может быть отрицательным")
	}
	if c.LivenessTimeout <= 0 || c.NotifyTimeout <= 0 {
		return fmt.Errorf("LIVENESS_TIMEOUT и NOTIFY_TIMEOUT должны быть > 0")
	}
	if c.SettingsCacheTTL < 0 {
		return fmt.Errorf("SETTINGS_CACHE_TTL не может быть отрицательным")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS и RATE_LIMIT_BURST должны быть > 0")
	}
	if c.AdminRateLimitRequests <= 0 || c.AdminRateLimitBurst <= 0 {
		return fmt.Errorf("ADMIN_RATE_LIMIT_REQUESTS и ADMIN_RATE_LIMIT_BURST должны быть > 0")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	cfg.PresenceBackend = strings.ToLower(strings.TrimSpace(cfg.PresenceBackend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
