// Package config загружает конфигурацию сервиса кошелька из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры,
// а godotenv подхватывает локальный .env (если он есть) до разбора.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- HTTP ---
	HTTPAddr            string        `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	HTTPWriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"15s"`
	HTTPShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	// Сколько запросов обрабатываем параллельно, остальные получают 503.
	HTTPMaxInflight int `envconfig:"HTTP_MAX_INFLIGHT" default:"256"`
	// Заголовок, в который auth-шлюз кладёт уже проверенный player_id.
	PlayerIDHeader string `envconfig:"PLAYER_ID_HEADER" default:"X-Player-ID"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	DBHost        string `envconfig:"DB_HOST" default:"postgres"`
	DBPort        int    `envconfig:"DB_PORT" default:"5432"`
	DBUser        string `envconfig:"DB_USER" default:"wallet"`
	DBPassword    string `envconfig:"DB_PASSWORD" required:"true"`
	DBName        string `envconfig:"DB_NAME" default:"retro_wallet"`
	DBSSLMode     string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns    int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns    int32  `envconfig:"DB_MIN_CONNS" default:"2"`
	DBAutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"true"`

	// --- Application ---
	AppEnv       string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel  string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppLogFormat string `envconfig:"APP_LOG_FORMAT" default:"text"`
	AppTimezone  string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- Ledger ---
	// Таймаут одного Apply вместе со всеми повторами.
	LedgerApplyTimeout time.Duration `envconfig:"LEDGER_APPLY_TIMEOUT" default:"5s"`
	// Сколько раз повторяем транзакцию при serialization failure / deadlock.
	LedgerMaxAttempts   int           `envconfig:"LEDGER_MAX_ATTEMPTS" default:"5"`
	LedgerRetryDelay    time.Duration `envconfig:"LEDGER_RETRY_DELAY" default:"50ms"`
	HistoryDefaultLimit int           `envconfig:"HISTORY_DEFAULT_LIMIT" default:"20"`
	HistoryMaxLimit     int           `envconfig:"HISTORY_MAX_LIMIT" default:"100"`

	// --- Games (политика наград за очки) ---
	GamePointsPerCoin  int64 `envconfig:"GAME_POINTS_PER_COIN" default:"100"`
	GamePointsPerExp   int64 `envconfig:"GAME_POINTS_PER_EXP" default:"10"`
	GameMaxCoinsPerRun int64 `envconfig:"GAME_MAX_COINS_PER_RUN" default:"500"`
	GameMaxExpPerRun   int64 `envconfig:"GAME_MAX_EXP_PER_RUN" default:"5000"`
	GameMaxScore       int64 `envconfig:"GAME_MAX_SCORE" default:"10000000"`

	// --- Rewards ---
	DailyRewardCoins   int64 `envconfig:"DAILY_REWARD_COINS" default:"50"`
	DailyRewardTickets int64 `envconfig:"DAILY_REWARD_TICKETS" default:"1"`

	// --- Spin ---
	SpinTicketCost int64 `envconfig:"SPIN_TICKET_COST" default:"1"`

	// --- Admin ---
	// Argon2id-хеш админского ключа (scripts/generate_hash.go). Пустой: админка выключена.
	AdminKeyHash       string        `envconfig:"ADMIN_KEY_HASH"`
	AdminMaxAttempts   int           `envconfig:"ADMIN_MAX_ATTEMPTS" default:"5"`
	AdminLockoutWindow time.Duration `envconfig:"ADMIN_LOCKOUT_WINDOW" default:"1h"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"30"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Jobs ---
	ReconcileSchedule string `envconfig:"RECONCILE_SCHEDULE" default:"30 4 * * *"`

	// --- Feature Flags ---
	FeatureShopEnabled  bool `envconfig:"FEATURE_SHOP_ENABLED" default:"true"`
	FeatureSpinEnabled  bool `envconfig:"FEATURE_SPIN_ENABLED" default:"true"`
	FeatureDailyEnabled bool `envconfig:"FEATURE_DAILY_ENABLED" default:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Location возвращает часовой пояс приложения (для дневных бонусов и крона).
// Если зона не загрузилась: UTC+3 вручную, как раньше.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.AppTimezone)
	if err != nil {
		return time.FixedZone("MSK", 3*60*60)
	}
	return loc
}

// Validate проверяет значения, которые envconfig не может проверить сам.
func (c *Config) Validate() error {
	if c.HTTPMaxInflight <= 0 {
		return fmt.Errorf("HTTP_MAX_INFLIGHT должен быть > 0")
	}
	if c.PlayerIDHeader == "" {
		return fmt.Errorf("PLAYER_ID_HEADER не задан")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.LedgerApplyTimeout <= 0 {
		return fmt.Errorf("LEDGER_APPLY_TIMEOUT должен быть > 0")
	}
	if c.LedgerMaxAttempts <= 0 {
		return fmt.Errorf("LEDGER_MAX_ATTEMPTS должен быть > 0")
	}
	if c.HistoryDefaultLimit <= 0 || c.HistoryMaxLimit < c.HistoryDefaultLimit {
		return fmt.Errorf("некорректные HISTORY_DEFAULT_LIMIT/HISTORY_MAX_LIMIT")
	}
	if c.GamePointsPerCoin <= 0 || c.GamePointsPerExp <= 0 {
		return fmt.Errorf("GAME_POINTS_PER_COIN и GAME_POINTS_PER_EXP должны быть > 0")
	}
	if c.GameMaxScore <= 0 {
		return fmt.Errorf("GAME_MAX_SCORE должен быть > 0")
	}
	if c.SpinTicketCost <= 0 {
		return fmt.Errorf("SPIN_TICKET_COST должен быть > 0")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("некорректные RATE_LIMIT_REQUESTS/RATE_LIMIT_WINDOW")
	}
	if c.AppLogFormat != "text" && c.AppLogFormat != "json" {
		return fmt.Errorf("APP_LOG_FORMAT должен быть text или json")
	}
	return nil
}

// Load читает .env (если есть) и переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	// .env опционален: в проде переменные приходят из окружения контейнера
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("не удалось прочитать .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
