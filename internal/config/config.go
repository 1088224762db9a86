// Пакет config — загрузка и валидация конфигурации Builder Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Builder Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера
	HTTPIdleTimeout time.Duration

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string
	// Максимальный размер пула подключений pgxpool
	DBMaxConns int

	// --- JWT ---

	// URL JWKS endpoint Identity Provider
	JWTJWKSURL string
	// Ожидаемый issuer JWT (пустая строка — не проверяется)
	JWTIssuer string
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Интервал фонового обновления JWKS-ключей
	JWKSRefreshInterval time.Duration
	// Путь к кастомному CA-сертификату для JWKS endpoint (пустая строка — системный пул)
	CACertPath string

	// --- Сервис генерации приложений (LLM) ---

	// URL streaming endpoint сервиса генерации
	GenerateURL string
	// Таймаут запроса генерации (streaming, поэтому большой)
	GenerateTimeout time.Duration

	// --- Векторное хранилище ---

	// Базовый URL сервиса управления векторным индексом
	VectorstoreURL string
	// Таймаут запросов к векторному хранилищу
	VectorstoreTimeout time.Duration

	// --- Ограничения загрузки файлов ---

	// Максимальный размер загружаемого файла в байтах
	MaxFileSize int64
	// Максимальное количество строк табличного файла
	MaxTableRows int

	// --- Кэш приложений ---

	// Максимальное количество записей в LRU-кэше
	CacheSize int
	// TTL записи кэша
	CacheTTL time.Duration

	// --- Topologymetrics ---

	// Имя группы в метриках dephealth
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration
	// Помечать зависимости лейблом isentry=yes
	DephealthIsEntry bool

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
//
//nolint:cyclop // последовательная загрузка параметров
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// BM_PORT — порт HTTP-сервера (по умолчанию 8000)
	cfg.Port, err = getEnvInt("BM_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("BM_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("BM_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// BM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("BM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("BM_LOG_LEVEL: %w", err)
	}

	// BM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("BM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("BM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	// BM_HTTP_READ_TIMEOUT — таймаут чтения (по умолчанию 30s)
	cfg.HTTPReadTimeout, err = getEnvDuration("BM_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BM_HTTP_READ_TIMEOUT: %w", err)
	}

	// BM_HTTP_WRITE_TIMEOUT — таймаут записи (по умолчанию 60s)
	cfg.HTTPWriteTimeout, err = getEnvDuration("BM_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BM_HTTP_WRITE_TIMEOUT: %w", err)
	}

	// BM_HTTP_IDLE_TIMEOUT — таймаут простоя (по умолчанию 120s)
	cfg.HTTPIdleTimeout, err = getEnvDuration("BM_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BM_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	// BM_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("BM_DB_HOST")
	if err != nil {
		return nil, err
	}

	// BM_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("BM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("BM_DB_PORT: %w", err)
	}

	// BM_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("BM_DB_NAME")
	if err != nil {
		return nil, err
	}

	// BM_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("BM_DB_USER")
	if err != nil {
		return nil, err
	}

	// BM_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("BM_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// BM_DB_SSLMODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("BM_DB_SSLMODE", "disable")

	// BM_DB_MAX_CONNS — размер пула pgxpool (по умолчанию 10).
	// Таблица files хранит raw_content (BYTEA), запросы могут быть тяжёлыми.
	cfg.DBMaxConns, err = getEnvInt("BM_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("BM_DB_MAX_CONNS: %w", err)
	}
	if cfg.DBMaxConns < 1 {
		return nil, fmt.Errorf("BM_DB_MAX_CONNS: значение должно быть положительным")
	}

	// --- JWT ---

	// BM_JWKS_URL — обязательный (аутентификация выполняется на каждом запросе)
	cfg.JWTJWKSURL, err = getEnvRequired("BM_JWKS_URL")
	if err != nil {
		return nil, err
	}

	// BM_JWT_ISSUER — ожидаемый issuer (опционально)
	cfg.JWTIssuer = getEnvDefault("BM_JWT_ISSUER", "")

	// BM_JWT_LEEWAY — отклонение времени при проверке JWT (по умолчанию 30s)
	cfg.JWTLeeway, err = getEnvDuration("BM_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BM_JWT_LEEWAY: %w", err)
	}

	// BM_JWKS_CLIENT_TIMEOUT — таймаут HTTP-клиента JWKS (по умолчанию 10s)
	cfg.JWKSClientTimeout, err = getEnvDuration("BM_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BM_JWKS_CLIENT_TIMEOUT: %w", err)
	}

	// BM_JWKS_REFRESH_INTERVAL — интервал обновления JWKS (по умолчанию 1h)
	cfg.JWKSRefreshInterval, err = getEnvDuration("BM_JWKS_REFRESH_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("BM_JWKS_REFRESH_INTERVAL: %w", err)
	}

	// BM_CA_CERT_PATH — кастомный CA для JWKS endpoint (опционально)
	cfg.CACertPath = getEnvDefault("BM_CA_CERT_PATH", "")

	// --- Сервис генерации ---

	// BM_GENERATE_URL — обязательный (endpoint авто-генерации приложений)
	cfg.GenerateURL, err = getEnvRequired("BM_GENERATE_URL")
	if err != nil {
		return nil, err
	}
	if _, err := url.ParseRequestURI(cfg.GenerateURL); err != nil {
		return nil, fmt.Errorf("BM_GENERATE_URL: некорректный URL: %w", err)
	}

	// BM_GENERATE_TIMEOUT — таймаут генерации (по умолчанию 300s, streaming)
	cfg.GenerateTimeout, err = getEnvDuration("BM_GENERATE_TIMEOUT", 300*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BM_GENERATE_TIMEOUT: %w", err)
	}

	// --- Векторное хранилище ---

	// BM_VECTORSTORE_URL — обязательный (каскадная очистка при удалении Embedded Text)
	cfg.VectorstoreURL, err = getEnvRequired("BM_VECTORSTORE_URL")
	if err != nil {
		return nil, err
	}
	if _, err := url.ParseRequestURI(cfg.VectorstoreURL); err != nil {
		return nil, fmt.Errorf("BM_VECTORSTORE_URL: некорректный URL: %w", err)
	}

	// BM_VECTORSTORE_TIMEOUT — таймаут запросов (по умолчанию 30s)
	cfg.VectorstoreTimeout, err = getEnvDuration("BM_VECTORSTORE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BM_VECTORSTORE_TIMEOUT: %w", err)
	}

	// --- Ограничения загрузки ---

	// BM_MAX_FILE_SIZE — максимальный размер файла в байтах (по умолчанию 15 MiB)
	maxFileSize, err := getEnvInt("BM_MAX_FILE_SIZE", 15*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("BM_MAX_FILE_SIZE: %w", err)
	}
	if maxFileSize < 1 {
		return nil, fmt.Errorf("BM_MAX_FILE_SIZE: значение должно быть положительным")
	}
	cfg.MaxFileSize = int64(maxFileSize)

	// BM_MAX_TABLE_ROWS — максимум строк таблицы (по умолчанию 3000)
	cfg.MaxTableRows, err = getEnvInt("BM_MAX_TABLE_ROWS", 3000)
	if err != nil {
		return nil, fmt.Errorf("BM_MAX_TABLE_ROWS: %w", err)
	}
	if cfg.MaxTableRows < 1 {
		return nil, fmt.Errorf("BM_MAX_TABLE_ROWS: значение должно быть положительным")
	}

	// --- Кэш ---

	// BM_CACHE_SIZE — размер LRU-кэша приложений (по умолчанию 1000)
	cfg.CacheSize, err = getEnvInt("BM_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("BM_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 1 {
		return nil, fmt.Errorf("BM_CACHE_SIZE: значение должно быть положительным")
	}

	// BM_CACHE_TTL — TTL записи кэша (по умолчанию 5m)
	cfg.CacheTTL, err = getEnvDuration("BM_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("BM_CACHE_TTL: %w", err)
	}

	// --- Topologymetrics ---

	// BM_DEPHEALTH_GROUP — группа метрик (по умолчанию appforge)
	cfg.DephealthGroup = getEnvDefault("BM_DEPHEALTH_GROUP", "appforge")

	// BM_DEPHEALTH_CHECK_INTERVAL — интервал проверки (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("BM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// DEPHEALTH_ISENTRY — лейбл isentry=yes (по умолчанию false)
	cfg.DephealthIsEntry = strings.EqualFold(getEnvDefault("DEPHEALTH_ISENTRY", ""), "yes")

	// --- Graceful shutdown ---

	// BM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("BM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseConnURL возвращает URL подключения к PostgreSQL
// (для topologymetrics и golang-migrate).
func (c *Config) DatabaseConnURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// MigrateURL возвращает URL подключения для golang-migrate
// (схема pgx5 — драйвер migrate/database/pgx/v5).
func (c *Config) MigrateURL() string {
	return fmt.Sprintf(
		"pgx5://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
