package config

import (
	"log/slog"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения для теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"BM_DB_HOST":         "localhost",
		"BM_DB_NAME":         "appforge",
		"BM_DB_USER":         "appforge",
		"BM_DB_PASSWORD":     "secret",
		"BM_JWKS_URL":        "https://idp.test/realms/appforge/protocol/openid-connect/certs",
		"BM_GENERATE_URL":    "https://gen.test/anchoring_stream",
		"BM_VECTORSTORE_URL": "http://vectorstore:8001",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	// Проверяем значения по умолчанию
	if cfg.Port != 8000 {
		t.Errorf("Port = %d, ожидается 8000", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, ожидается 5432", cfg.DBPort)
	}
	if cfg.DBSSLMode != "disable" {
		t.Errorf("DBSSLMode = %q, ожидается disable", cfg.DBSSLMode)
	}
	if cfg.DBMaxConns != 10 {
		t.Errorf("DBMaxConns = %d, ожидается 10", cfg.DBMaxConns)
	}
	if cfg.GenerateTimeout != 300*time.Second {
		t.Errorf("GenerateTimeout = %v, ожидается 300s", cfg.GenerateTimeout)
	}
	if cfg.MaxFileSize != 15*1024*1024 {
		t.Errorf("MaxFileSize = %d, ожидается 15 MiB", cfg.MaxFileSize)
	}
	if cfg.MaxTableRows != 3000 {
		t.Errorf("MaxTableRows = %d, ожидается 3000", cfg.MaxTableRows)
	}
	if cfg.CacheSize != 1000 {
		t.Errorf("CacheSize = %d, ожидается 1000", cfg.CacheSize)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, ожидается 5m", cfg.CacheTTL)
	}
	if cfg.JWTLeeway != 30*time.Second {
		t.Errorf("JWTLeeway = %v, ожидается 30s", cfg.JWTLeeway)
	}
	if cfg.DephealthCheckInterval != 15*time.Second {
		t.Errorf("DephealthCheckInterval = %v, ожидается 15s", cfg.DephealthCheckInterval)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	envs := minimalEnvs()
	delete(envs, "BM_DB_HOST")
	// t.Setenv для остальных, BM_DB_HOST остаётся пустым
	setEnvs(t, envs)
	t.Setenv("BM_DB_HOST", "")

	if _, err := Load(); err == nil {
		t.Fatal("ожидалась ошибка при отсутствии BM_DB_HOST")
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	setEnvs(t, minimalEnvs())
	t.Setenv("BM_PORT", "99999")

	if _, err := Load(); err == nil {
		t.Fatal("ожидалась ошибка при порте вне диапазона")
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	setEnvs(t, minimalEnvs())
	t.Setenv("BM_LOG_LEVEL", "verbose")

	if _, err := Load(); err == nil {
		t.Fatal("ожидалась ошибка при недопустимом уровне логирования")
	}
}

func TestLoad_InvalidGenerateURL(t *testing.T) {
	setEnvs(t, minimalEnvs())
	t.Setenv("BM_GENERATE_URL", "не-url")

	if _, err := Load(); err == nil {
		t.Fatal("ожидалась ошибка при некорректном BM_GENERATE_URL")
	}
}

func TestLoad_Overrides(t *testing.T) {
	setEnvs(t, minimalEnvs())
	t.Setenv("BM_PORT", "8005")
	t.Setenv("BM_LOG_FORMAT", "text")
	t.Setenv("BM_MAX_FILE_SIZE", "1048576")
	t.Setenv("BM_MAX_TABLE_ROWS", "100")
	t.Setenv("BM_GENERATE_TIMEOUT", "60s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 8005 {
		t.Errorf("Port = %d, ожидается 8005", cfg.Port)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, ожидается text", cfg.LogFormat)
	}
	if cfg.MaxFileSize != 1048576 {
		t.Errorf("MaxFileSize = %d, ожидается 1048576", cfg.MaxFileSize)
	}
	if cfg.MaxTableRows != 100 {
		t.Errorf("MaxTableRows = %d, ожидается 100", cfg.MaxTableRows)
	}
	if cfg.GenerateTimeout != 60*time.Second {
		t.Errorf("GenerateTimeout = %v, ожидается 60s", cfg.GenerateTimeout)
	}
}

func TestLoad_InvalidDBMaxConns(t *testing.T) {
	setEnvs(t, minimalEnvs())
	t.Setenv("BM_DB_MAX_CONNS", "0")

	if _, err := Load(); err == nil {
		t.Fatal("ожидалась ошибка при нулевом размере пула")
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DBHost:     "db.test",
		DBPort:     5433,
		DBName:     "appforge",
		DBUser:     "builder",
		DBPassword: "pw",
		DBSSLMode:  "require",
	}

	want := "host=db.test port=5433 dbname=appforge user=builder password=pw sslmode=require"
	if got := cfg.DatabaseDSN(); got != want {
		t.Errorf("DatabaseDSN() = %q, ожидается %q", got, want)
	}
}

func TestMigrateURL(t *testing.T) {
	cfg := &Config{
		DBHost:     "db.test",
		DBPort:     5433,
		DBName:     "appforge",
		DBUser:     "builder",
		DBPassword: "pw",
		DBSSLMode:  "require",
	}

	want := "pgx5://builder:pw@db.test:5433/appforge?sslmode=require"
	if got := cfg.MigrateURL(); got != want {
		t.Errorf("MigrateURL() = %q, ожидается %q", got, want)
	}
}
