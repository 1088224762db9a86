// Точка входа Builder Module — модуль конструктора приложений.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// создаёт клиенты внешних сервисов (генерация, векторное хранилище),
// сервисный слой, API handlers, JWT middleware, topologymetrics
// и запускает HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goappforge/internal/api/handlers"
	"github.com/bigkaa/goappforge/internal/api/middleware"
	"github.com/bigkaa/goappforge/internal/config"
	"github.com/bigkaa/goappforge/internal/database"
	"github.com/bigkaa/goappforge/internal/genclient"
	"github.com/bigkaa/goappforge/internal/repository"
	"github.com/bigkaa/goappforge/internal/server"
	"github.com/bigkaa/goappforge/internal/service"
	"github.com/bigkaa/goappforge/internal/vectorstore"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Builder Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if os.Getenv("BM_DEPHEALTH_GROUP") == "" {
		logger.Warn("BM_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL идёт через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Клиенты внешних сервисов
	genClient := genclient.New(cfg.GenerateURL, cfg.GenerateTimeout, logger)
	vsClient := vectorstore.New(cfg.VectorstoreURL, cfg.VectorstoreTimeout, logger)

	// 6. Repositories
	userRepo := repository.NewUserRepository(pool)
	appRepo := repository.NewApplicationRepository(pool)
	fileRepo := repository.NewFileRepository(pool)

	// 7. Services
	appCache := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL)
	appSvc := service.NewApplicationService(appRepo, appCache, genClient, logger)
	fileSvc := service.NewFileService(fileRepo, vsClient, cfg.MaxFileSize, cfg.MaxTableRows, logger)

	// 8. JWT middleware (синхронизация пользователей — через userRepo)
	jwtAuth, err := middleware.NewJWTAuth(
		cfg.JWTJWKSURL,
		cfg.CACertPath,
		cfg.JWTIssuer,
		cfg.JWKSClientTimeout,
		cfg.JWKSRefreshInterval,
		cfg.JWTLeeway,
		userRepo,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer jwtAuth.Close()
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 9. Readiness checkers и health handler
	pgChecker := database.NewReadinessChecker(pool)
	healthHandler := handlers.NewHealthHandler(pgChecker, vsClient)

	// 10. topologymetrics — мониторинг зависимостей
	// (PostgreSQL + сервис генерации + векторное хранилище)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"builder-module",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseConnURL(),
		cfg.GenerateURL,
		cfg.VectorstoreURL,
		cfg.DephealthCheckInterval,
		cfg.DephealthIsEntry,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 11. API handlers
	appsHandler := handlers.NewApplicationsHandler(appSvc, logger)
	filesHandler := handlers.NewFilesHandler(fileSvc, logger)

	// 12. Создание и запуск HTTP-сервера
	srv := server.New(
		cfg,
		logger,
		server.Handlers{
			Health: healthHandler,
			Apps:   appsHandler,
			Files:  filesHandler,
		},
		jwtAuth.Middleware(),
		middleware.RequestLogger(logger),
		middleware.MetricsMiddleware(),
	)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 13. Graceful shutdown фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Builder Module остановлен")
}
