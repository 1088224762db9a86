// Пакет server — HTTP-сервер Builder Module с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goappforge/internal/api/handlers"
	"github.com/bigkaa/goappforge/internal/config"
)

// Server — HTTP-сервер Builder Module.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// Handlers — набор обработчиков, регистрируемых на маршрутах сервера.
type Handlers struct {
	Health *handlers.HealthHandler
	Apps   *handlers.ApplicationsHandler
	Files  *handlers.FilesHandler
}

// New создаёт HTTP-сервер с настроенными маршрутами.
// authMW — JWT middleware, применяется только к /v1/* маршрутам;
// health и metrics доступны без аутентификации (probes, Prometheus).
// commonMW — middleware всего сервера (logging, metrics), в порядке среза.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	h Handlers,
	authMW func(http.Handler) http.Handler,
	commonMW ...func(http.Handler) http.Handler,
) *Server {
	router := chi.NewRouter()

	for _, mw := range commonMW {
		router.Use(mw)
	}

	// Служебные endpoints — без аутентификации
	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Get("/metrics", h.Health.GetMetrics)

	// Бизнес-маршруты — под JWT middleware
	router.Route("/v1", func(r chi.Router) {
		if authMW != nil {
			r.Use(authMW)
		}

		r.Route("/app", func(r chi.Router) {
			r.Get("/list", h.Apps.List)
			r.Get("/load/{id}", h.Apps.Load)
			r.Post("/modify", h.Apps.Modify)
			r.Delete("/delete/{id}", h.Apps.Delete)
			r.Post("/publish/{id}", h.Apps.Publish)
			r.Post("/auto_generate", h.Apps.AutoGenerate)
		})

		r.Route("/file", func(r chi.Router) {
			r.Post("/upload", h.Files.Upload)
			r.Get("/list", h.Files.List)
			r.Get("/load/{id}", h.Files.Load)
			r.Get("/download/{id}", h.Files.Download)
			r.Delete("/delete/{id}", h.Files.Delete)
			r.Post("/publish/{id}", h.Files.Publish)
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
