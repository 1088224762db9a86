// applications.go — сервис приложений: поиск, загрузка, создание/изменение,
// публикация, мягкое удаление, автогенерация по текстовой инструкции.
// Координирует repository, LRU cache, клиент генерации и Prometheus-метрики.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goappforge/internal/domain/model"
	"github.com/bigkaa/goappforge/internal/repository"
)

// Prometheus-метрики сервиса приложений.
var (
	appSearchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bm_app_search_total",
		Help: "Общее количество поисковых запросов по приложениям.",
	})
	appSearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bm_app_search_duration_seconds",
		Help:    "Длительность поисковых запросов по приложениям.",
		Buckets: prometheus.DefBuckets,
	})
	appGenerateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bm_app_generate_total",
		Help: "Количество запросов автогенерации приложений по результату.",
	}, []string{"result"})
)

// Generator — клиент сервиса генерации определений приложений.
type Generator interface {
	// Generate возвращает сгенерированный JSON-документ по инструкции.
	Generate(ctx context.Context, instruction string) ([]byte, error)
}

// AppListResult — страница приложений с общим количеством страниц.
type AppListResult struct {
	// Items — приложения страницы
	Items []*model.Application
	// TotalPages — общее количество страниц: ceil(total / size)
	TotalPages int
}

// ModifyInput — входные данные операции создания/изменения приложения.
// Поля-указатели: nil = поле отсутствовало в запросе и не изменяется.
// Published — не указатель: значение перезаписывается всегда, отсутствие
// в запросе эквивалентно false (так ведёт себя и фронтенд-контракт).
type ModifyInput struct {
	// ID — идентификатор приложения; пустой = создать новое
	ID string
	// AppName — имя приложения (обязательно при создании)
	AppName *string
	// Tags — теги
	Tags *string
	// Description — описание
	Description *string
	// Published — флаг публикации, перезаписывается безусловно
	Published bool
	// Chain — определение цепочки (произвольный JSON)
	Chain json.RawMessage
}

// ApplicationService — бизнес-логика работы с приложениями.
type ApplicationService struct {
	appRepo   repository.ApplicationRepository
	cache     *CacheService
	generator Generator
	logger    *slog.Logger
}

// NewApplicationService создаёт сервис приложений.
func NewApplicationService(
	appRepo repository.ApplicationRepository,
	cache *CacheService,
	generator Generator,
	logger *slog.Logger,
) *ApplicationService {
	return &ApplicationService{
		appRepo:   appRepo,
		cache:     cache,
		generator: generator,
		logger:    logger.With(slog.String("component", "application_service")),
	}
}

// List выполняет постраничный поиск приложений, видимых пользователю.
// size используется для вычисления общего количества страниц.
func (s *ApplicationService) List(ctx context.Context, userID string, params repository.AppSearchParams, size int) (*AppListResult, error) {
	start := time.Now()
	appSearchTotal.Inc()

	total, err := s.appRepo.Count(ctx, userID, params)
	if err != nil {
		return nil, fmt.Errorf("подсчёт приложений: %w", err)
	}

	items, err := s.appRepo.Search(ctx, userID, params)
	if err != nil {
		return nil, fmt.Errorf("поиск приложений: %w", err)
	}

	duration := time.Since(start)
	appSearchDuration.Observe(duration.Seconds())

	s.logger.Debug("Поиск приложений выполнен",
		slog.Int("total", total),
		slog.Int("returned", len(items)),
		slog.Duration("duration", duration),
	)

	return &AppListResult{
		Items:      items,
		TotalPages: int(math.Ceil(float64(total) / float64(size))),
	}, nil
}

// Get возвращает полную запись приложения, если она видима пользователю.
// Сначала проверяет LRU-кэш; видимость проверяется после чтения из кэша,
// так как кэш общий для всех пользователей.
func (s *ApplicationService) Get(ctx context.Context, userID, appID string) (*model.Application, error) {
	if app, ok := s.cache.Get(appID); ok {
		if !app.VisibleTo(userID) {
			return nil, ErrNotFound
		}
		return app, nil
	}

	app, err := s.appRepo.GetVisible(ctx, appID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("загрузка приложения: %w", err)
	}

	s.cache.Set(appID, app)
	return app, nil
}

// Modify создаёт новое приложение (пустой ID) или изменяет существующее.
// При изменении применяются только присутствующие поля, кроме published,
// который перезаписывается всегда. Ownership обязателен: чужие записи
// недоступны для изменения, даже опубликованные.
func (s *ApplicationService) Modify(ctx context.Context, userID string, input ModifyInput) (*model.Application, error) {
	if input.ID == "" {
		return s.create(ctx, userID, input)
	}
	return s.update(ctx, userID, input)
}

func (s *ApplicationService) create(ctx context.Context, userID string, input ModifyInput) (*model.Application, error) {
	if input.AppName == nil || *input.AppName == "" {
		return nil, fmt.Errorf("%w: app_name обязателен при создании", ErrValidation)
	}

	app := &model.Application{
		ID:          uuid.New().String(),
		AppName:     *input.AppName,
		CreatedBy:   userID,
		Tags:        input.Tags,
		Description: input.Description,
		Published:   input.Published,
		Chain:       input.Chain,
		Status:      model.StatusActive,
	}

	if err := s.appRepo.Create(ctx, app); err != nil {
		return nil, fmt.Errorf("создание приложения: %w", err)
	}

	s.logger.Info("Приложение создано",
		slog.String("app_id", app.ID),
		slog.String("created_by", userID),
	)
	return app, nil
}

func (s *ApplicationService) update(ctx context.Context, userID string, input ModifyInput) (*model.Application, error) {
	app, err := s.appRepo.GetOwned(ctx, input.ID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("загрузка приложения для изменения: %w", err)
	}

	if input.AppName != nil {
		app.AppName = *input.AppName
	}
	if input.Tags != nil {
		app.Tags = input.Tags
	}
	if input.Description != nil {
		app.Description = input.Description
	}
	if input.Chain != nil {
		app.Chain = input.Chain
	}
	// published перезаписывается безусловно
	app.Published = input.Published

	if err := s.appRepo.Update(ctx, app); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("изменение приложения: %w", err)
	}

	s.cache.Invalidate(app.ID)
	return app, nil
}

// Delete выполняет мягкое удаление приложения владельца.
func (s *ApplicationService) Delete(ctx context.Context, userID, appID string) error {
	if err := s.appRepo.SoftDelete(ctx, appID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление приложения: %w", err)
	}

	s.cache.Invalidate(appID)
	s.logger.Info("Приложение удалено",
		slog.String("app_id", appID),
		slog.String("owner", userID),
	)
	return nil
}

// Publish устанавливает флаг публикации приложения владельца.
func (s *ApplicationService) Publish(ctx context.Context, userID, appID string) error {
	if err := s.appRepo.Publish(ctx, appID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("публикация приложения: %w", err)
	}

	s.cache.Invalidate(appID)
	return nil
}

// generatedApp — документ, собранный из потока сервиса генерации.
type generatedApp struct {
	AppName     *string         `json:"app_name"`
	Tags        *string         `json:"tags"`
	Description *string         `json:"description"`
	Published   bool            `json:"published"`
	Chain       json.RawMessage `json:"chain"`
}

// AutoGenerate запрашивает определение приложения у сервиса генерации
// и сохраняет результат как новое приложение пользователя.
// Ошибки upstream фатальны для запроса: ничего не сохраняется.
func (s *ApplicationService) AutoGenerate(ctx context.Context, userID, instruction string) (*model.Application, error) {
	doc, err := s.generator.Generate(ctx, instruction)
	if err != nil {
		appGenerateTotal.WithLabelValues("upstream_error").Inc()
		return nil, fmt.Errorf("%w: %s", ErrGeneration, err)
	}

	var gen generatedApp
	if err := json.Unmarshal(doc, &gen); err != nil {
		appGenerateTotal.WithLabelValues("parse_error").Inc()
		return nil, fmt.Errorf("%w: некорректный документ генерации: %s", ErrGeneration, err)
	}

	app, err := s.create(ctx, userID, ModifyInput{
		AppName:     gen.AppName,
		Tags:        gen.Tags,
		Description: gen.Description,
		Published:   gen.Published,
		Chain:       gen.Chain,
	})
	if err != nil {
		appGenerateTotal.WithLabelValues("validation_error").Inc()
		return nil, err
	}

	appGenerateTotal.WithLabelValues("success").Inc()
	return app, nil
}
