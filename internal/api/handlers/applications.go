// applications.go — обработчики маршрутов /v1/app/*.
// Делегируют бизнес-логику в service.ApplicationService; идентичность
// пользователя извлекается из контекста (auth middleware).
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goappforge/internal/api/errors"
	"github.com/bigkaa/goappforge/internal/api/middleware"
	"github.com/bigkaa/goappforge/internal/domain/model"
	"github.com/bigkaa/goappforge/internal/repository"
	"github.com/bigkaa/goappforge/internal/service"
)

// ApplicationsHandler — обработчик маршрутов приложений.
type ApplicationsHandler struct {
	apps   *service.ApplicationService
	logger *slog.Logger
}

// NewApplicationsHandler создаёт обработчик маршрутов приложений.
func NewApplicationsHandler(apps *service.ApplicationService, logger *slog.Logger) *ApplicationsHandler {
	return &ApplicationsHandler{
		apps:   apps,
		logger: logger.With(slog.String("component", "applications_handler")),
	}
}

// appListItem — проекция приложения для списка (без chain).
type appListItem struct {
	ID                string    `json:"id"`
	AppName           string    `json:"app_name"`
	CreatedBy         string    `json:"created_by"`
	CreatedByUsername string    `json:"created_by_username"`
	Tags              *string   `json:"tags"`
	Description       *string   `json:"description"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// appResponse — полная проекция приложения (load/modify/auto_generate).
type appResponse struct {
	ID                string          `json:"id"`
	AppName           string          `json:"app_name"`
	CreatedBy         string          `json:"created_by"`
	CreatedByUsername string          `json:"created_by_username,omitempty"`
	Tags              *string         `json:"tags"`
	Description       *string         `json:"description"`
	Published         bool            `json:"published"`
	Chain             json.RawMessage `json:"chain"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func toAppResponse(a *model.Application) appResponse {
	return appResponse{
		ID:                a.ID,
		AppName:           a.AppName,
		CreatedBy:         a.CreatedBy,
		CreatedByUsername: a.CreatedByUsername,
		Tags:              a.Tags,
		Description:       a.Description,
		Published:         a.Published,
		Chain:             a.Chain,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

// List — GET /v1/app/list?page&size&app_name&created_by&tags
// Постраничный поиск видимых приложений.
func (h *ApplicationsHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	page, size := pagination(r)
	params := repository.AppSearchParams{
		AppName:   optionalQuery(r, "app_name"),
		CreatedBy: optionalQuery(r, "created_by"),
		Limit:     size,
		Offset:    (page - 1) * size,
	}
	if tags := r.URL.Query().Get("tags"); tags != "" {
		params.Tags = strings.Split(tags, ",")
	}

	result, err := h.apps.List(r.Context(), identity.UserID, params, size)
	if err != nil {
		h.logger.Error("Ошибка поиска приложений", slog.Any("error", err))
		apierrors.InternalError(w, "Ошибка поиска приложений")
		return
	}

	items := make([]appListItem, 0, len(result.Items))
	for _, a := range result.Items {
		items = append(items, appListItem{
			ID:                a.ID,
			AppName:           a.AppName,
			CreatedBy:         a.CreatedBy,
			CreatedByUsername: a.CreatedByUsername,
			Tags:              a.Tags,
			Description:       a.Description,
			CreatedAt:         a.CreatedAt,
			UpdatedAt:         a.UpdatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"applications": items,
		"total_pages":  result.TotalPages,
	})
}

// Load — GET /v1/app/load/{id}
// Полная запись приложения, если она видима пользователю.
// Отсутствие и невидимость не различаются: 400 NOT_FOUND.
func (h *ApplicationsHandler) Load(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	appID := chi.URLParam(r, "id")
	app, err := h.apps.Get(r.Context(), identity.UserID, appID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.RecordNotFound(w, "Приложение с указанным ID не найдено")
			return
		}
		h.logger.Error("Ошибка загрузки приложения", slog.String("app_id", appID), slog.Any("error", err))
		apierrors.InternalError(w, "Ошибка загрузки приложения")
		return
	}

	writeJSON(w, http.StatusOK, toAppResponse(app))
}

// modifyRequest — тело запроса POST /v1/app/modify.
type modifyRequest struct {
	ID          string          `json:"id"`
	AppName     *string         `json:"app_name"`
	Tags        *string         `json:"tags"`
	Description *string         `json:"description"`
	Published   bool            `json:"published"`
	Chain       json.RawMessage `json:"chain"`
}

// Modify — POST /v1/app/modify
// Создаёт приложение (пустой id) или изменяет собственное (id указан).
func (h *ApplicationsHandler) Modify(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	var req modifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}

	app, err := h.apps.Modify(r.Context(), identity.UserID, service.ModifyInput{
		ID:          req.ID,
		AppName:     req.AppName,
		Tags:        req.Tags,
		Description: req.Description,
		Published:   req.Published,
		Chain:       req.Chain,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, "Отсутствуют обязательные поля")
		case errors.Is(err, service.ErrNotFound):
			apierrors.RecordNotFound(w, "Приложение с указанным ID не найдено")
		default:
			h.logger.Error("Ошибка изменения приложения", slog.Any("error", err))
			apierrors.InternalError(w, "Ошибка изменения приложения")
		}
		return
	}

	writeJSON(w, http.StatusOK, toAppResponse(app))
}

// Delete — DELETE /v1/app/delete/{id}
// Мягкое удаление собственного приложения.
func (h *ApplicationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	appID := chi.URLParam(r, "id")
	if err := h.apps.Delete(r.Context(), identity.UserID, appID); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.RecordNotFound(w, "Приложение с указанным ID не найдено")
			return
		}
		h.logger.Error("Ошибка удаления приложения", slog.String("app_id", appID), slog.Any("error", err))
		apierrors.InternalError(w, "Ошибка удаления приложения")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Приложение удалено",
	})
}

// Publish — POST /v1/app/publish/{id}
// Публикация собственного приложения.
func (h *ApplicationsHandler) Publish(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	appID := chi.URLParam(r, "id")
	if err := h.apps.Publish(r.Context(), identity.UserID, appID); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.RecordNotFound(w, "Приложение с указанным ID не найдено")
			return
		}
		h.logger.Error("Ошибка публикации приложения", slog.String("app_id", appID), slog.Any("error", err))
		apierrors.InternalError(w, "Ошибка публикации приложения")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Приложение опубликовано",
	})
}

// autoGenerateRequest — тело запроса POST /v1/app/auto_generate.
type autoGenerateRequest struct {
	Instruction string `json:"instruction"`
}

// AutoGenerate — POST /v1/app/auto_generate
// Генерация определения приложения внешним сервисом и сохранение
// результата как нового приложения пользователя.
func (h *ApplicationsHandler) AutoGenerate(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	var req autoGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: "+err.Error())
		return
	}

	app, err := h.apps.AutoGenerate(r.Context(), identity.UserID, req.Instruction)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGeneration):
			h.logger.Error("Ошибка сервиса генерации", slog.Any("error", err))
			apierrors.UpstreamError(w, "Сервис генерации недоступен или вернул некорректный ответ")
		case errors.Is(err, service.ErrValidation):
			apierrors.ValidationError(w, "Сгенерированный документ не содержит обязательных полей")
		default:
			h.logger.Error("Ошибка автогенерации", slog.Any("error", err))
			apierrors.InternalError(w, "Ошибка автогенерации приложения")
		}
		return
	}

	writeJSON(w, http.StatusOK, toAppResponse(app))
}
