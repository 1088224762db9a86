// files.go — обработчики маршрутов /v1/file/*.
// В отличие от приложений, для файлов отсутствие ресурса отдаётся
// честным 404, а операции владельца (download, delete) — 403 для чужих.
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goappforge/internal/api/errors"
	"github.com/bigkaa/goappforge/internal/api/middleware"
	"github.com/bigkaa/goappforge/internal/domain/model"
	"github.com/bigkaa/goappforge/internal/repository"
	"github.com/bigkaa/goappforge/internal/service"
)

// FilesHandler — обработчик маршрутов файлов.
type FilesHandler struct {
	files  *service.FileService
	logger *slog.Logger
}

// NewFilesHandler создаёт обработчик маршрутов файлов.
func NewFilesHandler(files *service.FileService, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{
		files:  files,
		logger: logger.With(slog.String("component", "files_handler")),
	}
}

// fileListItem — проекция файла для списка (без содержимого).
type fileListItem struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Type               model.FileType `json:"type"`
	UploadedBy         string         `json:"uploaded_by"`
	UploadedByUsername string         `json:"uploaded_by_username"`
	UploadedAt         time.Time      `json:"uploaded_at"`
	Size               int64          `json:"size"`
	Published          bool           `json:"published"`
}

// fileResponse — полная проекция файла с содержимым (load).
type fileResponse struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Type               model.FileType `json:"type"`
	UploadedBy         string         `json:"uploaded_by"`
	UploadedByUsername string         `json:"uploaded_by_username"`
	UploadedAt         time.Time      `json:"uploaded_at"`
	Size               int64          `json:"size"`
	Published          bool           `json:"published"`
	Content            any            `json:"content"`
}

// Upload — POST /v1/file/upload
// Принимает multipart-форму с полем file.
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Файл не передан в поле file")
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("Ошибка чтения загружаемого файла", slog.Any("error", err))
		apierrors.InternalError(w, "Ошибка чтения файла")
		return
	}

	fileID, err := h.files.Upload(r.Context(), identity.UserID, header.Filename, raw)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			apierrors.ValidationError(w, err.Error())
			return
		}
		h.logger.Error("Ошибка загрузки файла", slog.String("filename", header.Filename), slog.Any("error", err))
		apierrors.InternalError(w, "Ошибка загрузки файла")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"file_id": fileID,
	})
}

// List — GET /v1/file/list?page&size&name&uploaded_by
// Постраничный список видимых файлов без содержимого.
func (h *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	page, size := pagination(r)
	params := repository.FileSearchParams{
		UploadedBy: optionalQuery(r, "uploaded_by"),
		Limit:      size,
		Offset:     (page - 1) * size,
	}

	result, err := h.files.List(r.Context(), identity.UserID, params, size)
	if err != nil {
		h.logger.Error("Ошибка поиска файлов", slog.Any("error", err))
		apierrors.InternalError(w, "Ошибка поиска файлов")
		return
	}

	items := make([]fileListItem, 0, len(result.Items))
	for _, f := range result.Items {
		items = append(items, fileListItem{
			ID:                 f.ID,
			Name:               f.Name,
			Type:               f.Type,
			UploadedBy:         f.UploadedBy,
			UploadedByUsername: f.UploadedByUsername,
			UploadedAt:         f.UploadedAt,
			Size:               f.Size,
			Published:          f.Published,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"files":       items,
		"total_pages": result.TotalPages,
	})
}

// Load — GET /v1/file/load/{id}
// Метаданные и содержимое файла. Табличное содержимое отдаётся
// строкой с поколоночным JSON.
func (h *FilesHandler) Load(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	fileID := chi.URLParam(r, "id")
	loaded, err := h.files.Load(r.Context(), identity.UserID, fileID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Файл с указанным ID не найден")
			return
		}
		h.logger.Error("Ошибка загрузки файла", slog.String("file_id", fileID), slog.Any("error", err))
		apierrors.InternalError(w, "Ошибка загрузки файла")
		return
	}

	f := loaded.File
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"file": fileResponse{
			ID:                 f.ID,
			Name:               f.Name,
			Type:               f.Type,
			UploadedBy:         f.UploadedBy,
			UploadedByUsername: f.UploadedByUsername,
			UploadedAt:         f.UploadedAt,
			Size:               f.Size,
			Published:          f.Published,
			Content:            loaded.Content,
		},
	})
}

// Download — GET /v1/file/download/{id}
// Отдаёт оригинальные байты файла. Доступно только владельцу.
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	fileID := chi.URLParam(r, "id")
	f, err := h.files.Download(r.Context(), identity.UserID, fileID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			apierrors.NotFound(w, "Файл с указанным ID не найден")
		case errors.Is(err, service.ErrForbidden):
			apierrors.Forbidden(w, "Скачивание доступно только владельцу файла")
		default:
			h.logger.Error("Ошибка скачивания файла", slog.String("file_id", fileID), slog.Any("error", err))
			apierrors.InternalError(w, "Ошибка скачивания файла")
		}
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+f.Name+`"`)
	w.Header().Set("X-File-Name", f.Name)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.RawContent)
}

// Delete — DELETE /v1/file/delete/{id}
// Мягкое удаление файла владельцем. Для Embedded Text сначала
// удаляются эмбеддинги в векторном хранилище.
func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	fileID := chi.URLParam(r, "id")
	if err := h.files.Delete(r.Context(), identity.UserID, fileID); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			apierrors.RecordNotFound(w, "Файл с указанным ID не найден")
		case errors.Is(err, service.ErrForbidden):
			apierrors.Forbidden(w, "Удаление доступно только владельцу файла")
		case errors.Is(err, service.ErrVectorstore):
			h.logger.Error("Ошибка удаления эмбеддингов", slog.String("file_id", fileID), slog.Any("error", err))
			apierrors.InternalError(w, "Ошибка удаления эмбеддингов файла")
		default:
			h.logger.Error("Ошибка удаления файла", slog.String("file_id", fileID), slog.Any("error", err))
			apierrors.InternalError(w, "Ошибка удаления файла")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Файл удалён",
	})
}

// Publish — POST /v1/file/publish/{id}
// Публикация файла владельцем.
func (h *FilesHandler) Publish(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	fileID := chi.URLParam(r, "id")
	if err := h.files.Publish(r.Context(), identity.UserID, fileID); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.RecordNotFound(w, "Файл с указанным ID не найден")
			return
		}
		h.logger.Error("Ошибка публикации файла", slog.String("file_id", fileID), slog.Any("error", err))
		apierrors.InternalError(w, "Ошибка публикации файла")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Файл опубликован",
	})
}
