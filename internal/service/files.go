// files.go — сервис файлов: загрузка с валидацией, поиск, загрузка
// содержимого, скачивание оригинала, публикация, мягкое удаление
// с каскадной очисткой эмбеддингов для Embedded Text.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goappforge/internal/domain/model"
	"github.com/bigkaa/goappforge/internal/repository"
)

// Prometheus-метрики сервиса файлов.
var (
	fileUploadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bm_file_upload_total",
		Help: "Количество загрузок файлов по результату.",
	}, []string{"result"})
	fileUploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bm_file_upload_bytes",
		Help:    "Размер загружаемых файлов в байтах.",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
	})
)

// allowedExtensions — допустимые расширения загружаемых файлов.
var allowedExtensions = map[string]struct{}{
	".txt": {},
	".tsv": {},
	".csv": {},
}

// EmbeddingsDeleter — клиент векторного хранилища для каскадного
// удаления эмбеддингов файлов типа Embedded Text.
type EmbeddingsDeleter interface {
	DeleteEmbeddings(ctx context.Context, fileID string) error
}

// FileListResult — страница файлов с общим количеством страниц.
type FileListResult struct {
	// Items — метаданные файлов страницы (без содержимого)
	Items []*model.File
	// TotalPages — общее количество страниц: ceil(total / size)
	TotalPages int
}

// LoadedFile — полная запись файла с содержимым для выдачи клиенту.
// Для таблиц содержимое пересериализуется в колоночную JSON-строку,
// для текстовых типов передаётся без изменений.
type LoadedFile struct {
	// File — запись файла
	File *model.File
	// Content — содержимое в форме выдачи: строка для Table,
	// исходный JSON для Plain Text / Embedded Text
	Content any
}

// FileService — бизнес-логика работы с файлами.
type FileService struct {
	fileRepo    repository.FileRepository
	embeddings  EmbeddingsDeleter
	maxFileSize int64
	maxRows     int
	logger      *slog.Logger
}

// NewFileService создаёт сервис файлов.
// maxFileSize — максимальный размер файла в байтах (BM_MAX_FILE_SIZE).
// maxRows — максимальное количество строк таблицы (BM_MAX_TABLE_ROWS).
func NewFileService(
	fileRepo repository.FileRepository,
	embeddings EmbeddingsDeleter,
	maxFileSize int64,
	maxRows int,
	logger *slog.Logger,
) *FileService {
	return &FileService{
		fileRepo:    fileRepo,
		embeddings:  embeddings,
		maxFileSize: maxFileSize,
		maxRows:     maxRows,
		logger:      logger.With(slog.String("component", "file_service")),
	}
}

// Upload валидирует и сохраняет загруженный файл.
// Конвейер: расширение → размер → определение типа и разбор →
// лимит строк для таблиц → запись. При любой ошибке валидации
// ничего не сохраняется.
func (s *FileService) Upload(ctx context.Context, userID, filename string, raw []byte) (string, error) {
	if filename == "" {
		fileUploadTotal.WithLabelValues("validation_error").Inc()
		return "", fmt.Errorf("%w: файл не выбран", ErrValidation)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedExtensions[ext]; !ok {
		fileUploadTotal.WithLabelValues("validation_error").Inc()
		return "", fmt.Errorf("%w: недопустимый тип файла %q, разрешены txt, tsv, csv", ErrValidation, ext)
	}

	size := int64(len(raw))
	if size > s.maxFileSize {
		fileUploadTotal.WithLabelValues("validation_error").Inc()
		return "", fmt.Errorf("%w: размер файла %d байт превышает лимит %d", ErrValidation, size, s.maxFileSize)
	}

	parsed, err := DetectAndParse(raw)
	if err != nil {
		fileUploadTotal.WithLabelValues("parse_error").Inc()
		return "", fmt.Errorf("%w: %s", ErrValidation, err)
	}

	if parsed.Type == model.FileTypeTable && parsed.RowCount > s.maxRows {
		fileUploadTotal.WithLabelValues("validation_error").Inc()
		return "", fmt.Errorf("%w: таблица содержит %d строк, лимит %d", ErrValidation, parsed.RowCount, s.maxRows)
	}

	file := &model.File{
		ID:         uuid.New().String(),
		Name:       filepath.Base(filename),
		Type:       parsed.Type,
		UploadedBy: userID,
		UploadedAt: time.Now().UTC(),
		Size:       size,
		Content:    parsed.Content,
		RawContent: raw,
		Status:     model.StatusActive,
	}

	if err := s.fileRepo.Register(ctx, file); err != nil {
		fileUploadTotal.WithLabelValues("db_error").Inc()
		return "", fmt.Errorf("сохранение файла: %w", err)
	}

	fileUploadTotal.WithLabelValues("success").Inc()
	fileUploadBytes.Observe(float64(size))

	s.logger.Info("Файл загружен",
		slog.String("file_id", file.ID),
		slog.String("name", file.Name),
		slog.String("type", string(file.Type)),
		slog.Int64("size", size),
		slog.String("uploaded_by", userID),
	)
	return file.ID, nil
}

// List выполняет постраничный поиск файлов, видимых пользователю.
// Содержимое в список не включается.
func (s *FileService) List(ctx context.Context, userID string, params repository.FileSearchParams, size int) (*FileListResult, error) {
	total, err := s.fileRepo.Count(ctx, userID, params)
	if err != nil {
		return nil, fmt.Errorf("подсчёт файлов: %w", err)
	}

	items, err := s.fileRepo.Search(ctx, userID, params)
	if err != nil {
		return nil, fmt.Errorf("поиск файлов: %w", err)
	}

	return &FileListResult{
		Items:      items,
		TotalPages: int(math.Ceil(float64(total) / float64(size))),
	}, nil
}

// Load возвращает метаданные и содержимое видимого файла.
// Табличное содержимое пересериализуется в колоночную форму при чтении.
func (s *FileService) Load(ctx context.Context, userID, fileID string) (*LoadedFile, error) {
	file, err := s.fileRepo.GetVisible(ctx, fileID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("загрузка файла: %w", err)
	}

	loaded := &LoadedFile{File: file, Content: file.Content}
	if file.Type == model.FileTypeTable {
		columnar, err := Columnarize(file.Content)
		if err != nil {
			return nil, fmt.Errorf("колоночное представление файла %s: %w", fileID, err)
		}
		loaded.Content = columnar
	}

	return loaded, nil
}

// Download возвращает имя и оригинальные байты файла.
// Скачивать может только загрузивший: опубликованные файлы
// чужим для скачивания недоступны.
func (s *FileService) Download(ctx context.Context, userID, fileID string) (*model.File, error) {
	meta, err := s.fileRepo.GetMeta(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("загрузка метаданных файла: %w", err)
	}

	if meta.UploadedBy != userID {
		return nil, ErrForbidden
	}

	raw, err := s.fileRepo.GetRaw(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("чтение содержимого файла: %w", err)
	}
	return raw, nil
}

// Delete выполняет мягкое удаление файла владельца.
// Для файлов типа Embedded Text сначала удаляются эмбеддинги
// из векторного хранилища; ошибка очистки прерывает удаление —
// запись файла остаётся активной.
func (s *FileService) Delete(ctx context.Context, userID, fileID string) error {
	meta, err := s.fileRepo.GetMeta(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("загрузка метаданных файла: %w", err)
	}

	if meta.UploadedBy != userID {
		return ErrForbidden
	}

	if meta.Type == model.FileTypeEmbeddedText {
		if err := s.embeddings.DeleteEmbeddings(ctx, fileID); err != nil {
			s.logger.Error("Ошибка каскадного удаления эмбеддингов",
				slog.String("file_id", fileID),
				slog.Any("error", err),
			)
			return fmt.Errorf("%w: %s", ErrVectorstore, err)
		}
	}

	if err := s.fileRepo.SoftDelete(ctx, fileID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление файла: %w", err)
	}

	s.logger.Info("Файл удалён",
		slog.String("file_id", fileID),
		slog.String("owner", userID),
	)
	return nil
}

// Publish устанавливает флаг публикации файла владельца.
func (s *FileService) Publish(ctx context.Context, userID, fileID string) error {
	if err := s.fileRepo.Publish(ctx, fileID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("публикация файла: %w", err)
	}
	return nil
}
