package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goappforge/internal/domain/model"
)

// fileMetaColumns — столбцы files без объёмных content/raw_content.
// Используется списком и операциями, которым содержимое не нужно.
const fileMetaColumns = `f.id, f.name, f.type, f.uploaded_by, u.username, f.uploaded_at,
	f.size, f.published, f.status, f.deleted_at, f.created_at, f.updated_at`

// FileSearchParams — параметры поиска файлов.
type FileSearchParams struct {
	// UploadedBy — фильтр по загрузившему (exact match)
	UploadedBy *string
	// Limit — количество результатов
	Limit int
	// Offset — смещение
	Offset int
}

// FileRepository — доступ к таблице files.
type FileRepository interface {
	// Register вставляет запись загруженного файла.
	Register(ctx context.Context, f *model.File) error
	// GetVisible возвращает файл с content (без raw_content), видимый requesterID.
	GetVisible(ctx context.Context, id, requesterID string) (*model.File, error)
	// GetMeta возвращает метаданные активного файла без content/raw_content.
	// Видимость НЕ проверяется: download/delete различают "не найден" и
	// "не владелец" на уровне сервиса.
	GetMeta(ctx context.Context, id string) (*model.File, error)
	// GetRaw возвращает имя и оригинальные байты активного файла.
	GetRaw(ctx context.Context, id string) (*model.File, error)
	// Search возвращает страницу файлов, видимых requesterID,
	// по убыванию uploaded_at. Без content/raw_content.
	Search(ctx context.Context, requesterID string, params FileSearchParams) ([]*model.File, error)
	// Count возвращает количество файлов, видимых requesterID с фильтрами.
	Count(ctx context.Context, requesterID string, params FileSearchParams) (int, error)
	// SoftDelete переводит файл в состояние deleted.
	SoftDelete(ctx context.Context, id string) error
	// Publish устанавливает published (владелец).
	Publish(ctx context.Context, id, ownerID string) error
}

// fileRepo — реализация FileRepository через pgx.
type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий файлов.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

func (r *fileRepo) Register(ctx context.Context, f *model.File) error {
	query := `
		INSERT INTO files (id, name, type, uploaded_by, uploaded_at, size, content, raw_content, published, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'active')
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		f.ID, f.Name, f.Type, f.UploadedBy, f.UploadedAt, f.Size,
		f.Content, f.RawContent, f.Published,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: файл с таким ID уже зарегистрирован", ErrConflict)
		}
		return fmt.Errorf("ошибка регистрации файла: %w", err)
	}
	f.Status = model.StatusActive
	return nil
}

// scanFileMeta сканирует строку files без content/raw_content.
func scanFileMeta(row pgx.Row) (*model.File, error) {
	f := &model.File{}
	err := row.Scan(
		&f.ID, &f.Name, &f.Type, &f.UploadedBy, &f.UploadedByUsername, &f.UploadedAt,
		&f.Size, &f.Published, &f.Status, &f.DeletedAt, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *fileRepo) GetVisible(ctx context.Context, id, requesterID string) (*model.File, error) {
	query := fmt.Sprintf(`
		SELECT %s, f.content
		FROM files f
		JOIN users u ON u.id = f.uploaded_by
		WHERE f.id = $1
			AND f.status = 'active'
			AND (f.uploaded_by = $2 OR f.published)`, fileMetaColumns)

	f := &model.File{}
	err := r.db.QueryRow(ctx, query, id, requesterID).Scan(
		&f.ID, &f.Name, &f.Type, &f.UploadedBy, &f.UploadedByUsername, &f.UploadedAt,
		&f.Size, &f.Published, &f.Status, &f.DeletedAt, &f.CreatedAt, &f.UpdatedAt,
		&f.Content,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

func (r *fileRepo) GetMeta(ctx context.Context, id string) (*model.File, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM files f
		JOIN users u ON u.id = f.uploaded_by
		WHERE f.id = $1 AND f.status = 'active'`, fileMetaColumns)

	f, err := scanFileMeta(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения метаданных файла: %w", err)
	}
	return f, nil
}

func (r *fileRepo) GetRaw(ctx context.Context, id string) (*model.File, error) {
	query := `
		SELECT id, name, uploaded_by, raw_content
		FROM files
		WHERE id = $1 AND status = 'active'`

	f := &model.File{}
	err := r.db.QueryRow(ctx, query, id).Scan(&f.ID, &f.Name, &f.UploadedBy, &f.RawContent)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения содержимого файла: %w", err)
	}
	return f, nil
}

// buildFileWhere строит WHERE-условие и аргументы для поиска файлов.
// $1 зарезервирован под requesterID, фильтры нумеруются со startArg.
func buildFileWhere(params FileSearchParams, startArg int) (string, []any) {
	conditions := []string{
		"f.status = 'active'",
		"(f.uploaded_by = $1 OR f.published)",
	}
	var args []any

	if params.UploadedBy != nil {
		conditions = append(conditions, fmt.Sprintf("f.uploaded_by = $%d", startArg))
		args = append(args, *params.UploadedBy)
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

func (r *fileRepo) Search(ctx context.Context, requesterID string, params FileSearchParams) ([]*model.File, error) {
	where, args := buildFileWhere(params, 2)
	argNum := len(args) + 2

	query := fmt.Sprintf(`
		SELECT %s
		FROM files f
		JOIN users u ON u.id = f.uploaded_by
		%s
		ORDER BY f.uploaded_at DESC
		LIMIT $%d OFFSET $%d`, fileMetaColumns, where, argNum, argNum+1)

	args = append([]any{requesterID}, args...)
	args = append(args, params.Limit, params.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска файлов: %w", err)
	}
	defer rows.Close()

	var result []*model.File
	for rows.Next() {
		f, err := scanFileMeta(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (r *fileRepo) Count(ctx context.Context, requesterID string, params FileSearchParams) (int, error) {
	where, args := buildFileWhere(params, 2)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM files f %s`, where)

	args = append([]any{requesterID}, args...)

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}
	return count, nil
}

func (r *fileRepo) SoftDelete(ctx context.Context, id string) error {
	query := `
		UPDATE files
		SET status = 'deleted', deleted_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'active'`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileRepo) Publish(ctx context.Context, id, ownerID string) error {
	query := `
		UPDATE files
		SET published = TRUE, updated_at = now()
		WHERE id = $1 AND uploaded_by = $2 AND status = 'active'`

	tag, err := r.db.Exec(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("ошибка публикации файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
