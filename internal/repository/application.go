package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goappforge/internal/domain/model"
)

// appColumns — список столбцов applications (с проекцией username) для SELECT-запросов.
// DRY: одно место для всех SELECT'ов.
const appColumns = `a.id, a.app_name, a.created_by, u.username, a.tags, a.description,
	a.published, a.chain, a.status, a.deleted_at, a.created_at, a.updated_at`

// AppSearchParams — параметры поиска приложений.
// Все фильтры — указатели, nil = фильтр не применяется.
type AppSearchParams struct {
	// AppName — фильтр по имени приложения (partial match)
	AppName *string
	// CreatedBy — фильтр по идентификатору владельца (partial match)
	CreatedBy *string
	// Tags — фильтр по тегам: значение столбца tags должно входить в список
	Tags []string
	// Limit — количество результатов
	Limit int
	// Offset — смещение
	Offset int
}

// ApplicationRepository — доступ к таблице applications.
// Все выборки исключают записи со status != 'active'; requesterID участвует
// в предикате видимости (владелец или published).
type ApplicationRepository interface {
	// Create вставляет новое приложение.
	Create(ctx context.Context, a *model.Application) error
	// GetVisible возвращает приложение, видимое requesterID (владелец или published).
	GetVisible(ctx context.Context, id, requesterID string) (*model.Application, error)
	// GetOwned возвращает приложение, принадлежащее ownerID.
	GetOwned(ctx context.Context, id, ownerID string) (*model.Application, error)
	// Update сохраняет изменяемые поля приложения (ownership в WHERE).
	Update(ctx context.Context, a *model.Application) error
	// Search возвращает страницу приложений, видимых requesterID:
	// собственные записи раньше чужих, затем по убыванию updated_at.
	Search(ctx context.Context, requesterID string, params AppSearchParams) ([]*model.Application, error)
	// Count возвращает количество приложений, видимых requesterID с фильтрами.
	Count(ctx context.Context, requesterID string, params AppSearchParams) (int, error)
	// SoftDelete переводит приложение владельца в состояние deleted.
	SoftDelete(ctx context.Context, id, ownerID string) error
	// Publish устанавливает published и обновляет updated_at (владелец).
	Publish(ctx context.Context, id, ownerID string) error
}

// appRepo — реализация ApplicationRepository через pgx.
type appRepo struct {
	db DBTX
}

// NewApplicationRepository создаёт репозиторий приложений.
func NewApplicationRepository(db DBTX) ApplicationRepository {
	return &appRepo{db: db}
}

func (r *appRepo) Create(ctx context.Context, a *model.Application) error {
	query := `
		INSERT INTO applications (id, app_name, created_by, tags, description, published, chain, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'active')
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		a.ID, a.AppName, a.CreatedBy, a.Tags, a.Description, a.Published, a.Chain,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: приложение с таким ID уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания приложения: %w", err)
	}
	a.Status = model.StatusActive
	return nil
}

// scanApplication сканирует одну строку applications (+username).
func scanApplication(row pgx.Row) (*model.Application, error) {
	a := &model.Application{}
	err := row.Scan(
		&a.ID, &a.AppName, &a.CreatedBy, &a.CreatedByUsername, &a.Tags, &a.Description,
		&a.Published, &a.Chain, &a.Status, &a.DeletedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *appRepo) GetVisible(ctx context.Context, id, requesterID string) (*model.Application, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM applications a
		JOIN users u ON u.id = a.created_by
		WHERE a.id = $1
			AND a.status = 'active'
			AND (a.created_by = $2 OR a.published)`, appColumns)

	a, err := scanApplication(r.db.QueryRow(ctx, query, id, requesterID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения приложения: %w", err)
	}
	return a, nil
}

func (r *appRepo) GetOwned(ctx context.Context, id, ownerID string) (*model.Application, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM applications a
		JOIN users u ON u.id = a.created_by
		WHERE a.id = $1
			AND a.status = 'active'
			AND a.created_by = $2`, appColumns)

	a, err := scanApplication(r.db.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения приложения: %w", err)
	}
	return a, nil
}

func (r *appRepo) Update(ctx context.Context, a *model.Application) error {
	query := `
		UPDATE applications
		SET app_name = $3, tags = $4, description = $5, published = $6, chain = $7,
			updated_at = now()
		WHERE id = $1 AND created_by = $2 AND status = 'active'
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		a.ID, a.CreatedBy, a.AppName, a.Tags, a.Description, a.Published, a.Chain,
	).Scan(&a.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления приложения: %w", err)
	}
	return nil
}

// buildAppWhere строит WHERE-условие и аргументы для поиска приложений.
// $1 зарезервирован под requesterID (видимость + порядок владельца),
// фильтры нумеруются со startArg.
func buildAppWhere(params AppSearchParams, startArg int) (string, []any) {
	conditions := []string{
		"a.status = 'active'",
		"(a.created_by = $1 OR a.published)",
	}
	var args []any
	argNum := startArg

	if params.AppName != nil {
		conditions = append(conditions, fmt.Sprintf("a.app_name ILIKE $%d", argNum))
		args = append(args, "%"+*params.AppName+"%")
		argNum++
	}
	if params.CreatedBy != nil {
		conditions = append(conditions, fmt.Sprintf("a.created_by ILIKE $%d", argNum))
		args = append(args, "%"+*params.CreatedBy+"%")
		argNum++
	}
	if len(params.Tags) > 0 {
		conditions = append(conditions, fmt.Sprintf("a.tags = ANY($%d)", argNum))
		args = append(args, params.Tags)
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

func (r *appRepo) Search(ctx context.Context, requesterID string, params AppSearchParams) ([]*model.Application, error) {
	where, args := buildAppWhere(params, 2)
	argNum := len(args) + 2

	// Собственные записи раньше чужих, затем по свежести.
	query := fmt.Sprintf(`
		SELECT %s
		FROM applications a
		JOIN users u ON u.id = a.created_by
		%s
		ORDER BY CASE WHEN a.created_by = $1 THEN 1 ELSE 2 END, a.updated_at DESC
		LIMIT $%d OFFSET $%d`, appColumns, where, argNum, argNum+1)

	args = append([]any{requesterID}, args...)
	args = append(args, params.Limit, params.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска приложений: %w", err)
	}
	defer rows.Close()

	var result []*model.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования приложения: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (r *appRepo) Count(ctx context.Context, requesterID string, params AppSearchParams) (int, error) {
	where, args := buildAppWhere(params, 2)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM applications a %s`, where)

	args = append([]any{requesterID}, args...)

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта приложений: %w", err)
	}
	return count, nil
}

func (r *appRepo) SoftDelete(ctx context.Context, id, ownerID string) error {
	query := `
		UPDATE applications
		SET status = 'deleted', deleted_at = now(), updated_at = now()
		WHERE id = $1 AND created_by = $2 AND status = 'active'`

	tag, err := r.db.Exec(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("ошибка удаления приложения: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appRepo) Publish(ctx context.Context, id, ownerID string) error {
	query := `
		UPDATE applications
		SET published = TRUE, updated_at = now()
		WHERE id = $1 AND created_by = $2 AND status = 'active'`

	tag, err := r.db.Exec(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("ошибка публикации приложения: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
