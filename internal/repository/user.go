package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goappforge/internal/domain/model"
)

// UserRepository — доступ к локальному отражению пользователей IdP.
type UserRepository interface {
	// Ensure создаёт или обновляет пользователя (upsert по id).
	// Вызывается auth middleware на каждом аутентифицированном запросе.
	Ensure(ctx context.Context, id, username string) error
	// GetByID возвращает пользователя по идентификатору.
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// userRepo — реализация UserRepository через pgx.
type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Ensure(ctx context.Context, id, username string) error {
	query := `
		INSERT INTO users (id, username)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username`

	if _, err := r.db.Exec(ctx, query, id, username); err != nil {
		return fmt.Errorf("ошибка upsert пользователя: %w", err)
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT id, username, created_at FROM users WHERE id = $1`

	u := &model.User{}
	err := r.db.QueryRow(ctx, query, id).Scan(&u.ID, &u.Username, &u.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}
