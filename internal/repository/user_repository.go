package repository

import (
	"context"
	"errors"
	"fmt"

	"novelist-server/internal/model"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	createUserQuery = `
        INSERT INTO users (user_name, email)
        VALUES ($1, $2)
        RETURNING id, user_name, email, created_at, updated_at`

	getUserByIDQuery = `
        SELECT id, user_name, email, created_at, updated_at
        FROM users WHERE id = $1`

	listUsersQuery = `
        SELECT id, user_name, email, created_at, updated_at
        FROM users ORDER BY created_at`

	updateUserQuery = `
        UPDATE users SET user_name = $2, email = $3, updated_at = now()
        WHERE id = $1
        RETURNING id, user_name, email, created_at, updated_at`
)

// PgUserRepository - реализация UserRepository поверх PostgreSQL.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

// NewPgUserRepository создает новый экземпляр репозитория пользователей
func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

// Create создает нового пользователя
func (r *PgUserRepository) Create(ctx context.Context, user model.User) (model.User, error) {
	var created model.User
	err := pgxscan.Get(ctx, r.pool, &created, createUserQuery, user.UserName, user.Email)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

// GetByID возвращает пользователя по ID
func (r *PgUserRepository) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	var user model.User
	err := pgxscan.Get(ctx, r.pool, &user, getUserByIDQuery, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return user, nil
}

// List возвращает всех пользователей
func (r *PgUserRepository) List(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := pgxscan.Select(ctx, r.pool, &users, listUsersQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

// Update обновляет имя и почту пользователя
func (r *PgUserRepository) Update(ctx context.Context, user model.User) (model.User, error) {
	var updated model.User
	err := pgxscan.Get(ctx, r.pool, &updated, updateUserQuery, user.ID, user.UserName, user.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("failed to update user %s: %w", user.ID, err)
	}
	return updated, nil
}
