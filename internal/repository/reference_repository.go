package repository

import (
	"context"
	"fmt"

	"novelist-server/internal/model"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	listGenresQuery  = `SELECT code, name FROM genres ORDER BY code`
	listMoodsQuery   = `SELECT code, name FROM moods ORDER BY code`
	genreExistsQuery = `SELECT EXISTS (SELECT 1 FROM genres WHERE code = $1)`
	moodExistsQuery  = `SELECT EXISTS (SELECT 1 FROM moods WHERE code = $1)`
)

// PgReferenceRepository - реализация ReferenceRepository поверх PostgreSQL.
type PgReferenceRepository struct {
	pool *pgxpool.Pool
}

// NewPgReferenceRepository создает новый экземпляр репозитория справочников
func NewPgReferenceRepository(pool *pgxpool.Pool) *PgReferenceRepository {
	return &PgReferenceRepository{pool: pool}
}

// ListGenres возвращает справочник жанров
func (r *PgReferenceRepository) ListGenres(ctx context.Context) ([]model.Genre, error) {
	var genres []model.Genre
	if err := pgxscan.Select(ctx, r.pool, &genres, listGenresQuery); err != nil {
		return nil, fmt.Errorf("failed to list genres: %w", err)
	}
	return genres, nil
}

// ListMoods возвращает справочник настроений
func (r *PgReferenceRepository) ListMoods(ctx context.Context) ([]model.Mood, error) {
	var moods []model.Mood
	if err := pgxscan.Select(ctx, r.pool, &moods, listMoodsQuery); err != nil {
		return nil, fmt.Errorf("failed to list moods: %w", err)
	}
	return moods, nil
}

// GenreExists проверяет наличие жанра в справочнике
func (r *PgReferenceRepository) GenreExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := pgxscan.Get(ctx, r.pool, &exists, genreExistsQuery, code); err != nil {
		return false, fmt.Errorf("failed to check genre %s: %w", code, err)
	}
	return exists, nil
}

// MoodExists проверяет наличие настроения в справочнике
func (r *PgReferenceRepository) MoodExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := pgxscan.Get(ctx, r.pool, &exists, moodExistsQuery, code); err != nil {
		return false, fmt.Errorf("failed to check mood %s: %w", code, err)
	}
	return exists, nil
}
