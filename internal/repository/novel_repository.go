package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"novelist-server/internal/model"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	createNovelQuery = `
        INSERT INTO novels (user_id, genre_code, style, mood, text_length, status)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, user_id, title, short_summary, overall_plot, plan_data, genre_code,
                  style, mood, text_length, true_text_length, status, error_message,
                  created_at, updated_at`

	getNovelQuery = `
        SELECT id, user_id, title, short_summary, overall_plot, plan_data, genre_code,
               style, mood, text_length, true_text_length, status, error_message,
               created_at, updated_at
        FROM novels WHERE id = $1`

	listNovelsQuery = `
        SELECT id, user_id, title, short_summary, overall_plot, plan_data, genre_code,
               style, mood, text_length, true_text_length, status, error_message,
               created_at, updated_at
        FROM novels
        WHERE ($1::uuid IS NULL OR user_id = $1)
        ORDER BY created_at DESC`

	updateNovelStatusQuery = `
        UPDATE novels SET status = $2, updated_at = now() WHERE id = $1`

	markNovelFailedQuery = `
        UPDATE novels SET status = 'FAILED', error_message = $2, updated_at = now() WHERE id = $1`

	updateNovelPlanQuery = `
        UPDATE novels
        SET title = $2, short_summary = $3, overall_plot = $4, plan_data = $5,
            true_text_length = $6, updated_at = now()
        WHERE id = $1`

	createChapterQuery = `
        INSERT INTO chapters (novel_id, chapter_number, plot)
        VALUES ($1, $2, $3)`

	getChaptersQuery = `
        SELECT id, novel_id, chapter_number, content, plot, status, created_at, updated_at
        FROM chapters WHERE novel_id = $1
        ORDER BY chapter_number`

	getChapterByNumberQuery = `
        SELECT id, novel_id, chapter_number, content, plot, status, created_at, updated_at
        FROM chapters WHERE novel_id = $1 AND chapter_number = $2`

	updateChapterStatusQuery = `
        UPDATE chapters SET status = $3, updated_at = now()
        WHERE novel_id = $1 AND chapter_number = $2`

	completeChapterQuery = `
        UPDATE chapters SET content = $3, status = 'COMPLETED', updated_at = now()
        WHERE novel_id = $1 AND chapter_number = $2`

	failChapterQuery = `
        UPDATE chapters SET status = 'FAILED', updated_at = now()
        WHERE novel_id = $1 AND chapter_number = $2`

	firstChapterWithStatusQuery = `
        SELECT chapter_number FROM chapters
        WHERE novel_id = $1 AND status = $2
        ORDER BY chapter_number LIMIT 1`
)

// PgNovelRepository - реализация NovelRepository поверх PostgreSQL.
type PgNovelRepository struct {
	pool *pgxpool.Pool
}

// NewPgNovelRepository создает новый экземпляр репозитория новелл
func NewPgNovelRepository(pool *pgxpool.Pool) *PgNovelRepository {
	return &PgNovelRepository{pool: pool}
}

// CreateNovel создает запись новеллы в статусе PENDING
func (r *PgNovelRepository) CreateNovel(ctx context.Context, novel model.Novel) (model.Novel, error) {
	if novel.Status == "" {
		novel.Status = model.StatusPending
	}

	var created model.Novel
	err := pgxscan.Get(ctx, r.pool, &created, createNovelQuery,
		novel.UserID, novel.GenreCode, novel.Style, novel.Mood, novel.TextLength, novel.Status)
	if err != nil {
		return model.Novel{}, fmt.Errorf("failed to create novel: %w", err)
	}

	log.Info().Str("novelID", created.ID.String()).Msg("Novel created")
	return created, nil
}

// GetNovel возвращает новеллу по ID
func (r *PgNovelRepository) GetNovel(ctx context.Context, id uuid.UUID) (model.Novel, error) {
	var novel model.Novel
	err := pgxscan.Get(ctx, r.pool, &novel, getNovelQuery, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Novel{}, model.ErrNovelNotFound
		}
		return model.Novel{}, fmt.Errorf("failed to get novel %s: %w", id, err)
	}
	return novel, nil
}

// ListNovels возвращает новеллы, опционально отфильтрованные по пользователю
func (r *PgNovelRepository) ListNovels(ctx context.Context, userID *uuid.UUID) ([]model.Novel, error) {
	var novels []model.Novel
	err := pgxscan.Select(ctx, r.pool, &novels, listNovelsQuery, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []model.Novel{}, nil
		}
		return nil, fmt.Errorf("failed to list novels: %w", err)
	}
	if novels == nil {
		novels = []model.Novel{}
	}
	return novels, nil
}

// UpdateNovelStatus обновляет статус новеллы
func (r *PgNovelRepository) UpdateNovelStatus(ctx context.Context, id uuid.UUID, status model.NovelStatus) error {
	tag, err := r.pool.Exec(ctx, updateNovelStatusQuery, id, status)
	if err != nil {
		return fmt.Errorf("failed to update novel status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNovelNotFound
	}
	return nil
}

// MarkNovelFailed переводит новеллу в FAILED с текстом ошибки
func (r *PgNovelRepository) MarkNovelFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	tag, err := r.pool.Exec(ctx, markNovelFailedQuery, id, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to mark novel failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNovelNotFound
	}
	return nil
}

// UpdateNovelPlan сохраняет результат планирования новеллы
func (r *PgNovelRepository) UpdateNovelPlan(ctx context.Context, id uuid.UUID, plan *model.NovelPlan, planJSON json.RawMessage, trueTextLength int) error {
	tag, err := r.pool.Exec(ctx, updateNovelPlanQuery,
		id, plan.Title, plan.Summary, plan.Plot, planJSON, trueTextLength)
	if err != nil {
		return fmt.Errorf("failed to update novel plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNovelNotFound
	}
	return nil
}

// CreateChapterPlaceholders создает записи глав со статусом PENDING и
// содержимым-заглушкой, по одной на каждый план главы. Выполняется в
// транзакции: либо все главы, либо ни одной.
func (r *PgNovelRepository) CreateChapterPlaceholders(ctx context.Context, novelID uuid.UUID, plots []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, plot := range plots {
		if _, err := tx.Exec(ctx, createChapterQuery, novelID, i+1, plot); err != nil {
			return fmt.Errorf("failed to create chapter %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit chapter placeholders: %w", err)
	}

	log.Info().Str("novelID", novelID.String()).Int("chapters", len(plots)).Msg("Chapter placeholders created")
	return nil
}

// GetChapters возвращает все главы новеллы по порядку номеров
func (r *PgNovelRepository) GetChapters(ctx context.Context, novelID uuid.UUID) ([]model.Chapter, error) {
	var chapters []model.Chapter
	err := pgxscan.Select(ctx, r.pool, &chapters, getChaptersQuery, novelID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chapters of novel %s: %w", novelID, err)
	}
	if chapters == nil {
		chapters = []model.Chapter{}
	}
	return chapters, nil
}

// GetChapterByNumber возвращает главу по номеру
func (r *PgNovelRepository) GetChapterByNumber(ctx context.Context, novelID uuid.UUID, number int) (model.Chapter, error) {
	var chapter model.Chapter
	err := pgxscan.Get(ctx, r.pool, &chapter, getChapterByNumberQuery, novelID, number)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Chapter{}, model.ErrChapterNotFound
		}
		return model.Chapter{}, fmt.Errorf("failed to get chapter %d of novel %s: %w", number, novelID, err)
	}
	return chapter, nil
}

// UpdateChapterStatus обновляет статус главы
func (r *PgNovelRepository) UpdateChapterStatus(ctx context.Context, novelID uuid.UUID, number int, status model.NovelStatus) error {
	tag, err := r.pool.Exec(ctx, updateChapterStatusQuery, novelID, number, status)
	if err != nil {
		return fmt.Errorf("failed to update chapter status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrChapterNotFound
	}
	return nil
}

// CompleteChapter сохраняет текст главы и переводит ее в COMPLETED
// одним запросом: опрос прогресса никогда не увидит COMPLETED с заглушкой.
func (r *PgNovelRepository) CompleteChapter(ctx context.Context, novelID uuid.UUID, number int, content string) error {
	tag, err := r.pool.Exec(ctx, completeChapterQuery, novelID, number, content)
	if err != nil {
		return fmt.Errorf("failed to complete chapter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrChapterNotFound
	}
	return nil
}

// FailChapter переводит главу в FAILED, не трогая содержимое
func (r *PgNovelRepository) FailChapter(ctx context.Context, novelID uuid.UUID, number int) error {
	tag, err := r.pool.Exec(ctx, failChapterQuery, novelID, number)
	if err != nil {
		return fmt.Errorf("failed to fail chapter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrChapterNotFound
	}
	return nil
}

// FirstChapterWithStatus возвращает наименьший номер главы с данным статусом
func (r *PgNovelRepository) FirstChapterWithStatus(ctx context.Context, novelID uuid.UUID, status model.NovelStatus) (int, error) {
	var number int
	err := pgxscan.Get(ctx, r.pool, &number, firstChapterWithStatusQuery, novelID, status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, model.ErrChapterNotFound
		}
		return 0, fmt.Errorf("failed to find chapter with status %s: %w", status, err)
	}
	return number, nil
}
