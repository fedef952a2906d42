package repository

import (
	"context"
	"encoding/json"

	"novelist-server/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var log = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

// NovelRepository предоставляет доступ к данным новелл и глав
type NovelRepository interface {
	CreateNovel(ctx context.Context, novel model.Novel) (model.Novel, error)
	GetNovel(ctx context.Context, id uuid.UUID) (model.Novel, error)
	ListNovels(ctx context.Context, userID *uuid.UUID) ([]model.Novel, error)
	UpdateNovelStatus(ctx context.Context, id uuid.UUID, status model.NovelStatus) error
	MarkNovelFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
	// UpdateNovelPlan сохраняет результат планирования: метаданные,
	// сырой JSON плана и фактическую длину текста.
	UpdateNovelPlan(ctx context.Context, id uuid.UUID, plan *model.NovelPlan, planJSON json.RawMessage, trueTextLength int) error

	CreateChapterPlaceholders(ctx context.Context, novelID uuid.UUID, plots []string) error
	GetChapters(ctx context.Context, novelID uuid.UUID) ([]model.Chapter, error)
	GetChapterByNumber(ctx context.Context, novelID uuid.UUID, number int) (model.Chapter, error)
	UpdateChapterStatus(ctx context.Context, novelID uuid.UUID, number int, status model.NovelStatus) error
	CompleteChapter(ctx context.Context, novelID uuid.UUID, number int, content string) error
	FailChapter(ctx context.Context, novelID uuid.UUID, number int) error
	// FirstChapterWithStatus возвращает наименьший номер главы с данным
	// статусом или model.ErrChapterNotFound.
	FirstChapterWithStatus(ctx context.Context, novelID uuid.UUID, status model.NovelStatus) (int, error)
}

// UserRepository предоставляет доступ к данным пользователей
type UserRepository interface {
	Create(ctx context.Context, user model.User) (model.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, user model.User) (model.User, error)
}

// ReferenceRepository предоставляет доступ к справочникам
type ReferenceRepository interface {
	ListGenres(ctx context.Context) ([]model.Genre, error)
	ListMoods(ctx context.Context) ([]model.Mood, error)
	GenreExists(ctx context.Context, code string) (bool, error)
	MoodExists(ctx context.Context, code string) (bool, error)
}

// RunnerLock гарантирует не более одного активного исполнителя генерации
// на новеллу между экземплярами сервиса.
type RunnerLock interface {
	// Acquire пытается захватить блокировку; false - уже захвачена другим.
	Acquire(ctx context.Context, novelID uuid.UUID) (bool, error)
	Release(ctx context.Context, novelID uuid.UUID) error
}
