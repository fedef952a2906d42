package repository_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"novelist-server/internal/database"
	"novelist-server/internal/model"
	"novelist-server/internal/repository"
)

// RepositoryTestSuite поднимает настоящий PostgreSQL в контейнере и
// гоняет репозитории против примененных миграций.
type RepositoryTestSuite struct {
	suite.Suite
	ctx         context.Context
	pgContainer *postgres.PostgresContainer
	pool        *pgxpool.Pool

	novelRepo repository.NovelRepository
	userRepo  repository.UserRepository
	refRepo   repository.ReferenceRepository

	userID uuid.UUID
}

func (s *RepositoryTestSuite) SetupSuite() {
	s.ctx = context.Background()

	var err error
	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("novelist_test"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to start postgres container")

	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err)

	s.pool, err = pgxpool.New(s.ctx, connStr)
	require.NoError(s.T(), err, "Failed to connect to test postgres")

	require.NoError(s.T(), database.ApplyMigrations(connStr), "Failed to apply migrations")

	s.novelRepo = repository.NewPgNovelRepository(s.pool)
	s.userRepo = repository.NewPgUserRepository(s.pool)
	s.refRepo = repository.NewPgReferenceRepository(s.pool)
}

func (s *RepositoryTestSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.pgContainer != nil {
		require.NoError(s.T(), s.pgContainer.Terminate(s.ctx))
	}
}

func (s *RepositoryTestSuite) SetupTest() {
	// Новеллы и главы чистятся каскадом, справочники не трогаем
	_, err := s.pool.Exec(s.ctx, "TRUNCATE TABLE users CASCADE")
	require.NoError(s.T(), err)

	user, err := s.userRepo.Create(s.ctx, model.User{UserName: "тест", Email: "test@example.com"})
	require.NoError(s.T(), err)
	s.userID = user.ID
}

func TestRepositoryTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	suite.Run(t, new(RepositoryTestSuite))
}

func (s *RepositoryTestSuite) createNovel() model.Novel {
	novel, err := s.novelRepo.CreateNovel(s.ctx, model.Novel{
		UserID:     s.userID,
		GenreCode:  "sf",
		TextLength: 6000,
		Status:     model.StatusPending,
	})
	require.NoError(s.T(), err)
	return novel
}

func (s *RepositoryTestSuite) TestNovelLifecycle() {
	t := s.T()

	novel := s.createNovel()
	require.NotEqual(t, uuid.Nil, novel.ID)
	require.Equal(t, model.StatusPending, novel.Status)

	// План
	plan := &model.NovelPlan{
		Title:      "Стальные небеса",
		Summary:    "Краткое описание",
		Plot:       "Общий сюжет",
		Characters: []model.PlanCharacter{{Name: "Аня", Role: "герой"}},
		ChapterPlots: []model.ChapterPlan{
			{Plot: "завязка"}, {Plot: "развитие"}, {Plot: "развязка"},
		},
	}
	planJSON, err := json.Marshal(plan)
	require.NoError(t, err)
	require.NoError(t, s.novelRepo.UpdateNovelPlan(s.ctx, novel.ID, plan, planJSON, 6000))

	stored, err := s.novelRepo.GetNovel(s.ctx, novel.ID)
	require.NoError(t, err)
	require.Equal(t, "Стальные небеса", stored.Title)
	require.Equal(t, 6000, stored.TrueTextLength)
	require.JSONEq(t, string(planJSON), string(stored.PlanData))

	// Главы-заглушки
	require.NoError(t, s.novelRepo.CreateChapterPlaceholders(s.ctx, novel.ID, []string{"завязка", "развитие", "развязка"}))

	chapters, err := s.novelRepo.GetChapters(s.ctx, novel.ID)
	require.NoError(t, err)
	require.Len(t, chapters, 3)
	for i, ch := range chapters {
		require.Equal(t, i+1, ch.ChapterNumber)
		require.Equal(t, model.StatusPending, ch.Status)
		require.Equal(t, model.PlaceholderContent, ch.Content)
	}

	// Прохождение статусов
	require.NoError(t, s.novelRepo.UpdateNovelStatus(s.ctx, novel.ID, model.StatusGenerating))
	require.NoError(t, s.novelRepo.UpdateChapterStatus(s.ctx, novel.ID, 1, model.StatusGenerating))
	require.NoError(t, s.novelRepo.CompleteChapter(s.ctx, novel.ID, 1, "Текст первой главы."))

	first, err := s.novelRepo.GetChapterByNumber(s.ctx, novel.ID, 1)
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, first.Status)
	require.Equal(t, "Текст первой главы.", first.Content)

	// Падение
	require.NoError(t, s.novelRepo.FailChapter(s.ctx, novel.ID, 2))
	require.NoError(t, s.novelRepo.MarkNovelFailed(s.ctx, novel.ID, "обрыв соединения"))

	failed, err := s.novelRepo.GetNovel(s.ctx, novel.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusFailed, failed.Status)
	require.Equal(t, "обрыв соединения", failed.ErrorMessage)

	num, err := s.novelRepo.FirstChapterWithStatus(s.ctx, novel.ID, model.StatusFailed)
	require.NoError(t, err)
	require.Equal(t, 2, num)
}

func (s *RepositoryTestSuite) TestNovelNotFound() {
	t := s.T()

	_, err := s.novelRepo.GetNovel(s.ctx, uuid.New())
	require.ErrorIs(t, err, model.ErrNovelNotFound)

	err = s.novelRepo.UpdateNovelStatus(s.ctx, uuid.New(), model.StatusGenerating)
	require.ErrorIs(t, err, model.ErrNovelNotFound)

	err = s.novelRepo.CompleteChapter(s.ctx, uuid.New(), 1, "текст")
	require.ErrorIs(t, err, model.ErrChapterNotFound)

	_, err = s.novelRepo.FirstChapterWithStatus(s.ctx, uuid.New(), model.StatusFailed)
	require.ErrorIs(t, err, model.ErrChapterNotFound)
}

func (s *RepositoryTestSuite) TestListNovels() {
	t := s.T()

	first := s.createNovel()
	_ = s.createNovel()

	other, err := s.userRepo.Create(s.ctx, model.User{UserName: "другой", Email: "other@example.com"})
	require.NoError(t, err)
	_, err = s.novelRepo.CreateNovel(s.ctx, model.Novel{UserID: other.ID, TextLength: 1000, Status: model.StatusPending})
	require.NoError(t, err)

	all, err := s.novelRepo.ListNovels(s.ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)

	mine, err := s.novelRepo.ListNovels(s.ctx, &first.UserID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, n := range mine {
		require.Equal(t, first.UserID, n.UserID)
	}
}

func (s *RepositoryTestSuite) TestUserRepository() {
	t := s.T()

	user, err := s.userRepo.GetByID(s.ctx, s.userID)
	require.NoError(t, err)
	require.Equal(t, "тест", user.UserName)

	user.UserName = "обновленный"
	updated, err := s.userRepo.Update(s.ctx, user)
	require.NoError(t, err)
	require.Equal(t, "обновленный", updated.UserName)

	_, err = s.userRepo.GetByID(s.ctx, uuid.New())
	require.ErrorIs(t, err, model.ErrUserNotFound)

	users, err := s.userRepo.List(s.ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
}

func (s *RepositoryTestSuite) TestReferenceRepository() {
	t := s.T()

	genres, err := s.refRepo.ListGenres(s.ctx)
	require.NoError(t, err)
	require.NotEmpty(t, genres)

	moods, err := s.refRepo.ListMoods(s.ctx)
	require.NoError(t, err)
	require.NotEmpty(t, moods)

	ok, err := s.refRepo.GenreExists(s.ctx, "sf")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.refRepo.GenreExists(s.ctx, "несуществующий")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = s.refRepo.MoodExists(s.ctx, "serious")
	require.NoError(t, err)
	require.True(t, ok)
}
