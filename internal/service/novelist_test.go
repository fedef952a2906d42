package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novelist-server/internal/model"
	"novelist-server/internal/service"
	"novelist-server/pkg/ai"
)

// fakeGenerator - управляемая замена AI-клиента
type fakeGenerator struct {
	mu           sync.Mutex
	plotErr      error
	initErr      error
	chapterErrs  map[int]error // номер главы -> ошибка
	chapterCalls []ai.ChapterRequest
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{chapterErrs: make(map[int]error)}
}

func (f *fakeGenerator) GeneratePlot(ctx context.Context, userPrompt string, settings model.GenerationSettings) (string, error) {
	if f.plotErr != nil {
		return "", f.plotErr
	}
	return "общий сюжет по запросу: " + userPrompt, nil
}

func (f *fakeGenerator) GenerateInit(ctx context.Context, overallPlot string, settings model.GenerationSettings, textLength, expectedChapters int) (*model.NovelPlan, string, error) {
	if f.initErr != nil {
		return nil, "", f.initErr
	}

	plan := &model.NovelPlan{
		Title:      "Тестовая новелла",
		Summary:    "Краткое описание",
		Plot:       overallPlot,
		Characters: []model.PlanCharacter{{Name: "Аня", Role: "герой"}},
	}
	for i := 0; i < expectedChapters; i++ {
		plan.ChapterPlots = append(plan.ChapterPlots, model.ChapterPlan{Plot: fmt.Sprintf("план главы %d", i+1)})
	}

	raw, err := json.Marshal(plan)
	if err != nil {
		return nil, "", err
	}
	return plan, string(raw), nil
}

func (f *fakeGenerator) GenerateChapter(ctx context.Context, req ai.ChapterRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.chapterCalls = append(f.chapterCalls, req)
	if err := f.chapterErrs[req.ChapterNumber]; err != nil {
		return "", err
	}
	return fmt.Sprintf("Текст главы %d.", req.ChapterNumber), nil
}

func (f *fakeGenerator) calls() []ai.ChapterRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ai.ChapterRequest(nil), f.chapterCalls...)
}

func TestCalcChapterCount(t *testing.T) {
	cases := []struct {
		textLength int
		want       int
	}{
		{1, 1},
		{1000, 1},
		{3999, 1},
		{4000, 2},
		{5999, 2},
		{6000, 3},
		{10000, 5},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("length=%d", tc.textLength), func(t *testing.T) {
			assert.Equal(t, tc.want, service.CalcChapterCount(tc.textLength))
		})
	}
}

func TestNovelist_Prepare(t *testing.T) {
	ctx := context.Background()

	t.Run("после подготовки курсор на первой главе", func(t *testing.T) {
		n := service.NewNovelist(newFakeGenerator())
		n.SetFirstParams("космическая опера", model.GenerationSettings{Genre: "sf"}, 6000)

		require.NoError(t, n.Prepare(ctx))
		assert.Equal(t, 3, n.TotalChapters())
		assert.Equal(t, 1, n.NextChapterNumber())
		assert.False(t, n.IsCompleted())
		assert.NotEmpty(t, n.PlanJSON())
	})

	t.Run("нулевая длина отклоняется", func(t *testing.T) {
		n := service.NewNovelist(newFakeGenerator())
		n.SetFirstParams("запрос", model.GenerationSettings{}, 0)
		assert.ErrorIs(t, n.Prepare(ctx), model.ErrInvalidTextLength)
	})

	t.Run("ошибка генерации плана пробрасывается", func(t *testing.T) {
		gen := newFakeGenerator()
		gen.initErr = fmt.Errorf("api недоступен")
		n := service.NewNovelist(gen)
		n.SetFirstParams("запрос", model.GenerationSettings{}, 4000)
		assert.Error(t, n.Prepare(ctx))
	})
}

func TestNovelist_WriteNextChapter(t *testing.T) {
	ctx := context.Background()

	t.Run("курсор движется, предыдущая глава передается следующей", func(t *testing.T) {
		gen := newFakeGenerator()
		n := service.NewNovelist(gen)
		n.SetFirstParams("запрос", model.GenerationSettings{}, 4000)
		require.NoError(t, n.Prepare(ctx))

		num, content, err := n.WriteNextChapter(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, num)
		assert.Equal(t, "Текст главы 1.", content)
		assert.Equal(t, 2, n.NextChapterNumber())

		num, _, err = n.WriteNextChapter(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, num)
		assert.True(t, n.IsCompleted())

		calls := gen.calls()
		require.Len(t, calls, 2)
		assert.Empty(t, calls[0].PreviousChapter)
		assert.Equal(t, "Текст главы 1.", calls[1].PreviousChapter)
		assert.Equal(t, "план главы 2", calls[1].ChapterPlot)
	})

	t.Run("длина текста накапливается", func(t *testing.T) {
		n := service.NewNovelist(newFakeGenerator())
		n.SetFirstParams("запрос", model.GenerationSettings{}, 4000)
		require.NoError(t, n.Prepare(ctx))

		_, first, err := n.WriteNextChapter(ctx)
		require.NoError(t, err)
		_, second, err := n.WriteNextChapter(ctx)
		require.NoError(t, err)

		assert.Equal(t, len([]rune(first))+len([]rune(second)), n.TotalTextLength())
	})

	t.Run("ошибка не сдвигает курсор", func(t *testing.T) {
		gen := newFakeGenerator()
		gen.chapterErrs[1] = fmt.Errorf("сбой генерации")
		n := service.NewNovelist(gen)
		n.SetFirstParams("запрос", model.GenerationSettings{}, 4000)
		require.NoError(t, n.Prepare(ctx))

		num, _, err := n.WriteNextChapter(ctx)
		require.Error(t, err)
		assert.Equal(t, 1, num)
		assert.Equal(t, 1, n.NextChapterNumber())
	})

	t.Run("генерация после завершения отклоняется", func(t *testing.T) {
		n := service.NewNovelist(newFakeGenerator())
		n.SetFirstParams("запрос", model.GenerationSettings{}, 1000)
		require.NoError(t, n.Prepare(ctx))

		_, _, err := n.WriteNextChapter(ctx)
		require.NoError(t, err)
		require.True(t, n.IsCompleted())

		_, _, err = n.WriteNextChapter(ctx)
		assert.Error(t, err)
	})

	t.Run("без плана генерация невозможна", func(t *testing.T) {
		n := service.NewNovelist(newFakeGenerator())
		_, _, err := n.WriteNextChapter(ctx)
		assert.ErrorIs(t, err, model.ErrPlanMissing)
	})
}

func TestNovelist_ResumeFrom(t *testing.T) {
	ctx := context.Background()

	planJSON := func(chapters int) json.RawMessage {
		gen := newFakeGenerator()
		_, raw, err := gen.GenerateInit(ctx, "сюжет", model.GenerationSettings{}, chapters*2000, chapters)
		require.NoError(t, err)
		return json.RawMessage(raw)
	}

	t.Run("продолжение с середины", func(t *testing.T) {
		gen := newFakeGenerator()
		n := service.NewNovelist(gen)
		require.NoError(t, n.ResumeFrom(planJSON(3), 2, "конец первой главы", 2000))

		assert.Equal(t, 3, n.TotalChapters())
		assert.Equal(t, 2, n.NextChapterNumber())
		assert.Equal(t, 2000, n.TotalTextLength())

		num, _, err := n.WriteNextChapter(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, num)
		assert.Equal(t, "конец первой главы", gen.calls()[0].PreviousChapter)
	})

	t.Run("первая глава не требует предыдущей", func(t *testing.T) {
		n := service.NewNovelist(newFakeGenerator())
		assert.NoError(t, n.ResumeFrom(planJSON(2), 1, "", 0))
	})

	t.Run("глава после первой требует предыдущую", func(t *testing.T) {
		n := service.NewNovelist(newFakeGenerator())
		err := n.ResumeFrom(planJSON(3), 2, "", 0)
		assert.ErrorIs(t, err, model.ErrPreviousChapterRequired)
	})

	t.Run("пустой план отклоняется", func(t *testing.T) {
		n := service.NewNovelist(newFakeGenerator())
		assert.ErrorIs(t, n.ResumeFrom(nil, 1, "", 0), model.ErrPlanMissing)
	})

	t.Run("номер вне диапазона отклоняется", func(t *testing.T) {
		n := service.NewNovelist(newFakeGenerator())
		assert.Error(t, n.ResumeFrom(planJSON(2), 5, "текст", 0))
		assert.Error(t, n.ResumeFrom(planJSON(2), 0, "", 0))
	})
}
