package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"novelist-server/internal/model"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCompleter отдает заранее заданные ответы по очереди
type stubCompleter struct {
	responses []openai.ChatCompletionResponse
	errs      []error
	requests  []openai.ChatCompletionRequest
}

func (s *stubCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.requests = append(s.requests, req)
	i := len(s.requests) - 1
	if i < len(s.errs) && s.errs[i] != nil {
		return openai.ChatCompletionResponse{}, s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return openai.ChatCompletionResponse{}, errors.New("нет заготовленного ответа")
}

func testClient(stub *stubCompleter) *Client {
	return &Client{
		api:           stub,
		modelName:     "test-model",
		timeout:       time.Second,
		plotPolicy:    fastPolicy(2, retriableKinds),
		initPolicy:    fastPolicy(2, JSONGenerationPolicy().RetriableKinds),
		chapterPolicy: fastPolicy(2, retriableKinds),
	}
}

func TestNew(t *testing.T) {
	t.Run("без API ключа", func(t *testing.T) {
		_, err := New(Config{})
		require.Error(t, err)
	})

	t.Run("значения по умолчанию", func(t *testing.T) {
		c, err := New(Config{APIKey: "key"})
		require.NoError(t, err)
		assert.Equal(t, defaultModel, c.modelName)
		assert.Equal(t, 600*time.Second, c.timeout)
	})
}

func TestClient_GenerateInit(t *testing.T) {
	ctx := context.Background()

	t.Run("валидный план с первого ответа", func(t *testing.T) {
		stub := &stubCompleter{responses: []openai.ChatCompletionResponse{
			chatResponse(validPlanJSON(2), openai.FinishReasonStop),
		}}

		plan, rawJSON, err := testClient(stub).GenerateInit(ctx, "сюжет", model.GenerationSettings{}, 4000, 2)
		require.NoError(t, err)
		assert.Len(t, plan.ChapterPlots, 2)
		assert.True(t, strings.HasPrefix(rawJSON, "{"))
	})

	t.Run("сломанная структура повторяется новым запросом", func(t *testing.T) {
		stub := &stubCompleter{responses: []openai.ChatCompletionResponse{
			chatResponse("не json вовсе", openai.FinishReasonStop),
			chatResponse(validPlanJSON(2), openai.FinishReasonStop),
		}}

		plan, _, err := testClient(stub).GenerateInit(ctx, "сюжет", model.GenerationSettings{}, 4000, 2)
		require.NoError(t, err)
		assert.Len(t, plan.ChapterPlots, 2)
		assert.Len(t, stub.requests, 2)
	})

	t.Run("неверное число глав исчерпывает повторы", func(t *testing.T) {
		wrong := chatResponse(validPlanJSON(5), openai.FinishReasonStop)
		stub := &stubCompleter{responses: []openai.ChatCompletionResponse{wrong, wrong, wrong}}

		_, _, err := testClient(stub).GenerateInit(ctx, "сюжет", model.GenerationSettings{}, 4000, 2)
		require.Error(t, err)
		assert.True(t, IsKind(err, KindChapterCountMismatch))
		assert.Len(t, stub.requests, 3)
	})

	t.Run("в промпте указано ожидаемое число глав", func(t *testing.T) {
		stub := &stubCompleter{responses: []openai.ChatCompletionResponse{
			chatResponse(validPlanJSON(3), openai.FinishReasonStop),
		}}

		_, _, err := testClient(stub).GenerateInit(ctx, "сюжет", model.GenerationSettings{}, 6000, 3)
		require.NoError(t, err)
		assert.Contains(t, stub.requests[0].Messages[1].Content, "ровно 3")
	})
}

func TestClient_GenerateChapter(t *testing.T) {
	ctx := context.Background()
	plan := &model.NovelPlan{
		Title:        "Т",
		Plot:         "П",
		Characters:   []model.PlanCharacter{{Name: "Аня", Role: "герой"}},
		ChapterPlots: []model.ChapterPlan{{Plot: "1"}, {Plot: "2"}},
	}

	t.Run("первая глава без предыдущего текста", func(t *testing.T) {
		stub := &stubCompleter{responses: []openai.ChatCompletionResponse{
			chatResponse("текст первой главы", openai.FinishReasonStop),
		}}

		content, err := testClient(stub).GenerateChapter(ctx, ChapterRequest{
			Plan:          plan,
			ChapterNumber: 1,
			TotalChapters: 2,
			ChapterPlot:   "1",
		})
		require.NoError(t, err)
		assert.Equal(t, "текст первой главы", content)
		assert.NotContains(t, stub.requests[0].Messages[1].Content, "предыдущей главы")
	})

	t.Run("в промпт попадает только хвост предыдущей главы", func(t *testing.T) {
		previous := strings.Repeat("а", 5000) + "ФИНАЛ"
		stub := &stubCompleter{responses: []openai.ChatCompletionResponse{
			chatResponse("текст второй главы", openai.FinishReasonStop),
		}}

		_, err := testClient(stub).GenerateChapter(ctx, ChapterRequest{
			Plan:            plan,
			ChapterNumber:   2,
			TotalChapters:   2,
			ChapterPlot:     "2",
			PreviousChapter: previous,
		})
		require.NoError(t, err)

		prompt := stub.requests[0].Messages[1].Content
		assert.Contains(t, prompt, "ФИНАЛ")
		// Хвост ограничен окном, полный текст не передается
		assert.NotContains(t, prompt, previous)
	})

	t.Run("сетевая ошибка повторяется", func(t *testing.T) {
		stub := &stubCompleter{
			errs: []error{errors.New("connection refused"), nil},
			responses: []openai.ChatCompletionResponse{
				{},
				chatResponse("текст", openai.FinishReasonStop),
			},
		}

		content, err := testClient(stub).GenerateChapter(ctx, ChapterRequest{
			Plan:          plan,
			ChapterNumber: 1,
			TotalChapters: 2,
			ChapterPlot:   "1",
		})
		require.NoError(t, err)
		assert.Equal(t, "текст", content)
		assert.Len(t, stub.requests, 2)
	})
}

func TestClassifyRequestError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{"таймаут контекста", context.DeadlineExceeded, KindTimeout},
		{"401", &openai.APIError{HTTPStatusCode: 401}, KindAuthentication},
		{"403", &openai.APIError{HTTPStatusCode: 403}, KindAuthentication},
		{"429", &openai.APIError{HTTPStatusCode: 429}, KindRateLimit},
		{"500", &openai.APIError{HTTPStatusCode: 500}, KindNetwork},
		{"418", &openai.APIError{HTTPStatusCode: 418}, KindUnexpectedTermination},
		{"транспортная ошибка", errors.New("EOF"), KindNetwork},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			classified := classifyRequestError(tc.err)
			assert.Equal(t, tc.kind, classified.Kind)
			assert.ErrorIs(t, classified, tc.err)
		})
	}
}
